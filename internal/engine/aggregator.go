package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// HistorySource Описываем, что нам нужно от REST-поверхности
type HistorySource interface {
	FetchEvents(ctx context.Context, limit int) ([]domain.AgentEvent, error)
	FetchTimeline(ctx context.Context, minutes int) ([]domain.TimelineEvent, error)
}

// Aggregator держит две ограниченные истории: полные события конвейера и
// облегченную хронологическую ленту. Обе упорядочены от новых к старым,
// старые вытесняются при переполнении — буферы по дизайну lossy.
type Aggregator struct {
	mu       sync.RWMutex
	events   []domain.AgentEvent
	timeline []domain.TimelineEvent

	maxEvents       int
	maxTimeline     int
	timelineMinutes int

	src     HistorySource
	logger  *zap.Logger
	metrics *Metrics

	// onPending дергается, когда появилось событие PENDING_APPROVAL:
	// периодический pull узнает о нем только на следующем тике, а UI
	// должен показать запрос оператору немедленно.
	onPending func()
}

func NewAggregator(src HistorySource, maxEvents, maxTimeline, timelineMinutes int, logger *zap.Logger, metrics *Metrics) *Aggregator {
	return &Aggregator{
		maxEvents:       maxEvents,
		maxTimeline:     maxTimeline,
		timelineMinutes: timelineMinutes,
		src:             src,
		logger:          logger.Named("aggregator"),
		metrics:         metrics,
	}
}

// OnPendingDiscovered регистрирует реакцию на появление события,
// ожидающего решения оператора.
func (a *Aggregator) OnPendingDiscovered(fn func()) {
	a.onPending = fn
}

// Append кладет событие в начало истории и порождает ровно одну
// запись ленты. Переполненный буфер теряет самый старый хвост.
func (a *Aggregator) Append(ev domain.AgentEvent) {
	a.mu.Lock()
	a.events = prepend(a.events, ev, a.maxEvents)
	a.timeline = prepend(a.timeline, ev.Timeline(), a.maxTimeline)
	a.mu.Unlock()

	if ev.AwaitsApproval() && a.onPending != nil {
		a.onPending()
	}
}

// Select возвращает полное событие по идентификатору. Событие, вытесненное
// из буфера, честно считается не найденным.
func (a *Aggregator) Select(eventID string) (domain.AgentEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ev := range a.events {
		if ev.EventID == eventID {
			return ev, nil
		}
	}
	return domain.AgentEvent{}, domain.ErrEventNotFound
}

// Events возвращает копию истории событий (от новых к старым).
func (a *Aggregator) Events() []domain.AgentEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.AgentEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Timeline возвращает копию хронологической ленты.
func (a *Aggregator) Timeline() []domain.TimelineEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.TimelineEvent, len(a.timeline))
	copy(out, a.timeline)
	return out
}

// RefreshAll перечитывает обе истории с системы записи. Свежий pull
// замещает локальный буфер целиком (а не мержится): это страховка от
// потерянных push-кадров, порядок между каналами не гарантирован.
// Неудачный pull оставляет свой буфер нетронутым.
func (a *Aggregator) RefreshAll(ctx context.Context) {
	events, err := a.src.FetchEvents(ctx, a.maxEvents)
	if err != nil {
		a.metrics.RefreshFailures.WithLabelValues("events").Inc()
		a.logger.Warn("events refresh failed, keeping local buffer", zap.Error(err))
	} else {
		if len(events) > a.maxEvents {
			events = events[:a.maxEvents]
		}
		a.mu.Lock()
		a.events = events
		a.mu.Unlock()
	}

	timeline, err := a.src.FetchTimeline(ctx, a.timelineMinutes)
	if err != nil {
		a.metrics.RefreshFailures.WithLabelValues("timeline").Inc()
		a.logger.Warn("timeline refresh failed, keeping local buffer", zap.Error(err))
	} else {
		if len(timeline) > a.maxTimeline {
			timeline = timeline[:a.maxTimeline]
		}
		a.mu.Lock()
		a.timeline = timeline
		a.mu.Unlock()
	}
}

// prepend вставляет элемент в голову среза, удерживая длину в пределах max.
func prepend[T any](buf []T, item T, max int) []T {
	buf = append(buf, item) // выделяем место
	copy(buf[1:], buf)
	buf[0] = item
	if len(buf) > max {
		buf = buf[:max]
	}
	return buf
}
