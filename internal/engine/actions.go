package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// DecisionGateway Описываем, что нам нужно от REST-поверхности
type DecisionGateway interface {
	FetchPendingActions(ctx context.Context) ([]domain.PendingAction, error)
	Approve(ctx context.Context, eventID string) error
	Reject(ctx context.Context, eventID, reason string) error
}

// ActionQueue владеет набором действий, ожидающих решения оператора.
// Набор — тонкий кэш: после успешной команды он перечитывается с системы
// записи, а не мутируется локально. Оптимистичное удаление запрещено —
// бэкенд может отклонить решение по своим бизнес-правилам.
type ActionQueue struct {
	mu       sync.Mutex
	pending  []domain.PendingAction
	inFlight map[string]struct{}

	gw      DecisionGateway
	logger  *zap.Logger
	metrics *Metrics

	// onDecided дергается после успешной команды: сессия перечитывает
	// pending-набор, обзор и ленту.
	onDecided func()
}

func NewActionQueue(gw DecisionGateway, logger *zap.Logger, metrics *Metrics) *ActionQueue {
	return &ActionQueue{
		inFlight: make(map[string]struct{}),
		gw:       gw,
		logger:   logger.Named("actions"),
		metrics:  metrics,
	}
}

// OnDecided регистрирует реакцию на успешно принятое решение.
func (q *ActionQueue) OnDecided(fn func()) {
	q.onDecided = fn
}

// Pending возвращает копию текущего набора ожидающих действий.
func (q *ActionQueue) Pending() []domain.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.PendingAction, len(q.pending))
	copy(out, q.pending)
	return out
}

// RefreshPending перечитывает набор с системы записи, замещая кэш целиком.
func (q *ActionQueue) RefreshPending(ctx context.Context) {
	actions, err := q.gw.FetchPendingActions(ctx)
	if err != nil {
		q.metrics.RefreshFailures.WithLabelValues("pending").Inc()
		q.logger.Warn("pending actions refresh failed, keeping cache", zap.Error(err))
		return
	}
	q.mu.Lock()
	q.pending = actions
	q.mu.Unlock()
}

// Approve подтверждает действие. Защита от двойной отправки: пока команда
// по этому event_id в полете, повторная попытка получает ErrDecisionInFlight.
func (q *ActionQueue) Approve(ctx context.Context, eventID string) error {
	return q.decide(ctx, eventID, "approve", func(ctx context.Context) error {
		return q.gw.Approve(ctx, eventID)
	})
}

// Reject отклоняет действие с причиной.
func (q *ActionQueue) Reject(ctx context.Context, eventID, reason string) error {
	return q.decide(ctx, eventID, "reject", func(ctx context.Context) error {
		return q.gw.Reject(ctx, eventID, reason)
	})
}

func (q *ActionQueue) decide(ctx context.Context, eventID, command string, call func(ctx context.Context) error) error {
	if err := q.acquire(eventID); err != nil {
		return err
	}
	// Флаг снимается при любом исходе: после ошибки оператор должен
	// иметь возможность повторить
	defer q.release(eventID)

	start := time.Now()
	err := call(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	q.metrics.CommandDuration.WithLabelValues(command, status).Observe(time.Since(start).Seconds())

	if err != nil {
		q.logger.Warn("operator decision failed",
			zap.String("event_id", eventID),
			zap.String("command", command),
			zap.Error(err))
		return err
	}

	q.logger.Info("operator decision accepted",
		zap.String("event_id", eventID),
		zap.String("command", command))

	if q.onDecided != nil {
		q.onDecided()
	}
	return nil
}

func (q *ActionQueue) acquire(eventID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inFlight[eventID]; busy {
		return domain.ErrDecisionInFlight
	}
	q.inFlight[eventID] = struct{}{}
	return nil
}

func (q *ActionQueue) release(eventID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, eventID)
}
