package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
	"github.com/xela07ax/logitower-console/internal/infra"
)

// Частота периодического полного pull'а и прочие параметры сессии
// приходят из infra.Config; компоненты о конфиге не знают.
type SessionParams struct {
	RealtimeURL     string
	ReconnectDelay  time.Duration
	BackstopEvery   time.Duration
	ActivationDwell time.Duration
	MaxEvents       int
	MaxTimeline     int
	TimelineMinutes int
}

func ParamsFromConfig(cfg *infra.Config) SessionParams {
	return SessionParams{
		RealtimeURL:     cfg.RealtimeEndpoint(),
		ReconnectDelay:  cfg.Realtime.ReconnectDelay,
		BackstopEvery:   cfg.Backstop.Interval,
		ActivationDwell: cfg.Backstop.ActivationDwell,
		MaxEvents:       cfg.History.Events,
		MaxTimeline:     cfg.History.Timeline,
		TimelineMinutes: cfg.Backstop.TimelineMinutes,
	}
}

// Session собирает ядро консоли: одно realtime-соединение, диспетчер,
// reconciler, агрегатор историй, активатор фаз и клиент очереди решений.
// Конструируется на старте, останавливается при завершении процесса —
// компоненты не живут дольше сессии.
type Session struct {
	conn       *ConnManager
	dispatcher *Dispatcher
	overview   *OverviewReconciler
	aggregator *Aggregator
	activator  *PhaseActivator
	actions    *ActionQueue
	mirror     *Mirror // nil, если Redis не сконфигурирован
	logger     *zap.Logger
	metrics    *Metrics

	backstopEvery time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// TowerGateway — полная REST-поверхность системы записи, как ее видит сессия.
type TowerGateway interface {
	OverviewSource
	HistorySource
	DecisionGateway
}

func NewSession(params SessionParams, tower TowerGateway, rdb *redis.Client, logger *zap.Logger, metrics *Metrics) *Session {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	s := &Session{
		dispatcher: NewDispatcher(logger, metrics),
		overview:   NewOverviewReconciler(tower, logger, metrics),
		aggregator: NewAggregator(tower, params.MaxEvents, params.MaxTimeline, params.TimelineMinutes, logger, metrics),
		activator:  NewPhaseActivator(params.ActivationDwell),
		actions:    NewActionQueue(tower, logger, metrics),
		logger:     logger.Named("session"),
		metrics:    metrics,

		backstopEvery: params.BackstopEvery,
	}
	s.conn = NewConnManager(params.RealtimeURL, params.ReconnectDelay, s.dispatcher, logger, metrics)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if rdb != nil {
		s.mirror = NewMirror(rdb, logger)
		s.dispatcher.Tap(func(frame Frame) { s.mirror.PublishFrame(s.ctx, frame) })
		s.overview.OnUpdate(func(o domain.DashboardOverview) { s.mirror.StoreOverview(s.ctx, o) })
	}

	// Push-кадр PENDING_APPROVAL опережает периодический pull —
	// перечитываем набор ожидающих действий сразу
	s.aggregator.OnPendingDiscovered(func() {
		s.spawn(func(ctx context.Context) { s.actions.RefreshPending(ctx) })
	})

	// После принятого решения локально ничего не трогаем: перечитываем
	// pending-набор и зависимые представления с системы записи
	s.actions.OnDecided(func() {
		s.spawn(func(ctx context.Context) {
			s.actions.RefreshPending(ctx)
			_ = s.overview.Refresh(ctx)
			s.aggregator.RefreshAll(ctx)
		})
	})

	s.subscribeAll()
	return s
}

// subscribeAll раздает десять распознаваемых тегов по компонентам.
func (s *Session) subscribeAll() {
	s.dispatcher.Subscribe("dashboard_update", func(data json.RawMessage) {
		s.overview.ApplyPartial(data)
	})

	s.dispatcher.Subscribe("agent_event", s.handleAgentEvent)

	// События, меняющие сводные цифры обзора: дешевле перечитать снапшот,
	// чем дублировать серверную агрегацию на клиенте
	refreshOverview := func(json.RawMessage) {
		s.spawn(func(ctx context.Context) { _ = s.overview.Refresh(ctx) })
	}
	s.dispatcher.Subscribe("new_order", refreshOverview)
	s.dispatcher.Subscribe("anomaly_detected", refreshOverview)
	s.dispatcher.Subscribe("vehicle_update", refreshOverview)
	s.dispatcher.Subscribe("priority_changed", refreshOverview)

	// Решение исполнено/подтверждено на бэкенде — pending-набор устарел
	refreshDecisions := func(json.RawMessage) {
		s.spawn(func(ctx context.Context) {
			s.actions.RefreshPending(ctx)
			_ = s.overview.Refresh(ctx)
		})
	}
	s.dispatcher.Subscribe("action_executed", refreshDecisions)
	s.dispatcher.Subscribe("action_approved", refreshDecisions)

	// Жизненный цикл демо-конвейера: состояние могло поменяться целиком
	forceRefreshAll := func(json.RawMessage) {
		s.spawn(func(ctx context.Context) { s.RefreshAll(ctx) })
	}
	s.dispatcher.Subscribe("demo_phase", forceRefreshAll)
	s.dispatcher.Subscribe("system_reset", forceRefreshAll)
}

func (s *Session) handleAgentEvent(data json.RawMessage) {
	var ev domain.AgentEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.EventID == "" {
		s.metrics.FramesDropped.WithLabelValues("decode").Inc()
		s.logger.Debug("malformed agent event dropped", zap.Error(err))
		return
	}
	s.aggregator.Append(ev)
	s.activator.OnEvent(ev)
}

// Start первично наполняет состояние, открывает realtime-канал и
// запускает периодический бэкстоп.
func (s *Session) Start() {
	s.RefreshAll(s.ctx)
	s.conn.Connect()

	s.wg.Add(1)
	go s.backstopLoop()
}

func (s *Session) backstopLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.backstopInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RefreshAll(s.ctx)
			if s.mirror != nil {
				s.mirror.SetConnected(s.ctx, s.conn.IsConnected())
			}
		}
	}
}

func (s *Session) backstopInterval() time.Duration {
	// защитный дефолт для тестовых конструкций без параметров
	if s.backstopEvery <= 0 {
		return 5 * time.Second
	}
	return s.backstopEvery
}

// RefreshAll — полный pull всех трех поверхностей. Свежий снапшот
// замещает локальное состояние независимо от push-канала.
func (s *Session) RefreshAll(ctx context.Context) {
	_ = s.overview.Refresh(ctx)
	s.aggregator.RefreshAll(ctx)
	s.actions.RefreshPending(ctx)
}

// Stop сворачивает сессию: бэкстоп, таймер активации, соединение.
// Летящие REST-вызовы завершатся по отмене контекста и будут проигнорированы.
func (s *Session) Stop() {
	s.cancel()
	s.activator.Stop()
	s.conn.Close()
	s.wg.Wait()
	s.logger.Info("console session stopped")
}

// spawn запускает фоновую операцию, привязанную к жизни сессии.
func (s *Session) spawn(fn func(ctx context.Context)) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// ── Доступ к каноничному состоянию (читает локальный HTTP API) ──

func (s *Session) Overview() domain.DashboardOverview { return s.overview.Snapshot() }
func (s *Session) Events() []domain.AgentEvent        { return s.aggregator.Events() }
func (s *Session) Timeline() []domain.TimelineEvent   { return s.aggregator.Timeline() }
func (s *Session) Pending() []domain.PendingAction    { return s.actions.Pending() }
func (s *Session) Activation() Activation             { return s.activator.State() }
func (s *Session) Connected() bool                    { return s.conn.IsConnected() }

func (s *Session) Event(eventID string) (domain.AgentEvent, error) {
	return s.aggregator.Select(eventID)
}

func (s *Session) Approve(ctx context.Context, eventID string) error {
	return s.actions.Approve(ctx, eventID)
}

func (s *Session) Reject(ctx context.Context, eventID, reason string) error {
	return s.actions.Reject(ctx, eventID, reason)
}
