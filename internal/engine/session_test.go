package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// fakeTower — система записи целиком, для сквозных сценариев сессии.
type fakeTower struct {
	mu           sync.Mutex
	overview     domain.DashboardOverview
	events       []domain.AgentEvent
	timeline     []domain.TimelineEvent
	pending      []domain.PendingAction
	pendingPulls int
}

func (f *fakeTower) FetchOverview(ctx context.Context) (*domain.DashboardOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.overview
	return &out, nil
}

func (f *fakeTower) FetchEvents(ctx context.Context, limit int) ([]domain.AgentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, nil
}

func (f *fakeTower) FetchTimeline(ctx context.Context, minutes int) ([]domain.TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeline, nil
}

func (f *fakeTower) FetchPendingActions(ctx context.Context) ([]domain.PendingAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingPulls++
	return f.pending, nil
}

func (f *fakeTower) Approve(ctx context.Context, eventID string) error        { return nil }
func (f *fakeTower) Reject(ctx context.Context, eventID, reason string) error { return nil }

func (f *fakeTower) pendingPullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingPulls
}

func newTestSession(tower TowerGateway) *Session {
	params := SessionParams{
		RealtimeURL:     "ws://127.0.0.1:0/ws/realtime", // канал в этих тестах не открываем
		ReconnectDelay:  50 * time.Millisecond,
		BackstopEvery:   time.Hour, // бэкстоп не должен вмешиваться в сценарий
		ActivationDwell: 100 * time.Millisecond,
		MaxEvents:       50,
		MaxTimeline:     100,
		TimelineMinutes: 30,
	}
	return NewSession(params, tower, nil, zap.NewNop(), NewMetrics(nil))
}

func TestSession_AgentEventFlowsToAllConsumers(t *testing.T) {
	s := newTestSession(&fakeTower{})
	defer s.Stop()

	s.dispatcher.Dispatch(Frame{
		Type: "agent_event",
		Data: json.RawMessage(`{"event_id":"E1","agent_type":"MONITOR","ooda_phase":"OBSERVE","severity":"INFO","title":"demand spike","execution_mode":null}`),
	})

	if events := s.Events(); len(events) != 1 || events[0].EventID != "E1" {
		t.Fatalf("event history: %+v", events)
	}
	if timeline := s.Timeline(); len(timeline) != 1 || timeline[0].EventID != "E1" {
		t.Fatalf("timeline: %+v", timeline)
	}

	act := s.Activation()
	if !act.Active || act.Phase != domain.PhaseObserve || act.Label != "demand spike" {
		t.Fatalf("activation after event: %+v", act)
	}

	// Без последующих событий сигнал гаснет по истечении окна
	waitFor(t, time.Second, func() bool { return !s.Activation().Active })
}

func TestSession_PartialPushOverridesSnapshot(t *testing.T) {
	tower := &fakeTower{
		overview: domain.DashboardOverview{
			Orders:    domain.OrdersSummary{Total: 10, ByStatus: map[string]int{"CREATED": 10}},
			Inventory: domain.InventorySummary{LowStockCount: 3, TotalSKUs: 20},
		},
	}
	s := newTestSession(tower)
	defer s.Stop()

	s.RefreshAll(context.Background())
	if got := s.Overview(); got.Orders.Total != 10 {
		t.Fatalf("snapshot not primed: %+v", got)
	}

	s.dispatcher.Dispatch(Frame{
		Type: "dashboard_update",
		Data: json.RawMessage(`{"orders":{"total":12,"by_status":{"CREATED":12}}}`),
	})

	got := s.Overview()
	if got.Orders.Total != 12 {
		t.Fatalf("orders total = %d, want 12", got.Orders.Total)
	}
	if got.Inventory.LowStockCount != 3 {
		t.Fatalf("inventory regressed: %+v", got.Inventory)
	}
}

func TestSession_PendingEventTriggersImmediatePull(t *testing.T) {
	tower := &fakeTower{
		pending: []domain.PendingAction{{EventID: "E7", ActionType: "REROUTE", Reason: "sla risk"}},
	}
	s := newTestSession(tower)
	defer s.Stop()

	s.dispatcher.Dispatch(Frame{
		Type: "agent_event",
		Data: json.RawMessage(`{"event_id":"E7","agent_type":"ACTION","ooda_phase":"DECIDE","severity":"WARNING","title":"reroute proposed","execution_mode":"PENDING_APPROVAL"}`),
	})

	// Pull опережает периодический тик: набор виден сразу
	waitFor(t, time.Second, func() bool { return tower.pendingPullCount() == 1 })
	waitFor(t, time.Second, func() bool {
		pending := s.Pending()
		return len(pending) == 1 && pending[0].EventID == "E7"
	})
}

func TestSession_MalformedAgentEventDropped(t *testing.T) {
	s := newTestSession(&fakeTower{})
	defer s.Stop()

	s.dispatcher.Dispatch(Frame{Type: "agent_event", Data: json.RawMessage(`{"title": 42`)})
	s.dispatcher.Dispatch(Frame{Type: "agent_event", Data: json.RawMessage(`{"title":"no id"}`)})

	if events := s.Events(); len(events) != 0 {
		t.Fatalf("malformed events landed in history: %+v", events)
	}
}
