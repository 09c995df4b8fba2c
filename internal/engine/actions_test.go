package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
)

type fakeGateway struct {
	mu      sync.Mutex
	pending []domain.PendingAction
	err     error
	calls   int
	block   chan struct{} // не nil — команда висит, пока канал не закроют
}

func (f *fakeGateway) FetchPendingActions(ctx context.Context) ([]domain.PendingAction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pending, nil
}

func (f *fakeGateway) Approve(ctx context.Context, eventID string) error {
	return f.command()
}

func (f *fakeGateway) Reject(ctx context.Context, eventID, reason string) error {
	return f.command()
}

func (f *fakeGateway) command() error {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func testQueue(gw DecisionGateway) *ActionQueue {
	return NewActionQueue(gw, zap.NewNop(), NewMetrics(nil))
}

func TestActionQueue_RefreshReplacesCache(t *testing.T) {
	gw := &fakeGateway{pending: []domain.PendingAction{{EventID: "E1", ActionType: "EXPEDITE"}}}
	q := testQueue(gw)

	q.RefreshPending(context.Background())
	if got := q.Pending(); len(got) != 1 || got[0].EventID != "E1" {
		t.Fatalf("unexpected pending set: %+v", got)
	}

	// Сбой бэкенда не стирает кэш
	gw.err = errors.New("backend down")
	q.RefreshPending(context.Background())
	if got := q.Pending(); len(got) != 1 {
		t.Fatalf("cache wiped by failed refresh: %+v", got)
	}
}

func TestActionQueue_SuccessSignalsRefresh(t *testing.T) {
	gw := &fakeGateway{}
	q := testQueue(gw)

	signals := 0
	q.OnDecided(func() { signals++ })

	if err := q.Approve(context.Background(), "E1"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if signals != 1 {
		t.Fatalf("onDecided fired %d times, want 1", signals)
	}
	// Никакой оптимистичной локальной мутации — кэш трогает только refresh
	if len(q.Pending()) != 0 {
		t.Fatalf("pending cache mutated locally: %+v", q.Pending())
	}
}

func TestActionQueue_InFlightGuardBlocksDoubleSubmit(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	q := testQueue(gw)

	done := make(chan error, 1)
	go func() { done <- q.Approve(context.Background(), "E1") }()

	// Ждем, пока первая команда повиснет внутри шлюза
	for {
		gw.mu.Lock()
		started := gw.calls == 1
		gw.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := q.Reject(context.Background(), "E1", "dup"); !errors.Is(err, domain.ErrDecisionInFlight) {
		t.Fatalf("second submit: got %v, want ErrDecisionInFlight", err)
	}

	close(gw.block)
	if err := <-done; err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
}

func TestActionQueue_FailureReleasesGuard(t *testing.T) {
	gw := &fakeGateway{err: errors.New("rejected by business rules")}
	q := testQueue(gw)

	signals := 0
	q.OnDecided(func() { signals++ })

	if err := q.Approve(context.Background(), "E1"); err == nil {
		t.Fatal("expected approve error")
	}
	if signals != 0 {
		t.Fatal("failed decision must not signal refresh")
	}

	// Флаг снят: оператор может повторить
	gw.err = nil
	if err := q.Approve(context.Background(), "E1"); err != nil {
		t.Fatalf("retry after failure blocked: %v", err)
	}
}
