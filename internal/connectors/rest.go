package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// TowerClient — типизированный адаптер REST-поверхности Control Tower.
// Читающие вызовы ретраятся через Guard, команды (approve/reject, simulation)
// выполняются ровно один раз.
type TowerClient struct {
	base   string
	http   *http.Client
	guard  *Guard
	logger *zap.Logger
}

func NewTowerClient(baseURL string, timeout time.Duration, logger *zap.Logger) *TowerClient {
	return &TowerClient{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		guard:  NewGuard("tower-rest"),
		logger: logger.Named("tower-client"),
	}
}

// EventsPage — ответ GET /api/agents/events
type EventsPage struct {
	Total  int                 `json:"total"`
	Events []domain.AgentEvent `json:"events"`
}

// TimelinePage — ответ GET /api/agents/timeline
type TimelinePage struct {
	Minutes  int                    `json:"minutes"`
	Count    int                    `json:"count"`
	Timeline []domain.TimelineEvent `json:"timeline"`
}

// PendingPage — ответ GET /api/actions/pending
type PendingPage struct {
	Total          int                    `json:"total"`
	PendingActions []domain.PendingAction `json:"pending_actions"`
}

func (c *TowerClient) FetchOverview(ctx context.Context) (*domain.DashboardOverview, error) {
	var out domain.DashboardOverview
	if err := c.getJSON(ctx, "/api/dashboard/overview", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TowerClient) FetchEvents(ctx context.Context, limit int) ([]domain.AgentEvent, error) {
	var page EventsPage
	path := fmt.Sprintf("/api/agents/events?limit=%d", limit)
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Events, nil
}

func (c *TowerClient) FetchTimeline(ctx context.Context, minutes int) ([]domain.TimelineEvent, error) {
	var page TimelinePage
	path := fmt.Sprintf("/api/agents/timeline?minutes=%d", minutes)
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Timeline, nil
}

func (c *TowerClient) FetchPendingActions(ctx context.Context) ([]domain.PendingAction, error) {
	var page PendingPage
	if err := c.getJSON(ctx, "/api/actions/pending", &page); err != nil {
		return nil, err
	}
	return page.PendingActions, nil
}

// Approve подтверждает действие, ожидающее решения оператора.
func (c *TowerClient) Approve(ctx context.Context, eventID string) error {
	path := fmt.Sprintf("/api/actions/%s/approve", eventID)
	return c.command(ctx, http.MethodPost, path, nil)
}

// Reject отклоняет действие с указанием причины.
func (c *TowerClient) Reject(ctx context.Context, eventID, reason string) error {
	path := fmt.Sprintf("/api/actions/%s/reject", eventID)
	return c.command(ctx, http.MethodPost, path, map[string]string{"reason": reason})
}

// ── Simulation pass-through ──
// Консоль не интерпретирует эти вызовы, только проксирует их на бэкенд.

func (c *TowerClient) SetSpeed(ctx context.Context, speed int) error {
	return c.command(ctx, http.MethodPut, "/api/simulation/speed", map[string]int{"speed": speed})
}

func (c *TowerClient) TriggerAnomaly(ctx context.Context, scenario string, params map[string]any) error {
	body := map[string]any{"scenario": scenario, "params": params}
	return c.command(ctx, http.MethodPost, "/api/simulation/trigger-anomaly", body)
}

func (c *TowerClient) StartDemo(ctx context.Context) error {
	return c.command(ctx, http.MethodPost, "/api/simulation/start-demo", nil)
}

func (c *TowerClient) StopDemo(ctx context.Context) error {
	return c.command(ctx, http.MethodPost, "/api/simulation/stop-demo", nil)
}

func (c *TowerClient) DemoStatus(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/api/simulation/demo-status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TowerClient) Reset(ctx context.Context) error {
	return c.command(ctx, http.MethodPost, "/api/simulation/reset", nil)
}

// getJSON — читающий вызов: до 3 попыток под Circuit Breaker.
func (c *TowerClient) getJSON(ctx context.Context, path string, out any) error {
	return c.guard.Do(ctx, 3, func(ctx context.Context) error {
		return c.roundTrip(ctx, http.MethodGet, path, nil, out)
	})
}

// command — мутирующий вызов: ровно одна попытка, повтор решает оператор.
func (c *TowerClient) command(ctx context.Context, method, path string, body any) error {
	return c.guard.Do(ctx, 1, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, body, nil)
	})
}

func (c *TowerClient) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Сквозной идентификатор для корреляции логов консоли и бэкенда
	req.Header.Set("X-Trace-ID", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tower call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &ThrottleError{RetryAfter: parseRetryAfter(resp), Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}
