package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/logitower-console/internal/domain"
	"github.com/xela07ax/logitower-console/internal/engine"
)

// StateSource Описываем, что нам нужно от сессии
type StateSource interface {
	Overview() domain.DashboardOverview
	Events() []domain.AgentEvent
	Event(eventID string) (domain.AgentEvent, error)
	Timeline() []domain.TimelineEvent
	Pending() []domain.PendingAction
	Activation() engine.Activation
	Connected() bool
}

// StateHandler раздает каноничное состояние read-only. Вся логика
// reconciliation остается в ядре; рендеру достаются готовые данные.
type StateHandler struct {
	source StateSource
}

func NewStateHandler(s StateSource) *StateHandler {
	return &StateHandler{source: s}
}

func (h *StateHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/overview", h.GetOverview)
	r.Get("/events", h.ListEvents)
	r.Get("/events/{event_id}", h.GetEvent)
	r.Get("/timeline", h.GetTimeline)
	r.Get("/pending", h.ListPending)
	r.Get("/connection", h.GetConnection)
	return r
}

func (h *StateHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.source.Overview())
}

func (h *StateHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.source.Events()
	writeJSON(w, map[string]any{"total": len(events), "events": events})
}

func (h *StateHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "event_id")

	ev, err := h.source.Event(id)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			// Буфер ограничен по дизайну: старое событие честно отдаем как 404
			http.Error(w, "event not found or evicted from history", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, ev)
}

func (h *StateHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	timeline := h.source.Timeline()
	writeJSON(w, map[string]any{"count": len(timeline), "timeline": timeline})
}

func (h *StateHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending := h.source.Pending()
	writeJSON(w, map[string]any{"total": len(pending), "pending_actions": pending})
}

func (h *StateHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"connected":  h.source.Connected(),
		"activation": h.source.Activation(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
