package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// DecisionService Описываем, что нам нужно от сессии
type DecisionService interface {
	Approve(ctx context.Context, eventID string) error
	Reject(ctx context.Context, eventID, reason string) error
}

// DecisionHandler проксирует решения оператора на систему записи.
// Ответ 202: команда принята бэкендом, state обновится после перечитки.
type DecisionHandler struct {
	service DecisionService
}

func NewDecisionHandler(s DecisionService) *DecisionHandler {
	return &DecisionHandler{service: s}
}

func (h *DecisionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{event_id}/approve", h.Approve)
	r.Post("/{event_id}/reject", h.Reject)
	return r
}

func (h *DecisionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "event_id")
	h.finish(w, h.service.Approve(r.Context(), id))
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *DecisionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "event_id")

	var req RejectRequest
	if r.Body != nil {
		// Пустое тело допустимо: причина опциональна
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.finish(w, h.service.Reject(r.Context(), id, req.Reason))
}

func (h *DecisionHandler) finish(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrDecisionInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		// Сбой бэкенда: флаг in-flight уже снят, оператор может повторить
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
