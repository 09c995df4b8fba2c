package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SimulationGateway Описываем, что нам нужно от REST-клиента
type SimulationGateway interface {
	SetSpeed(ctx context.Context, speed int) error
	TriggerAnomaly(ctx context.Context, scenario string, params map[string]any) error
	StartDemo(ctx context.Context) error
	StopDemo(ctx context.Context) error
	DemoStatus(ctx context.Context) (map[string]any, error)
	Reset(ctx context.Context) error
}

// SimulationHandler — чистый pass-through на бэкенд. Ядро не интерпретирует
// эти вызовы: изменившееся состояние приедет обычными каналами
// (push system_reset/demo_phase или периодический pull).
type SimulationHandler struct {
	gw SimulationGateway
}

func NewSimulationHandler(gw SimulationGateway) *SimulationHandler {
	return &SimulationHandler{gw: gw}
}

func (h *SimulationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Put("/speed", h.SetSpeed)
	r.Post("/trigger-anomaly", h.TriggerAnomaly)
	r.Post("/start-demo", h.StartDemo)
	r.Post("/stop-demo", h.StopDemo)
	r.Get("/demo-status", h.DemoStatus)
	r.Post("/reset", h.Reset)
	return r
}

type SpeedRequest struct {
	Speed int `json:"speed"`
}

func (h *SimulationHandler) SetSpeed(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.finish(w, h.gw.SetSpeed(r.Context(), req.Speed))
}

type TriggerAnomalyRequest struct {
	Scenario string         `json:"scenario"`
	Params   map[string]any `json:"params"`
}

func (h *SimulationHandler) TriggerAnomaly(w http.ResponseWriter, r *http.Request) {
	var req TriggerAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Scenario == "" {
		http.Error(w, "scenario is required", http.StatusBadRequest)
		return
	}
	h.finish(w, h.gw.TriggerAnomaly(r.Context(), req.Scenario, req.Params))
}

func (h *SimulationHandler) StartDemo(w http.ResponseWriter, r *http.Request) {
	h.finish(w, h.gw.StartDemo(r.Context()))
}

func (h *SimulationHandler) StopDemo(w http.ResponseWriter, r *http.Request) {
	h.finish(w, h.gw.StopDemo(r.Context()))
}

func (h *SimulationHandler) DemoStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.gw.DemoStatus(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, status)
}

func (h *SimulationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.finish(w, h.gw.Reset(r.Context()))
}

func (h *SimulationHandler) finish(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
