package domain

import (
	"errors"
	"time"
)

// Типы агентов конвейера принятия решений
type AgentType string

const (
	AgentMonitor  AgentType = "MONITOR"
	AgentAnomaly  AgentType = "ANOMALY"
	AgentPriority AgentType = "PRIORITY"
	AgentAction   AgentType = "ACTION"
)

// OODA-фаза: какой этап конвейера породил событие
type OODAPhase string

const (
	PhaseObserve OODAPhase = "OBSERVE"
	PhaseOrient  OODAPhase = "ORIENT"
	PhaseDecide  OODAPhase = "DECIDE"
	PhaseAct     OODAPhase = "ACT"
)

type EventSeverity string

const (
	SeverityCritical EventSeverity = "CRITICAL"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityInfo     EventSeverity = "INFO"
)

// ExecutionMode описывает, как было (или будет) выполнено связанное действие
type ExecutionMode string

const (
	ModeAuto            ExecutionMode = "AUTO"
	ModeHumanApproved   ExecutionMode = "HUMAN_APPROVED"
	ModePendingApproval ExecutionMode = "PENDING_APPROVAL"
	ModeEscalated       ExecutionMode = "ESCALATED"
)

var (
	ErrEventNotFound    = errors.New("event not found in history buffer")
	ErrDecisionInFlight = errors.New("decision for this action is already in flight")
)

// AgentEvent — полное событие конвейера. ExecutionMode опционален (указатель),
// потому что не каждое событие связано с действием.
type AgentEvent struct {
	EventID       string         `json:"event_id"`
	AgentType     AgentType      `json:"agent_type"`
	OODAPhase     OODAPhase      `json:"ooda_phase"`
	EventType     string         `json:"event_type"` // "ORDER_SURGE", "VEHICLE_BREAKDOWN" и т.д.
	Severity      EventSeverity  `json:"severity"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"` // 0.0~1.0
	ActionTaken   string         `json:"action_taken,omitempty"`
	ExecutionMode *ExecutionMode `json:"execution_mode"`
	ParentEventID string         `json:"parent_event_id,omitempty"`
	DurationMs    int64          `json:"duration_ms,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
}

// AwaitsApproval — ждет ли событие решения оператора (HITL)
func (e *AgentEvent) AwaitsApproval() bool {
	return e.ExecutionMode != nil && *e.ExecutionMode == ModePendingApproval
}

// TimelineEvent — облегченная проекция AgentEvent для хронологической ленты
type TimelineEvent struct {
	Timestamp string        `json:"timestamp"`
	AgentType AgentType     `json:"agent_type"`
	OODAPhase OODAPhase     `json:"ooda_phase"`
	EventType string        `json:"event_type"`
	Severity  EventSeverity `json:"severity"`
	Title     string        `json:"title"`
	EventID   string        `json:"event_id"`
}

// Timeline строит проекцию события для ленты. Если таймстемп события пуст,
// подставляем момент приема — лента обязана оставаться хронологичной.
func (e *AgentEvent) Timeline() TimelineEvent {
	ts := e.CreatedAt
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	return TimelineEvent{
		Timestamp: ts,
		AgentType: e.AgentType,
		OODAPhase: e.OODAPhase,
		EventType: e.EventType,
		Severity:  e.Severity,
		Title:     e.Title,
		EventID:   e.EventID,
	}
}
