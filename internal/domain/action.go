package domain

// PendingAction — действие, ожидающее решения оператора.
// Присутствует в наборе ровно пока соответствующий AgentEvent
// находится в режиме PENDING_APPROVAL; набор перечитывается с
// системы записи, а не мутируется локально.
type PendingAction struct {
	EventID     string   `json:"event_id"`
	EventType   string   `json:"event_type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ActionType  string   `json:"action_type"`
	Reason      string   `json:"reason"`
	Confidence  *float64 `json:"confidence,omitempty"`
	CreatedAt   *string  `json:"created_at,omitempty"`
}
