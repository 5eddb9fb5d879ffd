package entity

import "time"

type EventType string

const (
	EventStarted     EventType = "started"
	EventNavigation  EventType = "navigation"
	EventStateUpdate EventType = "state_update"
	EventCancelled   EventType = "cancelled"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

func (t EventType) Terminal() bool {
	return t == EventCancelled || t == EventComplete || t == EventError
}

type Event struct {
	Type       EventType        `json:"type"`
	SessionID  string           `json:"session_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Goal       string           `json:"goal,omitempty"`
	URL        string           `json:"url,omitempty"`
	Title      string           `json:"title,omitempty"`
	Node       string           `json:"node,omitempty"`
	Status     string           `json:"status,omitempty"`
	Iteration  int              `json:"iteration,omitempty"`
	LastAction *ActionRecord    `json:"last_action,omitempty"`
	Screenshot string           `json:"screenshot,omitempty"`
	Messages   []string         `json:"messages,omitempty"`
	Approval   *ApprovalRequest `json:"approval,omitempty"`
	Summary    string           `json:"state_summary,omitempty"`
	Message    string           `json:"message,omitempty"`
}
