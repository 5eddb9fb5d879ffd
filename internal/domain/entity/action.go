package entity

import (
	"fmt"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionType   ActionKind = "type"
	ActionScroll ActionKind = "scroll"
	ActionDone   ActionKind = "done"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionClick, ActionType, ActionScroll, ActionDone:
		return true
	}
	return false
}

type Action struct {
	Kind      ActionKind `json:"kind"`
	Target    *int       `json:"target,omitempty"`
	Value     string     `json:"value,omitempty"`
	Direction string     `json:"direction,omitempty"`
	Reasoning string     `json:"reasoning"`
}

func (a Action) TargetLabel() (int, bool) {
	if a.Target == nil {
		return 0, false
	}
	return *a.Target, true
}

// Validate checks the schema only. Whether the target exists in the current
// label map is checked by the caller that owns the map.
func (a Action) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}
	if strings.TrimSpace(a.Reasoning) == "" {
		return fmt.Errorf("%w: reasoning is required", ErrInvalidAction)
	}

	switch a.Kind {
	case ActionClick:
		if a.Target == nil {
			return fmt.Errorf("%w: click requires a target", ErrInvalidAction)
		}
	case ActionType:
		if a.Target == nil {
			return fmt.Errorf("%w: type requires a target", ErrInvalidAction)
		}
		if strings.TrimSpace(a.Value) == "" {
			return fmt.Errorf("%w: type requires a value", ErrInvalidAction)
		}
	}
	return nil
}

func (a Action) String() string {
	switch a.Kind {
	case ActionClick:
		return fmt.Sprintf("click [%d]", derefInt(a.Target))
	case ActionType:
		return fmt.Sprintf("type %q into [%d]", a.Value, derefInt(a.Target))
	case ActionScroll:
		dir := a.Direction
		if dir == "" {
			dir = "down"
		}
		return "scroll " + dir
	}
	return string(a.Kind)
}

type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeFailed           Outcome = "failed"
	OutcomeApprovalRequired Outcome = "approval_required"
	OutcomeDenied           Outcome = "denied"
)

type ActionRecord struct {
	Iteration int       `json:"iteration"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Selector  string    `json:"selector,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	Error     string    `json:"error,omitempty"`
	URL       string    `json:"url,omitempty"`
	At        time.Time `json:"at"`
}

func (r ActionRecord) String() string {
	s := fmt.Sprintf("%s -> %s", r.Action, r.Outcome)
	if r.Error != "" {
		s += " (" + r.Error + ")"
	}
	return s
}

func IntPtr(v int) *int {
	return &v
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
