package mission

import (
	"fmt"
	"slices"

	"shopping-agent/internal/domain/entity"
)

type Status string

const (
	StatusPlanning        Status = "planning"
	StatusObserving       Status = "observing"
	StatusReasoning       Status = "reasoning"
	StatusExecuting       Status = "executing"
	StatusWaitingApproval Status = "waiting_approval"
	StatusComplete        Status = "complete"
	StatusError           Status = "error"
)

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

var transitions = map[Status][]Status{
	StatusPlanning:        {StatusObserving},
	StatusObserving:       {StatusReasoning},
	StatusReasoning:       {StatusExecuting},
	StatusExecuting:       {StatusObserving, StatusWaitingApproval, StatusComplete},
	StatusWaitingApproval: {StatusExecuting, StatusObserving},
}

// CanTransition reports whether the table allows from -> to. Every
// non-terminal status may fail into error.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusError {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// State is a snapshot of one mission. Methods never modify the receiver;
// they return the next snapshot.
type State struct {
	Goal             string
	SessionID        string
	StartURL         string
	Status           Status
	Iteration        int
	MaxIterations    int
	CurrentURL       string
	Observation      *entity.Observation
	Decision         *entity.Action
	LastAction       *entity.ActionRecord
	History          []entity.ActionRecord
	ApprovalRequired bool
	ApprovalGranted  bool
	PendingApproval  *entity.ApprovalRequest
	Error            string
}

func New(sessionID, goal, startURL string, maxIterations int) State {
	return State{
		Goal:          goal,
		SessionID:     sessionID,
		StartURL:      startURL,
		Status:        StatusPlanning,
		MaxIterations: maxIterations,
		CurrentURL:    startURL,
	}
}

func (s State) To(next Status) (State, error) {
	if !CanTransition(s.Status, next) {
		return s, fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	return s, nil
}

// Fail moves the mission into the error status. A finished mission keeps its
// original outcome.
func (s State) Fail(reason string) State {
	if s.Status.Terminal() {
		return s
	}
	s.Status = StatusError
	s.Error = reason
	return s
}

func (s State) WithObservation(obs *entity.Observation) State {
	s.Observation = obs
	if obs != nil && obs.URL != "" {
		s.CurrentURL = obs.URL
	}
	return s
}

// WithDecision stores the action chosen for the current cycle.
func (s State) WithDecision(a *entity.Action) State {
	s.Decision = a
	return s
}

func (s State) WithURL(url string) State {
	s.CurrentURL = url
	return s
}

// Record appends one history entry and advances the iteration counter.
func (s State) Record(rec entity.ActionRecord) (State, error) {
	next, err := s.append(rec)
	if err != nil {
		return s, err
	}
	next.Iteration++
	return next, nil
}

// RecordContinuation appends a history entry that completes a cycle already
// counted, such as a click executed after approval.
func (s State) RecordContinuation(rec entity.ActionRecord) (State, error) {
	return s.append(rec)
}

func (s State) append(rec entity.ActionRecord) (State, error) {
	if s.Status.Terminal() {
		return s, fmt.Errorf("%w: cannot record action in status %s", entity.ErrInvalidTransition, s.Status)
	}
	history := make([]entity.ActionRecord, len(s.History), len(s.History)+1)
	copy(history, s.History)
	history = append(history, rec)

	s.History = history
	s.LastAction = &history[len(history)-1]
	return s, nil
}

func (s State) AwaitApproval(req entity.ApprovalRequest) (State, error) {
	next, err := s.To(StatusWaitingApproval)
	if err != nil {
		return s, err
	}
	next.ApprovalRequired = true
	next.ApprovalGranted = false
	next.PendingApproval = &req
	return next, nil
}

func (s State) GrantApproval() (State, error) {
	if s.Status != StatusWaitingApproval || s.PendingApproval == nil {
		return s, fmt.Errorf("%w: no approval pending", entity.ErrInvalidTransition)
	}
	s.ApprovalGranted = true
	return s, nil
}

// ClearApproval drops the pending request together with any grant, so an
// approval never carries over to a later click.
func (s State) ClearApproval() State {
	s.ApprovalRequired = false
	s.ApprovalGranted = false
	s.PendingApproval = nil
	return s
}

// Recent returns a copy of the last n history entries.
func (s State) Recent(n int) []entity.ActionRecord {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := max(len(s.History)-n, 0)
	return slices.Clone(s.History[start:])
}

type StopReason string

const (
	StopNone            StopReason = ""
	StopComplete        StopReason = "complete"
	StopMaxIterations   StopReason = "max_iterations"
	StopError           StopReason = "error"
	StopApprovalPending StopReason = "approval_pending"
)

// StopReason evaluates the stop conditions in priority order: complete,
// max iterations, error, pending approval.
func (s State) StopReason() StopReason {
	switch {
	case s.Status == StatusComplete:
		return StopComplete
	case s.Iteration >= s.MaxIterations:
		return StopMaxIterations
	case s.Status == StatusError:
		return StopError
	case s.ApprovalRequired && !s.ApprovalGranted:
		return StopApprovalPending
	}
	return StopNone
}
