package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/domain/mission"
	"shopping-agent/internal/usecase/executor"
)

type Observer interface {
	Build(ctx context.Context, browser output.BrowserPort) (entity.LabelMap, error)
	ClearMarkers(ctx context.Context, browser output.BrowserPort) error
	PageContext(pageURL string) string
}

type Decider interface {
	Decide(ctx context.Context, req output.DecisionRequest) (entity.Action, error)
}

type ActionExecutor interface {
	Execute(ctx context.Context, browser output.BrowserPort, action entity.Action, obs *entity.Observation, iteration int) (executor.Result, error)
	ExecuteApproved(ctx context.Context, browser output.BrowserPort, req entity.ApprovalRequest, obs *entity.Observation, iteration int) (executor.Result, error)
}

type Outcome string

const (
	OutcomeComplete        Outcome = "complete"
	OutcomeMaxIterations   Outcome = "max_iterations"
	OutcomeError           Outcome = "error"
	OutcomeCancelled       Outcome = "cancelled"
	OutcomeWaitingApproval Outcome = "waiting_approval"
)

// Terminal reports whether the mission is over. A mission waiting for
// approval can still be resumed.
func (o Outcome) Terminal() bool {
	return o != OutcomeWaitingApproval
}

type Config struct {
	HistoryWindow     int
	AfterActionSettle time.Duration
	StreamScreenshots bool
}

func DefaultConfig() Config {
	return Config{
		HistoryWindow:     5,
		AfterActionSettle: time.Second,
		StreamScreenshots: true,
	}
}

// UseCase runs the observe -> decide -> act loop for one mission. It owns
// the browser handle it was built with and is not safe for concurrent use.
type UseCase struct {
	browser  output.BrowserPort
	observer Observer
	decider  Decider
	executor ActionExecutor
	sink     output.EventSink
	cfg      Config
	logger   output.LoggerPort
	metrics  output.MetricsPort
}

func New(
	browser output.BrowserPort,
	observer Observer,
	decider Decider,
	executor ActionExecutor,
	sink output.EventSink,
	cfg Config,
	logger output.LoggerPort,
	metrics output.MetricsPort,
) *UseCase {
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	if sink == nil {
		sink = output.EventSinkFunc(func(entity.Event) {})
	}
	return &UseCase{
		browser:  browser,
		observer: observer,
		decider:  decider,
		executor: executor,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.WithField("component", "orchestrator"),
		metrics:  metrics,
	}
}

// Start announces the mission, opens the start URL and runs the loop.
func (uc *UseCase) Start(ctx context.Context, s mission.State, cancelled func() bool) (mission.State, Outcome) {
	uc.metrics.MissionStarted()
	uc.logger.Info("Mission started", "session", s.SessionID, "goal", s.Goal, "url", s.StartURL)
	uc.emit(s, entity.Event{Type: entity.EventStarted, Goal: s.Goal, URL: s.StartURL})

	if s.StartURL != "" {
		nav, err := uc.browser.Navigate(ctx, s.StartURL)
		if err != nil {
			if ctx.Err() != nil {
				return uc.cancel(s)
			}
			return uc.finish(s.Fail(fmt.Sprintf("navigation to %s failed: %v", s.StartURL, err)))
		}
		s = s.WithURL(nav.FinalURL)
		uc.emit(s, entity.Event{Type: entity.EventNavigation, URL: nav.FinalURL, Title: nav.Title})
	}

	return uc.Run(ctx, s, cancelled)
}

// Run loops until a stop condition holds or cancellation is observed between
// cycles.
func (uc *UseCase) Run(ctx context.Context, s mission.State, cancelled func() bool) (mission.State, Outcome) {
	for {
		if s.StopReason() != mission.StopNone {
			return uc.finish(s)
		}
		if (cancelled != nil && cancelled()) || ctx.Err() != nil {
			return uc.cancel(s)
		}

		started := time.Now()
		next, err := uc.cycle(ctx, s)
		uc.metrics.CycleDuration(time.Since(started))
		if err != nil {
			return uc.cancel(next)
		}
		s = next
	}
}

// Resume settles a pending approval. An approved click is executed without a
// new safety check and completes the cycle that requested it; a denied one is
// recorded so the next decision can see it.
func (uc *UseCase) Resume(ctx context.Context, s mission.State, approved bool, cancelled func() bool) (mission.State, Outcome) {
	if s.Status != mission.StatusWaitingApproval || s.PendingApproval == nil {
		return s, OutcomeWaitingApproval
	}
	req := *s.PendingApproval

	if !approved {
		uc.logger.Info("Approval denied", "session", s.SessionID, "url", req.URL)
		next, err := s.ClearApproval().RecordContinuation(entity.ActionRecord{
			Iteration: req.Iteration,
			Action:    req.Action,
			Outcome:   entity.OutcomeDenied,
			Error:     "click denied by user",
			URL:       req.URL,
			At:        time.Now(),
		})
		if err != nil {
			return uc.finish(s.Fail(err.Error()))
		}
		uc.emit(next, uc.stateUpdate(next, "approval", "Click denied by user"))
		return uc.Run(ctx, next, cancelled)
	}

	uc.logger.Info("Approval granted", "session", s.SessionID, "url", req.URL)
	next, err := s.GrantApproval()
	if err == nil {
		next, err = next.To(mission.StatusExecuting)
	}
	if err != nil {
		return uc.finish(s.Fail(err.Error()))
	}

	res, err := uc.executor.ExecuteApproved(ctx, uc.browser, req, next.Observation, req.Iteration)
	if err != nil {
		return uc.cancel(next)
	}

	next, err = next.ClearApproval().RecordContinuation(res.Record)
	if err != nil {
		return uc.finish(next.Fail(err.Error()))
	}
	uc.emit(next, uc.stateUpdate(next, "act", "Approved "+res.Record.String()))

	if err := uc.afterAction(ctx); err != nil {
		return uc.cancel(next)
	}
	return uc.Run(ctx, next, cancelled)
}

// cycle runs one observe -> reason -> act pass. Mission fatal failures and
// panics become the error status; only cancellation is returned as an error.
func (uc *UseCase) cycle(ctx context.Context, s mission.State) (next mission.State, err error) {
	next = s
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("Cycle panicked", "session", s.SessionID, "panic", r)
			next, err = next.Fail(fmt.Sprintf("internal error: %v", r)), nil
		}
	}()

	stages := []func(context.Context, mission.State) (mission.State, []entity.Event, error){
		uc.observe,
		uc.reason,
		uc.act,
	}
	for _, stage := range stages {
		var events []entity.Event
		next, events, err = stage(ctx, next)
		for _, ev := range events {
			uc.emit(next, ev)
		}
		if err != nil {
			if isCancellation(ctx, err) {
				return next, err
			}
			uc.logger.Error("Cycle failed", "session", s.SessionID, "iteration", s.Iteration, "error", err)
			return next.Fail(err.Error()), nil
		}
		if next.Status.Terminal() || next.Status == mission.StatusWaitingApproval {
			return next, nil
		}
	}
	return next, nil
}

func (uc *UseCase) finish(s mission.State) (mission.State, Outcome) {
	var outcome Outcome
	switch s.StopReason() {
	case mission.StopComplete:
		outcome = OutcomeComplete
	case mission.StopMaxIterations:
		outcome = OutcomeMaxIterations
	case mission.StopError:
		outcome = OutcomeError
	case mission.StopApprovalPending:
		uc.logger.Info("Mission suspended for approval", "session", s.SessionID, "iteration", s.Iteration)
		return s, OutcomeWaitingApproval
	default:
		outcome = OutcomeError
		s = s.Fail("mission stopped without a stop condition")
	}

	uc.metrics.MissionFinished(string(outcome))
	uc.logger.Info("Mission finished", "session", s.SessionID, "outcome", outcome, "iterations", s.Iteration)

	if outcome == OutcomeError {
		uc.emit(s, entity.Event{Type: entity.EventError, Status: string(s.Status), Message: s.Error})
	} else {
		uc.emit(s, entity.Event{Type: entity.EventComplete, Status: string(s.Status), Iteration: s.Iteration, Summary: s.Summary()})
	}
	return s, outcome
}

func (uc *UseCase) cancel(s mission.State) (mission.State, Outcome) {
	uc.metrics.MissionFinished(string(OutcomeCancelled))
	uc.logger.Info("Mission cancelled", "session", s.SessionID, "iteration", s.Iteration)
	uc.emit(s, entity.Event{Type: entity.EventCancelled, Status: string(s.Status), Iteration: s.Iteration, Summary: s.Summary()})
	return s, OutcomeCancelled
}

func (uc *UseCase) emit(s mission.State, ev entity.Event) {
	ev.SessionID = s.SessionID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	uc.sink.Publish(ev)
}

func (uc *UseCase) stateUpdate(s mission.State, node string, messages ...string) entity.Event {
	return entity.Event{
		Type:       entity.EventStateUpdate,
		Node:       node,
		Status:     string(s.Status),
		Iteration:  s.Iteration,
		URL:        s.CurrentURL,
		LastAction: s.LastAction,
		Messages:   messages,
	}
}

func (uc *UseCase) screenshotData(obs *entity.Observation) string {
	if !uc.cfg.StreamScreenshots || obs == nil || obs.Screenshot == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(obs.Screenshot.Data)
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
