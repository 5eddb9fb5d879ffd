package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/application/service"
	"shopping-agent/internal/domain/entity"
)

type TargetResolver interface {
	Resolve(ctx context.Context, browser output.BrowserPort, label int, labels entity.LabelMap) (string, error)
}

type SafetyGuard interface {
	Evaluate(ctx context.Context, c entity.ClickCandidate) (entity.SafetyVerdict, error)
}

type Timing struct {
	ClickSettle    time.Duration
	FocusPause     time.Duration
	KeystrokeDelay time.Duration
	SubmitPause    time.Duration
	ScrollStep     int
}

func DefaultTiming() Timing {
	return Timing{
		ClickSettle:    500 * time.Millisecond,
		FocusPause:     300 * time.Millisecond,
		KeystrokeDelay: 50 * time.Millisecond,
		SubmitPause:    500 * time.Millisecond,
		ScrollStep:     500,
	}
}

// Result is the outcome of one dispatched action. Verdict is set when the
// click was held back for approval.
type Result struct {
	Record   entity.ActionRecord
	Verdict  *entity.SafetyVerdict
	Complete bool
}

type Executor struct {
	resolver TargetResolver
	guard    SafetyGuard
	timing   Timing
	logger   output.LoggerPort
	metrics  output.MetricsPort
}

func New(resolver TargetResolver, guard SafetyGuard, timing Timing, logger output.LoggerPort, metrics output.MetricsPort) *Executor {
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &Executor{
		resolver: resolver,
		guard:    guard,
		timing:   timing,
		logger:   logger.WithField("component", "executor"),
		metrics:  metrics,
	}
}

// Execute dispatches one validated action. Action level failures end up in
// the returned record; the error is reserved for cancellation.
func (e *Executor) Execute(ctx context.Context, browser output.BrowserPort, action entity.Action, obs *entity.Observation, iteration int) (Result, error) {
	rec := entity.ActionRecord{
		Iteration: iteration,
		Action:    action,
		URL:       obs.URL,
		At:        time.Now(),
	}

	var (
		res Result
		err error
	)
	switch action.Kind {
	case entity.ActionClick:
		res, err = e.click(ctx, browser, rec, obs, false)
	case entity.ActionType:
		res, err = e.typeText(ctx, browser, rec, obs)
	case entity.ActionScroll:
		res, err = e.scroll(ctx, browser, rec)
	case entity.ActionDone:
		rec.Outcome = entity.OutcomeSuccess
		res = Result{Record: rec, Complete: true}
	default:
		rec.Outcome = entity.OutcomeFailed
		rec.Error = fmt.Sprintf("unsupported action %q", action.Kind)
		res = Result{Record: rec}
	}
	if err != nil {
		return Result{}, err
	}

	e.metrics.ActionExecuted(string(action.Kind), string(res.Record.Outcome))
	return res, nil
}

// ExecuteApproved performs a click the human has approved. The safety check
// is skipped for this one click only.
func (e *Executor) ExecuteApproved(ctx context.Context, browser output.BrowserPort, req entity.ApprovalRequest, obs *entity.Observation, iteration int) (Result, error) {
	rec := entity.ActionRecord{
		Iteration: iteration,
		Action:    req.Action,
		URL:       req.URL,
		At:        time.Now(),
	}
	res, err := e.click(ctx, browser, rec, obs, true)
	if err != nil {
		return Result{}, err
	}
	e.metrics.ActionExecuted(string(req.Action.Kind), string(res.Record.Outcome))
	return res, nil
}

func (e *Executor) click(ctx context.Context, browser output.BrowserPort, rec entity.ActionRecord, obs *entity.Observation, approved bool) (Result, error) {
	label, _ := rec.Action.TargetLabel()

	sel, err := e.resolver.Resolve(ctx, browser, label, obs.Labels)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		e.logger.Warn("Click target not found", "label", label, "error", err)
		return failed(rec, err), nil
	}
	rec.Selector = sel

	if !approved {
		verdict, err := e.guard.Evaluate(ctx, entity.ClickCandidate{
			Label:      label,
			Element:    obs.Labels[label],
			URL:        obs.URL,
			Screenshot: obs.Screenshot,
		})
		if err != nil {
			return Result{}, err
		}
		if verdict.RequiresApproval {
			rec.Outcome = entity.OutcomeApprovalRequired
			return Result{Record: rec, Verdict: &verdict}, nil
		}
	}

	strategy, err := e.clickWithEscalation(ctx, browser, sel)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return failed(rec, err), nil
	}

	rec.Strategy = strategy
	rec.Outcome = entity.OutcomeSuccess
	e.logger.Info("Clicked", "label", label, "selector", sel, "strategy", strategy)
	return Result{Record: rec}, nil
}

type clickStrategy struct {
	name string
	run  func(ctx context.Context, selector string) error
}

func (e *Executor) clickWithEscalation(ctx context.Context, browser output.BrowserPort, sel string) (string, error) {
	strategies := []clickStrategy{
		{"standard", func(ctx context.Context, sel string) error {
			if err := service.Sleep(ctx, e.timing.ClickSettle); err != nil {
				return err
			}
			return browser.Click(ctx, sel)
		}},
		{"script", browser.ClickScript},
		{"force", browser.ClickForce},
	}

	var errs []error
	for _, s := range strategies {
		err := s.run(ctx, sel)
		if err == nil {
			return s.name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		e.logger.Warn("Click strategy failed", "strategy", s.name, "selector", sel, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return "", fmt.Errorf("%w: all click strategies failed: %w", entity.ErrActionExecution, errors.Join(errs...))
}

func (e *Executor) typeText(ctx context.Context, browser output.BrowserPort, rec entity.ActionRecord, obs *entity.Observation) (Result, error) {
	label, _ := rec.Action.TargetLabel()

	sel, err := e.resolver.Resolve(ctx, browser, label, obs.Labels)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return failed(rec, err), nil
	}
	rec.Selector = sel

	steps := []struct {
		name string
		run  func() error
	}{
		{"focus", func() error { return browser.Focus(ctx, sel) }},
		{"pause", func() error { return service.Sleep(ctx, e.timing.FocusPause) }},
		{"clear", func() error { return browser.Clear(ctx, sel) }},
		{"type", func() error { return browser.TypeText(ctx, sel, rec.Action.Value, e.timing.KeystrokeDelay) }},
		{"pause", func() error { return service.Sleep(ctx, e.timing.SubmitPause) }},
		{"submit", func() error { return browser.PressEnter(ctx) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			e.logger.Warn("Typing failed", "step", step.name, "selector", sel, "error", err)
			return failed(rec, fmt.Errorf("%w: %s: %w", entity.ErrActionExecution, step.name, err)), nil
		}
	}

	rec.Outcome = entity.OutcomeSuccess
	e.logger.Info("Typed", "label", label, "selector", sel, "chars", len([]rune(rec.Action.Value)))
	return Result{Record: rec}, nil
}

func (e *Executor) scroll(ctx context.Context, browser output.BrowserPort, rec entity.ActionRecord) (Result, error) {
	dy := e.timing.ScrollStep
	if rec.Action.Direction == "up" {
		dy = -dy
	}
	if err := browser.Scroll(ctx, 0, dy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return failed(rec, fmt.Errorf("%w: scroll: %w", entity.ErrActionExecution, err)), nil
	}
	rec.Outcome = entity.OutcomeSuccess
	return Result{Record: rec}, nil
}

func failed(rec entity.ActionRecord, err error) Result {
	rec.Outcome = entity.OutcomeFailed
	rec.Error = err.Error()
	return Result{Record: rec}
}
