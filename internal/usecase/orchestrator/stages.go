package orchestrator

import (
	"context"
	"fmt"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/application/service"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/domain/mission"
)

func (uc *UseCase) observe(ctx context.Context, s mission.State) (mission.State, []entity.Event, error) {
	next, err := s.To(mission.StatusObserving)
	if err != nil {
		return s, nil, err
	}

	labels, err := uc.observer.Build(ctx, uc.browser)
	if err != nil {
		return next, nil, err
	}

	shot, err := uc.browser.Screenshot(ctx)
	if err != nil {
		return next, nil, fmt.Errorf("%w: screenshot: %w", entity.ErrObservation, err)
	}

	pageURL, err := uc.browser.CurrentURL(ctx)
	if err != nil {
		return next, nil, fmt.Errorf("%w: current url: %w", entity.ErrObservation, err)
	}

	obs := &entity.Observation{
		Screenshot:  shot,
		Labels:      labels,
		URL:         pageURL,
		PageContext: uc.observer.PageContext(pageURL),
		CapturedAt:  time.Now(),
	}

	var events []entity.Event
	if pageURL != s.CurrentURL {
		events = append(events, entity.Event{Type: entity.EventNavigation, URL: pageURL})
	}
	next = next.WithObservation(obs)

	update := uc.stateUpdate(next, "observe", fmt.Sprintf("Found %d interactive elements", len(labels)))
	update.Screenshot = uc.screenshotData(obs)
	events = append(events, update)

	uc.logger.Debug("Observed page", "session", s.SessionID, "url", pageURL, "elements", len(labels))
	return next, events, nil
}

func (uc *UseCase) reason(ctx context.Context, s mission.State) (mission.State, []entity.Event, error) {
	next, err := s.To(mission.StatusReasoning)
	if err != nil {
		return s, nil, err
	}

	obs := next.Observation
	action, err := uc.decider.Decide(ctx, output.DecisionRequest{
		Goal:          next.Goal,
		Screenshot:    obs.Screenshot,
		Labels:        obs.Labels,
		RecentHistory: next.Recent(uc.cfg.HistoryWindow),
		PageContext:   obs.PageContext,
		URL:           obs.URL,
	})
	if err != nil {
		return next, nil, err
	}

	next = next.WithDecision(&action)
	return next, []entity.Event{
		uc.stateUpdate(next, "reason", fmt.Sprintf("Decided to %s: %s", action, action.Reasoning)),
	}, nil
}

func (uc *UseCase) act(ctx context.Context, s mission.State) (mission.State, []entity.Event, error) {
	if s.Decision == nil {
		return s, nil, fmt.Errorf("%w: no decision to execute", entity.ErrDecision)
	}
	action := *s.Decision

	next, err := s.To(mission.StatusExecuting)
	if err != nil {
		return s, nil, err
	}
	next = next.WithDecision(nil)

	obs := next.Observation
	res, err := uc.executor.Execute(ctx, uc.browser, action, obs, next.Iteration)
	if err != nil {
		return next, nil, err
	}

	next, err = next.Record(res.Record)
	if err != nil {
		return next, nil, err
	}

	var events []entity.Event
	switch {
	case res.Verdict != nil:
		label, _ := action.TargetLabel()
		next, err = next.AwaitApproval(entity.ApprovalRequest{
			Iteration:   res.Record.Iteration,
			Action:      action,
			Element:     obs.Labels[label],
			URL:         obs.URL,
			Verdict:     *res.Verdict,
			RequestedAt: time.Now(),
		})
		if err != nil {
			return next, nil, err
		}
		uc.metrics.ApprovalRequested()
		update := uc.stateUpdate(next, "approval", res.Verdict.Summary)
		update.Approval = next.PendingApproval
		events = append(events, update)

	case res.Complete:
		next, err = next.To(mission.StatusComplete)
		if err != nil {
			return next, nil, err
		}
		events = append(events, uc.stateUpdate(next, "act", "Mission complete: "+action.Reasoning))

	default:
		events = append(events, uc.stateUpdate(next, "act", res.Record.String()))
	}

	if err := uc.afterAction(ctx); err != nil {
		return next, events, err
	}
	return next, events, nil
}

// afterAction lets the page settle and removes the labels drawn for this
// cycle so they cannot be confused with the next one.
func (uc *UseCase) afterAction(ctx context.Context) error {
	if err := service.Sleep(ctx, uc.cfg.AfterActionSettle); err != nil {
		return err
	}
	if err := uc.observer.ClearMarkers(ctx, uc.browser); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		uc.logger.Warn("Could not clear markers", "error", err)
	}
	return nil
}
