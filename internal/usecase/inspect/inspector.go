package inspect

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

var _ input.PageInspector = (*Inspector)(nil)

type Observer interface {
	Build(ctx context.Context, browser output.BrowserPort) (entity.LabelMap, error)
	ClearMarkers(ctx context.Context, browser output.BrowserPort) error
	PageContext(pageURL string) string
}

type Decider interface {
	Decide(ctx context.Context, req output.DecisionRequest) (entity.Action, error)
}

// Inspector opens a page, looks at it and closes the browser again. Nothing
// it does touches a mission session.
type Inspector struct {
	browsers output.BrowserFactory
	observer Observer
	decider  Decider
	logger   output.LoggerPort
}

// New builds an Inspector. decider may be nil, in which case only Navigate
// is available.
func New(browsers output.BrowserFactory, observer Observer, decider Decider, logger output.LoggerPort) *Inspector {
	return &Inspector{
		browsers: browsers,
		observer: observer,
		decider:  decider,
		logger:   logger.WithField("component", "inspector"),
	}
}

func (i *Inspector) Navigate(ctx context.Context, url string) (input.PageInfo, error) {
	var info input.PageInfo
	err := i.withPage(ctx, url, func(browser output.BrowserPort, nav *entity.NavigationResult) error {
		shot, err := browser.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("%w: screenshot: %w", entity.ErrObservation, err)
		}
		info = pageInfo(nav, shot)
		return nil
	})
	return info, err
}

func (i *Inspector) Analyze(ctx context.Context, goal, url string) (input.PageAnalysis, error) {
	if i.decider == nil {
		return input.PageAnalysis{}, entity.ErrOracleNotSet
	}
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return input.PageAnalysis{}, errors.New("goal is required")
	}

	var out input.PageAnalysis
	err := i.withPage(ctx, url, func(browser output.BrowserPort, nav *entity.NavigationResult) error {
		labels, err := i.observer.Build(ctx, browser)
		if err != nil {
			return err
		}
		shot, err := browser.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("%w: screenshot: %w", entity.ErrObservation, err)
		}
		pageCtx := i.observer.PageContext(nav.FinalURL)

		action, err := i.decider.Decide(ctx, output.DecisionRequest{
			Goal:        goal,
			Screenshot:  shot,
			Labels:      labels,
			PageContext: pageCtx,
			URL:         nav.FinalURL,
		})
		if err != nil {
			return err
		}
		if err := i.observer.ClearMarkers(ctx, browser); err != nil {
			i.logger.Warn("Could not clear markers", "url", nav.FinalURL, "error", err)
		}

		out = input.PageAnalysis{
			PageInfo:         pageInfo(nav, shot),
			Action:           action,
			Markers:          labels,
			MarkersFormatted: FormatMarkers(labels),
			PageContext:      pageCtx,
		}
		i.logger.Info("Page analysis complete", "url", nav.FinalURL, "action", action.String())
		return nil
	})
	return out, err
}

// withPage launches a browser, opens url and always closes the browser once
// fn returns.
func (i *Inspector) withPage(ctx context.Context, url string, fn func(output.BrowserPort, *entity.NavigationResult) error) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: url is required", entity.ErrNavigation)
	}

	browser, err := i.browsers(ctx)
	if err != nil {
		return fmt.Errorf("%w: launch: %w", entity.ErrBrowser, err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			i.logger.Warn("Failed to close browser", "error", err)
		}
	}()

	nav, err := browser.Navigate(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", entity.ErrNavigation, url, err)
	}
	if nav.FinalURL == "" {
		nav.FinalURL = url
	}
	return fn(browser, nav)
}

func pageInfo(nav *entity.NavigationResult, shot *entity.Screenshot) input.PageInfo {
	info := input.PageInfo{URL: nav.FinalURL, Title: nav.Title, Status: nav.Status}
	if shot != nil {
		info.Screenshot = base64.StdEncoding.EncodeToString(shot.Data)
	}
	return info
}

// FormatMarkers lists labels in order, one element per line.
func FormatMarkers(labels entity.LabelMap) string {
	lines := make([]string, 0, len(labels))
	for _, l := range labels.Labels() {
		lines = append(lines, labels[l].String())
	}
	return strings.Join(lines, "\n")
}
