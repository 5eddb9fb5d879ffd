package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

// Registry builds the numeric label map for the current render of a page.
type Registry struct {
	packs  []SelectorPack
	logger output.LoggerPort
}

func New(logger output.LoggerPort, packs ...SelectorPack) *Registry {
	return &Registry{
		packs:  packs,
		logger: logger.WithField("component", "registry"),
	}
}

func DefaultPacks() []SelectorPack {
	return []SelectorPack{AmazonPack{}}
}

// Build clears markers left by an earlier cycle, annotates the page and
// returns a label map whose labels match the drawn markers one to one.
func (r *Registry) Build(ctx context.Context, browser output.BrowserPort) (entity.LabelMap, error) {
	if err := r.ClearMarkers(ctx, browser); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrObservation, err)
	}

	raw, err := browser.Evaluate(ctx, annotateScript)
	if err != nil {
		return nil, fmt.Errorf("%w: annotate page: %w", entity.ErrObservation, err)
	}

	var elements []RawElement
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("%w: decode elements: %w", entity.ErrObservation, err)
	}

	pageURL, err := browser.CurrentURL(ctx)
	if err != nil {
		r.logger.Warn("Could not read current URL, skipping selector packs", "error", err)
	}

	labels, err := LabelMapFrom(elements, r.packFor(pageURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrObservation, err)
	}

	r.logger.Debug("Label map built", "url", pageURL, "elements", len(labels))
	return labels, nil
}

// ClearMarkers removes every label drawn on the page. Calling it on a page
// without markers is a no-op.
func (r *Registry) ClearMarkers(ctx context.Context, browser output.BrowserPort) error {
	if _, err := browser.Evaluate(ctx, clearScript); err != nil {
		return fmt.Errorf("clear markers: %w", err)
	}
	return nil
}

// PageContext describes the page for the decision oracle, or "" when no pack
// recognises the URL.
func (r *Registry) PageContext(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	for _, p := range r.packs {
		if p.Matches(u) {
			return p.PageContext(u)
		}
	}
	return ""
}

func (r *Registry) packFor(pageURL string) SelectorPack {
	if pageURL == "" {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	for _, p := range r.packs {
		if p.Matches(u) {
			return p
		}
	}
	return nil
}

// LabelMapFrom converts annotation records into a label map. Records must
// carry labels 1..N in order.
func LabelMapFrom(elements []RawElement, pack SelectorPack) (entity.LabelMap, error) {
	labels := make(entity.LabelMap, len(elements))
	for i, el := range elements {
		if el.Label != i+1 {
			return nil, fmt.Errorf("label %d at position %d breaks the 1..N sequence", el.Label, i+1)
		}
		d := el.descriptor()
		if pack != nil {
			if t, ok := pack.(PurposeTagger); ok {
				d.Purpose = t.Purpose(d)
			}
			d.Selectors = pack.Enhance(d)
		}
		labels[el.Label] = d
	}
	return labels, nil
}
