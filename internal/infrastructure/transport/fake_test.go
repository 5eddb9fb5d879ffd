package transport

import (
	"context"
	"errors"
	"sync"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/domain/entity"
)

// fakeMissions replays a fixed event script for every started session.
type fakeMissions struct {
	mu        sync.Mutex
	started   []input.StartRequest
	sessions  map[string]input.SessionSnapshot
	script    []entity.Event
	hold      chan struct{}
	cancelled []string
	approved  []string
	denied    []string
	accept    bool
	startErr  error
}

func newFakeMissions() *fakeMissions {
	return &fakeMissions{sessions: make(map[string]input.SessionSnapshot), accept: true}
}

func (f *fakeMissions) Start(ctx context.Context, req input.StartRequest) (string, <-chan entity.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", nil, f.startErr
	}
	if req.Goal == "" {
		return "", nil, errors.New("goal is required")
	}
	f.started = append(f.started, req)
	id := "session-" + string(rune('0'+len(f.started)))
	f.sessions[id] = input.SessionSnapshot{ID: id, Goal: req.Goal, URL: req.URL, Running: true}

	ch := make(chan entity.Event, len(f.script))
	script := append([]entity.Event(nil), f.script...)
	hold := f.hold
	go func() {
		defer close(ch)
		for _, ev := range script {
			ev.SessionID = id
			ch <- ev
		}
		if hold != nil {
			<-hold
		}
	}()
	return id, ch, nil
}

func (f *fakeMissions) Get(id string) (input.SessionSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeMissions) List() []input.SessionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]input.SessionSnapshot, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out
}

func (f *fakeMissions) record(list *[]string, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok || !f.accept {
		return false
	}
	*list = append(*list, id)
	return true
}

func (f *fakeMissions) Cancel(id string) bool  { return f.record(&f.cancelled, id) }
func (f *fakeMissions) Approve(id string) bool { return f.record(&f.approved, id) }
func (f *fakeMissions) Deny(id string) bool    { return f.record(&f.denied, id) }

func (f *fakeMissions) setAccept(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accept = v
}

func (f *fakeMissions) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *fakeMissions) Approved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.approved...)
}

type fakePages struct {
	mu       sync.Mutex
	err      error
	analyzed []string
}

func (f *fakePages) Navigate(ctx context.Context, url string) (input.PageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return input.PageInfo{}, f.err
	}
	return input.PageInfo{URL: url, Title: "Shop", Status: 200, Screenshot: "/9j/"}, nil
}

func (f *fakePages) Analyze(ctx context.Context, goal, url string) (input.PageAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return input.PageAnalysis{}, f.err
	}
	f.analyzed = append(f.analyzed, goal)
	target := 2
	return input.PageAnalysis{
		PageInfo:         input.PageInfo{URL: url, Title: "Shop"},
		Action:           entity.Action{Kind: entity.ActionClick, Target: &target, Reasoning: "search"},
		Markers:          entity.LabelMap{2: {Label: 2, Kind: "button", Text: "Go"}},
		MarkersFormatted: `[2] BUTTON - "Go"`,
	}, nil
}
