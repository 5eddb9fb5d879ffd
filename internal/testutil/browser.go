package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

var _ output.BrowserPort = (*FakeBrowser)(nil)

type FakeElement struct {
	Hidden         bool
	Disabled       bool
	ClickErr       error
	ScriptClickErr error
	ForceClickErr  error
	TypeErr        error
	Value          string
}

// FakeBrowser is an in-memory BrowserPort keyed by selector.
type FakeBrowser struct {
	mu sync.Mutex

	Elements     map[string]*FakeElement
	URL          string
	Title        string
	HTML         string
	NavigateErr  error
	ScreenshotFn func() (*entity.Screenshot, error)
	EvaluateFn   func(script string) (json.RawMessage, error)

	Calls       []string
	Evaluations []string
	Scrolls     [][2]int
	EnterCount  int
	Closed      bool
}

func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{
		Elements: make(map[string]*FakeElement),
		URL:      "about:blank",
	}
}

func (b *FakeBrowser) Add(selector string, el *FakeElement) *FakeBrowser {
	b.mu.Lock()
	defer b.mu.Unlock()
	if el == nil {
		el = &FakeElement{}
	}
	b.Elements[selector] = el
	return b
}

func (b *FakeBrowser) CallLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Calls...)
}

func (b *FakeBrowser) record(format string, args ...any) {
	b.Calls = append(b.Calls, fmt.Sprintf(format, args...))
}

func (b *FakeBrowser) element(selector string) (*FakeElement, error) {
	el, ok := b.Elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrElementNotFound, selector)
	}
	return el, nil
}

func (b *FakeBrowser) Navigate(ctx context.Context, url string) (*entity.NavigationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("navigate:%s", url)
	if b.NavigateErr != nil {
		return nil, b.NavigateErr
	}
	b.URL = url
	return &entity.NavigationResult{Status: 200, FinalURL: url, Title: b.Title}, nil
}

func (b *FakeBrowser) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	b.mu.Lock()
	fn := b.ScreenshotFn
	b.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return &entity.Screenshot{Data: []byte{0xff, 0xd8}, Format: "jpeg", Width: 1, Height: 1}, nil
}

func (b *FakeBrowser) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	b.mu.Lock()
	b.Evaluations = append(b.Evaluations, script)
	fn := b.EvaluateFn
	b.mu.Unlock()
	if fn != nil {
		return fn(script)
	}
	return json.RawMessage("null"), nil
}

func (b *FakeBrowser) PageHTML(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.HTML, nil
}

func (b *FakeBrowser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("wait:%s", selector)
	el, err := b.element(selector)
	if err != nil {
		return err
	}
	if el.Hidden {
		return fmt.Errorf("%w: %s not visible after %s", entity.ErrBrowser, selector, timeout)
	}
	return nil
}

func (b *FakeBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("exists:%s", selector)
	_, ok := b.Elements[selector]
	return ok, nil
}

func (b *FakeBrowser) IsInteractable(ctx context.Context, selector string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	el, err := b.element(selector)
	if err != nil {
		return false, err
	}
	return !el.Hidden && !el.Disabled, nil
}

func (b *FakeBrowser) Click(ctx context.Context, selector string) error {
	return b.click("click", selector, func(el *FakeElement) error { return el.ClickErr })
}

func (b *FakeBrowser) ClickScript(ctx context.Context, selector string) error {
	return b.click("script-click", selector, func(el *FakeElement) error { return el.ScriptClickErr })
}

func (b *FakeBrowser) ClickForce(ctx context.Context, selector string) error {
	return b.click("force-click", selector, func(el *FakeElement) error { return el.ForceClickErr })
}

func (b *FakeBrowser) click(kind, selector string, errOf func(*FakeElement) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("%s:%s", kind, selector)
	el, err := b.element(selector)
	if err != nil {
		return err
	}
	return errOf(el)
}

func (b *FakeBrowser) Focus(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("focus:%s", selector)
	_, err := b.element(selector)
	return err
}

func (b *FakeBrowser) Clear(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("clear:%s", selector)
	el, err := b.element(selector)
	if err != nil {
		return err
	}
	el.Value = ""
	return nil
}

func (b *FakeBrowser) TypeText(ctx context.Context, selector, text string, perChar time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("type:%s:%s", selector, text)
	el, err := b.element(selector)
	if err != nil {
		return err
	}
	if el.TypeErr != nil {
		return el.TypeErr
	}
	el.Value += text
	return nil
}

func (b *FakeBrowser) PressEnter(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("enter")
	b.EnterCount++
	return nil
}

func (b *FakeBrowser) Scroll(ctx context.Context, dx, dy int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("scroll:%d:%d", dx, dy)
	b.Scrolls = append(b.Scrolls, [2]int{dx, dy})
	return nil
}

func (b *FakeBrowser) CurrentURL(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.URL, nil
}

func (b *FakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}
