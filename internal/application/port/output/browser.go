package output

import (
	"context"
	"encoding/json"
	"time"

	"shopping-agent/internal/domain/entity"
)

// BrowserPort is the low-level automation surface one mission drives. Every
// failure is returned as an error wrapping entity.ErrBrowser or
// entity.ErrElementNotFound.
type BrowserPort interface {
	Navigate(ctx context.Context, url string) (*entity.NavigationResult, error)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	PageHTML(ctx context.Context) (string, error)

	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Exists(ctx context.Context, selector string) (bool, error)
	IsInteractable(ctx context.Context, selector string) (bool, error)

	Click(ctx context.Context, selector string) error
	ClickScript(ctx context.Context, selector string) error
	ClickForce(ctx context.Context, selector string) error

	Focus(ctx context.Context, selector string) error
	Clear(ctx context.Context, selector string) error
	TypeText(ctx context.Context, selector, text string, perChar time.Duration) error
	PressEnter(ctx context.Context) error
	Scroll(ctx context.Context, dx, dy int) error

	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

type BrowserFactory func(ctx context.Context) (BrowserPort, error)
