package rod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

var ErrInvalidURL = errors.New("invalid url")

const (
	defaultTimeout     = 10 * time.Second
	defaultSlowMotion  = 0
	defaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxScreenshotWidth = 1024
)

type BrowserAdapter struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	closed   bool
}

type BrowserConfig struct {
	Headless                bool
	SlowMotion              time.Duration
	Timeout                 time.Duration
	NoSandbox               bool
	DevTools                bool
	DisableSecurityFeatures bool
	Bin                     string
	UserAgent               string
	ViewportWidth           int
	ViewportHeight          int
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:       false,
		SlowMotion:     defaultSlowMotion,
		Timeout:        defaultTimeout,
		UserAgent:      defaultUserAgent,
		ViewportWidth:  1280,
		ViewportHeight: 720,
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig) (*BrowserAdapter, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1280, 720
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.DisableSecurityFeatures {
		l = l.Set("disable-web-security").
			Set("allow-running-insecure-content")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to launch browser: %v", entity.ErrBrowser, err)
	}

	browser := rod.New().ControlURL(controlURL).SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: failed to connect: %v", entity.ErrBrowser, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("%w: failed to open page: %v", entity.ErrBrowser, err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("%w: failed to set viewport: %v", entity.ErrBrowser, err)
	}
	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent})

	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  cfg.Timeout,
	}, nil
}

func (b *BrowserAdapter) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.page != nil
}

func (b *BrowserAdapter) SetTimeout(d time.Duration) {
	if d > 0 {
		b.timeout = d
	}
}

func (b *BrowserAdapter) pageCtx(ctx context.Context) (*rod.Page, error) {
	if !b.IsReady() {
		return nil, fmt.Errorf("%w: browser is closed", entity.ErrBrowser)
	}
	return b.page.Context(ctx), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return nil
	}
	return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
}

func (b *BrowserAdapter) Navigate(ctx context.Context, rawURL string) (*entity.NavigationResult, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}

	if err := page.Timeout(3 * b.timeout).Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("%w: navigation failed: %v", entity.ErrBrowser, err)
	}
	if err := page.Timeout(3 * b.timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: page did not load: %v", entity.ErrBrowser, err)
	}
	_ = page.WaitIdle(2 * time.Second)

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("%w: page info: %v", entity.ErrBrowser, err)
	}

	status := 0
	if res, err := page.Eval(`() => {
		const nav = performance.getEntriesByType('navigation')[0];
		return nav && nav.responseStatus ? nav.responseStatus : 0;
	}`); err == nil {
		status = res.Value.Int()
	}

	return &entity.NavigationResult{
		Status:   status,
		FinalURL: info.URL,
		Title:    info.Title,
	}, nil
}

func (b *BrowserAdapter) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}
	res, err := page.Timeout(b.timeout).Eval(script)
	if err != nil {
		return nil, fmt.Errorf("%w: evaluate: %v", entity.ErrBrowser, err)
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

func (b *BrowserAdapter) PageHTML(ctx context.Context) (string, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return "", err
	}
	html, err := page.Timeout(b.timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("%w: failed to get HTML: %v", entity.ErrBrowser, err)
	}
	return html, nil
}

func isXPathSelector(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

func elementErr(selector string, err error) error {
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, selector)
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrBrowser, selector, err)
}

// element waits up to timeout for selector to be attached.
func (b *BrowserAdapter) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}
	page = page.Timeout(timeout)

	var el *rod.Element
	if isXPathSelector(selector) {
		el, err = page.ElementX(selector)
	} else {
		el, err = page.Element(selector)
	}
	if err != nil {
		return nil, elementErr(selector, err)
	}
	return el.Context(ctx), nil
}

// lookup checks the current DOM once without waiting.
func (b *BrowserAdapter) lookup(ctx context.Context, selector string) (*rod.Element, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}

	var (
		has bool
		el  *rod.Element
	)
	if isXPathSelector(selector) {
		has, el, err = page.HasX(selector)
	} else {
		has, el, err = page.Has(selector)
	}
	if err != nil {
		return nil, elementErr(selector, err)
	}
	if !has {
		return nil, nil
	}
	return el, nil
}

func (b *BrowserAdapter) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := b.element(deadline, selector, timeout)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return elementErr(selector, err)
	}
	return nil
}

func (b *BrowserAdapter) Exists(ctx context.Context, selector string) (bool, error) {
	el, err := b.lookup(ctx, selector)
	if err != nil {
		if errors.Is(err, entity.ErrElementNotFound) {
			return false, nil
		}
		return false, err
	}
	return el != nil, nil
}

func (b *BrowserAdapter) IsInteractable(ctx context.Context, selector string) (bool, error) {
	el, err := b.lookup(ctx, selector)
	if err != nil || el == nil {
		return false, err
	}
	visible, err := el.Visible()
	if err != nil {
		return false, elementErr(selector, err)
	}
	if !visible {
		return false, nil
	}
	disabled, err := el.Property("disabled")
	if err != nil {
		return false, elementErr(selector, err)
	}
	return !disabled.Bool(), nil
}

func (b *BrowserAdapter) Click(ctx context.Context, selector string) error {
	el, err := b.element(ctx, selector, b.timeout)
	if err != nil {
		return err
	}
	if err := el.Timeout(b.timeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: click %s: %v", entity.ErrBrowser, selector, err)
	}
	return nil
}

func (b *BrowserAdapter) ClickScript(ctx context.Context, selector string) error {
	el, err := b.element(ctx, selector, b.timeout)
	if err != nil {
		return err
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("%w: script click %s: %v", entity.ErrBrowser, selector, err)
	}
	return nil
}

// ClickForce dispatches a raw mouse click at the element's position, ignoring
// overlays and actionability checks.
func (b *BrowserAdapter) ClickForce(ctx context.Context, selector string) error {
	el, err := b.element(ctx, selector, b.timeout)
	if err != nil {
		return err
	}
	_ = el.ScrollIntoView()

	shape, err := el.Shape()
	if err != nil {
		return fmt.Errorf("%w: element shape %s: %v", entity.ErrBrowser, selector, err)
	}
	point := shape.OnePointInside()
	if point == nil {
		return fmt.Errorf("%w: %s has no clickable area", entity.ErrBrowser, selector)
	}

	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse.MoveTo(*point); err != nil {
		return fmt.Errorf("%w: mouse move: %v", entity.ErrBrowser, err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: force click %s: %v", entity.ErrBrowser, selector, err)
	}
	return nil
}

func (b *BrowserAdapter) Focus(ctx context.Context, selector string) error {
	el, err := b.element(ctx, selector, b.timeout)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("%w: focus %s: %v", entity.ErrBrowser, selector, err)
	}
	return nil
}

func (b *BrowserAdapter) Clear(ctx context.Context, selector string) error {
	el, err := b.element(ctx, selector, b.timeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("%w: select text %s: %v", entity.ErrBrowser, selector, err)
	}
	if err := el.Input(""); err != nil {
		return fmt.Errorf("%w: clear %s: %v", entity.ErrBrowser, selector, err)
	}
	return nil
}

// TypeText enters text one character at a time, pausing perChar between
// keystrokes.
func (b *BrowserAdapter) TypeText(ctx context.Context, selector, text string, perChar time.Duration) error {
	el, err := b.element(ctx, selector, b.timeout)
	if err != nil {
		return err
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("%w: type into %s: %v", entity.ErrBrowser, selector, err)
		}
		if perChar <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(perChar):
		}
	}
	return nil
}

func (b *BrowserAdapter) PressEnter(ctx context.Context) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}
	if err := page.Keyboard.Type(input.Enter); err != nil {
		return fmt.Errorf("%w: failed to press Enter: %v", entity.ErrBrowser, err)
	}
	return nil
}

func (b *BrowserAdapter) Scroll(ctx context.Context, dx, dy int) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}
	if _, err := page.Eval(`(dx, dy) => window.scrollBy(dx, dy)`, dx, dy); err != nil {
		return fmt.Errorf("%w: scroll: %v", entity.ErrBrowser, err)
	}
	return nil
}

// Screenshot captures the viewport as JPEG, downscaled to at most 1024px wide.
func (b *BrowserAdapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}
	imgBytes, err := page.Timeout(b.timeout).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot failed: %v", entity.ErrBrowser, err)
	}
	return encodeScreenshot(imgBytes)
}

func encodeScreenshot(raw []byte) (*entity.Screenshot, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: image decode failed: %v", entity.ErrBrowser, err)
	}

	if img.Bounds().Dx() > maxScreenshotWidth {
		img = imaging.Resize(img, maxScreenshotWidth, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode failed: %v", entity.ErrBrowser, err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (b *BrowserAdapter) CurrentURL(ctx context.Context) (string, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("%w: page info: %v", entity.ErrBrowser, err)
	}
	return info.URL, nil
}

func (b *BrowserAdapter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	return err
}

// Factory launches a fresh browser per call, one per mission session.
func Factory(cfg BrowserConfig) output.BrowserFactory {
	return func(ctx context.Context) (output.BrowserPort, error) {
		return NewBrowserAdapter(ctx, cfg)
	}
}
