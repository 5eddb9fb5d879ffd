package rod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopping-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Headless)
	assert.Equal(t, time.Duration(defaultSlowMotion), cfg.SlowMotion)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.NoSandbox, "Should be secure by default")
	assert.False(t, cfg.DisableSecurityFeatures, "Should be secure by default")
	assert.Equal(t, 1280, cfg.ViewportWidth)
	assert.Equal(t, 720, cfg.ViewportHeight)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		valid bool
	}{
		{"http", "http://shop.test", true},
		{"https", "https://www.amazon.com/", true},
		{"Empty URL", "", false},
		{"Invalid scheme", "ftp://example.com", false},
		{"JavaScript URL", "javascript:alert(1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidURL)
			}
		})
	}
}

func TestIsXPathSelector(t *testing.T) {
	assert.True(t, isXPathSelector("//button[@id='x']"))
	assert.True(t, isXPathSelector("(//a)[2]"))
	assert.False(t, isXPathSelector("#add-to-cart-button"))
	assert.False(t, isXPathSelector("button:nth-child(2)"))
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.White)
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestEncodeScreenshot_Resize(t *testing.T) {
	shot, err := encodeScreenshot(pngOf(t, 2048, 1000))
	require.NoError(t, err)

	assert.Equal(t, "jpeg", shot.Format)
	assert.Equal(t, 1024, shot.Width)
	assert.Equal(t, 500, shot.Height)

	decoded, format, err := image.Decode(bytes.NewReader(shot.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1024, decoded.Bounds().Dx())
}

func TestEncodeScreenshot_KeepsSmallImages(t *testing.T) {
	shot, err := encodeScreenshot(pngOf(t, 800, 600))
	require.NoError(t, err)
	assert.Equal(t, 800, shot.Width)
	assert.Equal(t, 600, shot.Height)
}

func TestEncodeScreenshot_Garbage(t *testing.T) {
	_, err := encodeScreenshot([]byte("not an image"))
	assert.ErrorIs(t, err, entity.ErrBrowser)
}

// The tests below drive a real Chromium and are skipped with -short.

func newTestAdapter(t *testing.T) *BrowserAdapter {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}
	cfg := DefaultConfig()
	cfg.Headless = true
	cfg.NoSandbox = true
	cfg.Timeout = 2 * time.Second

	adapter, err := NewBrowserAdapter(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func serve(t *testing.T, html string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func textOf(t *testing.T, adapter *BrowserAdapter, selector string) string {
	t.Helper()
	raw, err := adapter.Evaluate(context.Background(),
		fmt.Sprintf(`() => document.querySelector(%q).textContent`, selector))
	require.NoError(t, err)
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestBrowserAdapter_Navigate(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	url := serve(t, BasicHTML)

	res, err := adapter.Navigate(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, url+"/", res.FinalURL)
	assert.Equal(t, "Test Shop", res.Title)

	current, err := adapter.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, url+"/", current)

	_, err = adapter.Navigate(ctx, "ftp://example.com")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestBrowserAdapter_Evaluate(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	_, err := adapter.Navigate(ctx, serve(t, BasicHTML))
	require.NoError(t, err)

	raw, err := adapter.Evaluate(ctx, `() => [{label: 1, tag: "h1"}]`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"label":1,"tag":"h1"}]`, string(raw))
}

func TestBrowserAdapter_Probes(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	_, err := adapter.Navigate(ctx, serve(t, ProductHTML))
	require.NoError(t, err)

	assert.NoError(t, adapter.WaitVisible(ctx, "#add", time.Second))
	assert.ErrorIs(t, adapter.WaitVisible(ctx, "#missing", 200*time.Millisecond), entity.ErrElementNotFound)

	ok, err := adapter.IsInteractable(ctx, "#add")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.IsInteractable(ctx, "#disabled")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = adapter.IsInteractable(ctx, "#hidden")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := adapter.Exists(ctx, "#hidden")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = adapter.Exists(ctx, "//button[@aria-label='Add to Cart']")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = adapter.Exists(ctx, "#missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBrowserAdapter_ClickStrategies(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	_, err := adapter.Navigate(ctx, serve(t, ProductHTML))
	require.NoError(t, err)
	require.NoError(t, adapter.Click(ctx, "#add"))
	assert.Equal(t, "added", textOf(t, adapter, "#result"))

	_, err = adapter.Navigate(ctx, serve(t, OverlayHTML))
	require.NoError(t, err)
	require.NoError(t, adapter.ClickScript(ctx, "#covered"))
	assert.Equal(t, "clicked", textOf(t, adapter, "#result"))

	err = adapter.Click(ctx, "#nope")
	assert.ErrorIs(t, err, entity.ErrElementNotFound)
}

func TestBrowserAdapter_TypeAndSubmit(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	_, err := adapter.Navigate(ctx, serve(t, SearchHTML))
	require.NoError(t, err)

	require.NoError(t, adapter.Focus(ctx, "#q"))
	require.NoError(t, adapter.Clear(ctx, "#q"))
	require.NoError(t, adapter.TypeText(ctx, "#q", "usb cable", 5*time.Millisecond))
	require.NoError(t, adapter.PressEnter(ctx))

	require.Eventually(t, func() bool {
		return textOf(t, adapter, "#result") == "searched:usb cable"
	}, 2*time.Second, 50*time.Millisecond)
}

func TestBrowserAdapter_Scroll(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	_, err := adapter.Navigate(ctx, serve(t, ScrollableHTML))
	require.NoError(t, err)

	require.NoError(t, adapter.Scroll(ctx, 0, 500))
	raw, err := adapter.Evaluate(ctx, `() => window.scrollY`)
	require.NoError(t, err)
	assert.Equal(t, "500", string(raw))

	require.NoError(t, adapter.Scroll(ctx, 0, -500))
	raw, err = adapter.Evaluate(ctx, `() => window.scrollY`)
	require.NoError(t, err)
	assert.Equal(t, "0", string(raw))
}

func TestBrowserAdapter_Screenshot(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	_, err := adapter.Navigate(ctx, serve(t, BasicHTML))
	require.NoError(t, err)

	shot, err := adapter.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", shot.Format)
	assert.LessOrEqual(t, shot.Width, maxScreenshotWidth)
	assert.NotEmpty(t, shot.Data)
}

func TestBrowserAdapter_ClosedState(t *testing.T) {
	adapter := newTestAdapter(t)
	require.NoError(t, adapter.Close())
	assert.False(t, adapter.IsReady())
	assert.NoError(t, adapter.Close(), "close is idempotent")

	_, err := adapter.Navigate(context.Background(), "http://shop.test")
	assert.ErrorIs(t, err, entity.ErrBrowser)
}
