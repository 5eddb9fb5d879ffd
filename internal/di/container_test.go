package di

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapConfig map[string]string

func (m mapConfig) Get(key string) string { return m[key] }

func (m mapConfig) MustGet(key string) string { return m[key] }

func (m mapConfig) GetWithDefault(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func (m mapConfig) GetBool(key string, def bool) bool {
	switch m[key] {
	case "true":
		return true
	case "false":
		return false
	}
	return def
}

func (m mapConfig) GetInt(key string, def int) int {
	if key == "MAX_ITERATIONS" && m[key] == "7" {
		return 7
	}
	return def
}

func (m mapConfig) GetFloat(key string, def float64) float64 { return def }

func (m mapConfig) GetMillis(key string, def time.Duration) time.Duration {
	if key == "SAFETY_CACHE_TTL_MS" && m[key] == "250" {
		return 250 * time.Millisecond
	}
	return def
}

func TestConfigFromEnv(t *testing.T) {
	cfg := ConfigFromEnv(mapConfig{
		"OPENROUTER_API_KEY":    "key",
		"OPENROUTER_MODEL_NAME": "vision",
		"HEADLESS":              "false",
		"MAX_ITERATIONS":        "7",
		"SAFETY_CACHE_TTL_MS":   "250",
	})

	assert.True(t, cfg.OracleConfigured())
	assert.Equal(t, "vision", cfg.ClassifierModel)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, 250*time.Millisecond, cfg.SafetyCacheTTL)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouterBaseURL)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := ConfigFromEnv(mapConfig{})

	assert.False(t, cfg.OracleConfigured())
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.SafetyCacheTTL)
}

func newTestContainer(t *testing.T, oracle output.DecisionOraclePort, browser *testutil.FakeBrowser) *Container {
	t.Helper()
	opts := []Option{
		WithLogger(testutil.NopLogger{}),
		WithBrowserFactory(func(context.Context) (output.BrowserPort, error) { return browser, nil }),
	}
	if oracle != nil {
		opts = append(opts, WithOracle(oracle))
	}
	c, err := NewContainer(Config{MaxIterations: 3}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func TestContainer_StartWithoutOracleFails(t *testing.T) {
	c := newTestContainer(t, nil, testutil.NewFakeBrowser())

	_, _, err := c.Missions.Start(context.Background(), input.StartRequest{Goal: "buy socks"})
	assert.ErrorContains(t, err, "decision oracle is not configured")
}

func TestContainer_RunsMissionEndToEnd(t *testing.T) {
	browser := testutil.NewFakeBrowser()
	browser.EvaluateFn = func(string) (json.RawMessage, error) { return json.RawMessage("[]"), nil }
	oracle := &testutil.ScriptedOracle{Responses: []string{`{"action":"done","reasoning":"already there"}`}}

	c := newTestContainer(t, oracle, browser)

	id, events, err := c.Missions.Start(context.Background(), input.StartRequest{
		Goal: "buy socks",
		URL:  "https://shop.example",
	})
	require.NoError(t, err)

	var types []entity.EventType
	for ev := range events {
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, entity.EventStarted, types[0])
	assert.Equal(t, entity.EventComplete, types[len(types)-1])

	done, ok := c.Missions.Done(id)
	require.True(t, ok)
	<-done

	snap, ok := c.Missions.Get(id)
	require.True(t, ok)
	assert.Equal(t, "complete", snap.Status)
	assert.Equal(t, 3, snap.MaxIterations)
	assert.True(t, browser.Closed)
	assert.Equal(t, 1, oracle.CallCount())
}

func TestContainer_NewServerReportsOracle(t *testing.T) {
	c := newTestContainer(t, &testutil.ScriptedOracle{}, testutil.NewFakeBrowser())
	assert.NotNil(t, c.NewServer().Router())
}

func TestContainer_PagesUseSharedOracle(t *testing.T) {
	browser := testutil.NewFakeBrowser()
	browser.EvaluateFn = func(string) (json.RawMessage, error) { return json.RawMessage("[]"), nil }
	oracle := &testutil.ScriptedOracle{Responses: []string{`{"action":"scroll","direction":"down","reasoning":"look around"}`}}

	c := newTestContainer(t, oracle, browser)

	got, err := c.Pages.Analyze(context.Background(), "buy socks", "https://shop.example")
	require.NoError(t, err)
	assert.Equal(t, entity.ActionScroll, got.Action.Kind)
	assert.True(t, browser.Closed)
}
