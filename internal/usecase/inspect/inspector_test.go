package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/application/service"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/testutil"
	"shopping-agent/internal/usecase/decision"
	"shopping-agent/internal/usecase/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopBrowser() *testutil.FakeBrowser {
	b := testutil.NewFakeBrowser()
	b.Title = "Shop"
	b.EvaluateFn = func(script string) (json.RawMessage, error) {
		if strings.Contains(script, "results.push") {
			return json.Marshal([]registry.RawElement{
				{Label: 1, Tag: "input", ID: "search", InputType: "text", Placeholder: "Search", NthChild: 1},
				{Label: 2, Tag: "button", ID: "go", Text: "Go", NthChild: 2},
			})
		}
		return json.RawMessage("0"), nil
	}
	return b
}

func factory(b *testutil.FakeBrowser) output.BrowserFactory {
	return func(context.Context) (output.BrowserPort, error) { return b, nil }
}

func newInspector(b *testutil.FakeBrowser, oracle output.DecisionOraclePort) *Inspector {
	log := testutil.NopLogger{}
	var d Decider
	if oracle != nil {
		retry := service.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
		d = decision.New(oracle, retry, log, nil)
	}
	return New(factory(b), registry.New(log), d, log)
}

func TestNavigate(t *testing.T) {
	b := shopBrowser()

	info, err := newInspector(b, nil).Navigate(context.Background(), "https://shop.example")

	require.NoError(t, err)
	assert.Equal(t, "https://shop.example", info.URL)
	assert.Equal(t, "Shop", info.Title)
	assert.Equal(t, 200, info.Status)
	assert.NotEmpty(t, info.Screenshot)
	assert.True(t, b.Closed)
}

func TestNavigate_FailureClosesBrowser(t *testing.T) {
	b := shopBrowser()
	b.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := newInspector(b, nil).Navigate(context.Background(), "https://nowhere.example")

	assert.ErrorIs(t, err, entity.ErrNavigation)
	assert.True(t, b.Closed)
}

func TestNavigate_RequiresURL(t *testing.T) {
	b := shopBrowser()

	_, err := newInspector(b, nil).Navigate(context.Background(), " ")

	assert.ErrorIs(t, err, entity.ErrNavigation)
	assert.False(t, b.Closed)
}

func TestAnalyze(t *testing.T) {
	b := shopBrowser()
	oracle := &testutil.ScriptedOracle{Responses: []string{`{"action":"click","target":2,"reasoning":"submit search"}`}}

	got, err := newInspector(b, oracle).Analyze(context.Background(), "buy socks", "https://shop.example")

	require.NoError(t, err)
	assert.Equal(t, entity.ActionClick, got.Action.Kind)
	require.NotNil(t, got.Action.Target)
	assert.Equal(t, 2, *got.Action.Target)
	assert.Len(t, got.Markers, 2)
	assert.Equal(t, "[1] INPUT - \"Search\"\n[2] BUTTON - \"Go\"", got.MarkersFormatted)
	assert.Equal(t, "https://shop.example", got.URL)
	assert.True(t, b.Closed)

	require.Len(t, oracle.Requests, 1)
	assert.Equal(t, "buy socks", oracle.Requests[0].Goal)
	assert.Empty(t, oracle.Requests[0].RecentHistory)
}

func TestAnalyze_DecisionFailureClosesBrowser(t *testing.T) {
	b := shopBrowser()
	oracle := &testutil.ScriptedOracle{Err: errors.New("upstream down")}

	_, err := newInspector(b, oracle).Analyze(context.Background(), "buy socks", "https://shop.example")

	assert.ErrorIs(t, err, entity.ErrDecision)
	assert.True(t, b.Closed)
}

func TestAnalyze_WithoutOracle(t *testing.T) {
	b := shopBrowser()

	_, err := newInspector(b, nil).Analyze(context.Background(), "buy socks", "https://shop.example")

	assert.ErrorIs(t, err, entity.ErrOracleNotSet)
	assert.False(t, b.Closed)
}
