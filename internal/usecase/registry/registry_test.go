package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func annotatingBrowser(t *testing.T, pageURL string, elements []RawElement) (*testutil.FakeBrowser, *int) {
	t.Helper()
	markers := 0
	b := testutil.NewFakeBrowser()
	b.URL = pageURL
	b.EvaluateFn = func(script string) (json.RawMessage, error) {
		switch script {
		case clearScript:
			n := markers
			markers = 0
			return json.RawMessage(fmt.Sprint(n)), nil
		case annotateScript:
			markers = len(elements)
			data, err := json.Marshal(elements)
			require.NoError(t, err)
			return data, nil
		}
		return nil, errors.New("unexpected script")
	}
	return b, &markers
}

func TestBuild(t *testing.T) {
	elements := []RawElement{
		{Label: 1, Tag: "input", ID: "search", Name: "q", InputType: "text", Placeholder: "Search", NthChild: 1},
		{Label: 2, Tag: "button", Text: "Go", Classes: []string{"btn", "ai-marker-label"}, NthChild: 2, X: 10, Y: 20},
	}
	b, _ := annotatingBrowser(t, "https://shop.test/", elements)

	labels, err := New(testutil.NopLogger{}).Build(context.Background(), b)
	require.NoError(t, err)

	require.Len(t, labels, 2)
	assert.Equal(t, []int{1, 2}, labels.Labels())

	search := labels[1]
	assert.Equal(t, "input", search.Kind)
	assert.Equal(t, []string{"#search", `input[name="q"]`, `input[type="text"]`, "input:nth-child(1)"}, search.Selectors)

	goBtn := labels[2]
	assert.Equal(t, []string{"button.btn", "button:nth-child(2)"}, goBtn.Selectors)
	assert.Equal(t, entity.Position{X: 10, Y: 20}, goBtn.Position)
}

func TestBuild_ClearsStaleMarkersFirst(t *testing.T) {
	b, markers := annotatingBrowser(t, "https://shop.test/", []RawElement{{Label: 1, Tag: "a", Href: "/x"}})
	reg := New(testutil.NopLogger{})

	_, err := reg.Build(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 1, *markers)

	_, err = reg.Build(context.Background(), b)
	require.NoError(t, err)

	require.Len(t, b.Evaluations, 4)
	assert.Equal(t, clearScript, b.Evaluations[2], "markers must be cleared before the next annotation")
	assert.Equal(t, annotateScript, b.Evaluations[3])
}

func TestBuild_EmptyPage(t *testing.T) {
	b := testutil.NewFakeBrowser()
	labels, err := New(testutil.NopLogger{}).Build(context.Background(), b)

	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestBuild_ScriptFailureIsObservationFailure(t *testing.T) {
	b := testutil.NewFakeBrowser()
	b.EvaluateFn = func(script string) (json.RawMessage, error) {
		if script == annotateScript {
			return nil, entity.ErrBrowser
		}
		return json.RawMessage("0"), nil
	}

	_, err := New(testutil.NopLogger{}).Build(context.Background(), b)
	assert.ErrorIs(t, err, entity.ErrObservation)
}

func TestBuild_RejectsGappedLabels(t *testing.T) {
	b, _ := annotatingBrowser(t, "https://shop.test/", []RawElement{{Label: 1, Tag: "a"}, {Label: 3, Tag: "a"}})

	_, err := New(testutil.NopLogger{}).Build(context.Background(), b)
	assert.ErrorIs(t, err, entity.ErrObservation)
}

func TestClearMarkers_Idempotent(t *testing.T) {
	b, markers := annotatingBrowser(t, "https://shop.test/", []RawElement{{Label: 1, Tag: "a"}})
	reg := New(testutil.NopLogger{})
	_, err := reg.Build(context.Background(), b)
	require.NoError(t, err)

	require.NoError(t, reg.ClearMarkers(context.Background(), b))
	require.NoError(t, reg.ClearMarkers(context.Background(), b))
	assert.Equal(t, 0, *markers)
}

func TestBuild_AmazonPackPrependsStableSelectors(t *testing.T) {
	elements := []RawElement{
		{Label: 1, Tag: "input", Name: "submit.add-to-cart", InputType: "submit", Text: "Add to Cart", NthChild: 3},
	}
	b, _ := annotatingBrowser(t, "https://www.amazon.com/dp/B000123", elements)

	labels, err := New(testutil.NopLogger{}, DefaultPacks()...).Build(context.Background(), b)
	require.NoError(t, err)

	sel := labels[1].Selectors
	assert.Equal(t, "#add-to-cart-button", sel[0])
	assert.Equal(t, `//input[@name="submit.add-to-cart"]`, sel[len(sel)-1])
	assert.Equal(t, 1, strings.Count(strings.Join(sel, "\n"), "input[name='submit.add-to-cart']"))
}

func TestLabelMapFrom_TagsPackPurpose(t *testing.T) {
	labels, err := LabelMapFrom([]RawElement{
		{Label: 1, Tag: "input", Name: "placeYourOrder1", InputType: "submit", NthChild: 1},
		{Label: 2, Tag: "a", Text: "Your Account", Href: "/account", NthChild: 2},
	}, AmazonPack{})
	require.NoError(t, err)

	assert.Equal(t, "place_order", labels[1].Purpose)
	assert.Equal(t, "#placeYourOrder", labels[1].Selectors[0])
	assert.Empty(t, labels[2].Purpose)

	plain, err := LabelMapFrom([]RawElement{{Label: 1, Tag: "input", Name: "placeYourOrder1", NthChild: 1}}, nil)
	require.NoError(t, err)
	assert.Empty(t, plain[1].Purpose)
}

func TestLabelMapFrom_DenseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 60).Draw(t, "n")
		elements := make([]RawElement, n)
		for i := range elements {
			elements[i] = RawElement{
				Label:    i + 1,
				Tag:      rapid.SampledFrom([]string{"a", "button", "input", "select"}).Draw(t, "tag"),
				ID:       rapid.StringMatching(`[a-z]{0,6}`).Draw(t, "id"),
				NthChild: rapid.IntRange(1, 10).Draw(t, "nth"),
			}
		}

		labels, err := LabelMapFrom(elements, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(labels) != n || !labels.Dense() {
			t.Fatalf("labels not dense 1..%d: %v", n, labels.Labels())
		}
		for _, d := range labels {
			if len(d.Selectors) == 0 {
				t.Fatalf("label %d has no selectors", d.Label)
			}
		}
	})
}

func TestCandidateSelectors(t *testing.T) {
	tests := []struct {
		name string
		el   RawElement
		want []string
	}{
		{
			name: "priority order",
			el: RawElement{
				Tag: "button", ID: "buy", Name: "submit", DataAttr: &dataAttr{Name: "data-testid", Value: "buy-btn"},
				AriaLabel: "Buy", Classes: []string{"primary", "large"}, InputType: "submit", NthChild: 4,
			},
			want: []string{
				"#buy", `button[name="submit"]`, `button[data-testid="buy-btn"]`, `button[aria-label="Buy"]`,
				"button.primary.large", `button[type="submit"]`, "button:nth-child(4)",
			},
		},
		{
			name: "id needing escape",
			el:   RawElement{Tag: "div", ID: "1st item"},
			want: []string{`[id="1st item"]`},
		},
		{
			name: "quotes escaped",
			el:   RawElement{Tag: "a", AriaLabel: `Say "hi"`},
			want: []string{`a[aria-label="Say \"hi\""]`},
		},
		{
			name: "marker and invalid classes skipped",
			el:   RawElement{Tag: "a", Classes: []string{"ai-marker-label", "2col", "nav"}, NthChild: 1},
			want: []string{"a.nav", "a:nth-child(1)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CandidateSelectors(tt.el))
		})
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "", "a", "c", "b"}))
}

func TestAmazonPack_Matches(t *testing.T) {
	pack := AmazonPack{}
	for _, raw := range []string{"https://www.amazon.com/", "https://amazon.co.uk/dp/x", "https://smile.amazon.de/"} {
		u, _ := url.Parse(raw)
		assert.True(t, pack.Matches(u), raw)
	}
	for _, raw := range []string{"https://notamazon.com/", "https://shop.test/", "https://amazon.com.evil.io/"} {
		u, _ := url.Parse(raw)
		assert.False(t, pack.Matches(u), raw)
	}
}

func TestDetectAmazonPageType(t *testing.T) {
	tests := map[string]PageType{
		"https://www.amazon.com/":                        PageHome,
		"https://www.amazon.com/gp/cart/view.html":       PageCart,
		"https://www.amazon.com/gp/buy/spc/handlers":     PageCheckout,
		"https://www.amazon.com/USB-Cable/dp/B01GGKYKQM": PageProduct,
		"https://www.amazon.com/s?k=usb+cable":           PageSearch,
		"https://www.amazon.com/gp/help/customer":        PageUnknown,
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, DetectAmazonPageType(u), raw)
	}
}

func TestPageContext(t *testing.T) {
	reg := New(testutil.NopLogger{}, DefaultPacks()...)

	assert.Equal(t, "Amazon product page", reg.PageContext("https://www.amazon.com/x/dp/B01"))
	assert.Equal(t, "", reg.PageContext("https://shop.test/"))
}
