package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"

	"golang.org/x/net/html"
)

var _ output.CheckoutClassifierPort = (*HeuristicClassifier)(nil)

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"iframe": true, "link": true, "meta": true, "head": true, "template": true,
}

var checkoutKeywords = []string{
	"place your order",
	"place order",
	"review your order",
	"order summary",
	"order total",
	"payment method",
	"billing address",
	"shipping address",
	"card number",
	"complete purchase",
	"confirm order",
	"secure checkout",
}

var checkoutURLHints = []string{"/checkout", "/buy/", "/gp/buy", "/cart/payment", "/spc"}

var totalPricePattern = regexp.MustCompile(`(?i)(?:order total|grand total|total)\s*:?\s*([$€£]\s?\d[\d,]*(?:\.\d{2})?)`)

// HeuristicClassifier scores the page DOM for checkout indicators. It needs
// no model and serves as the offline fallback.
type HeuristicClassifier struct {
	browser output.BrowserPort
	// Threshold is the confidence at or above which a page counts as checkout.
	Threshold float64
	MaxText   int
}

// NewHeuristicClassifier reads the page through browser when a request
// carries no HTML. browser may be nil.
func NewHeuristicClassifier(browser output.BrowserPort) *HeuristicClassifier {
	return &HeuristicClassifier{browser: browser, Threshold: 0.5, MaxText: 130_000}
}

func (c *HeuristicClassifier) Classify(ctx context.Context, req output.ClassifyRequest) (*entity.CheckoutDetection, error) {
	raw := req.PageHTML
	if raw == "" && c.browser != nil {
		var err error
		raw, err = c.browser.PageHTML(ctx)
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
	}

	text, err := VisibleText(raw, c.MaxText)
	if err != nil {
		return nil, err
	}
	return c.score(req.URL, text), nil
}

func (c *HeuristicClassifier) score(url, text string) *entity.CheckoutDetection {
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range checkoutKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}

	confidence := 0.15 * float64(len(found))
	urlHint := ""
	lowerURL := strings.ToLower(url)
	for _, hint := range checkoutURLHints {
		if strings.Contains(lowerURL, hint) {
			urlHint = hint
			confidence += 0.3
			break
		}
	}

	var price *string
	if m := totalPricePattern.FindStringSubmatch(text); m != nil {
		p := strings.ReplaceAll(m[1], " ", "")
		price = &p
		confidence += 0.1
	}
	if confidence > 1 {
		confidence = 1
	}

	reasoning := fmt.Sprintf("matched %d checkout keywords", len(found))
	if urlHint != "" {
		reasoning += fmt.Sprintf(", url contains %q", urlHint)
	}
	if price != nil {
		reasoning += ", total price shown"
	}

	return &entity.CheckoutDetection{
		IsCheckout:       confidence >= c.Threshold,
		Confidence:       confidence,
		DetectedKeywords: found,
		TotalPrice:       price,
		Reasoning:        reasoning,
	}
}

// VisibleText returns the whitespace-collapsed text of the document body,
// skipping scripts, styles and other non-rendered nodes. The result is cut
// at maxLen bytes when maxLen is positive.
func VisibleText(rawHTML string, maxLen int) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	root := findBodyNode(doc)
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	collectText(root, &sb)
	text := strings.Join(strings.Fields(sb.String()), " ")
	if maxLen > 0 && len(text) > maxLen {
		for maxLen > 0 && !utf8.RuneStart(text[maxLen]) {
			maxLen--
		}
		text = text[:maxLen]
	}
	return text, nil
}

func findBodyNode(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBodyNode(c); b != nil {
			return b
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.ElementNode:
		if skippedTags[n.Data] || hidden(n) {
			return
		}
		// Button values and aria labels carry the text of many checkout controls.
		for _, attr := range n.Attr {
			if (attr.Key == "value" && n.Data == "input") || attr.Key == "aria-label" {
				sb.WriteString(attr.Val)
				sb.WriteByte(' ')
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func hidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "type":
			if n.Data == "input" && attr.Val == "hidden" {
				return true
			}
		case "style":
			s := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}
