package safety

import (
	"fmt"
	"slices"
	"strings"

	"shopping-agent/internal/domain/entity"
)

// OrderSummary is the text shown to the human before a risky click.
func OrderSummary(c entity.ClickCandidate, v entity.SafetyVerdict) string {
	var b strings.Builder
	b.WriteString("=== ORDER CONFIRMATION REQUIRED ===\n\n")
	fmt.Fprintf(&b, "Target: %q\n", c.Element.DisplayText())
	if c.URL != "" {
		fmt.Fprintf(&b, "Page: %s\n", c.URL)
	}

	price := "unknown"
	var keywords []string
	confidence := 0.0
	if d := v.Detection; d != nil {
		if d.TotalPrice != nil && *d.TotalPrice != "" {
			price = *d.TotalPrice
		}
		keywords = slices.Clone(d.DetectedKeywords)
		confidence = d.Confidence
	}
	keywords = append(keywords, v.MatchedPhrases...)

	fmt.Fprintf(&b, "Total Price: %s\n", price)
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Detected keywords: %s\n", strings.Join(dedupe(keywords), ", "))
	}
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", confidence*100)
	fmt.Fprintf(&b, "Reason: %s\n\n", v.Reason)
	b.WriteString("WARNING: this click may complete a purchase.\n")
	b.WriteString("Approve only if the order details above are correct.\n")
	return b.String()
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
