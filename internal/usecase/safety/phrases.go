package safety

import "strings"

var DefaultRiskPhrases = []string{
	"place order",
	"place your order",
	"complete purchase",
	"confirm order",
	"buy now",
	"complete order",
	"submit order",
	"pay now",
	"confirm purchase",
	"checkout",
	"check out",
	"proceed to checkout",
	"confirm payment",
}

// MatchRiskPhrases returns every phrase contained in text, case and spacing
// insensitive, in list order.
func MatchRiskPhrases(text string, phrases []string) []string {
	norm := normalize(text)
	if norm == "" {
		return nil
	}
	var matched []string
	for _, p := range phrases {
		if strings.Contains(norm, normalize(p)) {
			matched = append(matched, p)
		}
	}
	return matched
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
