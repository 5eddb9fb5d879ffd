package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shopping-agent/internal/domain/entity"
)

var errNoJSON = errors.New("no JSON object in classifier response")

// parseDetection reads the model's JSON verdict, tolerating markdown fences
// and surrounding prose.
func parseDetection(text string) (*entity.CheckoutDetection, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errNoJSON
	}

	var det entity.CheckoutDetection
	if err := json.Unmarshal([]byte(text[start:end+1]), &det); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if det.Confidence < 0 {
		det.Confidence = 0
	}
	if det.Confidence > 1 {
		det.Confidence = 1
	}
	if det.TotalPrice != nil && strings.TrimSpace(*det.TotalPrice) == "" {
		det.TotalPrice = nil
	}
	return &det, nil
}
