package entity

import "time"

type CheckoutDetection struct {
	IsCheckout       bool     `json:"is_checkout"`
	Confidence       float64  `json:"confidence"`
	DetectedKeywords []string `json:"detected_keywords"`
	TotalPrice       *string  `json:"total_price"`
	Reasoning        string   `json:"reasoning"`
}

type ClickCandidate struct {
	Label      int
	Element    ElementDescriptor
	URL        string
	Screenshot *Screenshot
}

type SafetyVerdict struct {
	RequiresApproval bool               `json:"requires_approval"`
	Reason           string             `json:"reason"`
	MatchedPhrases   []string           `json:"matched_phrases,omitempty"`
	Detection        *CheckoutDetection `json:"risk_context,omitempty"`
	Summary          string             `json:"summary,omitempty"`
}

// ApprovalRequest binds a granted approval to one concrete click so it can
// never be replayed against a different candidate.
type ApprovalRequest struct {
	Iteration   int               `json:"iteration"`
	Action      Action            `json:"action"`
	Element     ElementDescriptor `json:"element"`
	URL         string            `json:"url"`
	Verdict     SafetyVerdict     `json:"verdict"`
	RequestedAt time.Time         `json:"requested_at"`
}
