package safety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/application/service"
	"shopping-agent/internal/domain/entity"
)

type Config struct {
	Threshold float64
	CacheTTL  time.Duration
	Retry     service.RetryPolicy
	Phrases   []string
}

func DefaultConfig() Config {
	return Config{
		Threshold: 0.7,
		CacheTTL:  5 * time.Second,
		Retry: service.RetryPolicy{
			MaxAttempts:    2,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       time.Second,
			Multiplier:     2,
			AttemptTimeout: 20 * time.Second,
		},
		Phrases: DefaultRiskPhrases,
	}
}

// Guard decides whether a click needs human approval. One Guard belongs to
// one session; its classification cache is never shared.
type Guard struct {
	classifier output.CheckoutClassifierPort
	cache      *service.TTLCache[string, entity.CheckoutDetection]
	cfg        Config
	logger     output.LoggerPort
}

func New(classifier output.CheckoutClassifierPort, logger output.LoggerPort, cfg Config) *Guard {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if len(cfg.Phrases) == 0 {
		cfg.Phrases = DefaultRiskPhrases
	}
	return &Guard{
		classifier: classifier,
		cache:      service.NewTTLCache[string, entity.CheckoutDetection](cfg.CacheTTL),
		cfg:        cfg,
		logger:     logger.WithField("component", "safety"),
	}
}

// Cache exposes the per-URL classification cache.
func (g *Guard) Cache() *service.TTLCache[string, entity.CheckoutDetection] {
	return g.cache
}

// Evaluate combines the page classification with the lexical check on the
// target's text, aria label and pack purpose. Only a lexical match can
// require approval.
func (g *Guard) Evaluate(ctx context.Context, c entity.ClickCandidate) (entity.SafetyVerdict, error) {
	detection, err := g.detect(ctx, c)
	if err != nil {
		return entity.SafetyVerdict{}, err
	}

	text := lexicalText(c.Element)
	matched := MatchRiskPhrases(text, g.cfg.Phrases)
	onCheckout := detection.IsCheckout && detection.Confidence > g.cfg.Threshold

	verdict := entity.SafetyVerdict{
		RequiresApproval: len(matched) > 0,
		MatchedPhrases:   matched,
		Detection:        &detection,
	}

	switch {
	case len(matched) > 0 && onCheckout:
		verdict.Reason = fmt.Sprintf("checkout page (%.0f%% confidence) and target matches purchase intent: %s",
			detection.Confidence*100, strings.Join(matched, ", "))
	case len(matched) > 0:
		verdict.Reason = "target matches purchase intent: " + strings.Join(matched, ", ")
	case onCheckout:
		verdict.Reason = "checkout page detected but target is not a purchase action"
	default:
		verdict.Reason = "no purchase intent detected"
	}

	if verdict.RequiresApproval {
		verdict.Summary = OrderSummary(c, verdict)
		g.logger.Warn("Click requires approval",
			"label", c.Label,
			"text", c.Element.DisplayText(),
			"url", c.URL,
			"reason", verdict.Reason,
		)
	}
	return verdict, nil
}

func (g *Guard) detect(ctx context.Context, c entity.ClickCandidate) (entity.CheckoutDetection, error) {
	if cached, ok := g.cache.Get(c.URL); ok {
		return cached, nil
	}
	if g.classifier == nil {
		return entity.CheckoutDetection{}, nil
	}

	detection, err := service.Retry(ctx, g.cfg.Retry, func(ctx context.Context) (*entity.CheckoutDetection, error) {
		return g.classifier.Classify(ctx, output.ClassifyRequest{Screenshot: c.Screenshot, URL: c.URL})
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return entity.CheckoutDetection{}, ctxErr
		}
		g.logger.Warn("Checkout classification failed, treating page as non-checkout", "url", c.URL, "error", err)
		return entity.CheckoutDetection{Reasoning: "classification unavailable"}, nil
	}
	if detection == nil {
		detection = &entity.CheckoutDetection{}
	}

	g.cache.Set(c.URL, *detection)
	return *detection, nil
}

// lexicalText joins what the risk phrases are matched against. A purpose such
// as place_order reads as "place order".
func lexicalText(d entity.ElementDescriptor) string {
	parts := []string{d.Text, d.AriaLabel, strings.ReplaceAll(d.Purpose, "_", " ")}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
