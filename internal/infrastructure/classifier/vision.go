package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/infrastructure/llm/openrouter"
	"shopping-agent/internal/infrastructure/prompts"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

var _ output.CheckoutClassifierPort = (*VisionClassifier)(nil)

var errNoScreenshot = errors.New("classifier needs a screenshot")

// VisionClassifier asks a multimodal model whether the screenshot shows a
// checkout page.
type VisionClassifier struct {
	llm      llms.Model
	template string
	logger   output.LoggerPort
}

type VisionConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewVisionClassifier(cfg VisionConfig, logger output.LoggerPort) (*VisionClassifier, error) {
	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, lcopenai.WithHTTPClient(cfg.HTTPClient))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create classifier model: %w", err)
	}
	return NewVisionClassifierWithModel(llm, logger), nil
}

func NewVisionClassifierWithModel(llm llms.Model, logger output.LoggerPort) *VisionClassifier {
	return &VisionClassifier{
		llm:      llm,
		template: prompts.CheckoutPrompt,
		logger:   logger.WithField("component", "vision_classifier"),
	}
}

func (c *VisionClassifier) Classify(ctx context.Context, req output.ClassifyRequest) (*entity.CheckoutDetection, error) {
	if req.Screenshot == nil || len(req.Screenshot.Data) == 0 {
		return nil, errNoScreenshot
	}

	prompt, err := prompts.GenerateCheckoutPrompt(c.template, req.URL)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(prompt),
			llms.ImageURLPart(openrouter.DataURI(req.Screenshot)),
		},
	}},
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(512),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("classify checkout: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("classifier returned no choices")
	}

	det, err := parseDetection(resp.Choices[0].Content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Checkout classification",
		"url", req.URL,
		"is_checkout", det.IsCheckout,
		"confidence", det.Confidence)
	return det, nil
}
