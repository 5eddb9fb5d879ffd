package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/infrastructure/prompts"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var _ output.DecisionOraclePort = (*DecisionOracle)(nil)

var errNoChoices = errors.New("no choices in response")

const defaultHTTPTimeout = 90 * time.Second

// DecisionOracle asks a vision model for the next action. It returns the
// model's raw text; parsing happens in the decision use case.
type DecisionOracle struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	template    string
	limiter     *rate.Limiter
	logger      output.LoggerPort
}

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	// RequestsPerSecond throttles calls across every session sharing the
	// oracle. Zero disables throttling.
	RequestsPerSecond float64
	Logger            output.LoggerPort
	HTTPClient        *http.Client
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     "https://openrouter.ai/api/v1",
		Temperature: 0.4,
		MaxTokens:   2048,
	}
}

// loggingTransport logs request metadata without the body, which carries a
// base64 screenshot.
type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.logger != nil {
		t.logger.Debug("HTTP Request",
			"method", req.Method,
			"url", req.URL.String(),
			"bytes", req.ContentLength,
		)
	}

	resp, err := t.base.RoundTrip(req)

	if t.logger != nil && resp != nil {
		t.logger.Debug("HTTP Response",
			"status", resp.Status,
			"statusCode", resp.StatusCode,
		)
	}

	return resp, err
}

func NewDecisionOracle(cfg Config) *DecisionOracle {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.Logger != nil {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &loggingTransport{base: base, logger: cfg.Logger}
		httpClient = &wrapped
	}
	config.HTTPClient = httpClient

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	return &DecisionOracle{
		client:      openai.NewClientWithConfig(config),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		template:    prompts.VisionPrompt,
		limiter:     limiter,
		logger:      cfg.Logger,
	}
}

func (o *DecisionOracle) Decide(ctx context.Context, req output.DecisionRequest) (string, error) {
	prompt, err := prompts.GenerateVisionPrompt(o.template, req)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    []openai.ChatCompletionMessage{buildMessage(prompt, req.Screenshot)},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	content := resp.Choices[0].Message.Content
	if o.logger != nil {
		o.logger.Debug("Oracle responded",
			"model", o.model,
			"promptTokens", resp.Usage.PromptTokens,
			"completionTokens", resp.Usage.CompletionTokens,
			"length", len(content))
	}
	return content, nil
}

func buildMessage(prompt string, shot *entity.Screenshot) openai.ChatCompletionMessage {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	if shot != nil && len(shot.Data) > 0 {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    DataURI(shot),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}
	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

// DataURI encodes a screenshot for inline image message parts.
func DataURI(shot *entity.Screenshot) string {
	format := shot.Format
	if format == "" {
		format = "jpeg"
	}
	var buf bytes.Buffer
	buf.WriteString("data:image/" + format + ";base64,")
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	_, _ = io.Copy(enc, bytes.NewReader(shot.Data))
	_ = enc.Close()
	return buf.String()
}
