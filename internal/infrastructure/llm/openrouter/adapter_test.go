package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/testutil"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler func(req openai.ChatCompletionRequest) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, content := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"` + content + `","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "resp-1",
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: content},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newOracle(url string) *DecisionOracle {
	cfg := DefaultConfig("test-key", "vision-model")
	cfg.BaseURL = url
	cfg.Logger = testutil.NopLogger{}
	return NewDecisionOracle(cfg)
}

func TestDecide_SendsPromptAndScreenshot(t *testing.T) {
	var got openai.ChatCompletionRequest
	server, _ := newServer(t, func(req openai.ChatCompletionRequest) (int, string) {
		got = req
		return http.StatusOK, `{"action":"click","target":2,"reasoning":"search"}`
	})

	text, err := newOracle(server.URL).Decide(context.Background(), output.DecisionRequest{
		Goal:       "buy socks",
		Screenshot: &entity.Screenshot{Data: []byte{0xff, 0xd8, 0xff}, Format: "jpeg"},
		Labels: entity.LabelMap{
			1: {Label: 1, Kind: "input", Placeholder: "Search"},
			2: {Label: 2, Kind: "button", Text: "Go"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"click","target":2,"reasoning":"search"}`, text)

	assert.Equal(t, "vision-model", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
	require.Len(t, got.Messages, 1)

	parts := got.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "USER GOAL: buy socks")
	assert.Contains(t, parts[0].Text, `[2] BUTTON - "Go"`)
	require.NotNil(t, parts[1].ImageURL)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,/9j/"))
}

func TestDecide_WithoutScreenshot(t *testing.T) {
	var got openai.ChatCompletionRequest
	server, _ := newServer(t, func(req openai.ChatCompletionRequest) (int, string) {
		got = req
		return http.StatusOK, `{"action":"done"}`
	})

	_, err := newOracle(server.URL).Decide(context.Background(), output.DecisionRequest{Goal: "x"})
	require.NoError(t, err)
	assert.Len(t, got.Messages[0].MultiContent, 1)
}

func TestDecide_ServerError(t *testing.T) {
	server, _ := newServer(t, func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusBadRequest, "bad request"
	})

	_, err := newOracle(server.URL).Decide(context.Background(), output.DecisionRequest{Goal: "x"})
	assert.ErrorContains(t, err, "chat completion failed")
}

func TestDecide_RateLimited(t *testing.T) {
	server, calls := newServer(t, func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, `{"action":"done"}`
	})

	cfg := DefaultConfig("test-key", "vision-model")
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = 0.001
	oracle := NewDecisionOracle(cfg)

	_, err := oracle.Decide(context.Background(), output.DecisionRequest{Goal: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = oracle.Decide(ctx, output.DecisionRequest{Goal: "x"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDataURI(t *testing.T) {
	uri := DataURI(&entity.Screenshot{Data: []byte("hi"), Format: "png"})
	assert.Equal(t, "data:image/png;base64,aGk=", uri)

	uri = DataURI(&entity.Screenshot{Data: []byte("hi")})
	assert.Equal(t, "data:image/jpeg;base64,aGk=", uri)
}
