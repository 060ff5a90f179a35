package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/term-insurance-analyzer/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleResponse struct {
	Summary string   `json:"summary"`
	Items   []string `json:"items"`
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func TestRankingClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"summary":"ok","items":["a"]}`)))
	}))
	defer srv.Close()

	client, err := NewRankingClient(config.RankingConfig{APIKey: "test-key", BaseURL: srv.URL + "/", MaxTokens: 256, Temperature: 0.2}, nil)
	require.NoError(t, err)

	content, err := client.Complete(context.Background(), CompletionRequest{
		Model:        "test-model",
		SystemPrompt: "system",
		UserPrompt:   "user",
		SchemaName:   "sample",
		Schema:       GenerateSchema[sampleResponse](),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok","items":["a"]}`, content)

	assert.Equal(t, "test-model", got["model"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
}

func TestRankingClient_Errors(t *testing.T) {
	t.Run("RateLimited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit","code":"429"}}`))
		}))
		defer srv.Close()

		client, err := NewRankingClient(config.RankingConfig{APIKey: "k", BaseURL: srv.URL + "/"}, nil)
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), CompletionRequest{Model: "m", UserPrompt: "u"})
		require.Error(t, err)
		assert.True(t, IsRateLimited(err))
		assert.True(t, IsRetryable(err))
	})

	t.Run("EmptyContent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionBody("")))
		}))
		defer srv.Close()

		client, err := NewRankingClient(config.RankingConfig{APIKey: "k", BaseURL: srv.URL + "/"}, nil)
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), CompletionRequest{Model: "m", UserPrompt: "u"})
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := NewRankingClient(config.RankingConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("Classification", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
		assert.False(t, IsRetryable(context.Canceled))
		assert.True(t, IsRetryable(context.DeadlineExceeded))
		assert.True(t, IsRetryable(errors.New("connection reset")))
		assert.False(t, IsRateLimited(errors.New("connection reset")))
	})
}
