// Package services provides clients for external APIs
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/term-insurance-analyzer/config"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyCompletion is returned when the model answered without content
var ErrEmptyCompletion = errors.New("model returned no content")

// CompletionRequest is one structured-output call
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
}

// RankingClient calls an OpenAI-compatible chat completions endpoint with JSON schema output
type RankingClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RankingClientImpl implements RankingClient
type RankingClientImpl struct {
	openai      openai.Client
	maxTokens   int
	temperature float64
	logger      *utils.Logger
}

// NewRankingClient creates a client for the configured endpoint. Retries are left to
// the caller's model chain, so the SDK's own retries are disabled.
func NewRankingClient(cfg config.RankingConfig, logger *utils.Logger) (RankingClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ranking API key is required")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &RankingClientImpl{
		openai:      openai.NewClient(opts...),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      logger.With("component", "ranking_client"),
	}, nil
}

// Complete sends one chat completion and returns the raw message content
func (c *RankingClientImpl) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.SchemaName,
					Description: openai.String("Structured ranking response"),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.logger.Debug("Chat completion finished",
		"model", req.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateSchema reflects T into a closed JSON schema suitable for strict output
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// IsRateLimited reports whether err is a quota or rate limit rejection
func IsRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

// IsRetryable reports whether another attempt, possibly on another model, could succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429, apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode == 404:
			// unknown model id; the next model may exist
			return true
		default:
			return false
		}
	}
	// network errors and per-attempt deadlines
	return true
}
