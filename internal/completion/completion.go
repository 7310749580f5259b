// Package completion sends an assembled conversation to a chat-completion
// model and returns the generated text.
package completion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PbVrCt/serverless-chat-demo/internal/config"
)

// Role is the speaker of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation sent to the model.
type Turn struct {
	Role    Role
	Content string
}

// Params are the model parameters applied to every call.
type Params struct {
	Model         string
	BaseURL       string
	Temperature   float32
	MaxTokens     int
	StopSequences []string
}

// ParamsFromConfig extracts Params from the completion configuration.
func ParamsFromConfig(cfg config.CompletionConfig) Params {
	return Params{
		Model:         cfg.Model,
		BaseURL:       cfg.BaseURL,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		StopSequences: cfg.StopSequences,
	}
}

// Provider generates the next assistant turn. The API key is passed per call
// because it is looked up on every request. Errors, timeouts and empty
// results are errs.ErrCompletionFailed; there is no retry.
type Provider interface {
	Complete(ctx context.Context, apiKey string, turns []Turn) (string, error)
}

// New builds the Provider selected by cfg.Provider.
func New(cfg config.CompletionConfig, logger *slog.Logger) (Provider, error) {
	params := ParamsFromConfig(cfg)
	switch cfg.Provider {
	case config.CompletionProviderOpenAI:
		return NewOpenAIProvider(params, nil, logger), nil
	case config.CompletionProviderGemini:
		return NewGeminiProvider(params, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}
