package completion

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

type openAIProvider struct {
	params     Params
	httpClient *http.Client
	log        *slog.Logger
}

// NewOpenAIProvider returns a Provider using the OpenAI chat completions API.
// A nil httpClient uses the library default.
func NewOpenAIProvider(params Params, httpClient *http.Client, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &openAIProvider{
		params:     params,
		httpClient: httpClient,
		log:        logger.With("component", "completion", "provider", "openai"),
	}
}

func (p *openAIProvider) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if p.params.BaseURL != "" {
		cfg.BaseURL = p.params.BaseURL
	}
	if p.httpClient != nil {
		cfg.HTTPClient = p.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (p *openAIProvider) Complete(ctx context.Context, apiKey string, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	p.log.DebugContext(ctx, "Requesting chat completion", "model", p.params.Model, "turns", len(messages))

	resp, err := p.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.params.Model,
		Messages:    messages,
		Temperature: p.params.Temperature,
		MaxTokens:   p.params.MaxTokens,
		Stop:        p.params.StopSequences,
		N:           1,
	})
	if err != nil {
		p.log.ErrorContext(ctx, "Chat completion failed", "model", p.params.Model, "error", err)
		return "", errs.NewCompletionError("chat completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", errs.NewCompletionError("chat completion returned no choices", nil)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		p.log.WarnContext(ctx, "Chat completion returned empty content",
			"finish_reason", resp.Choices[0].FinishReason)
		return "", errs.NewCompletionError("chat completion returned empty content", nil)
	}

	p.log.DebugContext(ctx, "Chat completion received",
		"finish_reason", resp.Choices[0].FinishReason, "total_tokens", resp.Usage.TotalTokens)
	return content, nil
}
