package completion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

type geminiProvider struct {
	params     Params
	httpClient *http.Client
	log        *slog.Logger
}

// NewGeminiProvider returns a Provider using the Gemini API. System turns
// become the system instruction and assistant turns are sent with the model
// role. A nil httpClient uses the SDK default.
func NewGeminiProvider(params Params, httpClient *http.Client, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &geminiProvider{
		params:     params,
		httpClient: httpClient,
		log:        logger.With("component", "completion", "provider", "gemini"),
	}
}

func (p *geminiProvider) Complete(ctx context.Context, apiKey string, turns []Turn) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.params.BaseURL},
	})
	if err != nil {
		return "", errs.NewCompletionError("failed to create genai client", err)
	}

	system, contents := toGeminiContents(turns)
	temperature := p.params.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temperature,
		MaxOutputTokens:   int32(p.params.MaxTokens),
		StopSequences:     p.params.StopSequences,
	}

	p.log.DebugContext(ctx, "Requesting content generation", "model", p.params.Model, "turns", len(contents))

	resp, err := client.Models.GenerateContent(ctx, p.params.Model, contents, cfg)
	if err != nil {
		p.log.ErrorContext(ctx, "Gemini content generation failed", "model", p.params.Model, "error", err)
		return "", errs.NewCompletionError("gemini content generation failed", err)
	}

	return p.extractText(ctx, resp)
}

func (p *geminiProvider) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if blocked(resp.PromptFeedback) {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		p.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", errs.NewCompletionError("gemini request blocked: "+reason, nil)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		p.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", errs.NewCompletionError("gemini returned no content, finish reason: "+finishReason, nil)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errs.NewCompletionError("gemini returned empty text", nil)
	}
	return text, nil
}

// blocked reports whether the prompt was rejected. Feedback that only carries
// safety ratings has an empty block reason.
func blocked(fb *genai.GenerateContentResponsePromptFeedback) bool {
	if fb == nil {
		return false
	}
	return fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified
}

// toGeminiContents splits turns into a system instruction and the
// conversation contents. Multiple system turns are joined in order.
func toGeminiContents(turns []Turn) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(turns))

	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			systemParts = append(systemParts, t.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}}}, contents
}
