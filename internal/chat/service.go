// Package chat implements the chat operations: listing visible messages,
// posting human messages, generating broadcast AI replies from the shared
// AI history, and clearing the log.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PbVrCt/serverless-chat-demo/internal/completion"
	"github.com/PbVrCt/serverless-chat-demo/internal/database"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
	"github.com/PbVrCt/serverless-chat-demo/internal/identity"
	"github.com/PbVrCt/serverless-chat-demo/internal/logger"
	"github.com/PbVrCt/serverless-chat-demo/internal/metrics"
	"github.com/PbVrCt/serverless-chat-demo/internal/secrets"
)

// Options configures the AI responder.
type Options struct {
	// Persona is the system prompt template; see DisplayNamePlaceholder.
	Persona string
	// SecretName names the completion credential.
	SecretName string
	// MaxContextTokens bounds the estimated context size; 0 disables it.
	MaxContextTokens int
	// CompletionTimeout caps the completion call.
	CompletionTimeout time.Duration
	// Metrics receives the chat counters; nil uses a private registry.
	Metrics *metrics.Metrics
}

// Service holds the collaborators of every chat operation.
type Service struct {
	store     database.Store
	secrets   secrets.Provider
	completer completion.Provider
	opts      Options
	metrics   *metrics.Metrics
	log       *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a chat Service.
func NewService(
	store database.Store,
	secretProvider secrets.Provider,
	completer completion.Provider,
	opts Options,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		store:     store,
		secrets:   secretProvider,
		completer: completer,
		opts:      opts,
		metrics:   m,
		log:       log.With("component", "chat"),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func checkIdentity(requester identity.Identity) error {
	if requester.TenantID == "" {
		return errs.NewIdentityError("requester has no tenant id", nil)
	}
	return nil
}

// ListMessages returns the messages visible to the requester ordered by
// creation time.
func (s *Service) ListMessages(ctx context.Context, requester identity.Identity) ([]database.Message, error) {
	if err := checkIdentity(requester); err != nil {
		return nil, err
	}

	all, err := s.store.ScanAll(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to list messages", "tenant_id", requester.TenantID, "error", err)
		return nil, err
	}

	visible := make([]database.Message, 0, len(all))
	for _, m := range all {
		if m.VisibleTo(requester.TenantID) {
			visible = append(visible, m)
		}
	}
	SortByCreatedAt(visible)

	s.log.DebugContext(ctx, "Listed messages",
		"tenant_id", requester.TenantID, "total", len(all), "visible", len(visible))
	return visible, nil
}

// SendMessage stores a human message authored by the requester and returns it.
func (s *Service) SendMessage(ctx context.Context, requester identity.Identity, text string) (database.Message, error) {
	if err := checkIdentity(requester); err != nil {
		return database.Message{}, err
	}
	if strings.TrimSpace(text) == "" {
		return database.Message{}, errs.NewValidationError("message text is empty", nil)
	}

	msg := s.newMessage(requester, text, false)
	if err := s.store.Append(ctx, &msg); err != nil {
		s.log.ErrorContext(ctx, "Failed to store message",
			"tenant_id", requester.TenantID, "message_id", msg.ID, "error", err)
		return database.Message{}, err
	}

	s.metrics.MessagesStored.WithLabelValues(metrics.KindHuman).Inc()
	s.log.InfoContext(ctx, "Message stored", "tenant_id", requester.TenantID, "message_id", msg.ID)
	return msg, nil
}

// RequestAIReply generates an AI turn in answer to prompt, using every stored
// AI message as shared history, and stores it attributed to the requester.
// If the final append fails the generated text is lost and the request fails
// with errs.ErrStoreUnavailable.
func (s *Service) RequestAIReply(ctx context.Context, requester identity.Identity, prompt string) (database.Message, error) {
	if err := checkIdentity(requester); err != nil {
		return database.Message{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return database.Message{}, errs.NewValidationError("prompt is empty", nil)
	}
	log := s.log.With("tenant_id", requester.TenantID)

	apiKey, err := s.secrets.Get(ctx, s.opts.SecretName)
	if err != nil {
		log.ErrorContext(ctx, "Failed to fetch completion credential", "secret_name", s.opts.SecretName, "error", err)
		s.metrics.AIReplies.WithLabelValues(metrics.OutcomeSecretError).Inc()
		return database.Message{}, asClass(err, errs.ErrSecretUnavailable, errs.NewSecretError)
	}

	all, err := s.store.ScanAll(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read history", "error", err)
		s.metrics.AIReplies.WithLabelValues(metrics.OutcomeStoreError).Inc()
		return database.Message{}, err
	}

	turns := BuildContext(s.opts.Persona, requester, all, prompt)
	turns, dropped := FitWindow(turns, s.opts.MaxContextTokens)
	if dropped > 0 {
		s.metrics.ContextTurnsDropped.Add(float64(dropped))
		log.InfoContext(ctx, "Context truncated to token window",
			"dropped_turns", dropped, "kept_turns", len(turns), "max_tokens", s.opts.MaxContextTokens)
	}

	reply, err := s.complete(ctx, apiKey, turns)
	if err != nil {
		log.ErrorContext(ctx, "Completion failed", "turns", len(turns), "error", err)
		s.metrics.CompletionFailures.Inc()
		s.metrics.AIReplies.WithLabelValues(metrics.OutcomeCompletionError).Inc()
		return database.Message{}, err
	}

	msg := s.newMessage(requester, reply, true)
	if err := s.store.Append(ctx, &msg); err != nil {
		log.ErrorContext(ctx, "Failed to store AI reply, generated text is lost",
			"message_id", msg.ID, "reply_preview", logger.TruncateString(reply, 80), "error", err)
		s.metrics.AIReplies.WithLabelValues(metrics.OutcomeStoreError).Inc()
		return database.Message{}, asClass(err, errs.ErrStoreUnavailable, errs.NewStoreError)
	}

	s.metrics.MessagesStored.WithLabelValues(metrics.KindAI).Inc()
	s.metrics.AIReplies.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.InfoContext(ctx, "AI reply stored", "message_id", msg.ID, "context_turns", len(turns))
	return msg, nil
}

func (s *Service) complete(ctx context.Context, apiKey string, turns []completion.Turn) (string, error) {
	if s.opts.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CompletionTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, apiKey, turns)
	s.metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", asClass(err, errs.ErrCompletionFailed, errs.NewCompletionError)
	}
	if strings.TrimSpace(reply) == "" {
		return "", errs.NewCompletionError("completion returned empty text", nil)
	}
	return reply, nil
}

// ClearAll deletes every stored message regardless of tenant.
func (s *Service) ClearAll(ctx context.Context, requester identity.Identity) (int, error) {
	if err := checkIdentity(requester); err != nil {
		return 0, err
	}

	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to clear messages",
			"tenant_id", requester.TenantID, "deleted", deleted, "error", err)
		return deleted, err
	}

	s.log.InfoContext(ctx, "All messages cleared", "tenant_id", requester.TenantID, "deleted", deleted)
	return deleted, nil
}

func (s *Service) newMessage(requester identity.Identity, text string, aiGenerated bool) database.Message {
	return database.Message{
		ID:                s.newID(),
		CreatedAt:         s.now().UTC().Truncate(time.Second),
		Text:              text,
		AIGenerated:       aiGenerated,
		AuthorDisplayName: requester.DisplayName,
		TenantID:          requester.TenantID,
	}
}

// asClass returns err unchanged when it already belongs to class, otherwise
// wraps it with wrap.
func asClass(err, class error, wrap func(string, error) error) error {
	if errors.Is(err, class) {
		return err
	}
	return wrap(class.Error(), err)
}
