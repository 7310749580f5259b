package database

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// memoryStore keeps messages in process memory, in insertion order. It is
// meant for local runs and tests; nothing survives a restart.
type memoryStore struct {
	mu       sync.RWMutex
	messages []Message
	ids      map[string]struct{}
	logger   *slog.Logger
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore(logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &memoryStore{
		ids:    make(map[string]struct{}),
		logger: logger.With("component", "store", "backend", "memory"),
	}
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) Append(ctx context.Context, message *Message) error {
	if err := validateMessage(message); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[message.ID]; exists {
		return errs.NewStoreError("message id already exists: "+message.ID, nil)
	}

	m := *message
	m.CreatedAt = m.CreatedAt.UTC().Truncate(0)
	s.messages = append(s.messages, m)
	s.ids[m.ID] = struct{}{}

	s.logger.DebugContext(ctx, "Message appended", "message_id", m.ID, "tenant_id", m.TenantID)
	return nil
}

func (s *memoryStore) ScanAll(context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *memoryStore) DeleteAll(ctx context.Context) (int, error) {
	snapshot, _ := s.ScanAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{}, len(snapshot))
	for _, m := range snapshot {
		doomed[m.ID] = struct{}{}
	}

	kept := s.messages[:0]
	deleted := 0
	for _, m := range s.messages {
		if _, ok := doomed[m.ID]; ok {
			delete(s.ids, m.ID)
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept

	s.logger.InfoContext(ctx, "Deleted all messages", "deleted", deleted)
	return deleted, nil
}

func (s *memoryStore) RunMaintenance(context.Context) error { return nil }
