package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

// ErrUnknownThread is returned when a continuation token does not resolve.
var ErrUnknownThread = errors.New("unknown thread")

// ThreadStore persists continuation chains.
type ThreadStore interface {
	PutThread(ctx context.Context, entry models.ThreadEntry) error
	GetThread(ctx context.Context, token string) (models.ThreadEntry, error)
}

// ThreadClient adds continuation tokens to any Completer. Each Continue
// stores only the new turns under a fresh token linked to its parent;
// Complete replays the chain ahead of the request's own messages.
type ThreadClient struct {
	Completer
	store ThreadStore
}

// NewThreadClient wraps c with thread support backed by store.
func NewThreadClient(c Completer, store ThreadStore) *ThreadClient {
	return &ThreadClient{Completer: c, store: store}
}

var _ ThreadProvider = (*ThreadClient)(nil)

// Continue appends msgs to the thread and returns the new token.
func (t *ThreadClient) Continue(ctx context.Context, token string, msgs ...Message) (string, error) {
	if token != "" {
		if _, err := t.store.GetThread(ctx, token); err != nil {
			return "", &ServiceError{Provider: "thread", Cause: err}
		}
	}

	entry := models.ThreadEntry{
		Token:     uuid.NewString(),
		Parent:    token,
		Turns:     make([]models.Turn, 0, len(msgs)),
		CreatedAt: time.Now().UTC(),
	}
	for _, m := range msgs {
		entry.Turns = append(entry.Turns, models.Turn{
			Role:      turnRole(m.Role),
			Text:      m.Text,
			CreatedAt: entry.CreatedAt,
		})
	}

	if err := t.store.PutThread(ctx, entry); err != nil {
		return "", &ServiceError{Provider: "thread", Cause: err}
	}
	return entry.Token, nil
}

// Complete resolves req.Thread into history and forwards the call.
func (t *ThreadClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Thread == "" {
		return t.Completer.Complete(ctx, req)
	}

	history, err := t.History(ctx, req.Thread)
	if err != nil {
		return nil, &ServiceError{Provider: "thread", Cause: err}
	}

	// System messages stay first; thread history goes between them and
	// the rest of the request.
	msgs := make([]Message, 0, len(req.Messages)+len(history))
	i := 0
	for ; i < len(req.Messages) && req.Messages[i].Role == RoleSystem; i++ {
		msgs = append(msgs, req.Messages[i])
	}
	for _, turn := range history {
		msgs = append(msgs, Message{Role: messageRole(turn.Role), Text: turn.Text})
	}
	msgs = append(msgs, req.Messages[i:]...)

	req.Messages = msgs
	req.Thread = ""
	return t.Completer.Complete(ctx, req)
}

// History walks the chain for token and returns its turns oldest first.
func (t *ThreadClient) History(ctx context.Context, token string) ([]models.Turn, error) {
	var chain []models.ThreadEntry
	seen := make(map[string]bool)
	for token != "" {
		if seen[token] {
			return nil, fmt.Errorf("thread %s: cycle detected", token)
		}
		seen[token] = true

		entry, err := t.store.GetThread(ctx, token)
		if err != nil {
			return nil, err
		}
		chain = append(chain, entry)
		token = entry.Parent
	}

	var turns []models.Turn
	for i := len(chain) - 1; i >= 0; i-- {
		turns = append(turns, chain[i].Turns...)
	}
	return turns, nil
}

func turnRole(r Role) models.Role {
	switch r {
	case RoleAssistant:
		return models.RoleSpecialist
	case RoleSystem:
		return models.RoleSystem
	default:
		return models.RoleUser
	}
}

func messageRole(r models.Role) Role {
	switch r {
	case models.RoleSpecialist:
		return RoleAssistant
	case models.RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// MemoryThreadStore is an in-process ThreadStore.
type MemoryThreadStore struct {
	mu      sync.RWMutex
	entries map[string]models.ThreadEntry
}

// NewMemoryThreadStore creates an empty store.
func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{entries: make(map[string]models.ThreadEntry)}
}

// PutThread stores entry under its token.
func (s *MemoryThreadStore) PutThread(_ context.Context, entry models.ThreadEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.Token]; exists {
		return fmt.Errorf("thread %s already exists", entry.Token)
	}
	entry.Turns = append([]models.Turn(nil), entry.Turns...)
	s.entries[entry.Token] = entry
	return nil
}

// GetThread returns the entry for token.
func (s *MemoryThreadStore) GetThread(_ context.Context, token string) (models.ThreadEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[token]
	if !ok {
		return models.ThreadEntry{}, fmt.Errorf("%w: %s", ErrUnknownThread, token)
	}
	return entry, nil
}
