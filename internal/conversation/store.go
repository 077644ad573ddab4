package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

// Store persists conversation logs. It is owned by the caller; the
// pipeline never writes to it.
type Store interface {
	AppendTurn(ctx context.Context, id string, turn models.Turn) error
	ListTurns(ctx context.Context, id string) ([]models.Turn, error)
}

// BatchStore is implemented by stores that can append several turns
// atomically. Commit uses it when available so that a failed commit
// leaves the log unchanged.
type BatchStore interface {
	Store
	AppendTurns(ctx context.Context, id string, turns ...models.Turn) error
}

// TokenStore is implemented by stores that also keep thread tokens.
type TokenStore interface {
	SaveToken(ctx context.Context, id, token string) error
	LoadToken(ctx context.Context, id string) (string, error)
}

// Load reads the state of conversation id from store.
func Load(ctx context.Context, store Store, id string, mode Mode) (State, error) {
	s := NewState(id, mode)

	turns, err := store.ListTurns(ctx, id)
	if err != nil {
		return s, fmt.Errorf("list turns: %w", err)
	}
	s.Turns = turns

	if ts, ok := store.(TokenStore); ok && s.Mode == ModeThread {
		token, err := ts.LoadToken(ctx, id)
		if err != nil {
			return s, fmt.Errorf("load token: %w", err)
		}
		s.Token = token
	}
	return s, nil
}

// Commit persists the turns after added over before, and the new token
// when it changed.
func Commit(ctx context.Context, store Store, before, after State) error {
	if after.ID != before.ID {
		return fmt.Errorf("commit: conversation id changed from %q to %q", before.ID, after.ID)
	}
	if len(after.Turns) < len(before.Turns) {
		return fmt.Errorf("commit: state shrank from %d to %d turns", len(before.Turns), len(after.Turns))
	}

	if err := appendTurns(ctx, store, after.ID, after.Turns[len(before.Turns):]); err != nil {
		return err
	}

	if ts, ok := store.(TokenStore); ok && after.Token != before.Token {
		if err := ts.SaveToken(ctx, after.ID, after.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}
	return nil
}

func appendTurns(ctx context.Context, store Store, id string, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	if bs, ok := store.(BatchStore); ok {
		if err := bs.AppendTurns(ctx, id, turns...); err != nil {
			return fmt.Errorf("append turns: %w", err)
		}
		return nil
	}
	for _, turn := range turns {
		if err := store.AppendTurn(ctx, id, turn); err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	turns  map[string][]models.Turn
	tokens map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:  make(map[string][]models.Turn),
		tokens: make(map[string]string),
	}
}

var (
	_ BatchStore = (*MemoryStore)(nil)
	_ TokenStore = (*MemoryStore)(nil)
)

// AppendTurn records turn at the end of conversation id.
func (m *MemoryStore) AppendTurn(_ context.Context, id string, turn models.Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("append turn: invalid role %q", turn.Role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[id] = append(m.turns[id], turn)
	return nil
}

// AppendTurns records turns at the end of conversation id. Nothing is
// recorded when any turn is invalid.
func (m *MemoryStore) AppendTurns(_ context.Context, id string, turns ...models.Turn) error {
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("append turns: invalid role %q", turn.Role)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[id] = append(m.turns[id], turns...)
	return nil
}

// ListTurns returns a copy of the log of conversation id.
func (m *MemoryStore) ListTurns(_ context.Context, id string) ([]models.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Turn(nil), m.turns[id]...), nil
}

// SaveToken records the thread token of conversation id.
func (m *MemoryStore) SaveToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[id] = token
	return nil
}

// LoadToken returns the thread token of conversation id, or "".
func (m *MemoryStore) LoadToken(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[id], nil
}
