package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

func TestCommit_AppendsOnlyNewTurns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(Config{}, nil)

	before, err := Load(ctx, store, "c1", ModeTurns)
	require.NoError(t, err)

	after, err := m.Extend(ctx, before, "q1", models.FinalReply{Text: "r1", Specialist: "strategy"})
	require.NoError(t, err)
	require.NoError(t, Commit(ctx, store, before, after))

	next, err := m.Extend(ctx, after, "q2", models.FinalReply{Text: "r2", Specialist: "media"})
	require.NoError(t, err)
	require.NoError(t, Commit(ctx, store, after, next))

	loaded, err := Load(ctx, store, "c1", ModeTurns)
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 4)
	assert.Equal(t, "q1", loaded.Turns[0].Text)
	assert.Equal(t, "r2", loaded.Turns[3].Text)
}

func TestCommit_Unchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewState("c1", ModeTurns)

	require.NoError(t, Commit(ctx, store, s, s))
	turns, err := store.ListTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestCommit_Rejects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := NewState("a", ModeTurns)
	b := NewState("b", ModeTurns)
	assert.Error(t, Commit(ctx, store, a, b))

	long := NewState("a", ModeTurns)
	long.Turns = []models.Turn{models.UserTurn("x")}
	assert.Error(t, Commit(ctx, store, long, a))
}

func TestCommit_SavesToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	before := NewState("c1", ModeThread)
	after := before
	after.Token = "tok-2"
	require.NoError(t, Commit(ctx, store, before, after))

	loaded, err := Load(ctx, store, "c1", ModeThread)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", loaded.Token)

	// Turns mode ignores stored tokens.
	loaded, err = Load(ctx, store, "c1", ModeTurns)
	require.NoError(t, err)
	assert.Empty(t, loaded.Token)
}

func TestMemoryStore_RejectsInvalidRole(t *testing.T) {
	store := NewMemoryStore()
	err := store.AppendTurn(context.Background(), "c1", models.Turn{Role: "robot"})
	assert.Error(t, err)
}

func TestMemoryStore_ListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.AppendTurn(ctx, "c1", models.UserTurn("hello")))

	turns, err := store.ListTurns(ctx, "c1")
	require.NoError(t, err)
	turns[0].Text = "mutated"

	again, err := store.ListTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again[0].Text)
}

// flakyStore fails the nth per-turn append.
type flakyStore struct {
	*MemoryStore
	failAt int
	calls  int
}

func (f *flakyStore) AppendTurn(ctx context.Context, id string, turn models.Turn) error {
	f.calls++
	if f.calls == f.failAt {
		return errors.New("disk full")
	}
	return f.MemoryStore.AppendTurn(ctx, id, turn)
}

func TestCommit_PrefersBatchAppend(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), failAt: 2}
	m := NewManager(Config{}, nil)

	before := NewState("c1", ModeTurns)
	after, err := m.Extend(ctx, before, "hi", models.FinalReply{Text: "hello", Specialist: "strategy"})
	require.NoError(t, err)

	// The embedded MemoryStore supplies AppendTurns, so the failing
	// per-turn path is never taken.
	require.NoError(t, Commit(ctx, store, before, after))
	assert.Equal(t, 0, store.calls)

	turns, err := store.ListTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestMemoryStore_AppendTurnsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.AppendTurns(ctx, "c1", models.UserTurn("hi"), models.Turn{Role: "robot", Text: "x"})
	assert.Error(t, err)

	turns, err := store.ListTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
