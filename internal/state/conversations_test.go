package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

func TestAppendAndListTurns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	turns := []models.Turn{
		models.UserTurn("How do I price my mugs?"),
		models.SpecialistTurn("strategy", "Strategy: start from cost."),
		models.UserTurn("And photos?"),
	}
	for _, turn := range turns {
		require.NoError(t, db.AppendTurn(ctx, "c1", turn))
	}

	got, err := db.ListTurns(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range turns {
		assert.Equal(t, turns[i].Role, got[i].Role)
		assert.Equal(t, turns[i].Text, got[i].Text)
		assert.Equal(t, turns[i].Specialist, got[i].Specialist)
		assert.True(t, turns[i].CreatedAt.Equal(got[i].CreatedAt))
	}

	empty, err := db.ListTurns(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppendTurnRejectsInvalidRole(t *testing.T) {
	db := setupTestDB(t)
	err := db.AppendTurn(context.Background(), "c1", models.Turn{Role: "robot", Text: "x"})
	assert.Error(t, err)

	c, err := db.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestAppendTurnConcurrentConversations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				assert.NoError(t, db.AppendTurn(ctx, id, models.UserTurn(id)))
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c"} {
		turns, err := db.ListTurns(ctx, id)
		require.NoError(t, err)
		assert.Len(t, turns, 10)
	}
}

func TestConversationCommitRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	before, err := conversation.Load(ctx, db, "c1", conversation.ModeThread)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Len())

	after := before
	after.Turns = []models.Turn{
		models.UserTurn("hi"),
		models.SpecialistTurn("creative", "Creative: hello"),
	}
	after.Token = "tok-1"
	require.NoError(t, conversation.Commit(ctx, db, before, after))

	loaded, err := conversation.Load(ctx, db, "c1", conversation.ModeThread)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, "tok-1", loaded.Token)

	// Turns mode ignores the stored token.
	turnsMode, err := conversation.Load(ctx, db, "c1", conversation.ModeTurns)
	require.NoError(t, err)
	assert.Empty(t, turnsMode.Token)
}

func TestConversationCommitIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Fail the reply insert after the user turn went in.
	_, err := db.Exec(ctx, `
		CREATE TRIGGER fail_reply BEFORE INSERT ON turns
		WHEN NEW.text = 'boom'
		BEGIN SELECT RAISE(ABORT, 'disk full'); END
	`)
	require.NoError(t, err)

	before, err := conversation.Load(ctx, db, "c1", conversation.ModeTurns)
	require.NoError(t, err)
	after := before
	after.Turns = []models.Turn{models.UserTurn("hi"), models.SpecialistTurn("strategy", "boom")}

	err = conversation.Commit(ctx, db, before, after)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	turns, err := db.ListTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	conv, err := db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestTokens(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	token, err := db.LoadToken(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, db.SaveToken(ctx, "c1", "first"))
	require.NoError(t, db.SaveToken(ctx, "c1", "second"))

	token, err = db.LoadToken(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "second", token)
}

func TestThreads(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := models.ThreadEntry{
		Token:     "t1",
		Turns:     []models.Turn{models.UserTurn("q"), models.SpecialistTurn("", "a")},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.PutThread(ctx, entry))

	got, err := db.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)
	assert.Empty(t, got.Parent)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "q", got.Turns[0].Text)
	assert.Equal(t, models.RoleSpecialist, got.Turns[1].Role)

	_, err = db.GetThread(ctx, "nope")
	assert.True(t, errors.Is(err, api.ErrUnknownThread))

	assert.Error(t, db.PutThread(ctx, entry), "duplicate token")
}

func TestThreadClientOverSQLite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tc := api.NewThreadClient(nil, db)
	first, err := tc.Continue(ctx, "", api.UserMessage("one"), api.AssistantMessage("reply one"))
	require.NoError(t, err)
	second, err := tc.Continue(ctx, first, api.UserMessage("two"), api.AssistantMessage("reply two"))
	require.NoError(t, err)

	history, err := tc.History(ctx, second)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "one", history[0].Text)
	assert.Equal(t, "reply two", history[3].Text)

	// The earlier token still resolves to its own prefix.
	history, err = tc.History(ctx, first)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestConversations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c, err := db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, db.AppendTurn(ctx, "c1", models.UserTurn("first")))
	require.NoError(t, db.SetTitle(ctx, "c1", "Pricing"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, db.AppendTurn(ctx, "c2", models.UserTurn("second")))

	c, err = db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Pricing", c.Title)
	assert.False(t, c.CreatedAt.IsZero())

	list, err := db.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID, "most recently updated first")

	require.NoError(t, db.DeleteConversation(ctx, "c1"))
	turns, err := db.ListTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)
	c, err = db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestInsights(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id1, err := db.AddInsight(ctx, "c1", "first insight")
	require.NoError(t, err)
	id2, err := db.AddInsight(ctx, "c2", "second insight")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	c1, err := db.ListInsights(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, c1, 1)
	assert.Equal(t, "first insight", c1[0].Content)
	assert.Equal(t, "c1", c1[0].ConversationID)

	all, err := db.ListInsights(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPurgeOldConversations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	old := models.UserTurn("old")
	old.CreatedAt = time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, db.AppendTurn(ctx, "old", old))
	_, err := db.Exec(ctx, "UPDATE conversations SET updated_at = ? WHERE id = 'old'", formatTime(old.CreatedAt))
	require.NoError(t, err)
	require.NoError(t, db.AppendTurn(ctx, "new", models.UserTurn("new")))

	n, err := db.PurgeOldConversations(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := db.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
}
