package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// ensureConversation inserts the header row for id if missing and bumps
// updated_at.
func ensureConversation(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

// Turn operations

// AppendTurn records turn at the end of conversation id, creating the
// conversation on first use.
func (db *DB) AppendTurn(ctx context.Context, id string, turn models.Turn) error {
	return db.AppendTurns(ctx, id, turn)
}

// AppendTurns records turns at the end of conversation id in a single
// transaction. Either every turn is stored or none is.
func (db *DB) AppendTurns(ctx context.Context, id string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	turns = append([]models.Turn(nil), turns...)
	now := time.Now().UTC()
	for i := range turns {
		if !turns[i].Role.Valid() {
			return fmt.Errorf("append turn: invalid role %q", turns[i].Role)
		}
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := ensureConversation(ctx, tx, id, turns[len(turns)-1].CreatedAt); err != nil {
			return err
		}
		for _, turn := range turns {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO turns (conversation_id, seq, role, text, specialist, created_at)
				VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = ?), ?, ?, ?, ?)
			`, id, id, string(turn.Role), turn.Text, turn.Specialist, formatTime(turn.CreatedAt))
			if err != nil {
				return fmt.Errorf("append turn: %w", err)
			}
		}
		return nil
	})
}

// ListTurns returns the log of conversation id in append order. An unknown
// id has an empty log.
func (db *DB) ListTurns(ctx context.Context, id string) ([]models.Turn, error) {
	rows, err := db.Query(ctx, `
		SELECT role, text, specialist, created_at
		FROM turns WHERE conversation_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var role, createdAt string
		if err := rows.Scan(&role, &t.Text, &t.Specialist, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = models.Role(role)
		t.CreatedAt, _ = parseTime(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return turns, nil
}

// Token operations

// SaveToken records the thread token of conversation id.
func (db *DB) SaveToken(ctx context.Context, id, token string) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := ensureConversation(ctx, tx, id, time.Now()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE conversations SET thread_token = ? WHERE id = ?", token, id); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		return nil
	})
}

// LoadToken returns the thread token of conversation id, or "".
func (db *DB) LoadToken(ctx context.Context, id string) (string, error) {
	var token string
	err := db.QueryRow(ctx, "SELECT thread_token FROM conversations WHERE id = ?", id).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// Thread operations

// PutThread stores one continuation entry.
func (db *DB) PutThread(ctx context.Context, entry models.ThreadEntry) error {
	turnsJSON, err := json.Marshal(entry.Turns)
	if err != nil {
		return fmt.Errorf("marshal thread turns: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO threads (token, parent, turns, created_at) VALUES (?, ?, ?, ?)
	`, entry.Token, entry.Parent, string(turnsJSON), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("put thread: %w", err)
	}
	return nil
}

// GetThread returns the entry for token, or api.ErrUnknownThread.
func (db *DB) GetThread(ctx context.Context, token string) (models.ThreadEntry, error) {
	var entry models.ThreadEntry
	var turnsJSON, createdAt string
	err := db.QueryRow(ctx, `
		SELECT token, parent, turns, created_at FROM threads WHERE token = ?
	`, token).Scan(&entry.Token, &entry.Parent, &turnsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ThreadEntry{}, fmt.Errorf("%w: %s", api.ErrUnknownThread, token)
	}
	if err != nil {
		return models.ThreadEntry{}, fmt.Errorf("get thread: %w", err)
	}

	if err := json.Unmarshal([]byte(turnsJSON), &entry.Turns); err != nil {
		return models.ThreadEntry{}, fmt.Errorf("unmarshal thread turns: %w", err)
	}
	entry.CreatedAt, _ = parseTime(createdAt)
	return entry, nil
}

// Conversation operations

// GetConversation retrieves a conversation header by ID. Returns nil when
// the conversation does not exist.
func (db *DB) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	row := db.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?
	`, id)

	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// ListConversations lists all conversations, most recently updated first.
func (db *DB) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := db.Query(ctx, `
		SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*models.Conversation, error) {
	var c models.Conversation
	var createdAt, updatedAt string
	if err := s.Scan(&c.ID, &c.Title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = parseTime(createdAt)
	c.UpdatedAt, _ = parseTime(updatedAt)
	return &c, nil
}

// SetTitle sets the title of conversation id, creating it if needed.
func (db *DB) SetTitle(ctx context.Context, id, title string) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := ensureConversation(ctx, tx, id, time.Now()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE conversations SET title = ? WHERE id = ?", title, id); err != nil {
			return fmt.Errorf("set title: %w", err)
		}
		return nil
	})
}

// DeleteConversation deletes a conversation with its turns and insights.
func (db *DB) DeleteConversation(ctx context.Context, id string) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM turns WHERE conversation_id = ?",
			"DELETE FROM insights WHERE conversation_id = ?",
			"DELETE FROM conversations WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete conversation: %w", err)
			}
		}
		return nil
	})
}

// Insight operations

// AddInsight records content against conversation id and returns its row id.
func (db *DB) AddInsight(ctx context.Context, conversationID, content string) (int64, error) {
	var id int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		if err := ensureConversation(ctx, tx, conversationID, now); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO insights (conversation_id, content, created_at) VALUES (?, ?, ?)
		`, conversationID, content, formatTime(now))
		if err != nil {
			return fmt.Errorf("add insight: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get insight id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListInsights returns the insights of conversationID in capture order, or
// every insight when conversationID is empty.
func (db *DB) ListInsights(ctx context.Context, conversationID string) ([]models.Insight, error) {
	var rows *sql.Rows
	var err error

	if conversationID != "" {
		rows, err = db.Query(ctx, `
			SELECT id, conversation_id, content, created_at
			FROM insights WHERE conversation_id = ? ORDER BY id
		`, conversationID)
	} else {
		rows, err = db.Query(ctx, `
			SELECT id, conversation_id, content, created_at FROM insights ORDER BY id
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var insights []models.Insight
	for rows.Next() {
		var in models.Insight
		var createdAt string
		if err := rows.Scan(&in.ID, &in.ConversationID, &in.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.CreatedAt, _ = parseTime(createdAt)
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	return insights, nil
}
