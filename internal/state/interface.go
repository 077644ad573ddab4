package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// ConversationStore handles conversation headers.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	SetTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
}

// InsightStore handles captured insights.
type InsightStore interface {
	AddInsight(ctx context.Context, conversationID, content string) (int64, error)
	ListInsights(ctx context.Context, conversationID string) ([]models.Insight, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is everything the session layer persists. The pipeline itself only
// sees the conversation.Store and api.ThreadStore parts.
type Store interface {
	io.Closer
	Migrator
	conversation.BatchStore
	conversation.TokenStore
	api.ThreadStore
	ConversationStore
	InsightStore
	PurgeOldConversations(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store             = (*DB)(nil)
	_ ConversationStore = (*DB)(nil)
	_ InsightStore      = (*DB)(nil)
)
