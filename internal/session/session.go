// Package session ties the pipeline to persistence. It loads a
// conversation, runs one request under a per-conversation lock, commits
// the new turns and records the title and any insight the reply carries.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/internal/orchestrator"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

const (
	titleLimit       = 30
	insightMinLength = 100
	insightLimit     = 200
	ellipsis         = "..."
)

var insightKeywords = []string{"insight", "discover", "realize", "clarity"}

// Pipeline is the part of the orchestrator a session drives.
type Pipeline interface {
	Greet() models.FinalReply
	Respond(ctx context.Context, query string, state conversation.State, opts ...orchestrator.RequestOption) *orchestrator.Response
}

// Store is the persistence a session needs.
type Store interface {
	conversation.BatchStore
	SetTitle(ctx context.Context, id, title string) error
	AddInsight(ctx context.Context, conversationID, content string) (int64, error)
}

// Config controls session behavior.
type Config struct {
	// Mode is applied to every conversation the service loads.
	Mode conversation.Mode
	// SharedContext is passed to every request, typically the user profile.
	SharedContext string
	// FreeMessages caps the messages this service answers. 0 is unlimited.
	FreeMessages int
}

// Reply is the outcome of Send.
type Reply struct {
	models.FinalReply
	ConversationID string
	// Refused is set when the quota rejected the message. The pipeline
	// was not called and nothing was stored.
	Refused bool
	// Remaining is the number of free messages left, or -1 when unlimited.
	Remaining int
	// Err is the pipeline failure behind an apology reply.
	Err error
}

// Service runs conversations against a pipeline and a store.
type Service struct {
	pipeline Pipeline
	store    Store
	cfg      Config
	quota    *Quota
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Service. A nil logger is replaced with a no-op logger.
func New(pipeline Pipeline, store Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = conversation.ModeTurns
	}
	return &Service{
		pipeline: pipeline,
		store:    store,
		cfg:      cfg,
		quota:    NewQuota(cfg.FreeMessages),
		logger:   logger.Named("session"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// NewConversationID returns a fresh conversation id.
func NewConversationID() string {
	return uuid.NewString()
}

// Greet returns the opening line.
func (s *Service) Greet() models.FinalReply {
	return s.pipeline.Greet()
}

// Quota returns the service's free-message quota.
func (s *Service) Quota() *Quota {
	return s.quota
}

// Load returns the current state of conversation id.
func (s *Service) Load(ctx context.Context, id string) (conversation.State, error) {
	return conversation.Load(ctx, s.store, id, s.cfg.Mode)
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Send answers text in conversation id. Requests for the same conversation
// are serialized. extraContext, when set, is appended to the configured
// shared context for this request only.
func (s *Service) Send(ctx context.Context, id, text, extraContext string) (*Reply, error) {
	if id == "" {
		return nil, fmt.Errorf("send: conversation id is required")
	}

	remaining, ok := s.quota.Take()
	if !ok {
		s.logger.Info("free message limit reached", zap.String("conversation", id))
		return &Reply{
			FinalReply:     models.FinalReply{Text: QuotaRefusal, Specialist: models.OrchestratorID},
			ConversationID: id,
			Refused:        true,
			Remaining:      0,
		}, nil
	}

	unlock := s.lock(id)
	defer unlock()

	before, err := conversation.Load(ctx, s.store, id, s.cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	resp := s.pipeline.Respond(ctx, text, before, orchestrator.WithSharedContext(joinContext(s.cfg.SharedContext, extraContext)))
	reply := &Reply{
		FinalReply:     resp.FinalReply(),
		ConversationID: id,
		Remaining:      remaining,
		Err:            resp.Err,
	}
	if resp.Err != nil {
		return reply, nil
	}

	if err := conversation.Commit(ctx, s.store, before, resp.State); err != nil {
		return nil, fmt.Errorf("commit conversation: %w", err)
	}

	if before.Len() == 0 {
		if err := s.store.SetTitle(ctx, id, Title(text)); err != nil {
			return nil, fmt.Errorf("set title: %w", err)
		}
	}

	if insight, ok := Insight(reply.Text); ok {
		if _, err := s.store.AddInsight(ctx, id, insight); err != nil {
			return nil, fmt.Errorf("add insight: %w", err)
		}
		s.logger.Debug("captured insight", zap.String("conversation", id))
	}

	return reply, nil
}

func joinContext(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// Title derives a conversation title from its first message.
func Title(firstMessage string) string {
	return clip(strings.TrimSpace(firstMessage), titleLimit)
}

// Insight reports whether reply is worth keeping and returns the stored
// excerpt.
func Insight(reply string) (string, bool) {
	if len([]rune(reply)) <= insightMinLength {
		return "", false
	}
	lower := strings.ToLower(reply)
	for _, kw := range insightKeywords {
		if strings.Contains(lower, kw) {
			return clip(reply, insightLimit), true
		}
	}
	return "", false
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}
