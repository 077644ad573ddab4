package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

const (
	DefaultWindow      = 10
	DefaultQueryBudget = 500
	// TruncationMarker ends any text that was cut short.
	TruncationMarker = "..."
)

// ErrNoThreadProvider is returned when a thread-mode state is extended
// without a provider to continue the thread.
var ErrNoThreadProvider = errors.New("thread mode requires a thread provider")

// Config tunes the manager. Zero values take the defaults.
type Config struct {
	// Window is how many trailing turns a specialist sees.
	Window int
	// QueryBudget is the maximum query length in runes.
	QueryBudget int
}

// Threader continues provider-side threads.
type Threader interface {
	Continue(ctx context.Context, token string, msgs ...api.Message) (string, error)
}

// Manager applies the conversation rules to State values.
type Manager struct {
	window      int
	queryBudget int
	threads     Threader
}

// NewManager creates a Manager. threads may be nil when no state uses
// ModeThread.
func NewManager(cfg Config, threads Threader) *Manager {
	m := &Manager{window: cfg.Window, queryBudget: cfg.QueryBudget, threads: threads}
	if m.window <= 0 {
		m.window = DefaultWindow
	}
	if m.queryBudget <= 0 {
		m.queryBudget = DefaultQueryBudget
	}
	return m
}

// PrepareQuery applies the input length guard: queries longer than the
// budget keep their first QueryBudget runes followed by the marker.
func (m *Manager) PrepareQuery(q string) string {
	return Truncate(q, m.queryBudget)
}

// Window returns the history for the next specialist call. The returned
// turns are a copy; the state's log is untouched.
func (m *Manager) Window(s State) History {
	if s.Mode == ModeThread && s.Token != "" {
		return History{Token: s.Token}
	}

	turns := s.Turns
	if len(turns) > m.window {
		turns = turns[len(turns)-m.window:]
	}
	return History{Turns: append([]models.Turn(nil), turns...)}
}

// Extend returns a new state with the user turn and the reply appended.
// In thread mode the thread is continued first; if that fails the input
// state is returned unchanged along with the error.
func (m *Manager) Extend(ctx context.Context, s State, user string, reply models.FinalReply) (State, error) {
	next := State{ID: s.ID, Mode: s.Mode, Token: s.Token}

	if s.Mode == ModeThread {
		if m.threads == nil {
			return s, ErrNoThreadProvider
		}
		token, err := m.threads.Continue(ctx, s.Token, api.UserMessage(user), api.AssistantMessage(reply.Text))
		if err != nil {
			return s, fmt.Errorf("continue thread: %w", err)
		}
		next.Token = token
	}

	next.Turns = make([]models.Turn, len(s.Turns), len(s.Turns)+2)
	copy(next.Turns, s.Turns)
	next.Turns = append(next.Turns,
		models.UserTurn(user),
		models.SpecialistTurn(reply.Specialist, reply.Text),
	)
	return next, nil
}

// Truncate cuts s to at most limit runes plus the marker. Text within the
// limit is returned unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + TruncationMarker
}
