// Package conversation owns conversation state: the append-only turn log,
// the history window handed to specialists, and the input length guard.
package conversation

import (
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// Mode selects how history reaches the completion service.
type Mode string

const (
	// ModeTurns replays the last turns of the log on every call.
	ModeTurns Mode = "turns"
	// ModeThread hands the provider a continuation token instead.
	ModeThread Mode = "thread"
)

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeTurns, ModeThread:
		return true
	default:
		return false
	}
}

// State is one conversation as the pipeline sees it. Values are treated as
// immutable: operations return extended copies.
type State struct {
	ID    string        `json:"id"`
	Mode  Mode          `json:"mode"`
	Turns []models.Turn `json:"turns"`
	// Token is the continuation token in thread mode. When set it
	// supersedes replaying Turns.
	Token string `json:"token,omitempty"`
}

// NewState returns an empty conversation. An invalid mode becomes ModeTurns.
func NewState(id string, mode Mode) State {
	if !mode.Valid() {
		mode = ModeTurns
	}
	return State{ID: id, Mode: mode}
}

// Len returns the number of turns in the log.
func (s State) Len() int {
	return len(s.Turns)
}

// History is the slice of the conversation a specialist call receives.
type History struct {
	Turns []models.Turn
	Token string
}

// Empty reports whether there is no history to send.
func (h History) Empty() bool {
	return len(h.Turns) == 0 && h.Token == ""
}
