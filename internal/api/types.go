package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a completion message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a completion prompt.
type Message struct {
	Role Role
	Text string
}

// SystemMessage, UserMessage and AssistantMessage build prompt entries.
func SystemMessage(text string) Message    { return Message{Role: RoleSystem, Text: text} }
func UserMessage(text string) Message      { return Message{Role: RoleUser, Text: text} }
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Text: text} }

// CompletionRequest is a provider-neutral completion call.
type CompletionRequest struct {
	// Model overrides the client's configured model when set.
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int64
	// Schema selects structured mode. The response carries JSON matching it.
	Schema *Schema
	// Thread is a continuation token. When set on a ThreadProvider the
	// token's history is replayed ahead of Messages.
	Thread string
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	Text         string
	JSON         json.RawMessage
	InputTokens  int64
	OutputTokens int64
}

// Completer is the text completion service the orchestrator talks to.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ThreadProvider is implemented by completers that keep conversation
// history behind an opaque continuation token.
type ThreadProvider interface {
	Completer
	// Continue appends msgs to the thread identified by token and returns a
	// new token. An empty token starts a new thread. The old token stays
	// valid, so a failed request never corrupts a thread.
	Continue(ctx context.Context, token string, msgs ...Message) (string, error)
}

// ServiceError is the single failure signal of the completion service.
type ServiceError struct {
	Provider string
	Cause    error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// splitSystem separates system messages, joined in order, from the
// conversational ones.
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
