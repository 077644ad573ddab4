// Package apitest provides a scripted Completer for tests.
package apitest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/soloagency/internal/api"
)

// ErrScriptExhausted is returned when a Fake runs out of steps.
var ErrScriptExhausted = errors.New("apitest: script exhausted")

// Step is one scripted completion outcome.
type Step struct {
	Text  string
	JSON  string
	Err   error
	Delay time.Duration
}

// Responder picks the outcome for a request. n is the zero-based call index.
type Responder func(req api.CompletionRequest, n int) Step

// Fake is a Completer that records every request and answers from a script
// or a Responder. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	calls   []api.CompletionRequest
	steps   []Step
	respond Responder
}

var _ api.Completer = (*Fake)(nil)

// New returns a Fake that answers calls in order with steps.
func New(steps ...Step) *Fake {
	return &Fake{steps: steps}
}

// NewFunc returns a Fake that answers each call with fn.
func NewFunc(fn Responder) *Fake {
	return &Fake{respond: fn}
}

// Complete implements api.Completer.
func (f *Fake) Complete(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error) {
	f.mu.Lock()
	n := len(f.calls)
	req.Messages = append([]api.Message(nil), req.Messages...)
	f.calls = append(f.calls, req)
	var step Step
	switch {
	case f.respond != nil:
		f.mu.Unlock()
		step = f.respond(req, n)
	case n < len(f.steps):
		step = f.steps[n]
		f.mu.Unlock()
	default:
		f.mu.Unlock()
		step = Step{Err: ErrScriptExhausted}
	}

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, &api.ServiceError{Provider: "fake", Cause: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &api.ServiceError{Provider: "fake", Cause: err}
	}

	if step.Err != nil {
		var svc *api.ServiceError
		if errors.As(step.Err, &svc) {
			return nil, step.Err
		}
		return nil, &api.ServiceError{Provider: "fake", Cause: step.Err}
	}

	resp := &api.CompletionResponse{Text: step.Text}
	if step.JSON != "" {
		resp.JSON = []byte(step.JSON)
	}
	return resp, nil
}

// Calls returns a copy of every recorded request.
func (f *Fake) Calls() []api.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.CompletionRequest(nil), f.calls...)
}

// CallCount returns the number of Complete calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// System returns the joined system messages of req.
func System(req api.CompletionRequest) string {
	var parts []string
	for _, m := range req.Messages {
		if m.Role == api.RoleSystem {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// LastUser returns the text of the final user message of req.
func LastUser(req api.CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == api.RoleUser {
			return req.Messages[i].Text
		}
	}
	return ""
}

// Structured reports whether req asked for structured output with the
// named schema.
func Structured(req api.CompletionRequest, name string) bool {
	return req.Schema != nil && req.Schema.Name == name
}
