package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// Dispatcher runs the selected specialists and collects their answers in
// selection order.
type Dispatcher struct {
	registry  *specialist.Registry
	completer api.Completer
	cfg       DispatchConfig
	model     string
	timeout   timeoutFunc
	events    EventHandler
	logger    *zap.Logger
}

// dispatchInput is everything a specialist prompt is built from.
type dispatchInput struct {
	selection     models.Selection
	query         string
	sharedContext string
	history       conversation.History
}

// Dispatch calls every specialist in in.selection. Under PolicyAllOrNothing
// the first failure cancels the remaining calls and fails the dispatch.
// Under PolicyPartial failures are dropped unless all calls failed.
func (d *Dispatcher) Dispatch(ctx context.Context, in dispatchInput) ([]models.DispatchResult, error) {
	ids := in.selection.Specialists
	if len(ids) == 0 {
		return nil, &DispatchError{Err: ErrNoResults}
	}

	results := make([]*models.DispatchResult, len(ids))
	var (
		mu       sync.Mutex
		failures []*DispatchError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	for i, id := range ids {
		g.Go(func() error {
			text, err := d.call(gctx, id, in)
			if err != nil {
				derr := &DispatchError{Specialist: id, Err: err}
				if d.cfg.Policy == PolicyPartial {
					mu.Lock()
					failures = append(failures, derr)
					mu.Unlock()
					return nil
				}
				return derr
			}
			results[i] = &models.DispatchResult{Specialist: id, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.DispatchResult, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	if len(out) == 0 {
		if len(failures) > 0 {
			return nil, failures[0]
		}
		return nil, &DispatchError{Err: ErrNoResults}
	}
	for _, f := range failures {
		d.logger.Warn("dropping failed specialist",
			zap.String("specialist", f.Specialist),
			zap.Error(f.Err))
	}
	return out, nil
}

// call runs one specialist completion.
func (d *Dispatcher) call(ctx context.Context, id string, in dispatchInput) (string, error) {
	def, err := d.registry.Get(id)
	if err != nil {
		return "", err
	}

	d.events.emit(Event{Type: EventDispatchStarted, Specialist: id})
	start := time.Now()

	callCtx, cancel := d.timeout(ctx)
	defer cancel()

	resp, err := complete(callCtx, d.completer, api.CompletionRequest{
		Model:       d.model,
		Messages:    specialistMessages(def, in),
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
		Thread:      in.history.Token,
	})
	elapsed := time.Since(start)
	if err == nil && resp.Text == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		d.events.emit(Event{Type: EventDispatchFailed, Specialist: id, Duration: elapsed, Error: err})
		d.logger.Debug("specialist failed",
			zap.String("specialist", id),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return "", err
	}

	d.events.emit(Event{Type: EventDispatchFinished, Specialist: id, Duration: elapsed})
	d.logger.Debug("specialist answered",
		zap.String("specialist", id),
		zap.Duration("duration", elapsed),
		zap.Int64("output_tokens", resp.OutputTokens))
	return resp.Text, nil
}

// specialistMessages assembles the prompt: instructions, shared context
// and selection note as system messages, then the history window, then
// the query as the final user turn.
func specialistMessages(def models.SpecialistDef, in dispatchInput) []api.Message {
	msgs := make([]api.Message, 0, len(in.history.Turns)+4)
	msgs = append(msgs, api.SystemMessage(def.Instructions))
	if in.sharedContext != "" {
		msgs = append(msgs, api.SystemMessage(contextNote(in.sharedContext)))
	}
	if in.selection.Reasoning != "" {
		msgs = append(msgs, api.SystemMessage(selectionNote(in.selection.Reasoning)))
	}

	for _, turn := range in.history.Turns {
		switch turn.Role {
		case models.RoleUser:
			msgs = append(msgs, api.UserMessage(turn.Text))
		case models.RoleSpecialist:
			msgs = append(msgs, api.AssistantMessage(turn.Text))
		}
	}

	return append(msgs, api.UserMessage(in.query))
}
