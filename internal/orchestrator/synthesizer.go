package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// synthesisDecision is the structured shape of the merge call.
type synthesisDecision struct {
	Reply          string `json:"reply" jsonschema:"description=The merged reply for the solopreneur"`
	LeadSpecialist string `json:"lead_specialist" jsonschema:"description=Id of the specialist the reply builds on most"`
}

var synthesisSchema = api.MustSchemaFor("merge_answers", "Return the merged reply and its lead specialist.", &synthesisDecision{})

// Synthesis is the merged text plus, when known, the specialist it is
// structurally attributed to.
type Synthesis struct {
	Text string
	// Lead is a dispatched specialist id, or empty.
	Lead string
	// Merged reports whether a merge call was made.
	Merged bool
}

// Synthesizer merges several specialist answers into one reply.
type Synthesizer struct {
	registry   *specialist.Registry
	completer  api.Completer
	cfg        SynthesisConfig
	wordBudget int
	model      string
	timeout    timeoutFunc
	events     EventHandler
	logger     *zap.Logger
}

// Synthesize returns the single answer verbatim, or merges two or more
// answers with one completion call.
func (s *Synthesizer) Synthesize(ctx context.Context, query, sharedContext string, results []models.DispatchResult) (Synthesis, error) {
	switch len(results) {
	case 0:
		return Synthesis{}, &SynthesisError{Err: ErrNoResults}
	case 1:
		return Synthesis{Text: results[0].Text}, nil
	}

	defs := make(map[string]models.SpecialistDef, len(results))
	for _, r := range results {
		if def, err := s.registry.Get(r.Specialist); err == nil {
			defs[r.Specialist] = def
		}
	}
	system, user := buildSynthesisPrompt(defs, query, sharedContext, results, s.wordBudget, s.cfg.Structured)

	req := api.CompletionRequest{
		Model:       s.model,
		Messages:    []api.Message{api.SystemMessage(system), api.UserMessage(user)},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
	if s.cfg.Structured {
		req.Schema = synthesisSchema
	}

	s.events.emit(Event{Type: EventSynthesisStarted})
	start := time.Now()

	callCtx, cancel := s.timeout(ctx)
	defer cancel()

	resp, err := complete(callCtx, s.completer, req)
	if err == nil {
		var out Synthesis
		out, err = s.parse(resp, results)
		if err == nil {
			elapsed := time.Since(start)
			s.events.emit(Event{Type: EventSynthesisFinished, Specialist: out.Lead, Duration: elapsed})
			s.logger.Debug("synthesized answers",
				zap.Int("answers", len(results)),
				zap.String("lead", out.Lead),
				zap.Duration("duration", elapsed))
			return out, nil
		}
	}

	s.events.emit(Event{Type: EventSynthesisFinished, Duration: time.Since(start), Error: err})
	return Synthesis{}, &SynthesisError{Err: err}
}

func (s *Synthesizer) parse(resp *api.CompletionResponse, results []models.DispatchResult) (Synthesis, error) {
	if !s.cfg.Structured {
		if strings.TrimSpace(resp.Text) == "" {
			return Synthesis{}, errors.New("empty reply")
		}
		return Synthesis{Text: resp.Text, Merged: true}, nil
	}

	var decision synthesisDecision
	if err := decodeStructured(resp, &decision); err != nil {
		return Synthesis{}, fmt.Errorf("invalid synthesis data: %w", err)
	}
	if strings.TrimSpace(decision.Reply) == "" {
		return Synthesis{}, errors.New("empty reply")
	}

	out := Synthesis{Text: decision.Reply, Merged: true}
	if id, ok := s.registry.Lookup(decision.LeadSpecialist); ok {
		for _, r := range results {
			if r.Specialist == id {
				out.Lead = id
				break
			}
		}
	}
	if out.Lead == "" && decision.LeadSpecialist != "" {
		s.logger.Debug("ignoring lead specialist that was not dispatched",
			zap.String("lead", decision.LeadSpecialist))
	}
	return out, nil
}
