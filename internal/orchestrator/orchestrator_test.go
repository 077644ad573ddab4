package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/api/apitest"
	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

func newTestOrchestrator(t *testing.T, c api.Completer, mutate func(*Config)) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := New(Deps{Registry: testRegistry(t), Completer: c}, cfg)
	require.NoError(t, err)
	return o
}

func TestOrchestrator_Greet(t *testing.T) {
	fake := apitest.New()
	o := newTestOrchestrator(t, fake, nil)

	reply := o.Greet()
	assert.Equal(t, "Welcome, solopreneur. What are you creating — and what's holding you back?", reply.Text)
	assert.Equal(t, models.OrchestratorID, reply.Specialist)
	assert.Zero(t, fake.CallCount())
}

func TestOrchestrator_RaisePricesScenario(t *testing.T) {
	fake := script{
		route: apitest.Step{JSON: `{"reasoning":"pricing and how to announce it","selected_agents":["strategy","media"]}`},
		specialists: map[string]apitest.Step{
			"strategy": {Text: "Strategy: Raise prices for new clients first."},
			"media":    {Text: "Media: Tell the story behind the new price."},
		},
		synthesis: apitest.Step{Text: "**Strategy:** Raise prices for new clients and explain the value openly."},
	}.fake()
	o := newTestOrchestrator(t, fake, nil)
	state := conversation.NewState("c1", conversation.ModeTurns)

	resp := o.Respond(context.Background(), "I don't know if I should raise my prices.", state)
	require.NoError(t, resp.Err)

	assert.Equal(t, []string{"strategy", "media"}, resp.Selection.Specialists)
	assert.Equal(t, 1, countCalls(fake, isSynthesis), "synthesizer called exactly once")
	assert.Equal(t, 2, countCalls(fake, func(r api.CompletionRequest) bool { return specialistOf(r) != "" }))
	assert.Equal(t, 4, fake.CallCount())
	assert.Equal(t, "**Strategy:** Raise prices for new clients and explain the value openly.", resp.Reply)
	assert.Equal(t, "strategy", resp.Specialist)
	assert.Len(t, resp.State.Turns, 2)
}

func TestOrchestrator_MergedReplyWithoutLabel(t *testing.T) {
	fake := script{
		route:     apitest.Step{JSON: `{"reasoning":"r","selected_agents":["strategy","media"]}`},
		synthesis: apitest.Step{Text: "Balance value and visibility."},
	}.fake()
	o := newTestOrchestrator(t, fake, nil)

	resp := o.Respond(context.Background(), "I don't know if I should raise my prices.", conversation.NewState("c1", conversation.ModeTurns))
	require.NoError(t, resp.Err)
	assert.Equal(t, models.OrchestratorID, resp.Specialist)
}

func TestOrchestrator_StructuredSynthesisAttribution(t *testing.T) {
	fake := script{
		route:     apitest.Step{JSON: `{"reasoning":"r","selected_agents":["strategy","media"]}`},
		synthesis: apitest.Step{JSON: `{"reply":"Strategy: but media leads here.","lead_specialist":"media"}`},
	}.fake()
	o := newTestOrchestrator(t, fake, func(c *Config) { c.Synthesis.Structured = true })

	resp := o.Respond(context.Background(), "q", conversation.NewState("c1", conversation.ModeTurns))
	require.NoError(t, resp.Err)
	assert.Equal(t, "media", resp.Specialist, "structural attribution beats the text marker")
}

func TestOrchestrator_SingleSpecialistBypass(t *testing.T) {
	fake := script{
		route:       apitest.Step{JSON: `{"reasoning":"creative","selected_agents":["creative"]}`},
		specialists: map[string]apitest.Step{"creative": {Text: "Lead with your hands-on process."}},
	}.fake()
	o := newTestOrchestrator(t, fake, nil)

	resp := o.Respond(context.Background(), "How should my brand feel?", conversation.NewState("c1", conversation.ModeTurns))
	require.NoError(t, resp.Err)

	assert.Equal(t, "Lead with your hands-on process.", resp.Reply)
	assert.Equal(t, "creative", resp.Specialist)
	assert.Zero(t, countCalls(fake, isSynthesis))
	assert.Equal(t, 2, fake.CallCount())
}

func TestOrchestrator_ClassifierFailureUsesDefault(t *testing.T) {
	for i := 0; i < 3; i++ {
		fake := script{route: apitest.Step{Err: errors.New("unavailable")}}.fake()
		o := newTestOrchestrator(t, fake, nil)

		resp := o.Respond(context.Background(), "q", conversation.NewState("c1", conversation.ModeTurns))
		require.NoError(t, resp.Err)
		assert.True(t, resp.Selection.Fallback)
		assert.Equal(t, []string{"strategy"}, resp.Selection.Specialists)
		assert.Equal(t, "strategy", resp.Specialist)
		assert.Equal(t, "strategy answer", resp.Reply)
	}
}

func TestOrchestrator_DispatchTimeoutApology(t *testing.T) {
	fake := script{
		route:       apitest.Step{JSON: `{"reasoning":"r","selected_agents":["strategy","media"]}`},
		specialists: map[string]apitest.Step{"media": {Text: "late", Delay: 5 * time.Second}},
	}.fake()
	o := newTestOrchestrator(t, fake, func(c *Config) { c.Timeout = 30 * time.Millisecond })

	state := conversation.NewState("c1", conversation.ModeTurns)
	state.Turns = []models.Turn{models.UserTurn("before"), models.SpecialistTurn("strategy", "earlier")}

	resp := o.Respond(context.Background(), "q", state)

	assert.Equal(t, ApologyReply, resp.Reply)
	assert.Equal(t, models.OrchestratorID, resp.Specialist)
	assert.Equal(t, state, resp.State, "state unchanged on failure")

	var derr *DispatchError
	require.ErrorAs(t, resp.Err, &derr)
	assert.Equal(t, "media", derr.Specialist)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
	assert.Zero(t, countCalls(fake, isSynthesis))
}

func TestOrchestrator_SingleDispatchTimeoutApology(t *testing.T) {
	fake := script{
		route:       apitest.Step{JSON: `{"reasoning":"r","selected_agents":["production"]}`},
		specialists: map[string]apitest.Step{"production": {Text: "late", Delay: 5 * time.Second}},
	}.fake()
	o := newTestOrchestrator(t, fake, func(c *Config) { c.Timeout = 30 * time.Millisecond })
	state := conversation.NewState("c1", conversation.ModeTurns)

	resp := o.Respond(context.Background(), "q", state)

	assert.Equal(t, ApologyReply, resp.Reply)
	assert.Equal(t, models.OrchestratorID, resp.Specialist)
	assert.Equal(t, state, resp.State)
	assert.Equal(t, []string{"production"}, resp.Selection.Specialists)

	var derr *DispatchError
	require.ErrorAs(t, resp.Err, &derr)
	assert.Equal(t, "production", derr.Specialist)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
	assert.Zero(t, countCalls(fake, isSynthesis))
}

// nilCompleter reports success without a response.
type nilCompleter struct{}

func (nilCompleter) Complete(context.Context, api.CompletionRequest) (*api.CompletionResponse, error) {
	return nil, nil
}

func TestNilResponseIsAFailure(t *testing.T) {
	ctx := context.Background()

	sel := newTestClassifier(t, nilCompleter{}, ClassifierConfig{MaxTokens: 300}, nil).Classify(ctx, "q", "")
	assert.True(t, sel.Fallback)
	assert.Equal(t, []string{"strategy"}, sel.Specialists)

	d := newTestDispatcher(t, nilCompleter{}, allOrNothing(2), nil)
	_, err := d.Dispatch(ctx, dispatchInput{selection: selectionOf("strategy"), query: "q"})
	assert.ErrorIs(t, err, ErrNoResponse)

	s := newTestSynthesizer(t, nilCompleter{}, SynthesisConfig{MaxTokens: 1000})
	_, err = s.Synthesize(ctx, "q", "", twoAnswers)
	var serr *SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrNoResponse)

	resp := newTestOrchestrator(t, nilCompleter{}, nil).Respond(ctx, "q", conversation.NewState("c1", conversation.ModeTurns))
	assert.Equal(t, ApologyReply, resp.Reply)
	assert.ErrorIs(t, resp.Err, ErrNoResponse)
}

func TestOrchestrator_SynthesisFailureApology(t *testing.T) {
	fake := script{
		route:     apitest.Step{JSON: `{"reasoning":"r","selected_agents":["strategy","media"]}`},
		synthesis: apitest.Step{Err: errors.New("overloaded")},
	}.fake()
	o := newTestOrchestrator(t, fake, nil)
	state := conversation.NewState("c1", conversation.ModeTurns)

	resp := o.Respond(context.Background(), "q", state)
	assert.Equal(t, ApologyReply, resp.Reply)
	assert.Empty(t, resp.State.Turns)
	var serr *SynthesisError
	assert.ErrorAs(t, resp.Err, &serr)
	assert.Equal(t, []string{"strategy", "media"}, resp.Selection.Specialists)
}

func TestOrchestrator_RunReturnsError(t *testing.T) {
	fake := script{specialists: map[string]apitest.Step{"strategy": {Err: errors.New("down")}}}.fake()
	o := newTestOrchestrator(t, fake, nil)

	_, err := o.Run(context.Background(), "q", conversation.NewState("c1", conversation.ModeTurns))
	var derr *DispatchError
	assert.ErrorAs(t, err, &derr)
}

func TestOrchestrator_AppendOnlyState(t *testing.T) {
	fake := script{route: apitest.Step{JSON: `{"reasoning":"r","selected_agents":["media"]}`}}.fake()
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()

	s0 := conversation.NewState("c1", conversation.ModeTurns)
	r1 := o.Respond(ctx, "first", s0)
	require.NoError(t, r1.Err)
	r2 := o.Respond(ctx, "second", r1.State)
	require.NoError(t, r2.Err)

	assert.Empty(t, s0.Turns)
	require.Len(t, r1.State.Turns, 2)
	require.Len(t, r2.State.Turns, 4)
	assert.Equal(t, r1.State.Turns, r2.State.Turns[:2])
	assert.Equal(t, models.RoleUser, r2.State.Turns[2].Role)
	assert.Equal(t, "second", r2.State.Turns[2].Text)
	assert.Equal(t, "media", r2.State.Turns[3].Specialist)
}

func TestOrchestrator_StoresTruncatedQuery(t *testing.T) {
	fake := script{route: apitest.Step{JSON: `{"reasoning":"r","selected_agents":["media"]}`}}.fake()
	o := newTestOrchestrator(t, fake, nil)

	long := strings.Repeat("a", 700)
	resp := o.Respond(context.Background(), long, conversation.NewState("c1", conversation.ModeTurns))
	require.NoError(t, resp.Err)

	want := strings.Repeat("a", 500) + "..."
	assert.Equal(t, want, resp.State.Turns[0].Text)
	for _, req := range fake.Calls() {
		assert.NotContains(t, apitest.LastUser(req), strings.Repeat("a", 501))
	}
}

func TestOrchestrator_HistoryWindowReachesSpecialists(t *testing.T) {
	fake := script{route: apitest.Step{JSON: `{"reasoning":"r","selected_agents":["media"]}`}}.fake()
	o := newTestOrchestrator(t, fake, nil)

	state := conversation.NewState("c1", conversation.ModeTurns)
	for i := 0; i < 12; i++ {
		state.Turns = append(state.Turns, models.UserTurn("old"))
	}
	resp := o.Respond(context.Background(), "now", state)
	require.NoError(t, resp.Err)

	for _, req := range fake.Calls() {
		if specialistOf(req) == "media" {
			// instructions + selection note + 10 history turns + query
			assert.Len(t, req.Messages, 13)
		}
	}
}

func TestOrchestrator_LongReplyIsShaped(t *testing.T) {
	long := strings.Repeat("Sentence with five words. ", 100)
	fake := script{
		route:       apitest.Step{JSON: `{"reasoning":"r","selected_agents":["production"]}`},
		specialists: map[string]apitest.Step{"production": {Text: long}},
	}.fake()
	o := newTestOrchestrator(t, fake, nil)

	resp := o.Respond(context.Background(), "q", conversation.NewState("c1", conversation.ModeTurns))
	require.NoError(t, resp.Err)
	assert.True(t, resp.Condensed)
	assert.LessOrEqual(t, len(strings.Fields(resp.Reply)), DefaultWordBudget)
	assert.True(t, strings.HasSuffix(resp.Reply, "..."))
	assert.Equal(t, resp.Reply, resp.State.Turns[1].Text)
}

func TestOrchestrator_SharedContext(t *testing.T) {
	fake := script{route: apitest.Step{JSON: `{"reasoning":"r","selected_agents":["strategy","media"]}`}, synthesis: apitest.Step{Text: "ok"}}.fake()
	o := newTestOrchestrator(t, fake, nil)

	resp := o.Respond(context.Background(), "q", conversation.NewState("c1", conversation.ModeTurns),
		WithSharedContext("Context about this solopreneur: ceramicist"))
	require.NoError(t, resp.Err)

	for _, req := range fake.Calls() {
		all := apitest.System(req) + apitest.LastUser(req)
		assert.Contains(t, all, "ceramicist")
	}
}

func TestOrchestrator_ThreadMode(t *testing.T) {
	fake := script{route: apitest.Step{JSON: `{"reasoning":"r","selected_agents":["media"]}`}}.fake()
	threads := api.NewThreadClient(fake, api.NewMemoryThreadStore())
	o := newTestOrchestrator(t, threads, nil)
	ctx := context.Background()

	r1 := o.Respond(ctx, "first", conversation.NewState("c1", conversation.ModeThread))
	require.NoError(t, r1.Err)
	require.NotEmpty(t, r1.State.Token)

	r2 := o.Respond(ctx, "second", r1.State)
	require.NoError(t, r2.Err)
	assert.NotEqual(t, r1.State.Token, r2.State.Token)

	// The second specialist call saw the first exchange through the thread.
	var last api.CompletionRequest
	for _, req := range fake.Calls() {
		if specialistOf(req) == "media" {
			last = req
		}
	}
	texts := make([]string, 0, len(last.Messages))
	for _, m := range last.Messages {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "first")
	assert.Contains(t, texts, "media answer")
	assert.Equal(t, "second", apitest.LastUser(last))
}

func TestOrchestrator_Events(t *testing.T) {
	var (
		mu    sync.Mutex
		types []EventType
	)
	fake := script{
		route:     apitest.Step{JSON: `{"reasoning":"r","selected_agents":["strategy","media"]}`},
		synthesis: apitest.Step{Text: "ok"},
	}.fake()
	o, err := New(Deps{
		Registry:  testRegistry(t),
		Completer: fake,
		OnEvent: func(e Event) {
			mu.Lock()
			defer mu.Unlock()
			types = append(types, e.Type)
		},
	}, DefaultConfig())
	require.NoError(t, err)

	resp := o.Respond(context.Background(), "q", conversation.NewState("c1", conversation.ModeTurns))
	require.NoError(t, resp.Err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventClassified, types[0])
	assert.Equal(t, EventSynthesisFinished, types[len(types)-1])
	assert.Len(t, types, 7)
}

func TestNew_Validation(t *testing.T) {
	unsealed := specialist.NewRegistry()
	require.NoError(t, unsealed.Register(models.SpecialistDef{ID: "strategy"}))

	tests := []struct {
		name   string
		deps   Deps
		mutate func(*Config)
	}{
		{"no registry", Deps{Completer: apitest.New()}, nil},
		{"unsealed registry", Deps{Registry: unsealed, Completer: apitest.New()}, nil},
		{"no completer", Deps{Registry: testRegistry(t)}, nil},
		{"unknown default", Deps{Registry: testRegistry(t), Completer: apitest.New()}, func(c *Config) { c.DefaultSpecialist = "legal" }},
		{"bad policy", Deps{Registry: testRegistry(t), Completer: apitest.New()}, func(c *Config) { c.Dispatch.Policy = "some" }},
		{"zero concurrency", Deps{Registry: testRegistry(t), Completer: apitest.New()}, func(c *Config) { c.Dispatch.Concurrency = 0 }},
		{"zero budget", Deps{Registry: testRegistry(t), Completer: apitest.New()}, func(c *Config) { c.WordBudget = 0 }},
		{"zero timeout", Deps{Registry: testRegistry(t), Completer: apitest.New()}, func(c *Config) { c.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := New(tt.deps, cfg)
			assert.Error(t, err)
		})
	}
}

func TestNew_UnknownDefaultIsUnknownSpecialist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultSpecialist = "legal"
	_, err := New(Deps{Registry: testRegistry(t), Completer: apitest.New()}, cfg)
	assert.ErrorIs(t, err, specialist.ErrUnknownSpecialist)
}
