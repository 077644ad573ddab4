package orchestrator

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/api/apitest"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

var testSpecialists = []models.SpecialistDef{
	{ID: "strategy", Label: "Strategy", Handoff: "Pricing and planning.", Instructions: "You are the strategy specialist."},
	{ID: "creative", Label: "Creative", Handoff: "Brand and messaging.", Instructions: "You are the creative specialist."},
	{ID: "production", Label: "Production", Handoff: "Operations.", Instructions: "You are the production specialist."},
	{ID: "media", Label: "Media", Handoff: "Marketing and audience.", Instructions: "You are the media specialist."},
}

func testRegistry(t *testing.T) *specialist.Registry {
	t.Helper()
	reg := specialist.NewRegistry()
	for _, def := range testSpecialists {
		require.NoError(t, reg.Register(def))
	}
	reg.Seal()
	return reg
}

var specialistPattern = regexp.MustCompile(`You are the (\w+) specialist\.`)

// specialistOf returns the specialist a dispatch request was built for.
func specialistOf(req api.CompletionRequest) string {
	m := specialistPattern.FindStringSubmatch(apitest.System(req))
	if m == nil {
		return ""
	}
	return m[1]
}

func isRouting(req api.CompletionRequest) bool {
	return apitest.Structured(req, routeSchema.Name)
}

func isSynthesis(req api.CompletionRequest) bool {
	return !isRouting(req) && specialistOf(req) == ""
}

// script describes how the fake answers each pipeline stage.
type script struct {
	route       apitest.Step
	specialists map[string]apitest.Step
	synthesis   apitest.Step
}

func (s script) fake() *apitest.Fake {
	return apitest.NewFunc(func(req api.CompletionRequest, _ int) apitest.Step {
		switch {
		case isRouting(req):
			return s.route
		case isSynthesis(req):
			return s.synthesis
		default:
			if step, ok := s.specialists[specialistOf(req)]; ok {
				return step
			}
			return apitest.Step{Text: specialistOf(req) + " answer"}
		}
	})
}

func countCalls(f *apitest.Fake, match func(api.CompletionRequest) bool) int {
	n := 0
	for _, req := range f.Calls() {
		if match(req) {
			n++
		}
	}
	return n
}

func noTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Minute)
}

func newTestClassifier(t *testing.T, c api.Completer, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		registry:  testRegistry(t),
		completer: c,
		cfg:       cfg,
		defaultID: "strategy",
		timeout:   noTimeout,
		logger:    logger,
	}
}

func newTestDispatcher(t *testing.T, c api.Completer, cfg DispatchConfig, events EventHandler) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		registry:  testRegistry(t),
		completer: c,
		cfg:       cfg,
		timeout:   noTimeout,
		events:    events,
		logger:    zap.NewNop(),
	}
}

func newTestSynthesizer(t *testing.T, c api.Completer, cfg SynthesisConfig) *Synthesizer {
	t.Helper()
	return &Synthesizer{
		registry:   testRegistry(t),
		completer:  c,
		cfg:        cfg,
		wordBudget: DefaultWordBudget,
		timeout:    noTimeout,
		logger:     zap.NewNop(),
	}
}
