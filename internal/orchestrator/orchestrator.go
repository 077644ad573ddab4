package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	// Registry must be sealed.
	Registry  *specialist.Registry
	Completer api.Completer
	// Conversations applies history and length rules. When nil a default
	// manager is built, using Completer for threads if it supports them.
	Conversations *conversation.Manager
	Logger        *zap.Logger
	OnEvent       EventHandler
}

// Orchestrator runs the routing pipeline. It holds no per-request state
// and is safe for concurrent use across conversations.
type Orchestrator struct {
	classifier  *Classifier
	dispatcher  *Dispatcher
	synthesizer *Synthesizer
	shaper      *Shaper
	convs       *conversation.Manager
	registry    *specialist.Registry
	events      EventHandler
	logger      *zap.Logger
}

// Response is the outcome of one request.
type Response struct {
	Reply      string
	Specialist string
	Condensed  bool
	// State is the extended conversation on success and the input state on
	// failure.
	State     conversation.State
	Selection models.Selection
	// Err is the surfaced failure behind an apology reply.
	Err error
}

// FinalReply returns the reply and its attribution.
func (r *Response) FinalReply() models.FinalReply {
	return models.FinalReply{Text: r.Reply, Specialist: r.Specialist, Condensed: r.Condensed}
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	sharedContext string
}

// WithSharedContext adds background every stage of the request sees, such
// as a profile of the user.
func WithSharedContext(text string) RequestOption {
	return func(o *requestOptions) { o.sharedContext = strings.TrimSpace(text) }
}

// New validates deps and cfg and builds an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, errors.New("new orchestrator: registry is required")
	}
	if !deps.Registry.Sealed() {
		return nil, errors.New("new orchestrator: registry must be sealed")
	}
	if deps.Completer == nil {
		return nil, errors.New("new orchestrator: completer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new orchestrator: %w", err)
	}
	if err := deps.Registry.Validate(cfg.DefaultSpecialist); err != nil {
		return nil, fmt.Errorf("new orchestrator: default specialist: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	convs := deps.Conversations
	if convs == nil {
		var threads conversation.Threader
		if tp, ok := deps.Completer.(api.ThreadProvider); ok {
			threads = tp
		}
		convs = conversation.NewManager(conversation.Config{}, threads)
	}

	timeout := func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, cfg.Timeout)
	}

	return &Orchestrator{
		classifier: &Classifier{
			registry:  deps.Registry,
			completer: deps.Completer,
			cfg:       cfg.Classifier,
			defaultID: cfg.DefaultSpecialist,
			model:     cfg.Model,
			timeout:   timeout,
			logger:    logger.Named("classifier"),
		},
		dispatcher: &Dispatcher{
			registry:  deps.Registry,
			completer: deps.Completer,
			cfg:       cfg.Dispatch,
			model:     cfg.Model,
			timeout:   timeout,
			events:    deps.OnEvent,
			logger:    logger.Named("dispatcher"),
		},
		synthesizer: &Synthesizer{
			registry:   deps.Registry,
			completer:  deps.Completer,
			cfg:        cfg.Synthesis,
			wordBudget: cfg.WordBudget,
			model:      cfg.Model,
			timeout:    timeout,
			events:     deps.OnEvent,
			logger:     logger.Named("synthesizer"),
		},
		shaper:   NewShaper(cfg.WordBudget, deps.Registry),
		convs:    convs,
		registry: deps.Registry,
		events:   deps.OnEvent,
		logger:   logger,
	}, nil
}

// Greet returns the opening line of a conversation. No service call is made.
func (o *Orchestrator) Greet() models.FinalReply {
	return models.FinalReply{Text: Greeting, Specialist: models.OrchestratorID}
}

// Registry returns the specialist registry the pipeline routes over.
func (o *Orchestrator) Registry() *specialist.Registry {
	return o.registry
}

// Respond runs the pipeline and never fails: a surfaced error becomes the
// apology reply, attributed to the orchestrator, with state unchanged.
func (o *Orchestrator) Respond(ctx context.Context, query string, state conversation.State, opts ...RequestOption) *Response {
	resp, err := o.Run(ctx, query, state, opts...)
	if err == nil {
		return resp
	}

	o.logger.Error("respond failed",
		zap.String("conversation", state.ID),
		zap.Error(err))

	out := &Response{
		Reply:      ApologyReply,
		Specialist: models.OrchestratorID,
		State:      state,
		Err:        err,
	}
	if resp != nil {
		out.Selection = resp.Selection
	}
	return out
}

// Run is Respond without the apology mapping. On error the returned
// Response, when non-nil, carries only the selection made so far.
func (o *Orchestrator) Run(ctx context.Context, query string, state conversation.State, opts ...RequestOption) (*Response, error) {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	q := o.convs.PrepareQuery(query)
	history := o.convs.Window(state)

	sel := o.classifier.Classify(ctx, q, ro.sharedContext)
	o.events.emit(Event{Type: EventClassified, Specialists: sel.Specialists})
	partial := &Response{State: state, Selection: sel}

	results, err := o.dispatcher.Dispatch(ctx, dispatchInput{
		selection:     sel,
		query:         q,
		sharedContext: ro.sharedContext,
		history:       history,
	})
	if err != nil {
		return partial, err
	}

	merged, err := o.synthesizer.Synthesize(ctx, q, ro.sharedContext, results)
	if err != nil {
		return partial, err
	}

	text, condensed := o.shaper.Shape(merged.Text)
	author := o.shaper.Attribute(results, merged.Lead, text)
	o.logger.Debug("shaped reply",
		zap.Int("words", len(strings.Fields(text))),
		zap.Bool("condensed", condensed),
		zap.String("specialist", author))

	final := models.FinalReply{Text: text, Specialist: author, Condensed: condensed}
	next, err := o.convs.Extend(ctx, state, q, final)
	if err != nil {
		return partial, fmt.Errorf("extend conversation: %w", err)
	}

	return &Response{
		Reply:      text,
		Specialist: author,
		Condensed:  condensed,
		State:      next,
		Selection:  sel,
	}, nil
}
