package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// routeDecision is the structured shape of the routing call.
type routeDecision struct {
	Reasoning      string   `json:"reasoning" jsonschema:"description=Why these specialists were chosen"`
	SelectedAgents []string `json:"selected_agents" jsonschema:"description=Specialist ids in order of relevance"`
}

var routeSchema = api.MustSchemaFor("select_specialists", "Choose which specialists answer the message.", &routeDecision{})

// Classifier decides which specialists handle a query. It never fails:
// any problem with the routing call falls back to the default specialist.
type Classifier struct {
	registry  *specialist.Registry
	completer api.Completer
	cfg       ClassifierConfig
	defaultID string
	model     string
	timeout   timeoutFunc
	logger    *zap.Logger
}

// timeoutFunc derives the context for one completion call.
type timeoutFunc func(context.Context) (context.Context, context.CancelFunc)

// complete calls c and treats a missing response as a service failure.
func complete(ctx context.Context, c api.Completer, req api.CompletionRequest) (*api.CompletionResponse, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNoResponse
	}
	return resp, nil
}

// Classify returns a non-empty selection for query.
func (c *Classifier) Classify(ctx context.Context, query, sharedContext string) models.Selection {
	system, user := buildClassifierPrompt(c.registry.All(), query, sharedContext)

	callCtx, cancel := c.timeout(ctx)
	defer cancel()

	resp, err := complete(callCtx, c.completer, api.CompletionRequest{
		Model:       c.model,
		Messages:    []api.Message{api.SystemMessage(system), api.UserMessage(user)},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Schema:      routeSchema,
	})
	if err != nil {
		return c.fallback(err)
	}

	var decision routeDecision
	if err := decodeStructured(resp, &decision); err != nil {
		return c.fallback(fmt.Errorf("invalid routing data: %w", err))
	}

	ids := c.normalize(decision.SelectedAgents)
	if len(ids) == 0 {
		c.logger.Warn("classifier selected no known specialist",
			zap.Strings("selected", decision.SelectedAgents),
			zap.String("default", c.defaultID))
		return models.Selection{
			Reasoning:   decision.Reasoning,
			Specialists: []string{c.defaultID},
			Fallback:    true,
		}
	}

	return models.Selection{Reasoning: decision.Reasoning, Specialists: ids}
}

func (c *Classifier) fallback(cause error) models.Selection {
	c.logger.Warn("classifier fallback",
		zap.String("cause", cause.Error()),
		zap.String("default", c.defaultID))
	return models.Selection{
		Reasoning:   "fallback: " + cause.Error(),
		Specialists: []string{c.defaultID},
		Fallback:    true,
	}
}

// normalize resolves ids against the registry, dropping unknown ids and
// duplicates while keeping the model's order.
func (c *Classifier) normalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, name := range raw {
		id, ok := c.registry.Lookup(name)
		if !ok {
			c.logger.Debug("dropping unknown specialist", zap.String("id", name))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if c.cfg.MaxSpecialists > 0 && len(ids) == c.cfg.MaxSpecialists {
			break
		}
	}
	return ids
}

// decodeStructured unmarshals the structured payload of resp. Providers
// that answer structured requests in plain text are accepted too, as long
// as the text is a JSON object, optionally fenced.
func decodeStructured(resp *api.CompletionResponse, v any) error {
	if resp == nil {
		return ErrNoResponse
	}
	data := []byte(resp.JSON)
	if len(data) == 0 {
		data = []byte(stripFence(resp.Text))
	}
	if len(data) == 0 {
		return errors.New("empty response")
	}
	return json.Unmarshal(data, v)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
