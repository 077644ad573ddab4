package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient is a Completer backed by the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	tracker *TokenTracker
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	// APIKey is the Gemini API key. If empty, uses GEMINI_API_KEY env var.
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Tests point it at a local server.
	BaseURL string
}

// NewGeminiClient creates a Gemini completion client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiClient{client: client, model: model, tracker: NewTokenTracker()}, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string {
	return g.model
}

// Tracker returns the token tracker for this client.
func (g *GeminiClient) Tracker() *TokenTracker {
	return g.tracker
}

// Complete runs one GenerateContent call. Structured requests set a JSON
// response schema.
func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	system, msgs := splitSystem(req.Messages)
	if len(msgs) == 0 {
		return nil, &ServiceError{Provider: ProviderGemini, Cause: errors.New("no user message")}
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGeminiSchema(map[string]any{
			"type":       "object",
			"properties": req.Schema.Properties,
			"required":   anySlice(req.Schema.Required),
		})
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, toGeminiContents(msgs), cfg)
	if err != nil {
		return nil, &ServiceError{Provider: ProviderGemini, Cause: err}
	}

	out := &CompletionResponse{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	g.tracker.Add(out.InputTokens, out.OutputTokens)

	if req.Schema != nil {
		raw := strings.TrimSpace(out.Text)
		if raw == "" {
			return nil, &ServiceError{Provider: ProviderGemini, Cause: errors.New("empty structured response")}
		}
		out.JSON = []byte(raw)
	}
	return out, nil
}

func toGeminiContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}

// toGeminiSchema converts a JSON schema fragment into the Gemini schema
// subset: type, description, enum, properties, required, items.
func toGeminiSchema(node map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if t, ok := node["type"].(string); ok {
		s.Type = geminiType(t)
	}
	if d, ok := node["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := node["enum"].([]any); ok {
		for _, v := range enum {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if child, ok := p.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(child)
			}
		}
	}
	if req, ok := node["required"].([]any); ok {
		for _, v := range req {
			if str, ok := v.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	return s
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
