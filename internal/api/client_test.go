package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	cfg := ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeSonnet4_20250514,
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
	if client.Provider() != ProviderAnthropic {
		t.Errorf("Provider = %q, want %q", client.Provider(), ProviderAnthropic)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := NewClient(ClientConfig{})
	if err == nil {
		t.Fatal("NewClient should fail without API key")
	}

	expected := "ANTHROPIC_API_KEY environment variable is not set"
	if err.Error() != expected {
		t.Errorf("Error = %q, want %q", err.Error(), expected)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Default model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{anthropic.ModelClaudeHaiku4_5_20251001, "us.anthropic.claude-haiku-4-5-20251001-v1:0"},
		{"custom-model", "custom-model"},
	}

	for _, tt := range tests {
		if got := translateModelForBedrock(tt.in); got != tt.want {
			t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 100)

	input, output := tracker.Total()
	if input != 300 || output != 150 {
		t.Errorf("Total = (%d, %d), want (300, 150)", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tracker.Calls())
	}

	tracker.Reset()
	input, output = tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 {
		t.Errorf("After reset: input=%d, output=%d, calls=%d", input, output, tracker.Calls())
	}
}

// fakeMessagesServer answers every Messages API call with body and records
// the decoded request.
func fakeMessagesServer(t *testing.T, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		APIKey:  "test-key",
		Options: []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)},
	})
	require.NoError(t, err)
	return client
}

func TestClient_CompleteText(t *testing.T) {
	var got map[string]any
	srv := fakeMessagesServer(t, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "Strategy: raise prices."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`, &got)
	client := newTestClient(t, srv)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			SystemMessage("You are a strategist."),
			SystemMessage("Context."),
			UserMessage("How do I price?"),
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	require.NoError(t, err)

	assert.Equal(t, "Strategy: raise prices.", resp.Text)
	assert.Equal(t, int64(12), resp.InputTokens)
	assert.Equal(t, int64(7), resp.OutputTokens)
	assert.Equal(t, 1, client.Tracker().Calls())

	assert.EqualValues(t, 500, got["max_tokens"])
	assert.InDelta(t, 0.7, got["temperature"], 0.0001)
	system, ok := got["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "You are a strategist.\n\nContext.", system[0].(map[string]any)["text"])
	assert.Len(t, got["messages"], 1)
	assert.Nil(t, got["tools"])
}

func TestClient_CompleteStructured(t *testing.T) {
	var got map[string]any
	srv := fakeMessagesServer(t, `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [{"type": "tool_use", "id": "tu_1", "name": "route",
			"input": {"reasoning": "pricing", "selected_agents": ["strategy"]}}],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 20, "output_tokens": 9}
	}`, &got)
	client := newTestClient(t, srv)

	schema := &Schema{
		Name:       "route",
		Properties: map[string]any{"reasoning": map[string]any{"type": "string"}},
		Required:   []string{"reasoning"},
	}
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{UserMessage("route this")},
		Schema:   schema,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reasoning": "pricing", "selected_agents": ["strategy"]}`, string(resp.JSON))

	choice, ok := got["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tool", choice["type"])
	assert.Equal(t, "route", choice["name"])
	assert.Len(t, got["tools"], 1)
}

func TestClient_CompleteStructuredMissingTool(t *testing.T) {
	srv := fakeMessagesServer(t, `{
		"id": "msg_3", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "no tool"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`, nil)
	client := newTestClient(t, srv)

	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{UserMessage("route this")},
		Schema:   &Schema{Name: "route", Properties: map[string]any{}},
	})
	var svc *ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, ProviderAnthropic, svc.Provider)
}

func TestClient_CompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv)

	_, err := client.Complete(context.Background(), CompletionRequest{Messages: []Message{UserMessage("hi")}})
	var svc *ServiceError
	require.ErrorAs(t, err, &svc)
}

func TestClient_CompleteRequiresUserMessage(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Messages: []Message{SystemMessage("only system")}})
	var svc *ServiceError
	assert.ErrorAs(t, err, &svc)
}

func TestToAnthropicMessages_MergesSameRole(t *testing.T) {
	msgs := toAnthropicMessages([]Message{
		UserMessage("a"),
		UserMessage("b"),
		AssistantMessage("c"),
		UserMessage("d"),
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Len(t, msgs[0].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}

func TestNewClient_Bedrock(t *testing.T) {
	if os.Getenv("AWS_REGION") == "" && os.Getenv("AWS_DEFAULT_REGION") == "" {
		t.Skip("AWS_REGION not set, skipping Bedrock test")
	}

	client, err := NewClient(ClientConfig{
		UseAWSBedrock: true,
		AWSRegion:     "us-west-2",
		Model:         anthropic.ModelClaudeSonnet4_20250514,
	})
	if err != nil {
		t.Fatalf("NewClient with Bedrock failed: %v", err)
	}

	if client.Provider() != ProviderBedrock {
		t.Errorf("Provider = %q, want %q", client.Provider(), ProviderBedrock)
	}
	if client.Model() != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("Model = %q, want Bedrock inference profile", client.Model())
	}
}
