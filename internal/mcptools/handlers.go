package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ShayCichocki/soloagency/internal/session"
	"github.com/ShayCichocki/soloagency/internal/specialist"
)

// AgencyService holds the session service and registry used by MCP tool handlers.
type AgencyService struct {
	sessions *session.Service
	registry *specialist.Registry
}

// NewAgencyService creates an AgencyService.
func NewAgencyService(sessions *session.Service, registry *specialist.Registry) *AgencyService {
	return &AgencyService{sessions: sessions, registry: registry}
}

// Greet returns the opening line of a conversation.
func (s *AgencyService) Greet(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ GreetInput,
) (*mcp.CallToolResult, GreetOutput, error) {
	g := s.sessions.Greet()
	return nil, GreetOutput{Reply: g.Text, Specialist: g.Specialist}, nil
}

// Respond routes a message through the specialists and persists the
// exchange. Pipeline failures come back as the apology reply, not as a
// tool error.
func (s *AgencyService) Respond(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RespondInput,
) (*mcp.CallToolResult, RespondOutput, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, RespondOutput{}, fmt.Errorf("message is required")
	}

	id := input.ConversationID
	if id == "" {
		id = session.NewConversationID()
	}

	reply, err := s.sessions.Send(ctx, id, input.Message, input.Context)
	if err != nil {
		return nil, RespondOutput{}, err
	}

	return nil, RespondOutput{
		Reply:                 reply.Text,
		Specialist:            reply.Specialist,
		ConversationID:        reply.ConversationID,
		Condensed:             reply.Condensed,
		Refused:               reply.Refused,
		FreeMessagesRemaining: reply.Remaining,
	}, nil
}

// ListSpecialists returns the registry in routing order.
func (s *AgencyService) ListSpecialists(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListSpecialistsInput,
) (*mcp.CallToolResult, ListSpecialistsOutput, error) {
	defs := s.registry.All()
	out := ListSpecialistsOutput{Specialists: make([]SpecialistInfo, 0, len(defs))}
	for _, d := range defs {
		out.Specialists = append(out.Specialists, SpecialistInfo{
			ID:      d.ID,
			Label:   d.DisplayName(),
			Handoff: d.Handoff,
		})
	}
	return nil, out, nil
}
