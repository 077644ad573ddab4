package mcptools

// GreetInput is the input for the greet MCP tool.
type GreetInput struct{}

// GreetOutput is the result of the greet MCP tool.
type GreetOutput struct {
	Reply      string `json:"reply"`
	Specialist string `json:"specialist"`
}

// RespondInput is the input for the respond MCP tool.
type RespondInput struct {
	Message        string `json:"message" jsonschema:"the solopreneur's message"`
	ConversationID string `json:"conversationId,omitempty" jsonschema:"conversation to continue; a new one is started when empty"`
	Context        string `json:"context,omitempty" jsonschema:"extra background shared with every specialist for this message"`
}

// RespondOutput is the result of the respond MCP tool.
type RespondOutput struct {
	Reply          string `json:"reply"`
	Specialist     string `json:"specialist"`
	ConversationID string `json:"conversationId"`
	Condensed      bool   `json:"condensed,omitempty"`
	Refused        bool   `json:"refused,omitempty"`
	// FreeMessagesRemaining is -1 when unlimited.
	FreeMessagesRemaining int `json:"freeMessagesRemaining"`
}

// ListSpecialistsInput is the input for the list_specialists MCP tool.
type ListSpecialistsInput struct{}

// SpecialistInfo describes one specialist.
type SpecialistInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Handoff string `json:"handoff,omitempty"`
}

// ListSpecialistsOutput is the result of the list_specialists MCP tool.
type ListSpecialistsOutput struct {
	Specialists []SpecialistInfo `json:"specialists"`
}
