package models

// Selection is the classifier's routing decision.
type Selection struct {
	// Reasoning explains why the specialists were chosen.
	Reasoning string `json:"reasoning"`
	// Specialists lists the chosen ids in the order they should be consulted.
	// Never empty once normalized.
	Specialists []string `json:"specialists"`
	// Fallback is set when the default specialist was substituted because the
	// routing call failed or returned nothing usable.
	Fallback bool `json:"fallback,omitempty"`
}

// DispatchResult is one specialist's raw answer.
type DispatchResult struct {
	Specialist string `json:"specialist"`
	Text       string `json:"text"`
}

// FinalReply is what the pipeline hands back to its caller.
type FinalReply struct {
	// Text is the shaped reply.
	Text string `json:"reply"`
	// Specialist is the best-effort attributed author.
	Specialist string `json:"specialist"`
	// Condensed reports whether length shaping altered the text.
	Condensed bool `json:"condensed,omitempty"`
}
