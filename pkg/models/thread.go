package models

import "time"

// ThreadEntry is one link in a provider-side continuation chain. Each
// continuation gets a fresh token pointing at its parent, so earlier tokens
// keep resolving to the history they were issued for.
type ThreadEntry struct {
	Token     string    `json:"token"`
	Parent    string    `json:"parent,omitempty"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

// Insight is a notable reply captured from a conversation.
type Insight struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the persisted header of a conversation log.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
