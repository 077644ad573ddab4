package models

import "time"

// Role identifies who produced a turn in a conversation.
type Role string

const (
	// RoleUser is a message typed by the person in the conversation.
	RoleUser Role = "user"
	// RoleSpecialist is a reply produced by the orchestration pipeline.
	RoleSpecialist Role = "specialist"
	// RoleSystem is an out-of-band note such as a greeting or notice.
	RoleSystem Role = "system"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSpecialist, RoleSystem:
		return true
	default:
		return false
	}
}

// Turn is one message in a conversation. Turns are immutable once appended.
type Turn struct {
	// Role is who produced the turn.
	Role Role `json:"role"`
	// Text is the message content exactly as it was processed.
	Text string `json:"text"`
	// Specialist is the attributed specialist id when Role is RoleSpecialist.
	Specialist string `json:"specialist,omitempty"`
	// CreatedAt is when the turn was appended.
	CreatedAt time.Time `json:"created_at"`
}

// UserTurn builds a user turn stamped with the current time.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

// SpecialistTurn builds a reply turn attributed to the given specialist.
func SpecialistTurn(specialist, text string) Turn {
	return Turn{Role: RoleSpecialist, Text: text, Specialist: specialist, CreatedAt: time.Now().UTC()}
}
