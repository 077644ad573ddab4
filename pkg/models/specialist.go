package models

// OrchestratorID is the identity reported when no specialist can be
// credited with a reply, and the author of the greeting.
const OrchestratorID = "orchestrator"

// SpecialistDef describes one expert persona.
type SpecialistDef struct {
	// ID is the unique, stable identifier used in routing decisions.
	ID string `json:"id" yaml:"id"`
	// Label is the short self-identifying marker the specialist is asked
	// to lead its replies with (e.g. "Strategy").
	Label string `json:"label" yaml:"label"`
	// Instructions is the domain instruction template sent as the system prompt.
	Instructions string `json:"instructions" yaml:"instructions"`
	// Handoff is the one-line description the classifier routes on.
	Handoff string `json:"handoff,omitempty" yaml:"handoff"`
}

// DisplayName returns the label, falling back to the id.
func (d SpecialistDef) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}
