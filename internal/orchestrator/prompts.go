package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

// Greeting opens every new conversation.
const Greeting = "Welcome, solopreneur. What are you creating — and what's holding you back?"

// personaGoal is the shared commitment every merged reply closes on.
const personaGoal = "helping the solopreneur build a business that expresses their whole self, " +
	"unifying who they are with how they show up, create, and grow"

const classifierPreamble = `You are the orchestrator for an agency of specialists serving Kraków-based solopreneurs.
Decide which specialist or specialists should answer the solopreneur's message.
Choose the smallest set that fully covers the message. Select more than one only when the
message clearly spans several domains.`

// buildClassifierPrompt returns the system and user text of the routing call.
func buildClassifierPrompt(defs []models.SpecialistDef, query, sharedContext string) (string, string) {
	var sb strings.Builder
	sb.WriteString(classifierPreamble)
	sb.WriteString("\n\nAvailable specialists:\n")
	for _, def := range defs {
		handoff := def.Handoff
		if handoff == "" {
			handoff = def.DisplayName()
		}
		fmt.Fprintf(&sb, "- %s: %s\n", def.ID, handoff)
	}
	sb.WriteString("\nRespond with structured data: \"reasoning\" explains the choice in one or two sentences, ")
	sb.WriteString("\"selected_agents\" lists specialist ids from the list above, most relevant first.")

	var user strings.Builder
	if sharedContext != "" {
		user.WriteString("Context:\n")
		user.WriteString(sharedContext)
		user.WriteString("\n\n")
	}
	user.WriteString("Message:\n")
	user.WriteString(query)

	return sb.String(), user.String()
}

// selectionNote carries the routing reasoning into a specialist prompt.
func selectionNote(reasoning string) string {
	return "You were selected because: " + reasoning
}

// contextNote wraps shared context for a specialist prompt.
func contextNote(sharedContext string) string {
	return "Shared context:\n" + sharedContext
}

const synthesisProtocol = `You merge the answers of several specialists into one reply for the solopreneur.
Apply this resolution protocol:
1. Identify the opposing forces or tensions across the specialist answers.
2. Analyze why they conflict in this solopreneur's situation.
3. Propose a synthesis that honors both sides. Do not average them away or drop either side.
4. Guide implementation with concrete next steps.
5. Close with a commitment to the shared goal: %s.

Keep the reply brief: short paragraphs, bullet points where they help, under %d words.`

// buildSynthesisPrompt returns the system and user text of the merge call.
func buildSynthesisPrompt(defs map[string]models.SpecialistDef, query, sharedContext string, results []models.DispatchResult, wordBudget int, structured bool) (string, string) {
	system := fmt.Sprintf(synthesisProtocol, personaGoal, wordBudget)
	if structured {
		system += "\n\nRespond with structured data: \"reply\" is the merged reply, " +
			"\"lead_specialist\" is the id of the specialist whose answer the reply builds on most."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Solopreneur's message:\n%s\n", query)
	if sharedContext != "" {
		fmt.Fprintf(&sb, "\nContext:\n%s\n", sharedContext)
	}
	sb.WriteString("\nSpecialist answers:\n")
	for _, r := range results {
		label := r.Specialist
		if def, ok := defs[r.Specialist]; ok {
			label = def.DisplayName()
		}
		fmt.Fprintf(&sb, "\n### %s (%s)\n%s\n", label, r.Specialist, strings.TrimSpace(r.Text))
	}
	return system, sb.String()
}
