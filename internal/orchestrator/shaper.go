package orchestrator

import (
	"strings"
	"unicode"

	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// runeCapFactor sets the hard character cap at this many runes per word
// of budget.
const runeCapFactor = 6

// Shaper enforces the reply length contract and attributes replies.
type Shaper struct {
	wordBudget int
	registry   *specialist.Registry
}

// NewShaper creates a Shaper with the given word budget.
func NewShaper(wordBudget int, registry *specialist.Registry) *Shaper {
	if wordBudget <= 0 {
		wordBudget = DefaultWordBudget
	}
	return &Shaper{wordBudget: wordBudget, registry: registry}
}

// Shape condenses text that exceeds the word budget. Text within budget is
// returned unchanged. Condensed text keeps the first two and the last
// sentence, is cut to the word budget and the rune cap, and ends with the
// truncation marker. The marker counts toward the rune cap.
func (s *Shaper) Shape(text string) (string, bool) {
	if len(strings.Fields(text)) <= s.wordBudget {
		return text, false
	}

	out := text
	if segments := splitSentences(text); len(segments) >= 3 {
		out = strings.Join([]string{segments[0], segments[1], segments[len(segments)-1]}, " ")
	}

	if words := strings.Fields(out); len(words) > s.wordBudget {
		out = strings.Join(words[:s.wordBudget], " ")
	}

	marker := conversation.TruncationMarker
	limit := runeCapFactor*s.wordBudget - len([]rune(marker))
	out = trimTail(out)
	if runes := []rune(out); len(runes) > limit {
		out = trimTail(string(runes[:limit]))
	}
	return out + marker, true
}

// trimTail drops trailing whitespace and dots so the marker is added once.
func trimTail(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// RuneCap returns the hard character cap of shaped replies.
func (s *Shaper) RuneCap() int {
	return runeCapFactor * s.wordBudget
}

// splitSentences breaks text at sentence terminators followed by
// whitespace, and at line breaks.
func splitSentences(text string) []string {
	var (
		segments []string
		current  strings.Builder
	)
	flush := func() {
		if seg := strings.TrimSpace(current.String()); seg != "" {
			segments = append(segments, seg)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return segments
}

// Attribute names the specialist credited with a reply: the only
// dispatched specialist, else the structural lead from synthesis, else a
// leading label in the text, else the orchestrator.
func (s *Shaper) Attribute(results []models.DispatchResult, lead, text string) string {
	if len(results) == 1 {
		return results[0].Specialist
	}
	if lead != "" && s.registry.Has(lead) {
		return lead
	}
	if id, ok := legacyMarkerAttribution(s.registry, text); ok {
		return id
	}
	return models.OrchestratorID
}

// maxMarkerRunes bounds how long a leading label may be.
const maxMarkerRunes = 40

// legacyMarkerAttribution looks for a specialist label or id at the start
// of the first non-empty line, followed by a colon. Markdown emphasis and
// heading markup around the label is ignored ("**Strategy:**", "## Media:").
func legacyMarkerAttribution(registry *specialist.Registry, text string) (string, bool) {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	line = strings.TrimLeft(line, " \t#*_>")
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", false
	}
	candidate := strings.Trim(line[:idx], " *_")
	if candidate == "" || len([]rune(candidate)) > maxMarkerRunes {
		return "", false
	}
	if id, ok := registry.Lookup(candidate); ok {
		return id, true
	}
	// Older persona prompts signed as "StrategyAgent".
	if trimmed, ok := strings.CutSuffix(candidate, "Agent"); ok && trimmed != "" {
		return registry.Lookup(trimmed)
	}
	return "", false
}
