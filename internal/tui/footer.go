package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/soloagency/internal/orchestrator"
)

// Footer renders the status line and keyboard hints.
type Footer struct {
	message   string
	isError   bool
	consulted []string
	remaining int
	width     int

	// Styles
	statusStyle lipgloss.Style
	errorStyle  lipgloss.Style
	hintStyle   lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		remaining: -1,

		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, isError bool) {
	f.message = message
	f.isError = isError
}

// SetRemaining records the free messages left; -1 hides the counter.
func (f *Footer) SetRemaining(n int) {
	f.remaining = n
}

// Observe updates the status line from a pipeline event.
func (f *Footer) Observe(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventClassified:
		f.consulted = append([]string(nil), e.Specialists...)
		f.SetMessage("consulting "+strings.Join(f.consulted, ", ")+"...", false)
	case orchestrator.EventDispatchFailed:
		f.SetMessage(e.Specialist+" failed", true)
	case orchestrator.EventSynthesisStarted:
		f.SetMessage("merging answers...", false)
	}
}

// Clear resets the status line.
func (f *Footer) Clear() {
	f.message = ""
	f.isError = false
	f.consulted = nil
}

// View renders the footer.
func (f *Footer) View() string {
	var parts []string
	if f.message != "" {
		style := f.statusStyle
		if f.isError {
			style = f.errorStyle
		}
		parts = append(parts, style.Render(f.message))
	}
	if f.remaining >= 0 {
		parts = append(parts, f.hintStyle.Render(fmt.Sprintf("%d free messages left", f.remaining)))
	}
	parts = append(parts, f.hintStyle.Render("enter send · ↑/↓ scroll · ctrl+c quit"))

	return lipgloss.NewStyle().Width(f.width).Render(strings.Join(parts, "  │  "))
}
