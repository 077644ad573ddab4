package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Header renders the title bar.
type Header struct {
	width          int
	conversationID string
}

// NewHeader creates a new Header.
func NewHeader(conversationID string) *Header {
	return &Header{
		width:          80,
		conversationID: conversationID,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// View renders the header.
func (h *Header) View() string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF8E53")).
		Bold(true).
		Render("soloagency")

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true).
		Render("  strategy · creative · production · media")

	line := title + subtitle
	if h.conversationID != "" {
		id := h.conversationID
		if len(id) > 8 {
			id = id[:8]
		}
		line += lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("  #" + id)
	}

	return lipgloss.NewStyle().
		Width(h.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("236")).
		Render(line)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2 // title + bottom border
}
