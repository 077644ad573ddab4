package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Entry is one message shown in the transcript.
type Entry struct {
	// Author is "you" for the user, otherwise the attributed specialist.
	Author string
	Text   string
	// Notice marks out-of-band lines such as errors.
	Notice bool
}

// Transcript displays a scrollable view of the conversation.
type Transcript struct {
	entries []Entry
	// scrollOffset is the current scroll position in wrapped lines (0 = top).
	scrollOffset int
	width        int
	height       int
	// autoScroll keeps the newest message in view.
	autoScroll bool

	userStyle       lipgloss.Style
	specialistStyle lipgloss.Style
	noticeStyle     lipgloss.Style
}

// NewTranscript creates an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		width:      80,
		height:     20,
		autoScroll: true,

		userStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),
		specialistStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true),
		noticeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

// Append adds an entry to the transcript.
func (t *Transcript) Append(e Entry) {
	t.entries = append(t.entries, e)
	if t.autoScroll {
		t.scrollToBottom()
	}
}

// Entries returns a copy of the transcript entries.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Update handles scrolling keys.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			t.ScrollUp()
			t.autoScroll = false
		case "down":
			t.ScrollDown()
		case "pgup":
			t.ScrollPageUp()
			t.autoScroll = false
		case "pgdown":
			t.ScrollPageDown()
		case "end":
			t.scrollToBottom()
			t.autoScroll = true
		}
	}
	return t, nil
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	lines := t.render()
	if len(lines) == 0 {
		return ""
	}

	if t.scrollOffset > len(lines)-t.height {
		t.scrollOffset = max(0, len(lines)-t.height)
	}
	start := t.scrollOffset
	end := min(start+t.height, len(lines))
	return strings.Join(lines[start:end], "\n")
}

// SetSize updates the viewport dimensions.
func (t *Transcript) SetSize(width, height int) {
	t.width = width
	t.height = max(1, height)
	if t.autoScroll {
		t.scrollToBottom()
	}
}

// ScrollUp moves the viewport up by one line.
func (t *Transcript) ScrollUp() {
	if t.scrollOffset > 0 {
		t.scrollOffset--
	}
}

// ScrollDown moves the viewport down by one line.
func (t *Transcript) ScrollDown() {
	maxOffset := max(0, len(t.render())-t.height)
	if t.scrollOffset < maxOffset {
		t.scrollOffset++
	}
	if t.scrollOffset == maxOffset {
		t.autoScroll = true
	}
}

// ScrollPageUp moves the viewport up by one page.
func (t *Transcript) ScrollPageUp() {
	t.scrollOffset = max(0, t.scrollOffset-t.height)
}

// ScrollPageDown moves the viewport down by one page.
func (t *Transcript) ScrollPageDown() {
	maxOffset := max(0, len(t.render())-t.height)
	t.scrollOffset = min(t.scrollOffset+t.height, maxOffset)
	if t.scrollOffset == maxOffset {
		t.autoScroll = true
	}
}

func (t *Transcript) scrollToBottom() {
	t.scrollOffset = max(0, len(t.render())-t.height)
}

// render lays out every entry as wrapped, styled lines with a blank line
// between entries.
func (t *Transcript) render() []string {
	var out []string
	for i, e := range t.entries {
		if i > 0 {
			out = append(out, "")
		}

		style := t.specialistStyle
		switch {
		case e.Notice:
			style = t.noticeStyle
		case e.Author == "you":
			style = t.userStyle
		}
		out = append(out, style.Render(fmt.Sprintf("[%s]", e.Author)))

		for _, para := range strings.Split(e.Text, "\n") {
			out = append(out, wrapLine(para, t.width)...)
		}
	}
	return out
}

// wrapLine splits line into rows of at most width runes, breaking at a
// space in the second half of the row when there is one.
func wrapLine(line string, width int) []string {
	runes := []rune(line)
	if width <= 0 || len(runes) <= width {
		return []string{line}
	}

	var wrapped []string
	for len(runes) > width {
		breakPoint := width
		for i := width - 1; i > width/2; i-- {
			if runes[i] == ' ' {
				breakPoint = i + 1
				break
			}
		}
		wrapped = append(wrapped, strings.TrimRight(string(runes[:breakPoint]), " "))
		runes = runes[breakPoint:]
	}
	if len(runes) > 0 {
		wrapped = append(wrapped, string(runes))
	}
	return wrapped
}
