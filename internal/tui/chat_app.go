package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/soloagency/internal/orchestrator"
	"github.com/ShayCichocki/soloagency/internal/session"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

// Sender answers one user message.
type Sender func(ctx context.Context, text string) (*session.Reply, error)

// ReplyMsg carries the outcome of a Sender call.
type ReplyMsg struct {
	Reply *session.Reply
	Err   error
}

// PipelineEventMsg forwards an orchestrator event to the footer.
type PipelineEventMsg struct {
	Event orchestrator.Event
}

// ChatApp is the model for the interactive chat.
type ChatApp struct {
	ctx        context.Context
	send       Sender
	header     *Header
	transcript *Transcript
	inputField *InputField
	footer     *Footer
	spinner    spinner.Model
	pending    bool
	width      int
	height     int
	quitting   bool
}

// ChatOption configures a ChatApp.
type ChatOption func(*ChatApp)

// WithConversationID shows id in the header.
func WithConversationID(id string) ChatOption {
	return func(a *ChatApp) { a.header = NewHeader(id) }
}

// WithHistory preloads earlier turns into the transcript.
func WithHistory(turns []models.Turn) ChatOption {
	return func(a *ChatApp) {
		for _, t := range turns {
			switch t.Role {
			case models.RoleUser:
				a.transcript.Append(Entry{Author: "you", Text: t.Text})
			case models.RoleSpecialist:
				a.transcript.Append(Entry{Author: authorName(t.Specialist), Text: t.Text})
			}
		}
	}
}

// WithContext sets the context Sender calls run under.
func WithContext(ctx context.Context) ChatOption {
	return func(a *ChatApp) { a.ctx = ctx }
}

// NewChatApp creates a chat that opens with greeting unless history was
// preloaded.
func NewChatApp(send Sender, greeting models.FinalReply, opts ...ChatOption) *ChatApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	a := &ChatApp{
		ctx:        context.Background(),
		send:       send,
		header:     NewHeader(""),
		transcript: NewTranscript(),
		inputField: NewInputField(),
		footer:     NewFooter(),
		spinner:    sp,
	}
	for _, opt := range opts {
		opt(a)
	}
	// Resumed conversations skip the greeting.
	if len(a.transcript.entries) == 0 {
		a.transcript.Append(Entry{Author: authorName(greeting.Specialist), Text: greeting.Text})
	}
	return a
}

func authorName(specialist string) string {
	if specialist == "" {
		return models.OrchestratorID
	}
	return specialist
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return a.inputField.Focus()
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		case "up", "down", "pgup", "pgdown", "end":
			a.transcript.Update(msg)
			return a, nil
		}
		var cmd tea.Cmd
		a.inputField, cmd = a.inputField.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case MessageSubmittedMsg:
		a.transcript.Append(Entry{Author: "you", Text: msg.Text})
		a.pending = true
		a.inputField.SetDisabled(true)
		a.footer.SetMessage("routing...", false)
		return a, tea.Batch(a.spinner.Tick, a.sendCmd(msg.Text))

	case ReplyMsg:
		a.pending = false
		a.inputField.SetDisabled(false)
		a.footer.Clear()
		if msg.Err != nil {
			a.transcript.Append(Entry{Author: "error", Text: msg.Err.Error(), Notice: true})
			a.footer.SetMessage("message not saved", true)
			return a, nil
		}
		a.transcript.Append(Entry{Author: authorName(msg.Reply.Specialist), Text: msg.Reply.Text})
		a.footer.SetRemaining(msg.Reply.Remaining)
		switch {
		case msg.Reply.Refused:
			a.footer.SetMessage("free message limit reached", true)
		case msg.Reply.Err != nil:
			a.footer.SetMessage("message not saved", true)
		}
		return a, nil

	case PipelineEventMsg:
		if a.pending {
			a.footer.Observe(msg.Event)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.pending {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.inputField, cmd = a.inputField.Update(msg)
	return a, cmd
}

func (a *ChatApp) sendCmd(text string) tea.Cmd {
	ctx, send := a.ctx, a.send
	return func() tea.Msg {
		reply, err := send(ctx, text)
		return ReplyMsg{Reply: reply, Err: err}
	}
}

// updateSizes updates the sizes of child components based on terminal size.
func (a *ChatApp) updateSizes() {
	inputHeight := 3 // border + content
	footerHeight := 1
	a.header.SetWidth(a.width)
	a.footer.SetWidth(a.width)
	a.inputField.SetWidth(a.width)
	a.transcript.SetSize(a.width, a.height-a.header.Height()-inputHeight-footerHeight)
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	footer := a.footer.View()
	if a.pending {
		footer = a.spinner.View() + " " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.header.View(),
		a.transcript.View(),
		a.inputField.View(),
		footer,
	)
}

// Transcript returns the conversation view.
func (a *ChatApp) Transcript() *Transcript {
	return a.transcript
}

// Pending reports whether a reply is outstanding.
func (a *ChatApp) Pending() bool {
	return a.pending
}

// NewChatProgram creates a new Bubbletea program for the chat.
func NewChatProgram(send Sender, greeting models.FinalReply, opts ...ChatOption) (*tea.Program, *ChatApp) {
	app := NewChatApp(send, greeting, opts...)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
