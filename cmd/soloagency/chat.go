package main

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/orchestrator"
	"github.com/ShayCichocki/soloagency/internal/session"
	"github.com/ShayCichocki/soloagency/internal/tui"
)

var (
	chatConversation string
	chatFreeMessages int
	chatNew          bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the agency",
	Long: `Start an interactive chat. Each message is routed to the relevant
specialists and answered with one merged reply.

Use --conversation to resume an earlier conversation; "soloagency
conversations list" shows the stored IDs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "Resume the conversation with this ID")
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Start a new conversation even if --conversation is set")
	chatCmd.Flags().IntVar(&chatFreeMessages, "free-messages", -1, "Limit the messages answered in this session (0 = unlimited)")
}

func runChat(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var program atomic.Pointer[tea.Program]
	a, err := newApp(ctx, appOptions{
		pipeline:     true,
		freeMessages: chatFreeMessages,
		onEvent: func(e orchestrator.Event) {
			if p := program.Load(); p != nil {
				p.Send(tui.PipelineEventMsg{Event: e})
			}
		},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	id := chatConversation
	if id == "" || chatNew {
		id = session.NewConversationID()
	}

	opts := []tui.ChatOption{tui.WithConversationID(id), tui.WithContext(ctx)}
	if !chatNew && chatConversation != "" {
		history, err := a.sessions.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load conversation %s: %w", id, err)
		}
		if history.Len() == 0 {
			return fmt.Errorf("conversation %s not found", id)
		}
		opts = append(opts, tui.WithHistory(history.Turns))
	}

	send := func(ctx context.Context, text string) (*session.Reply, error) {
		return a.sessions.Send(ctx, id, text, "")
	}

	p, _ := tui.NewChatProgram(send, a.sessions.Greet(), opts...)
	program.Store(p)

	a.logger.Info("chat started", zap.String("conversation", id))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	fmt.Printf("Conversation %s saved. Resume with: soloagency chat --conversation %s\n", id, id)
	return nil
}
