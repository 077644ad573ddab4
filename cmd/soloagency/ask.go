package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/soloagency/internal/session"
)

var (
	askConversation string
	askContext      string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the reply",
	Long: `Route one question through the specialists and print the merged reply.

The exchange is stored like a chat message. Pass --conversation to add it
to an existing conversation; the new conversation ID is printed otherwise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("question is empty")
		}

		a, err := newApp(cmd.Context(), appOptions{pipeline: true, freeMessages: -1})
		if err != nil {
			return err
		}
		defer a.Close()

		id := askConversation
		if id == "" {
			id = session.NewConversationID()
		}

		reply, err := a.sessions.Send(cmd.Context(), id, query, askContext)
		if err != nil {
			return err
		}

		printReply(reply)
		if reply.Err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), reply.Err)
		}
		if askConversation == "" {
			fmt.Println(color.New(color.Faint).Sprintf("conversation: %s", reply.ConversationID))
		}
		if reply.Err != nil {
			return fmt.Errorf("request failed")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "Add the question to this conversation")
	askCmd.Flags().StringVar(&askContext, "context", "", "Extra background for this question only")
}

func printReply(reply *session.Reply) {
	label := color.New(color.FgCyan, color.Bold).Sprintf("[%s]", reply.Specialist)
	fmt.Printf("%s %s\n", label, reply.Text)
	if reply.Condensed {
		fmt.Println(color.New(color.Faint).Sprint("(condensed)"))
	}
}
