package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

var purgeOlderThan time.Duration

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Inspect and manage stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		convs, err := a.db.ListConversations(cmd.Context())
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations yet. Run 'soloagency chat' to start one.")
			return nil
		}
		for _, c := range convs {
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s\n",
				color.New(color.Bold).Sprint(c.ID),
				title,
				color.New(color.Faint).Sprintf("%s ago", formatAge(time.Since(c.UpdatedAt))))
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the turns of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		conv, err := a.db.GetConversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("conversation %s not found", args[0])
		}
		turns, err := a.db.ListTurns(cmd.Context(), conv.ID)
		if err != nil {
			return err
		}

		if conv.Title != "" {
			fmt.Println(color.New(color.Bold).Sprint(conv.Title))
		}
		for _, t := range turns {
			fmt.Printf("%s %s\n", turnLabel(t), t.Text)
		}
		return nil
	},
}

var conversationsInsightsCmd = &cobra.Command{
	Use:   "insights [id]",
	Short: "List captured insights, for one conversation or all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		insights, err := a.db.ListInsights(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(insights) == 0 {
			fmt.Println("No insights captured.")
			return nil
		}
		for _, in := range insights {
			fmt.Printf("%s %s\n", color.New(color.Faint).Sprintf("%s:", in.ConversationID), in.Content)
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation with its turns and insights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.db.DeleteConversation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Deleted %s\n", color.GreenString("✓"), args[0])
		return nil
	},
}

var conversationsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete conversations not updated within --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.db.PurgeOldConversations(cmd.Context(), purgeOlderThan)
		if err != nil {
			return err
		}
		fmt.Printf("%s Purged %d conversation(s)\n", color.GreenString("✓"), n)
		return nil
	},
}

func init() {
	conversationsPurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "Age past which conversations are deleted")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsInsightsCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsPurgeCmd)
}

func turnLabel(t models.Turn) string {
	switch t.Role {
	case models.RoleUser:
		return color.New(color.FgGreen, color.Bold).Sprint("you:")
	case models.RoleSpecialist:
		return color.New(color.FgCyan, color.Bold).Sprintf("[%s]", t.Specialist)
	default:
		return color.New(color.Faint).Sprint("note:")
	}
}

// formatAge renders d in its largest whole unit.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		if m := int(d.Minutes()) % 60; m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}
