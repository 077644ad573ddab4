package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "soloagency",
	Short: "A team of AI specialists for solopreneurs",
	Long: `soloagency routes each question to the most relevant of four specialists
(strategy, creative, production and media), consults them in parallel and
merges their answers into one short reply.

With no arguments, launches the interactive chat.

Configuration is read from ~/.config/soloagency/config.yaml, with project
overrides in .soloagency.yaml and secrets from ANTHROPIC_API_KEY or
GEMINI_API_KEY.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: XDG config plus .soloagency.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&chatConversation, "conversation", "", "Resume the conversation with this ID")
	rootCmd.Flags().BoolVar(&chatNew, "new", false, "Start a new conversation even if --conversation is set")
	rootCmd.Flags().IntVar(&chatFreeMessages, "free-messages", -1, "Limit the messages answered in this session (0 = unlimited)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(greetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(specialistsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
