package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/mcptools"
)

var (
	serveHTTP         string
	serveFreeMessages int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agency as MCP tools",
	Long: `Expose the agency to MCP clients. The tools are greet, respond and
list_specialists.

Serves on stdio by default. Use --http to listen for streamable HTTP
instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{pipeline: true, freeMessages: serveFreeMessages})
		if err != nil {
			return err
		}
		defer a.Close()

		server := mcptools.NewServer(mcptools.NewAgencyService(a.sessions, a.registry))
		if serveHTTP != "" {
			a.logger.Info("serving MCP over HTTP", zap.String("addr", serveHTTP))
			return mcptools.RunHTTP(ctx, server, serveHTTP)
		}
		a.logger.Info("serving MCP on stdio")
		return mcptools.RunStdio(ctx, server)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTP, "http", "", "Listen for streamable HTTP on this address (e.g. :8080)")
	serveCmd.Flags().IntVar(&serveFreeMessages, "free-messages", -1, "Limit the messages answered by this server (0 = unlimited)")
}
