// Package mcptools exposes the specialist agency as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ShayCichocki/soloagency/internal/version"
)

// NewServer creates an MCP server with the greet, respond and
// list_specialists tools registered.
func NewServer(svc *AgencyService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "soloagency",
		Version: version.Get(),
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "greet",
		Description: "Return the opening line of a new conversation with the agency.",
	}, svc.Greet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "respond",
		Description: "Send a solopreneur's message to the agency. The most relevant specialists answer and their replies are merged into one short response. Pass conversationId to continue a conversation.",
	}, svc.Respond)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_specialists",
		Description: "List the specialists the agency can route a message to.",
	}, svc.ListSpecialists)

	return server
}

// RunStdio runs the server on stdio, blocking until stdin is closed or the
// context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP tools over streamable HTTP on addr.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
