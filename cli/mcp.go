// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for assistant integrations
package cli

import (
	"context"

	"github.com/harperreed/consult/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPCommand starts the MCP server on stdio.
func MCPCommand(app *App, version string) error {
	app.Logger.Info("starting MCP server", "version", version)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "consult",
		Version: version,
	}, nil)

	handlers.NewBookingHandlers(app.Orchestrator, app.Location).Register(server)
	handlers.NewResourceHandlers(app.Orchestrator).Register(server)
	handlers.NewPromptHandlers(app.Orchestrator).Register(server)
	handlers.NewContactHandlers(app.DB, app.CRM).Register(server)

	return server.Run(context.Background(), &mcp.StdioTransport{})
}
