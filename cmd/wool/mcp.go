package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lyramakesmusic/wool/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the tree as MCP tools (create_tree, focus_node, append_text,
generate, get_context) and the wool://tree resource, so agents can grow
branches themselves.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Service, mcp.WithLogger(app.Logger))

		switch transport {
		case "stdio":
			// Logs go to stderr so they never corrupt JSON-RPC on stdout.
			app.Logger.Info("starting wool MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			app.Logger.Info("starting wool MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(cmd.Context(), port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			app.Logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
