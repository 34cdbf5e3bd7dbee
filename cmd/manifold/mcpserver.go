package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifold-agent/manifold/pkg/adapters/mcp"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Run the bundled demonstration MCP server",
	Long: `Serves the greet/good_bye demo tools over the chosen transport so a
fresh checkout can exercise the full pipeline without external servers:

  manifold mcp-server --transport stdio
  manifold mcp-server --transport sse --addr :8000
  manifold mcp-server --transport http --addr :8001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		srv := mcp.NewGreeterServer()
		switch transport {
		case "stdio":
			return mcp.ServeStdio(srv)
		case "sse":
			fmt.Printf("Serving SSE MCP server on %s\n", addr)
			return mcp.ServeSSE(srv, addr)
		case "http":
			fmt.Printf("Serving streamable HTTP MCP server on %s\n", addr)
			return mcp.ServeStreamableHTTP(srv, addr)
		default:
			return fmt.Errorf("unknown transport %q (want stdio, sse, or http)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpServerCmd)
	mcpServerCmd.Flags().StringP("transport", "t", "stdio", "Transport to serve on (stdio, sse, http)")
	mcpServerCmd.Flags().StringP("addr", "a", ":8000", "Listen address for sse/http transports")
}
