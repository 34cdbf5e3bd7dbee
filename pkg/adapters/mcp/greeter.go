package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewGreeterServer builds the bundled demonstration MCP server. It exposes
// two tools, greet and good_bye, and exists so a fresh checkout can exercise
// the full pipeline without any external tool server.
func NewGreeterServer() *server.MCPServer {
	srv := server.NewMCPServer("manifold-greeter", "1.0.0",
		server.WithToolCapabilities(false),
	)

	srv.AddTool(
		mcp.NewTool("greet",
			mcp.WithDescription("Greet a person by name"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Name of the person to greet")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Hello, %s!", name)), nil
		},
	)

	srv.AddTool(
		mcp.NewTool("good_bye",
			mcp.WithDescription("Say goodbye to a person by name"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Name of the person to say goodbye to")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Goodbye, %s!", name)), nil
		},
	)

	return srv
}

// ServeStdio runs srv over stdin/stdout until the stream closes.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

// ServeSSE runs srv as an SSE endpoint on addr.
func ServeSSE(srv *server.MCPServer, addr string) error {
	return server.NewSSEServer(srv).Start(addr)
}

// ServeStreamableHTTP runs srv as a streamable HTTP endpoint on addr.
func ServeStreamableHTTP(srv *server.MCPServer, addr string) error {
	return server.NewStreamableHTTPServer(srv).Start(addr)
}
