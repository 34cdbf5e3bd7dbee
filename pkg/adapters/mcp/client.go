// Package mcp adapts MCP servers to the runtime's Provider port.
//
// Three transport variants are supported, mirroring the MCP spec: subprocess
// stdio, Server-Sent-Events, and streamable HTTP. All share one connection
// lifecycle: a plain constructor, a fallible Connect that performs the
// handshake, and an idempotent Close.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/manifold-agent/manifold/pkg/domain"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultCallTimeout    = 2 * time.Minute
)

type factory func() (*client.Client, error)

// Client is one connection to an MCP server over a specific transport.
// Exactly one outstanding tool call at a time is assumed.
type Client struct {
	endpoint       string
	build          factory
	needsStart     bool
	connectTimeout time.Duration
	callTimeout    time.Duration

	mu     sync.Mutex
	conn   *client.Client
	stop   context.CancelFunc
	closed bool
}

// Option tweaks connection behavior.
type Option func(*Client)

// WithConnectTimeout bounds the handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithCallTimeout bounds each tool invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

func newClient(endpoint string, needsStart bool, build factory, opts []Option) *Client {
	c := &Client{
		endpoint:       endpoint,
		build:          build,
		needsStart:     needsStart,
		connectTimeout: defaultConnectTimeout,
		callTimeout:    defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewStdioClient prepares a connection to an MCP server launched as a
// subprocess speaking over stdin/stdout. The process is spawned by Connect,
// not here.
func NewStdioClient(command string, args []string, opts ...Option) *Client {
	endpoint := strings.TrimSpace(command + " " + strings.Join(args, " "))
	return newClient(endpoint, false, func() (*client.Client, error) {
		return client.NewStdioMCPClient(command, nil, args...)
	}, opts)
}

// NewSSEClient prepares a connection to an MCP server reachable over SSE.
func NewSSEClient(baseURL string, opts ...Option) *Client {
	return newClient(baseURL, true, func() (*client.Client, error) {
		return client.NewSSEMCPClient(baseURL)
	}, opts)
}

// NewStreamableHTTPClient prepares a connection to an MCP server reachable
// over streamable HTTP.
func NewStreamableHTTPClient(url string, opts ...Option) *Client {
	return newClient(url, true, func() (*client.Client, error) {
		return client.NewStreamableHttpClient(url)
	}, opts)
}

// NewInProcessClient wires a client directly to an in-process MCP server.
// Used by tests and by embedded tool servers.
func NewInProcessClient(name string, srv *server.MCPServer, opts ...Option) *Client {
	return newClient(name, true, func() (*client.Client, error) {
		return client.NewInProcessClient(srv)
	}, opts)
}

// Name returns the transport's identifying address or command line.
func (c *Client) Name() string { return c.endpoint }

// Connect establishes the channel and performs the MCP handshake. On
// failure the partially-opened channel is released and a
// *domain.ConnectionError is returned; no tools are ever exposed from a
// client whose Connect failed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &domain.ConnectionError{Endpoint: c.endpoint, Err: fmt.Errorf("client already closed")}
	}
	if c.conn != nil {
		return nil
	}

	conn, err := c.build()
	if err != nil {
		return &domain.ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	var stop context.CancelFunc
	if c.needsStart {
		// The context given to Start owns the transport's long-lived event
		// stream, not just the handshake: it must survive Connect returning
		// and is cancelled in Close.
		runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
		if err := conn.Start(runCtx); err != nil {
			runCancel()
			_ = conn.Close()
			return &domain.ConnectionError{Endpoint: c.endpoint, Err: err}
		}
		stop = runCancel
	}

	initCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "manifold", Version: "dev"}
	if _, err := conn.Initialize(initCtx, initReq); err != nil {
		if stop != nil {
			stop()
		}
		_ = conn.Close()
		return &domain.ConnectionError{Endpoint: c.endpoint, Err: fmt.Errorf("initialize: %w", err)}
	}

	c.conn = conn
	c.stop = stop
	return nil
}

// ListTools returns the server's full tool catalog as descriptors whose
// capabilities are bound to this connection.
func (c *Client) ListTools(ctx context.Context) ([]domain.Descriptor, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	res, err := conn.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", c.endpoint, err)
	}

	descriptors := make([]domain.Descriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		name := t.Name
		descriptors = append(descriptors, domain.Descriptor{
			Name:       name,
			Definition: domain.NewToolDefinition(name, t.Description, schemaToMap(t.InputSchema)),
			Capability: domain.CapabilityFunc(func(ctx context.Context, args map[string]any) (string, error) {
				return c.CallTool(ctx, name, args)
			}),
		})
	}
	return descriptors, nil
}

// CallTool sends a single invocation and blocks until its textual result.
// The canonical result is the first text content part; a response without
// any text part is serialized to JSON instead.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	conn, err := c.connection()
	if err != nil {
		return "", &domain.InvocationError{Tool: name, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := conn.CallTool(ctx, req)
	if err != nil {
		return "", &domain.InvocationError{Tool: name, Err: err}
	}

	text, found := firstText(res.Content)
	if res.IsError {
		if !found {
			text = "tool reported an error"
		}
		return "", &domain.InvocationError{Tool: name, Err: fmt.Errorf("%s", text)}
	}
	if found {
		return text, nil
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return "", &domain.InvocationError{Tool: name, Err: fmt.Errorf("serialize result: %w", err)}
	}
	return string(raw), nil
}

// Close releases the channel. Safe to call zero, one, or many times, and
// safe before Connect was ever called.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}

func (c *Client) connection() (*client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("connection to %s is closed", c.endpoint)
	}
	if c.conn == nil {
		return nil, fmt.Errorf("not connected to %s", c.endpoint)
	}
	return c.conn, nil
}

func firstText(content []mcp.Content) (string, bool) {
	for _, item := range content {
		if tc, ok := mcp.AsTextContent(item); ok {
			return tc.Text, true
		}
	}
	return "", false
}

func schemaToMap(in mcp.ToolInputSchema) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
