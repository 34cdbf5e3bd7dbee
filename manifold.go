package manifold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/internal/loop"
	"github.com/manifold-agent/manifold/internal/metrics"
	"github.com/manifold-agent/manifold/pkg/adapters/a2a"
	"github.com/manifold-agent/manifold/pkg/adapters/mcp"
	"github.com/manifold-agent/manifold/pkg/adapters/openai"
	"github.com/manifold-agent/manifold/pkg/domain"
	"github.com/manifold-agent/manifold/pkg/federation"
	"github.com/manifold-agent/manifold/pkg/ports"
)

// Agent is the high-level entry point: a federated tool set bound to one
// model, ready to run conversation turns.
type Agent struct {
	fed     *federation.Federation
	loop    *loop.Loop
	logger  *slog.Logger
	metrics *metrics.Recorder

	model         ports.ChatClient
	modelConfig   *openai.Config
	systemMessage string
	maxRounds     int

	stdioServers []stdioServer
	sseServers   []string
	httpServers  []string
	peers        []string
	providers    []ports.Provider
	localTools   []domain.Descriptor
	registry     prometheus.Registerer
}

type stdioServer struct {
	command string
	args    []string
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithLogger sets a structured logger for the agent and everything it wires.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithSystemMessage sets the system message injected before every model call.
func WithSystemMessage(msg string) Option {
	return func(a *Agent) { a.systemMessage = msg }
}

// WithModel injects a custom chat client, bypassing the default
// OpenAI-compatible adapter.
func WithModel(model ports.ChatClient) Option {
	return func(a *Agent) { a.model = model }
}

// WithOpenAI configures the default model adapter.
func WithOpenAI(cfg openai.Config) Option {
	return func(a *Agent) { a.modelConfig = &cfg }
}

// WithStdioServer adds a subprocess MCP server to launch and federate.
func WithStdioServer(command string, args ...string) Option {
	return func(a *Agent) {
		a.stdioServers = append(a.stdioServers, stdioServer{command: command, args: args})
	}
}

// WithSSEServers adds SSE MCP servers to federate.
func WithSSEServers(urls ...string) Option {
	return func(a *Agent) { a.sseServers = append(a.sseServers, urls...) }
}

// WithStreamableHTTPServers adds streamable HTTP MCP servers to federate.
func WithStreamableHTTPServers(urls ...string) Option {
	return func(a *Agent) { a.httpServers = append(a.httpServers, urls...) }
}

// WithPeers adds remote peer agents to discover and expose through the
// delegation tool.
func WithPeers(baseURLs ...string) Option {
	return func(a *Agent) { a.peers = append(a.peers, baseURLs...) }
}

// WithProvider federates a custom provider after all built-in kinds.
func WithProvider(p ports.Provider) Option {
	return func(a *Agent) { a.providers = append(a.providers, p) }
}

// WithTools registers local in-process tools directly into the federation.
func WithTools(descriptors ...domain.Descriptor) Option {
	return func(a *Agent) { a.localTools = append(a.localTools, descriptors...) }
}

// WithMaxRounds bounds the model rounds within one turn.
func WithMaxRounds(n int) Option {
	return func(a *Agent) { a.maxRounds = n }
}

// WithMetricsRegistry registers the agent's collectors with reg.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(a *Agent) { a.registry = reg }
}

// New assembles an agent: it connects every configured provider in a fixed
// resolution order (stdio, then SSE, then streamable HTTP, then peers, then
// custom providers) and federates their tools. A provider that fails to
// connect or collides with already-federated names is logged, closed, and
// skipped; the rest of the agent still comes up.
func New(ctx context.Context, opts ...Option) (*Agent, error) {
	a := &Agent{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if a.registry != nil {
		a.metrics = metrics.New(a.registry)
	}

	if a.model == nil {
		if a.modelConfig == nil {
			return nil, errors.New("an agent requires a model: use WithOpenAI or WithModel")
		}
		a.model = openai.New(*a.modelConfig,
			openai.WithLogger(a.logger),
			openai.WithMetrics(a.metrics),
		)
	}

	a.fed = federation.New(a.logger)
	if err := a.setup(ctx); err != nil {
		_ = a.fed.Close()
		return nil, err
	}

	l, err := loop.New(loop.Options{
		Model:         a.model,
		Tools:         a.fed,
		SystemMessage: a.systemMessage,
		MaxRounds:     a.maxRounds,
		Logger:        a.logger,
		Metrics:       a.metrics,
	})
	if err != nil {
		_ = a.fed.Close()
		return nil, err
	}
	a.loop = l

	a.logger.Info("agent ready", "tools", a.fed.Len())
	return a, nil
}

// setup connects and federates every configured provider. It runs once,
// before any conversation; the federation is read-only afterwards.
func (a *Agent) setup(ctx context.Context) error {
	for _, d := range a.localTools {
		if err := a.fed.Register(d); err != nil {
			return fmt.Errorf("register local tool: %w", err)
		}
	}

	var clients []ports.Provider
	for _, s := range a.stdioServers {
		clients = append(clients, mcp.NewStdioClient(s.command, s.args))
	}
	for _, url := range a.sseServers {
		clients = append(clients, mcp.NewSSEClient(url))
	}
	for _, url := range a.httpServers {
		clients = append(clients, mcp.NewStreamableHTTPClient(url))
	}
	if len(a.peers) > 0 {
		clients = append(clients, a2a.NewPool(a.peers, a2a.WithLogger(a.logger)))
	}
	clients = append(clients, a.providers...)

	for _, c := range clients {
		if err := c.Connect(ctx); err != nil {
			a.logger.Warn("provider unreachable, skipping", "provider", c.Name(), "error", err)
			_ = c.Close()
			continue
		}
		if err := a.fed.AddProvider(ctx, c); err != nil {
			var dup *domain.DuplicateToolError
			if errors.As(err, &dup) {
				a.logger.Warn("provider rejected, tool names collide",
					"provider", c.Name(), "tools", dup.Names)
			} else {
				a.logger.Warn("provider listing failed, skipping", "provider", c.Name(), "error", err)
			}
			_ = c.Close()
			continue
		}
	}

	if a.fed.Len() == 0 {
		a.logger.Warn("federation is empty; the model will run without tools")
	}
	return nil
}

// Invoke runs one conversation turn. The supplied history must not contain a
// system message; the returned history never does either.
func (a *Agent) Invoke(ctx context.Context, history []domain.Message) ([]domain.Message, error) {
	return a.loop.Run(ctx, history)
}

// Respond runs a single-message turn and returns the final assistant text.
// This is the operation served to remote peers.
func (a *Agent) Respond(ctx context.Context, text string) (string, error) {
	history, err := a.Invoke(ctx, []domain.Message{domain.UserMessage(text)})
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errors.New("turn produced no messages")
	}
	return history[len(history)-1].Content, nil
}

// Tools returns the federated tool names in catalog order.
func (a *Agent) Tools() []string {
	return a.fed.Names()
}

// Close releases every connected provider exactly once.
func (a *Agent) Close() error {
	return a.fed.Close()
}
