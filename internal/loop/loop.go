// Package loop implements the model → tool → model state machine at the
// heart of the runtime.
package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/internal/metrics"
	"github.com/manifold-agent/manifold/pkg/domain"
	"github.com/manifold-agent/manifold/pkg/federation"
	"github.com/manifold-agent/manifold/pkg/ports"
	"github.com/manifold-agent/manifold/pkg/schema"
)

// DefaultMaxRounds bounds the number of model calls within one turn so a
// tool that keeps triggering further identical calls cannot loop forever.
const DefaultMaxRounds = 16

// ErrRoundLimit is returned (together with the history so far) when a turn
// exhausts its round budget without the model settling on a final answer.
var ErrRoundLimit = errors.New("tool-calling round limit reached")

// Loop drives one conversation: it repeatedly calls the model and, while the
// model requests tool invocations, executes them through the federation and
// folds the results back into history.
//
// A Loop is single-flow per conversation: model calls and tool invocations
// within a turn are strictly sequential, because later steps read the
// previous step's history. Independent conversations get independent Loop
// values sharing one read-only federation.
type Loop struct {
	model         ports.ChatClient
	tools         *federation.Federation
	systemMessage string
	maxRounds     int
	logger        *slog.Logger
	metrics       *metrics.Recorder
}

// Options configure a new Loop.
type Options struct {
	Model         ports.ChatClient
	Tools         *federation.Federation
	SystemMessage string
	MaxRounds     int // <= 0 means DefaultMaxRounds
	Logger        *slog.Logger
	Metrics       *metrics.Recorder
}

// New validates the options and builds a Loop.
func New(opts Options) (*Loop, error) {
	if opts.Model == nil {
		return nil, errors.New("loop requires a chat client")
	}
	if opts.Tools == nil {
		return nil, errors.New("loop requires a federation")
	}

	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Loop{
		model:         opts.Model,
		tools:         opts.Tools,
		systemMessage: opts.SystemMessage,
		maxRounds:     maxRounds,
		logger:        logger,
		metrics:       opts.Metrics,
	}, nil
}

// Run executes one full turn.
//
// The caller supplies a history without a system message; the configured
// system message is injected at position 0 for every model call and stripped
// again before the history is returned, so the caller-visible history never
// contains it. Every model call re-sends the complete federated catalog,
// since the model interface is stateless.
func (l *Loop) Run(ctx context.Context, history []domain.Message) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(history)+4)
	if l.systemMessage != "" {
		messages = append(messages, domain.SystemMessage(l.systemMessage))
	}
	messages = append(messages, history...)

	defs := l.tools.Definitions()

	rounds := 0
	for {
		rounds++
		if rounds > l.maxRounds {
			l.logger.Warn("round limit reached", "max_rounds", l.maxRounds)
			l.metrics.ObserveTurnRounds(rounds - 1)
			return stripSystem(messages), fmt.Errorf("%w after %d rounds", ErrRoundLimit, l.maxRounds)
		}

		assistant, err := l.model.Complete(ctx, ports.ChatRequest{Messages: messages, Tools: defs})
		if err != nil {
			return stripSystem(messages), fmt.Errorf("model call: %w", err)
		}
		messages = append(messages, assistant)
		l.logger.Debug("model responded",
			"round", rounds,
			"tool_calls", len(assistant.ToolCalls),
			"content_len", len(assistant.Content))

		if len(assistant.ToolCalls) == 0 {
			break
		}

		// Invocations run strictly in the order received; later calls may
		// depend on earlier ones having completed.
		for _, call := range assistant.ToolCalls {
			content := l.execute(ctx, call)
			messages = append(messages, domain.ToolMessage(call.ID, content))
		}
	}

	l.metrics.ObserveTurnRounds(rounds)
	return stripSystem(messages), nil
}

// execute runs one tool call and always returns content for the tool reply:
// an assistant turn requires a reply for every invocation it issued, so
// parse failures, unknown tools, and invocation errors all become text the
// model can see rather than aborting the turn.
func (l *Loop) execute(ctx context.Context, call domain.ToolCall) string {
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			l.metrics.ObserveToolInvocation(call.Name, "bad_arguments")
			invErr := &domain.InvocationError{Tool: call.Name, Err: fmt.Errorf("parse arguments: %w", err)}
			l.logger.Warn("tool arguments unparseable", "tool", call.Name, "error", err)
			return invErr.Error()
		}
	}

	desc, ok := l.tools.Lookup(call.Name)
	if !ok {
		l.metrics.ObserveToolInvocation(call.Name, "unknown_tool")
		l.logger.Warn("unknown tool requested", "tool", call.Name)
		return fmt.Sprintf("tool %q is not available", call.Name)
	}

	if desc.Definition.Function.Strict {
		if err := schema.Validate(desc.Definition.Function.Parameters, args); err != nil {
			l.metrics.ObserveToolInvocation(call.Name, "bad_arguments")
			invErr := &domain.InvocationError{Tool: call.Name, Err: err}
			l.logger.Warn("tool arguments rejected", "tool", call.Name, "error", err)
			return invErr.Error()
		}
	}

	result, err := desc.Capability.Invoke(ctx, args)
	if err != nil {
		l.metrics.ObserveToolInvocation(call.Name, "error")
		var invErr *domain.InvocationError
		if !errors.As(err, &invErr) {
			invErr = &domain.InvocationError{Tool: call.Name, Err: err}
		}
		l.logger.Warn("tool invocation failed", "tool", call.Name, "error", err)
		return invErr.Error()
	}

	l.metrics.ObserveToolInvocation(call.Name, "ok")
	return result
}

func stripSystem(messages []domain.Message) []domain.Message {
	if len(messages) > 0 && messages[0].Role == domain.RoleSystem {
		return messages[1:]
	}
	return messages
}
