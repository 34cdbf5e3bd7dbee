package loop

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-agent/manifold/pkg/domain"
	"github.com/manifold-agent/manifold/pkg/federation"
	"github.com/manifold-agent/manifold/pkg/ports"
)

// scriptedModel replays a fixed sequence of assistant messages and records
// every request it received.
type scriptedModel struct {
	responses []domain.Message
	requests  []ports.ChatRequest
}

func (m *scriptedModel) Complete(_ context.Context, req ports.ChatRequest) (domain.Message, error) {
	m.requests = append(m.requests, req)
	if len(m.requests) > len(m.responses) {
		return domain.Message{}, fmt.Errorf("unexpected model call %d", len(m.requests))
	}
	return m.responses[len(m.requests)-1], nil
}

func greeterFederation(t *testing.T) *federation.Federation {
	t.Helper()
	fed := federation.New(nil)

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
	require.NoError(t, fed.Register(domain.Descriptor{
		Name:       "greet",
		Definition: domain.NewToolDefinition("greet", "Greets a person by name", params),
		Capability: domain.CapabilityFunc(func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("Hello, %v!", args["name"]), nil
		}),
	}))
	require.NoError(t, fed.Register(domain.Descriptor{
		Name:       "bye",
		Definition: domain.NewToolDefinition("bye", "Says goodbye to a person by name", params),
		Capability: domain.CapabilityFunc(func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("Bye, %v!", args["name"]), nil
		}),
	}))
	return fed
}

func assistantCalling(calls ...domain.ToolCall) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, ToolCalls: calls}
}

func TestRunSingleToolTurn(t *testing.T) {
	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(domain.ToolCall{ID: "call_1", Name: "greet", Arguments: `{"name":"Alice"}`}),
		{Role: domain.RoleAssistant, Content: "I greeted Alice."},
	}}

	l, err := New(Options{Model: model, Tools: greeterFederation(t), SystemMessage: "You are a helpful assistant."})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("Greet Alice")})
	require.NoError(t, err)

	require.Len(t, history, 4)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, domain.RoleTool, history[2].Role)
	assert.Equal(t, "call_1", history[2].ToolCallID)
	assert.Equal(t, "Hello, Alice!", history[2].Content)
	assert.Equal(t, "I greeted Alice.", history[3].Content)
}

func TestRunInjectsAndStripsSystemMessage(t *testing.T) {
	model := &scriptedModel{responses: []domain.Message{
		{Role: domain.RoleAssistant, Content: "ok"},
	}}

	l, err := New(Options{Model: model, Tools: federation.New(nil), SystemMessage: "be terse"})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("hi")})
	require.NoError(t, err)

	// The model saw the system message at position 0.
	require.Len(t, model.requests, 1)
	require.NotEmpty(t, model.requests[0].Messages)
	assert.Equal(t, domain.RoleSystem, model.requests[0].Messages[0].Role)
	assert.Equal(t, "be terse", model.requests[0].Messages[0].Content)

	// The caller never does.
	for _, m := range history {
		assert.NotEqual(t, domain.RoleSystem, m.Role)
	}
}

func TestRunResendsFullCatalogEveryCall(t *testing.T) {
	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(domain.ToolCall{ID: "c1", Name: "greet", Arguments: `{"name":"A"}`}),
		{Role: domain.RoleAssistant, Content: "done"},
	}}

	l, err := New(Options{Model: model, Tools: greeterFederation(t)})
	require.NoError(t, err)

	_, err = l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	require.Len(t, model.requests, 2)
	for _, req := range model.requests {
		assert.Len(t, req.Tools, 2)
	}
}

func TestRunUnknownToolStillGetsReply(t *testing.T) {
	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(domain.ToolCall{ID: "c1", Name: "nope", Arguments: `{}`}),
		{Role: domain.RoleAssistant, Content: "done"},
	}}

	l, err := New(Options{Model: model, Tools: greeterFederation(t)})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	require.Len(t, history, 4)
	assert.Equal(t, domain.RoleTool, history[2].Role)
	assert.Equal(t, "c1", history[2].ToolCallID)
	assert.Contains(t, history[2].Content, "nope")
	assert.Contains(t, history[2].Content, "not available")
}

func TestRunUnparseableArgumentsBecomeToolResult(t *testing.T) {
	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(domain.ToolCall{ID: "c1", Name: "greet", Arguments: `{"name":`}),
		{Role: domain.RoleAssistant, Content: "done"},
	}}

	l, err := New(Options{Model: model, Tools: greeterFederation(t)})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	assert.Contains(t, history[2].Content, "invoke greet")
	assert.Contains(t, history[2].Content, "parse arguments")
}

func TestRunStrictSchemaRejectsBadArguments(t *testing.T) {
	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(domain.ToolCall{ID: "c1", Name: "greet", Arguments: `{"person":"Alice"}`}),
		{Role: domain.RoleAssistant, Content: "done"},
	}}

	l, err := New(Options{Model: model, Tools: greeterFederation(t)})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	assert.Contains(t, history[2].Content, "invoke greet")
	assert.Contains(t, history[2].Content, "schema")
}

func TestRunToolFailureDoesNotAbortTurn(t *testing.T) {
	fed := federation.New(nil)
	require.NoError(t, fed.Register(domain.Descriptor{
		Name:       "flaky",
		Definition: domain.NewToolDefinition("flaky", "always fails", nil),
		Capability: domain.CapabilityFunc(func(context.Context, map[string]any) (string, error) {
			return "", fmt.Errorf("backend exploded")
		}),
	}))
	require.NoError(t, fed.Register(domain.Descriptor{
		Name:       "steady",
		Definition: domain.NewToolDefinition("steady", "always works", nil),
		Capability: domain.CapabilityFunc(func(context.Context, map[string]any) (string, error) {
			return "fine", nil
		}),
	}))

	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(
			domain.ToolCall{ID: "c1", Name: "flaky", Arguments: `{}`},
			domain.ToolCall{ID: "c2", Name: "steady", Arguments: `{}`},
		),
		{Role: domain.RoleAssistant, Content: "done"},
	}}

	l, err := New(Options{Model: model, Tools: fed})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	require.Len(t, history, 5)
	assert.Contains(t, history[2].Content, "backend exploded")
	assert.Equal(t, "fine", history[3].Content)
	assert.Equal(t, "done", history[4].Content)
}

func TestRunInvocationOrderPreserved(t *testing.T) {
	var invoked []string
	fed := federation.New(nil)
	for _, name := range []string{"first", "second", "third"} {
		name := name
		require.NoError(t, fed.Register(domain.Descriptor{
			Name:       name,
			Definition: domain.NewToolDefinition(name, name, nil),
			Capability: domain.CapabilityFunc(func(context.Context, map[string]any) (string, error) {
				invoked = append(invoked, name)
				return name, nil
			}),
		}))
	}

	model := &scriptedModel{responses: []domain.Message{
		assistantCalling(
			domain.ToolCall{ID: "c3", Name: "third", Arguments: `{}`},
			domain.ToolCall{ID: "c1", Name: "first", Arguments: `{}`},
			domain.ToolCall{ID: "c2", Name: "second", Arguments: `{}`},
		),
		{Role: domain.RoleAssistant, Content: "done"},
	}}

	l, err := New(Options{Model: model, Tools: fed})
	require.NoError(t, err)

	_, err = l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.NoError(t, err)

	assert.Equal(t, []string{"third", "first", "second"}, invoked)
}

func TestRunRoundLimit(t *testing.T) {
	// A model that always requests another tool call would loop forever
	// without the bound.
	model := &loopingModel{}

	l, err := New(Options{Model: model, Tools: greeterFederation(t), MaxRounds: 3})
	require.NoError(t, err)

	history, err := l.Run(context.Background(), []domain.Message{domain.UserMessage("go")})
	require.ErrorIs(t, err, ErrRoundLimit)
	assert.Equal(t, 3, model.calls)
	// History so far is still returned: user + 3 x (assistant + tool).
	assert.Len(t, history, 7)
}

type loopingModel struct{ calls int }

func (m *loopingModel) Complete(context.Context, ports.ChatRequest) (domain.Message, error) {
	m.calls++
	return assistantCalling(domain.ToolCall{ID: fmt.Sprintf("c%d", m.calls), Name: "greet", Arguments: `{"name":"A"}`}), nil
}

// replayModel answers functionally from the history: one greet call until a
// tool result exists, then a fixed final answer. Deterministic across runs.
type replayModel struct{}

func (replayModel) Complete(_ context.Context, req ports.ChatRequest) (domain.Message, error) {
	for _, m := range req.Messages {
		if m.Role == domain.RoleTool {
			return domain.Message{Role: domain.RoleAssistant, Content: "Greeted."}, nil
		}
	}
	return assistantCalling(domain.ToolCall{ID: "call_1", Name: "greet", Arguments: `{"name":"Alice"}`}), nil
}

func TestRunReplayProducesIdenticalPrefix(t *testing.T) {
	fed := greeterFederation(t)

	first, err := New(Options{Model: replayModel{}, Tools: fed, SystemMessage: "sys"})
	require.NoError(t, err)
	out, err := first.Run(context.Background(), []domain.Message{domain.UserMessage("Greet Alice")})
	require.NoError(t, err)

	second, err := New(Options{Model: replayModel{}, Tools: fed, SystemMessage: "sys"})
	require.NoError(t, err)
	replayed, err := second.Run(context.Background(), out)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(replayed), len(out))
	assert.Equal(t, out, replayed[:len(out)])
}
