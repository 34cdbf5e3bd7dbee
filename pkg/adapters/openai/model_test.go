package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-agent/manifold/pkg/domain"
	"github.com/manifold-agent/manifold/pkg/ports"
)

// fakeCompletionServer pretends to be an OpenAI-compatible endpoint and
// captures the last request body it saw.
type fakeCompletionServer struct {
	srv      *httptest.Server
	lastBody map[string]any
	handler  func(w http.ResponseWriter, streaming bool)
}

func newFakeCompletionServer(t *testing.T, handler func(w http.ResponseWriter, streaming bool)) *fakeCompletionServer {
	t.Helper()
	f := &fakeCompletionServer{handler: handler}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lastBody = body
		streaming, _ := body["stream"].(bool)
		f.handler(w, streaming)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCompletionServer) client(streamEnabled bool) *Client {
	return New(Config{
		APIKey:  "test-key",
		BaseURL: f.srv.URL + "/v1",
		Model:   "gpt-test",
		Stream:  streamEnabled,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestCompleteSinglePayload(t *testing.T) {
	fake := newFakeCompletionServer(t, func(w http.ResponseWriter, _ bool) {
		writeJSON(w, map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": "Hello there.",
				},
			}},
		})
	})

	msg, err := fake.client(false).Complete(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t, "Hello there.", msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestCompleteForwardsToolCatalog(t *testing.T) {
	fake := newFakeCompletionServer(t, func(w http.ResponseWriter, _ bool) {
		writeJSON(w, map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{"role": "assistant", "content": "ok"},
			}},
		})
	})

	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
	_, err := fake.client(false).Complete(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
		Tools:    []domain.ToolDefinition{domain.NewToolDefinition("greet", "Greets a person", params)},
	})
	require.NoError(t, err)

	tools, ok := fake.lastBody["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)

	tool := tools[0].(map[string]any)
	assert.Equal(t, "function", tool["type"])
	fn := tool["function"].(map[string]any)
	assert.Equal(t, "greet", fn["name"])
	assert.Equal(t, true, fn["strict"])
	assert.Contains(t, fn["parameters"].(map[string]any), "properties")
}

func TestCompleteSinglePayloadToolCalls(t *testing.T) {
	fake := newFakeCompletionServer(t, func(w http.ResponseWriter, _ bool) {
		writeJSON(w, map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []any{map[string]any{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "greet",
							"arguments": `{"name":"Alice"}`,
						},
					}},
				},
			}},
		})
	})

	msg, err := fake.client(false).Complete(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("greet Alice")},
	})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "greet", msg.ToolCalls[0].Name)
	assert.Equal(t, `{"name":"Alice"}`, msg.ToolCalls[0].Arguments)
}

func sseChunk(delta map[string]any) string {
	raw, _ := json.Marshal(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion.chunk",
		"choices": []any{map[string]any{
			"index": 0,
			"delta": delta,
		}},
	})
	return fmt.Sprintf("data: %s\n\n", raw)
}

func TestCompleteStreamedText(t *testing.T) {
	fake := newFakeCompletionServer(t, func(w http.ResponseWriter, streaming bool) {
		if !streaming {
			http.Error(w, "expected streaming request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk(map[string]any{"role": "assistant", "content": "  Hello"}))
		fmt.Fprint(w, sseChunk(map[string]any{"content": ", world"}))
		fmt.Fprint(w, sseChunk(map[string]any{"content": "!  "}))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	msg, err := fake.client(true).Complete(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.NoError(t, err)
	// Whitespace is trimmed once, after full reassembly.
	assert.Equal(t, "Hello, world!", msg.Content)
}

func TestCompleteStreamedToolCall(t *testing.T) {
	fake := newFakeCompletionServer(t, func(w http.ResponseWriter, streaming bool) {
		if !streaming {
			http.Error(w, "expected streaming request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk(map[string]any{
			"tool_calls": []any{map[string]any{
				"index": 0,
				"id":    "call_1",
				"type":  "function",
				"function": map[string]any{
					"name":      "greet",
					"arguments": `{"na`,
				},
			}},
		}))
		fmt.Fprint(w, sseChunk(map[string]any{
			"tool_calls": []any{map[string]any{
				"index":    0,
				"function": map[string]any{"arguments": `me":"Alice"}`},
			}},
		}))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	msg, err := fake.client(true).Complete(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("greet Alice")},
	})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "greet", msg.ToolCalls[0].Name)
	assert.Equal(t, `{"name":"Alice"}`, msg.ToolCalls[0].Arguments)
}

func TestCompleteNoChoices(t *testing.T) {
	fake := newFakeCompletionServer(t, func(w http.ResponseWriter, _ bool) {
		writeJSON(w, map[string]any{"choices": []any{}})
	})

	_, err := fake.client(false).Complete(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
