// Package openai implements the chat-model port against any
// OpenAI-compatible completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/internal/metrics"
	"github.com/manifold-agent/manifold/pkg/domain"
	"github.com/manifold-agent/manifold/pkg/ports"
	"github.com/manifold-agent/manifold/pkg/stream"
)

// Config selects the endpoint and generation parameters.
type Config struct {
	APIKey      string
	BaseURL     string // empty means the public OpenAI endpoint
	Model       string
	Temperature float32
	Stream      bool // reassemble a streamed response instead of one payload
}

// Client is a stateless ChatClient over an OpenAI-compatible API.
type Client struct {
	api     *goopenai.Client
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option tweaks client behavior.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records model latency on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

// New builds a client for the configured endpoint.
func New(cfg Config, opts ...Option) *Client {
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	c := &Client{
		api:    goopenai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete performs one model call and returns the assistant message,
// reassembling the response through the stream aggregator when streaming is
// enabled.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (domain.Message, error) {
	apiReq := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    toAPIMessages(req.Messages),
		Tools:       toAPITools(req.Tools),
	}

	start := time.Now()
	if c.cfg.Stream {
		return c.completeStream(ctx, apiReq, start)
	}

	res, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return domain.Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(res.Choices) == 0 {
		return domain.Message{}, fmt.Errorf("chat completion returned no choices")
	}

	c.metrics.ObserveModelCall(0, time.Since(start))
	return fromAPIMessage(res.Choices[0].Message), nil
}

func (c *Client) completeStream(ctx context.Context, apiReq goopenai.ChatCompletionRequest, start time.Time) (domain.Message, error) {
	apiReq.Stream = true
	s, err := c.api.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return domain.Message{}, fmt.Errorf("open completion stream: %w", err)
	}
	defer s.Close()

	agg := stream.NewAggregator()
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Message{}, fmt.Errorf("read completion stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		agg.Add(toFragment(chunk.Choices[0].Delta))
	}

	msg, timing := agg.Result()
	if !timing.FirstFragment.IsZero() {
		c.metrics.ObserveModelCall(timing.FirstFragment.Sub(start), timing.StreamEnd.Sub(start))
	}
	c.logger.Debug("stream reassembled",
		"tool_calls", len(msg.ToolCalls),
		"content_len", len(msg.Content))
	return msg, nil
}

func toFragment(delta goopenai.ChatCompletionStreamChoiceDelta) stream.Fragment {
	f := stream.Fragment{TextDelta: delta.Content}
	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		f.ToolCalls = append(f.ToolCalls, stream.ToolCallDelta{
			Index:     idx,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return f
}

func toAPIMessages(messages []domain.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		apiMsg := goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, goopenai.ToolCall{
				ID:   call.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, apiMsg)
	}
	return out
}

func toAPITools(tools []domain.ToolDefinition) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Strict:      t.Function.Strict,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}

func fromAPIMessage(m goopenai.ChatCompletionMessage) domain.Message {
	out := domain.Message{
		Role:    domain.RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
