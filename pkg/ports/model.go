package ports

import (
	"context"

	"github.com/manifold-agent/manifold/pkg/domain"
)

// ChatRequest carries everything the external model needs for one call.
// The model interface is stateless: the full history and the complete tool
// catalog are re-sent on every call, not just the first.
type ChatRequest struct {
	Messages []domain.Message
	Tools    []domain.ToolDefinition
}

// ChatClient is the external language model. One call produces exactly one
// assistant message, whether the backend answered with a single payload or a
// stream (streamed responses are reassembled inside the adapter).
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (domain.Message, error)
}
