package ports

import (
	"context"

	"github.com/manifold-agent/manifold/pkg/domain"
)

// Provider is one live connection to an external source of tools.
//
// Lifecycle: a Provider is constructed in a disconnected state, then Connect
// performs the transport handshake. A Provider that failed to connect must
// never expose tools. Close releases the connection and is idempotent: it is
// safe to call zero, one, or many times, because cleanup paths may call it
// redundantly after a failed Connect.
//
// Exactly one outstanding CallTool per connection at a time is assumed;
// concurrent invocations on the same provider are not a supported pattern.
type Provider interface {
	// Name identifies the provider for logging (address or command line).
	Name() string

	// Connect establishes the underlying channel and performs the protocol
	// handshake. On failure it returns a *domain.ConnectionError and must
	// not register any tools.
	Connect(ctx context.Context) error

	// ListTools returns the provider's full tool catalog. The returned
	// descriptors carry capabilities bound to this connection.
	ListTools(ctx context.Context) ([]domain.Descriptor, error)

	// Close releases the channel. Idempotent.
	Close() error
}
