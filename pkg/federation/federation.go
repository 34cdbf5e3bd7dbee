// Package federation merges tool catalogs from independently-failing
// providers into one conflict-checked namespace.
package federation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/pkg/domain"
	"github.com/manifold-agent/manifold/pkg/ports"
)

// Federation is an insertion-ordered mapping from tool name to descriptor.
//
// Names are unique: an insert that collides with an existing name is
// rejected, and the whole provider that produced the collision is discarded
// rather than partially merged. After setup the federation is read-only and
// safe for concurrent lookups from multiple conversations; setup itself must
// not run concurrently with active conversations.
type Federation struct {
	logger *slog.Logger

	mu        sync.RWMutex
	tools     map[string]domain.Descriptor
	order     []string
	providers []ports.Provider
	closed    bool
}

// New returns an empty federation. A nil logger disables logging.
func New(logger *slog.Logger) *Federation {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Federation{
		logger: logger,
		tools:  make(map[string]domain.Descriptor),
	}
}

// Register adds a single descriptor, typically a synthesized or local tool
// owned by the federation itself.
func (f *Federation) Register(d domain.Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if d.Capability == nil {
		return fmt.Errorf("tool %s has no capability", d.Name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.tools[d.Name]; exists {
		return &domain.DuplicateToolError{Names: []string{d.Name}}
	}
	f.tools[d.Name] = d
	f.order = append(f.order, d.Name)
	return nil
}

// AddProvider harvests the provider's catalog and merges it.
//
// The incoming names are intersected with everything federated so far; a
// non-empty intersection returns a *domain.DuplicateToolError naming the
// collisions and leaves the federation untouched — none of the provider's
// tools are merged. On success the federation adopts the provider and will
// close it when the federation itself is closed. On failure the provider's
// connection remains the caller's to close.
func (f *Federation) AddProvider(ctx context.Context, p ports.Provider) error {
	descriptors, err := p.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools from %s: %w", p.Name(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var colliding []string
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if _, exists := f.tools[d.Name]; exists || seen[d.Name] {
			colliding = append(colliding, d.Name)
		}
		seen[d.Name] = true
	}
	if len(colliding) > 0 {
		sort.Strings(colliding)
		return &domain.DuplicateToolError{Names: colliding}
	}

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		f.tools[d.Name] = d
		f.order = append(f.order, d.Name)
		names = append(names, d.Name)
	}
	f.providers = append(f.providers, p)

	f.logger.Info("provider federated", "provider", p.Name(), "tools", names)
	return nil
}

// Lookup returns the descriptor registered under name.
func (f *Federation) Lookup(name string) (domain.Descriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, ok := f.tools[name]
	return d, ok
}

// Definitions returns the wire-level tool schemas in insertion order, for
// deterministic catalog presentation to the model.
func (f *Federation) Definitions() []domain.ToolDefinition {
	f.mu.RLock()
	defer f.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(f.order))
	for _, name := range f.order {
		defs = append(defs, f.tools[name].Definition)
	}
	return defs
}

// Names returns the federated tool names in insertion order.
func (f *Federation) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]string(nil), f.order...)
}

// Len returns the number of federated tools.
func (f *Federation) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.tools)
}

// Close releases every adopted provider exactly once. Safe to call more
// than once; later calls are no-ops.
func (f *Federation) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var firstErr error
	for _, p := range f.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close provider %s: %w", p.Name(), err)
		}
	}
	return firstErr
}
