package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelUnsupported is returned when a caller attempts to cancel an
// in-flight agent turn. Cancellation is not supported and must fail loudly
// rather than attempt a partial rollback.
var ErrCancelUnsupported = errors.New("cancellation is not supported")

// ConnectionError reports that a provider could not be reached or that its
// protocol handshake failed. It is non-fatal to the rest of the system: the
// provider is skipped and the federation continues without it.
type ConnectionError struct {
	Endpoint string // identifying address or command line of the transport
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DuplicateToolError reports a tool name collision at federation time.
// The colliding provider's entire tool set is discarded.
type DuplicateToolError struct {
	Names []string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("duplicate tools: %s", strings.Join(e.Names, ", "))
}

// InvocationError reports that a single tool call failed, timed out, or was
// given arguments that do not parse or validate. It is captured and converted
// into the tool-result content so the model can react; it never aborts the
// conversation.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
