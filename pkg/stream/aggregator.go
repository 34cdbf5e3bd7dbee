// Package stream reassembles incrementally-streamed model responses.
//
// A streamed assistant turn arrives as an ordered sequence of fragments:
// text deltas and partial tool-call deltas, interleaved. The Aggregator is a
// single-pass, single-threaded reducer over that sequence; construct a fresh
// one per model call.
package stream

import (
	"strings"
	"time"

	"github.com/manifold-agent/manifold/pkg/domain"
)

// ToolCallDelta is one partial update to a tool call within the turn.
// Index identifies which parallel tool call the delta belongs to; a single
// assistant turn may request multiple tools, each streamed independently and
// interleaved by index.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Fragment is one incremental unit of a streamed model response.
type Fragment struct {
	TextDelta string
	ToolCalls []ToolCallDelta
}

// Timing captures when the first fragment arrived and when the stream ended.
// Used purely for latency observability, never for control decisions.
type Timing struct {
	FirstFragment time.Time
	StreamEnd     time.Time
}

type slot struct {
	id   string
	name string
	args strings.Builder
}

// Aggregator folds fragments into one complete assistant message.
type Aggregator struct {
	text  strings.Builder
	slots map[int]*slot
	order []int

	first time.Time
	now   func() time.Time
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		slots: make(map[int]*slot),
		now:   time.Now,
	}
}

// Add folds one fragment into the accumulated state.
//
// The first fragment seen for an index establishes that slot's correlation
// id and tool name; every later fragment for the index has its arguments
// appended as a raw substring, in arrival order, without re-parsing.
func (a *Aggregator) Add(f Fragment) {
	if a.first.IsZero() {
		a.first = a.now()
	}
	a.text.WriteString(f.TextDelta)

	for _, tc := range f.ToolCalls {
		s, ok := a.slots[tc.Index]
		if !ok {
			s = &slot{id: tc.ID, name: tc.Name}
			a.slots[tc.Index] = s
			a.order = append(a.order, tc.Index)
		}
		s.args.WriteString(tc.Arguments)
	}
}

// Result returns the reconstructed assistant message and the stream timing.
// Text is trimmed once, here. Tool calls come out in the order their index
// was first observed, each with the full concatenated arguments string.
func (a *Aggregator) Result() (domain.Message, Timing) {
	msg := domain.Message{
		Role:    domain.RoleAssistant,
		Content: strings.TrimSpace(a.text.String()),
	}
	for _, idx := range a.order {
		s := a.slots[idx]
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:        s.id,
			Name:      s.name,
			Arguments: s.args.String(),
		})
	}
	return msg, Timing{FirstFragment: a.first, StreamEnd: a.now()}
}
