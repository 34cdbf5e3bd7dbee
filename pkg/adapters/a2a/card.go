// Package a2a speaks the agent-to-agent protocol in both directions: a Pool
// that discovers remote peers and exposes delegation to them as one federated
// tool, and a Server that exposes this agent's own loop to remote peers.
package a2a

// Skill is one advertised capability on an agent card.
type Skill struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentCard is the self-description a peer serves at
// /.well-known/agent-card. Discovered once at startup and read-only
// thereafter.
type AgentCard struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	URL         string  `json:"url,omitempty"`
	Version     string  `json:"version,omitempty"`
	Skills      []Skill `json:"skills,omitempty"`
}

// WellKnownPath is where agent cards live, relative to a peer's base URL.
const WellKnownPath = "/.well-known/agent-card"
