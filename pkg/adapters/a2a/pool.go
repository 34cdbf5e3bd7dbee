package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/pkg/domain"
)

const (
	// DelegationToolName is the single synthesized tool through which the
	// model reaches every known peer.
	DelegationToolName = "call_agent"

	defaultDiscoveryTimeout = 15 * time.Second
	defaultCallTimeout      = 10 * time.Minute
)

type peer struct {
	card    AgentCard
	baseURL string
}

// Pool discovers remote peer agents and presents delegation to them as a
// provider with at most one tool. Discovery happens in Connect; a peer that
// is unreachable or serves a malformed card is logged and omitted, never
// fatal to the others.
type Pool struct {
	baseURLs         []string
	httpClient       *http.Client
	discoveryTimeout time.Duration
	callTimeout      time.Duration
	logger           *slog.Logger

	mu     sync.Mutex
	peers  []peer
	byName map[string]int
	closed bool
}

// PoolOption tweaks pool behavior.
type PoolOption func(*Pool)

// WithHTTPClient overrides the client used for discovery and delegation.
// The client must not carry its own Timeout: both phases are bounded by
// per-request contexts, and a client timeout would cap delegated calls at
// the discovery budget.
func WithHTTPClient(c *http.Client) PoolOption {
	return func(p *Pool) { p.httpClient = c }
}

// WithDiscoveryTimeout bounds each agent-card fetch.
func WithDiscoveryTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.discoveryTimeout = d }
}

// WithCallTimeout bounds each delegated call.
func WithCallTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.callTimeout = d }
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool prepares a pool over the given peer base URLs. No I/O happens
// until Connect.
func NewPool(baseURLs []string, opts ...PoolOption) *Pool {
	p := &Pool{
		baseURLs:         baseURLs,
		httpClient:       &http.Client{},
		discoveryTimeout: defaultDiscoveryTimeout,
		callTimeout:      defaultCallTimeout,
		logger:           logging.NewNop(),
		byName:           make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the pool for federation logs.
func (p *Pool) Name() string {
	return fmt.Sprintf("a2a-pool(%s)", strings.Join(p.baseURLs, ","))
}

// Connect fetches every configured peer's agent card. Unreachable peers and
// duplicate agent names are logged and skipped; Connect itself only fails
// once the pool has been closed.
func (p *Pool) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &domain.ConnectionError{Endpoint: p.Name(), Err: fmt.Errorf("pool already closed")}
	}

	for _, baseURL := range p.baseURLs {
		card, err := p.fetchCard(ctx, baseURL)
		if err != nil {
			p.logger.Warn("peer discovery failed, skipping peer", "peer", baseURL, "error", err)
			continue
		}
		if card.Name == "" {
			p.logger.Warn("peer card has no name, skipping peer", "peer", baseURL)
			continue
		}
		if _, exists := p.byName[card.Name]; exists {
			p.logger.Warn("duplicate peer agent name, skipping peer", "peer", baseURL, "agent", card.Name)
			continue
		}
		p.byName[card.Name] = len(p.peers)
		p.peers = append(p.peers, peer{card: card, baseURL: baseURL})
		p.logger.Info("peer agent discovered", "agent", card.Name, "peer", baseURL)
	}
	return nil
}

// ListTools returns the single delegation tool, or nothing when no peer
// survived discovery. The tool description is rebuilt from the live peer set
// on every call: it is the model's only way to learn what each peer can do.
func (p *Pool) ListTools(context.Context) ([]domain.Descriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.peers) == 0 {
		return nil, nil
	}

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Name of the remote agent to call",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Message to send to the remote agent",
			},
		},
		"required": []any{"agent_name", "message"},
	}

	return []domain.Descriptor{{
		Name:       DelegationToolName,
		Definition: domain.NewToolDefinition(DelegationToolName, p.describePeers(), params),
		Capability: domain.CapabilityFunc(p.delegate),
	}}, nil
}

// Close marks the pool closed. The pool holds no persistent connections of
// its own, so there is nothing to release beyond refusing further use.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Agents returns the discovered peer names in discovery order.
func (p *Pool) Agents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.peers))
	for i, pr := range p.peers {
		names[i] = pr.card.Name
	}
	return names
}

type delegationArgs struct {
	AgentName string `mapstructure:"agent_name"`
	Message   string `mapstructure:"message"`
}

func (p *Pool) delegate(ctx context.Context, raw map[string]any) (string, error) {
	var args delegationArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return "", &domain.InvocationError{Tool: DelegationToolName, Err: fmt.Errorf("decode arguments: %w", err)}
	}

	p.mu.Lock()
	idx, ok := p.byName[args.AgentName]
	var target peer
	if ok {
		target = p.peers[idx]
	}
	known := make([]string, len(p.peers))
	for i, pr := range p.peers {
		known[i] = pr.card.Name
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Sprintf("agent %q is not known; known agents: %s", args.AgentName, strings.Join(known, ", ")), nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	reply, err := p.sendMessage(ctx, target.baseURL, args.Message)
	if err != nil {
		return "", &domain.InvocationError{Tool: DelegationToolName, Err: err}
	}
	return reply, nil
}

func (p *Pool) describePeers() string {
	var b strings.Builder
	b.WriteString("Delegate a task to a remote agent by name. Known agents:\n")
	for _, pr := range p.peers {
		fmt.Fprintf(&b, "\n- %s: %s", pr.card.Name, pr.card.Description)
		for _, skill := range pr.card.Skills {
			if skill.Description != "" {
				fmt.Fprintf(&b, "\n  skill: %s", skill.Description)
			}
			for _, example := range skill.Examples {
				fmt.Fprintf(&b, "\n  example: %s", example)
			}
		}
	}
	return b.String()
}

func (p *Pool) fetchCard(ctx context.Context, baseURL string) (AgentCard, error) {
	ctx, cancel := context.WithTimeout(ctx, p.discoveryTimeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return AgentCard{}, err
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return AgentCard{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return AgentCard{}, fmt.Errorf("agent card request returned %s", res.Status)
	}

	var card AgentCard
	if err := json.NewDecoder(res.Body).Decode(&card); err != nil {
		return AgentCard{}, fmt.Errorf("parse agent card: %w", err)
	}
	return card, nil
}

// sendMessage performs one message/send round trip. The canonical reply is
// the first result part carrying text; a response without one is serialized
// back to JSON wholesale.
func (p *Pool) sendMessage(ctx context.Context, baseURL, text string) (string, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "message/send",
		Params: sendParams{Message: ProtocolMessage{
			Role:      "user",
			Parts:     []Part{{Kind: "text", Text: text}},
			MessageID: uuid.NewString(),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("message/send returned %s: %s", res.Status, strings.TrimSpace(string(raw)))
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("parse message/send response: %w", err)
	}
	if text, ok := firstTextPart(decoded["result"]); ok {
		return text, nil
	}
	return string(raw), nil
}

// firstTextPart digs through a result payload for the first part carrying a
// text field.
func firstTextPart(result any) (string, bool) {
	node, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	parts, ok := node["parts"].([]any)
	if !ok {
		return "", false
	}
	for _, item := range parts {
		part, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := part["text"].(string); ok {
			return text, true
		}
	}
	return "", false
}
