package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/pkg/domain"
)

// Responder runs one agent turn for an incoming remote request: user text
// in, final assistant text out.
type Responder interface {
	Respond(ctx context.Context, text string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, text string) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Server exposes one agent over the wire: its card at the well-known path
// and a JSON-RPC message/send endpoint that runs the agent's loop to
// completion. Cancellation of a running turn is not supported and is
// rejected loudly.
type Server struct {
	card      AgentCard
	responder Responder
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
}

// ServerOption tweaks server behavior.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithMetricsGatherer mounts a Prometheus /metrics endpoint for g.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// NewServer builds a serving surface for the given card and responder.
func NewServer(card AgentCard, responder Responder, opts ...ServerOption) *Server {
	s := &Server{
		card:      card,
		responder: responder,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(WellKnownPath, s.handleCard)
	r.Post("/", s.handleRPC)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe runs the surface on addr until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("agent serving", "addr", addr, "agent", s.card.Name)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		s.logger.Error("write agent card", "error", err)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcIncoming
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidRequest, Message: "malformed request"}})
		return
	}

	switch req.Method {
	case "message/send":
		s.handleSend(r.Context(), w, req)
	case "tasks/cancel", "message/cancel":
		s.logger.Warn("cancellation requested", "method", req.Method)
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code:    codeUnsupportedOperation,
			Message: domain.ErrCancelUnsupported.Error(),
		}})
	default:
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "method not found"}})
	}
}

func (s *Server) handleSend(ctx context.Context, w http.ResponseWriter, req rpcIncoming) {
	var params sendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "malformed params"}})
		return
	}

	text, ok := incomingText(params.Message)
	if !ok {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "message carries no text part"}})
		return
	}

	s.logger.Info("remote turn started", "agent", s.card.Name)
	reply, err := s.responder.Respond(ctx, text)
	if err != nil {
		s.logger.Error("remote turn failed", "error", err)
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInternalError, Message: err.Error()}})
		return
	}

	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: ProtocolMessage{
		Role:      "assistant",
		Parts:     []Part{{Kind: "text", Text: reply}},
		MessageID: uuid.NewString(),
	}})
}

func incomingText(msg ProtocolMessage) (string, bool) {
	for _, part := range msg.Parts {
		if part.Text != "" {
			return part.Text, true
		}
	}
	return "", false
}

func writeRPC(w http.ResponseWriter, res rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
