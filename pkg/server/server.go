package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/controller"
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/orchestrator"
	"github.com/nstogner/butler/pkg/store"
)

// Chats is the conversational surface. *controller.Controller implements it.
type Chats interface {
	NewSession() string
	Delete(id string) error
	Reset(id string) error
	History(id string) ([]domain.Turn, error)
	Chat(ctx context.Context, sessionID, text string, amb controller.Ambient) (controller.ChatReply, error)
}

// Orders is the order automation surface. *orchestrator.Orchestrator
// implements it.
type Orders interface {
	Pending() []domain.PendingOrder
	Resume(ctx context.Context, h browser.Handle) (domain.OrderOutcome, error)
	Screenshot(ctx context.Context, h browser.Handle) ([]byte, error)
	DetectPlatform(rawURL string) (domain.PlatformID, bool)
}

// ToolDispatcher executes tool calls directly. *controller.Dispatcher
// implements it.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []domain.ToolCall) []domain.ToolResult
}

var (
	_ Chats          = (*controller.Controller)(nil)
	_ Orders         = (*orchestrator.Orchestrator)(nil)
	_ ToolDispatcher = (*controller.Dispatcher)(nil)
)

// Server serves the REST and WebSocket API.
type Server struct {
	chats      Chats
	orders     Orders
	dispatcher ToolDispatcher
	log        store.OrderLog
	srv        *http.Server
}

// New creates a new Server. log may be nil, in which case the order history
// routes report 404.
func New(chats Chats, orders Orders, dispatcher ToolDispatcher, log store.OrderLog) *Server {
	return &Server{
		chats:      chats,
		orders:     orders,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleResetSession)
	mux.HandleFunc("GET /api/sessions/{id}/history", s.handleGetHistory)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handlePostMessage)

	// WebSocket
	mux.HandleFunc("GET /api/sessions/{id}/chat", s.handleChatWebSocket)

	// Tools
	mux.HandleFunc("POST /api/tools/dispatch", s.handleDispatchTools)

	// Orders
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/orders/pending", s.handleListPending)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{handle}/resume", s.handleResumeOrder)

	// Tabs and platforms
	mux.HandleFunc("GET /api/tabs/{handle}/screenshot", s.handleScreenshot)
	mux.HandleFunc("GET /api/platforms/detect", s.handleDetectPlatform)

	mux.Handle("GET /metrics", promhttp.Handler())

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("API Error", "status", status, "error", err)
	} else {
		slog.Debug("API Error", "status", status, "error", err)
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var remote *domain.RemoteServiceError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoPendingWorkflow):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrResumeExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	case errors.As(err, &remote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
