package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/veedran/reelsmith/internal/adapters/heygen"
	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server exposes the automation pipeline over HTTP and WebSocket.
type Server struct {
	supervisor *service.Supervisor
	hub        *broadcast.Hub
	webhooks   *heygen.WebhookStore
	validator  service.AppValidator
	wsHandler  http.Handler

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithWebhookStore enables the vendor webhook receiver.
func WithWebhookStore(store *heygen.WebhookStore) Option {
	return func(s *Server) {
		s.webhooks = store
	}
}

// WithWebSocket mounts the real-time event endpoint at /ws.
func WithWebSocket(handler http.Handler) Option {
	return func(s *Server) {
		s.wsHandler = handler
	}
}

func NewServer(supervisor *service.Supervisor, hub *broadcast.Hub, validator service.AppValidator, opts ...Option) *Server {
	s := &Server{
		supervisor: supervisor,
		hub:        hub,
		validator:  validator,
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return corsAllowAll(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/automation/start", s.handleStart)
	s.mux.HandleFunc("/api/automation/status/", s.handleStatus)
	s.mux.HandleFunc("/api/automation/jobs", s.handleListJobs)
	s.mux.HandleFunc("/api/automation/stop/", s.handleStop)
	s.mux.HandleFunc("/api/validation/steam-app-id", s.handleValidate)
	s.mux.HandleFunc("/api/webhooks/heygen", s.handleHeyGenWebhook)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	if s.wsHandler != nil {
		s.mux.Handle("/ws", s.wsHandler)
	}
}

// corsAllowAll mirrors the permissive CORS posture of the dashboard frontend
// this API serves.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
