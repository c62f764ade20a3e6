package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pveneroso/gogoame-2/internal/control"
)

// ServerEngine is the engine surface the full server needs: the API plus
// event subscription for the WebSocket hub.
type ServerEngine interface {
	EngineInterface
	BroadcastSource
}

// ServerOptions configures NewServer. Zero values select defaults.
type ServerOptions struct {
	SnapshotInterval time.Duration
	Frames           FrameRenderer
	CORSOrigins      []string
	AdminToken       string
	StaticFilesDir   string
	DisableLogging   bool
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      ServerEngine
	opts        ServerOptions
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	sessions    *SessionManager
	commands    *control.Handler

	mu         sync.Mutex
	httpServer *http.Server
	stopOnce   sync.Once
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine ServerEngine, opts ServerOptions) *Server {
	s := &Server{
		engine:      engine,
		opts:        opts,
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
		sessions:    NewSessionManager(opts.AdminToken),
		commands:    control.NewHandler(engine, control.DefaultRateLimitConfig),
	}
	s.wsHub = NewWebSocketHub(s.commands, HubConfig{Origins: opts.CORSOrigins})

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		Commands:       s.commands,
		Frames:         opts.Frames,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    opts.CORSOrigins,
		Sessions:       s.sessions,
		StaticFilesDir: opts.StaticFilesDir,
		DisableLogging: opts.DisableLogging,
	})

	// The hub needs its own instance, so /ws is not part of NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start begins the HTTP server AND starts background workers.
// It blocks until the server stops; a clean Shutdown returns nil.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.StartWorkers(); err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 API server listening on %s", ln.Addr())
	log.Printf("🎮 Front-end: http://%s/app/", ln.Addr())

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartWorkers starts the WebSocket hub, its command workers and the
// snapshot broadcast loop without opening a listener.
func (s *Server) StartWorkers() error {
	interval := s.opts.SnapshotInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	s.wsHub.Start()
	return s.wsHub.StartBroadcastLoop(s.engine, interval)
}

// Router returns the HTTP handler for use with httptest.
//
// Example:
//
//	server := api.NewServer(engine, api.ServerOptions{})
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub for stats.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, waits for in-flight ones within ctx and
// then stops background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop performs graceful shutdown of background workers. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.wsHub.Stop()
		s.rateLimiter.Stop()
		s.sessions.Stop()
		s.commands.Close()
	})
}
