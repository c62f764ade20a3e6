package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pveneroso/gogoame-2/internal/config"
	"github.com/pveneroso/gogoame-2/internal/control"
	"github.com/pveneroso/gogoame-2/internal/game"
)

// EngineInterface defines the engine methods used by the API.
// *game.Engine satisfies it; tests may substitute a lighter fake.
type EngineInterface interface {
	control.Engine

	// GetSnapshot returns a private copy of the latest published snapshot
	GetSnapshot() *game.GameSnapshot
	// GetStats returns tick, score, queue and event log statistics
	GetStats() game.EngineStats
	// Config returns the active simulation parameters
	Config() config.Simulation
	// SessionID and Seed identify the running game
	SessionID() string
	Seed() int64
	IsPaused() bool
}

// FrameRenderer draws a snapshot as a PNG image.
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.GameSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: engine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the simulation engine (required)
	Engine EngineInterface

	// Commands validates and dispatches mutations. If nil, one is created
	// with control.DefaultRateLimitConfig.
	Commands *control.Handler

	// Frames renders /api/frame.png. If nil the endpoint answers 501.
	Frames FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses DefaultOrigins.
	CORSOrigins []string

	// Sessions guards config and game control routes. If nil or created
	// with an empty token, those routes are open.
	Sessions *SessionManager

	// StaticFilesDir is served under /app/ for a browser front-end.
	// If empty, defaults to "./web".
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	commands *control.Handler
	frames   FrameRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// No network listeners are opened; the router can be served by
// httptest.NewServer directly.
//
// Example:
//
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	commands := cfg.Commands
	if commands == nil {
		commands = control.NewHandler(cfg.Engine, control.DefaultRateLimitConfig)
	}

	h := &routerHandlers{
		engine:   cfg.Engine,
		commands: commands,
		frames:   cfg.Frames,
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionManager("")
	}

	r.Route("/api", func(r chi.Router) {
		// Read side
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/session", h.handleGetSession)
		r.Get("/frame.png", h.handleGetFrame)

		// Catalog
		r.Get("/catalog", h.handleGetCatalog)
		r.Get("/catalog/{id}", h.handleGetSymbol)

		// Input
		r.Post("/spawn", h.handleSpawn)
		r.Post("/drag/start", h.handleDragStart)
		r.Post("/drag/move", h.handleDragMove)
		r.Post("/drag/end", h.handleDragEnd)

		r.Get("/config", h.handleGetConfig)

		// Operator login
		r.Get("/auth/status", sessions.HandleAuthStatus)
		r.Post("/auth/login", sessions.HandleLogin)
		r.Post("/auth/logout", sessions.HandleLogout)

		// Parameters and game control
		r.Group(func(r chi.Router) {
			r.Use(sessions.OperatorMiddleware)

			r.Post("/catalog/regenerate", h.handleRegenerate)
			r.Patch("/config", h.handlePatchConfig)
			r.Post("/pause", h.handlePause)
			r.Post("/resume", h.handleResume)
			r.Post("/restart", h.handleRestart)
		})
	})

	// Serve static files for a browser front-end
	staticDir := cfg.StaticFilesDir
	if staticDir == "" {
		staticDir = "./web"
	}
	r.Handle("/app/*", http.StripPrefix("/app/", http.FileServer(http.Dir(staticDir))))
	r.Get("/app", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusMovedPermanently)
	})

	// Default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency per chi route pattern, which keeps the
// endpoint label bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
