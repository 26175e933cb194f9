package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tilephys/internal/grid"
	"tilephys/internal/physics"
	"tilephys/internal/world"
)

// WorldInterface defines the world methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type WorldInterface interface {
	// Snapshot returns the latest lock-free immutable snapshot
	Snapshot() *world.Snapshot
	// Sprite returns one sprite from the latest snapshot
	Sprite(id uint32) (world.SpriteState, bool)
	AddSprite(opts world.SpriteOptions) (world.SpriteState, error)
	RemoveSprite(id uint32) bool
	MoveSprite(id uint32, x, y float64) error
	SetVelocity(id uint32, vx, vy float64) error
	SetCell(col, row int, cell grid.Cell) error
	// Step advances one tick; used when the tick loop is paused
	Step() (physics.TickStats, error)
	Query(id, otherID uint32, typeName string) (world.QueryResult, error)
	Strike(attackerID uint32, hitbox string, direction float64) ([]uint32, error)
	ContactLogStats() map[string]interface{}
}

// FrameRenderer draws a snapshot as a PNG.
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *world.Snapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    World: mockWorld,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        ReadPerSecond: 1000, // High limits for tests
//	        ReadBurst:     1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// World is the simulation (required)
	World WorldInterface

	// Renderer serves /api/frame.png. If nil the route answers 404.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *ClientLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// AdminToken guards every mutating route when non-empty.
	AdminToken string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	world    WorldInterface
	renderer FrameRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		world:    cfg.World,
		renderer: cfg.Renderer,
	}

	limiter := limiterFor(cfg)

	r.Route("/api", func(r chi.Router) {
		// Read-only
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(RouteRead))

			r.Get("/state", h.handleGetState)
			r.Get("/stats", h.handleGetStats)
			r.Get("/events", h.handleGetEvents)
			r.Get("/types", h.handleGetTypes)
			r.Get("/hitboxes", h.handleGetHitboxes)
			r.Get("/frame.png", h.handleGetFrame)
			r.Get("/grid/cells/{col}/{row}", h.handleGetCell)
			r.Get("/sprites/{id}", h.handleGetSprite)
			r.Get("/sprites/{id}/collisions", h.handleGetCollisions)
		})

		// Mutating; rejected callers do not spend write tokens
		r.Group(func(r chi.Router) {
			r.Use(requireToken(cfg.AdminToken))
			r.Use(limiter.Limit(RouteWrite))

			r.Post("/sprites", h.handleAddSprite)
			r.Delete("/sprites/{id}", h.handleRemoveSprite)
			r.Post("/sprites/{id}/move", h.handleMoveSprite)
			r.Post("/sprites/{id}/velocity", h.handleSetVelocity)
			r.Put("/grid/cells/{col}/{row}", h.handleSetCell)
			r.Post("/step", h.handleStep)
			r.Post("/strike", h.handleStrike)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency per route pattern so labels stay bounded.
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

// limiterFor returns the configured rate limiter, creating one if needed.
func limiterFor(cfg RouterConfig) *ClientLimiter {
	if cfg.RateLimiter != nil {
		return cfg.RateLimiter
	}
	rateLimitCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}
	return NewClientLimiter(rateLimitCfg)
}
