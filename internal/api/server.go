package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerOptions configures NewServer. Zero values fall back to defaults.
type ServerOptions struct {
	Renderer        FrameRenderer
	RateLimitConfig *RateLimitConfig
	AllowedOrigins  []string
	AdminToken      string
	BroadcastHz     int
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	world       WorldInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *ClientLimiter
	opts        ServerOptions
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(w WorldInterface, opts ServerOptions) *Server {
	rlCfg := DefaultRateLimitConfig
	if opts.RateLimitConfig != nil {
		rlCfg = *opts.RateLimitConfig
	}

	s := &Server{
		world:       w,
		wsHub:       NewWebSocketHub(opts.AllowedOrigins),
		rateLimiter: NewClientLimiter(rlCfg),
		opts:        opts,
	}
	s.wsHub.trustProxy = rlCfg.TrustProxy

	s.router = NewRouter(RouterConfig{
		World:       w,
		Renderer:    opts.Renderer,
		RateLimiter: s.rateLimiter,
		CORSOrigins: opts.AllowedOrigins,
		AdminToken:  opts.AdminToken,
	})

	// WebSocket routes need the wsHub instance, so they live outside NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the hub and broadcast loop, then serves HTTP until Shutdown.
// It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.world, s.opts.BroadcastHz)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🖼️ Debug frame: http://localhost%s/api/frame.png", addr)

	return s.httpServer.Serve(ln)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests and waits for in-flight ones, then stops workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.Stop()
	return err
}

// Stop performs graceful shutdown of background workers.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// RateLimiter returns the API rate limiter.
func (s *Server) RateLimiter() *ClientLimiter {
	return s.rateLimiter
}
