package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tilephys/internal/physics"
)

// Metrics with bounded cardinality (no per-sprite labels)
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "physics_tick_duration_seconds",
		Help:    "Time spent in the collision solver per tick",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	tickPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "physics_tick_passes",
		Help:    "Detect passes run per tick",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 10},
	})

	collisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physics_collisions_total",
		Help: "Collisions detected across all passes",
	})

	unsettledTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physics_unsettled_ticks_total",
		Help: "Ticks that hit the repeat limit with overlaps left",
	})

	tickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "physics_tick_errors_total",
		Help: "Ticks aborted by a solver error",
	})

	eventCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "physics_events",
		Help: "Distinct contacts recorded in the last tick",
	})

	spriteCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_sprite_count",
		Help: "Current number of sprites",
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_duration_seconds",
		Help:    "Time spent rendering a debug frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	contactLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contact_log_records",
		Help: "Contacts accepted by the contact log since start",
	})

	contactLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contact_log_dropped",
		Help: "Contacts dropped by rate limiting or a full buffer since start",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin check or auth",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "auth", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	rateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rate_limit_clients",
		Help: "Clients currently holding rate limit buckets",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Loopback only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler returns the pprof, metrics and health mux served by the debug server.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server in the background.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	handler := DebugHandler(cfg)
	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !tokensEqual(u, user) || !tokensEqual(p, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordPhysicsTick records one solver update. Wire it to world.OnTick.
func RecordPhysicsTick(stats physics.TickStats) {
	tickDuration.Observe(stats.Duration.Seconds())
	tickPasses.Observe(float64(stats.Passes))
	collisionsTotal.Add(float64(stats.Collisions))
	eventCount.Set(float64(stats.Events))
	if !stats.Settled {
		unsettledTicks.Inc()
	}
}

// RecordTickError counts a tick the solver aborted.
func RecordTickError() {
	tickErrors.Inc()
}

// RecordRender records debug frame render timing
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// UpdateSpriteCount updates the sprite gauge
func UpdateSpriteCount(count int) {
	spriteCount.Set(float64(count))
}

// UpdateContactLogStats mirrors the contact log counters
func UpdateContactLogStats(total, dropped uint64) {
	contactLogTotal.Set(float64(total))
	contactLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// UpdateRateLimitClients sets the number of tracked rate limit clients
func UpdateRateLimitClients(count int) {
	rateLimitClients.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
