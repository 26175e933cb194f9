package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RouteClass separates snapshot reads from world mutations. Each client holds one token
// bucket per class.
type RouteClass int

const (
	RouteRead RouteClass = iota
	RouteWrite
)

func (c RouteClass) String() string {
	if c == RouteWrite {
		return "write"
	}
	return "read"
}

// RateLimitConfig sets the per-client budgets.
type RateLimitConfig struct {
	ReadPerSecond  float64
	ReadBurst      int
	WritePerSecond float64
	WriteBurst     int
	IdleTTL        time.Duration // Buckets unused this long are dropped
	TrustProxy     bool          // Key clients on X-Forwarded-For / X-Real-IP
}

// DefaultRateLimitConfig is used for any zero field.
var DefaultRateLimitConfig = RateLimitConfig{
	ReadPerSecond:  20,
	ReadBurst:      40,
	WritePerSecond: 5,
	WriteBurst:     10,
	IdleTTL:        10 * time.Minute,
}

type clientBuckets struct {
	read, write *rate.Limiter
	lastSeen    time.Time
}

// ClientLimiter rate limits API calls per client address and route class.
// Idle buckets are swept lazily on access; there is no background goroutine.
type ClientLimiter struct {
	cfg RateLimitConfig

	mu        sync.Mutex
	clients   map[string]*clientBuckets
	lastSweep time.Time
	rejected  [2]uint64
	allowed   [2]uint64

	now func() time.Time
}

// NewClientLimiter fills zero budgets from DefaultRateLimitConfig.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	def := DefaultRateLimitConfig
	if cfg.ReadPerSecond <= 0 {
		cfg.ReadPerSecond = def.ReadPerSecond
	}
	if cfg.ReadBurst <= 0 {
		cfg.ReadBurst = def.ReadBurst
	}
	if cfg.WritePerSecond <= 0 {
		cfg.WritePerSecond = def.WritePerSecond
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = def.WriteBurst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	return &ClientLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientBuckets),
		now:     time.Now,
	}
}

// Allow spends one token from the client's bucket for class.
func (cl *ClientLimiter) Allow(client string, class RouteClass) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	if now.Sub(cl.lastSweep) >= cl.cfg.IdleTTL {
		cl.sweepLocked(now)
	}

	b, ok := cl.clients[client]
	if !ok {
		b = &clientBuckets{
			read:  rate.NewLimiter(rate.Limit(cl.cfg.ReadPerSecond), cl.cfg.ReadBurst),
			write: rate.NewLimiter(rate.Limit(cl.cfg.WritePerSecond), cl.cfg.WriteBurst),
		}
		cl.clients[client] = b
	}
	b.lastSeen = now

	lim := b.read
	if class == RouteWrite {
		lim = b.write
	}
	if lim.AllowN(now, 1) {
		cl.allowed[class]++
		return true
	}
	cl.rejected[class]++
	return false
}

func (cl *ClientLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-cl.cfg.IdleTTL)
	for key, b := range cl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(cl.clients, key)
		}
	}
	cl.lastSweep = now
}

// Clients returns how many clients currently hold buckets.
func (cl *ClientLimiter) Clients() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.clients)
}

// GetStats returns allowed/rejected counts per route class.
func (cl *ClientLimiter) GetStats() map[string]uint64 {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return map[string]uint64{
		"read_allowed":   cl.allowed[RouteRead],
		"read_rejected":  cl.rejected[RouteRead],
		"write_allowed":  cl.allowed[RouteWrite],
		"write_rejected": cl.rejected[RouteWrite],
	}
}

// Limit returns middleware charging each request to class.
func (cl *ClientLimiter) Limit(class RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Allow(clientIP(r, cl.cfg.TrustProxy), class) {
				RecordConnectionRejected("rate_limit_" + class.String())
				w.Header().Set("Retry-After", "1")
				writeError(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys a request. Proxy headers count only when trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// connCounter caps concurrent snapshot subscribers per address.
type connCounter struct {
	mu     sync.Mutex
	counts map[string]int
	max    int
}

func newConnCounter(max int) *connCounter {
	return &connCounter{counts: make(map[string]int), max: max}
}

func (c *connCounter) acquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[ip] >= c.max {
		return false
	}
	c.counts[ip]++
	return true
}

func (c *connCounter) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[ip] <= 1 {
		delete(c.counts, ip)
		return
	}
	c.counts[ip]--
}

func (c *connCounter) count(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[ip]
}

// IsAllowedOrigin checks an Origin header against a list of allowed origins.
// Entries may end in ":*" to allow any port. A nil list allows localhost only.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	if allowed == nil {
		allowed = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	for _, a := range allowed {
		switch {
		case a == "*" || a == origin:
			return true
		case strings.HasSuffix(a, ":*"):
			base := strings.TrimSuffix(a, ":*")
			if origin == base || strings.HasPrefix(origin, base+":") {
				return true
			}
		}
	}
	return false
}
