package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

// TestClientLimiterClassesIndependent verifies each class has its own bucket per client
func TestClientLimiterClassesIndependent(t *testing.T) {
	cl := NewClientLimiter(RateLimitConfig{ReadPerSecond: 0.001, ReadBurst: 1, WritePerSecond: 0.001, WriteBurst: 1})

	if !cl.Allow("10.0.0.1", RouteRead) {
		t.Fatal("First read should pass")
	}
	if cl.Allow("10.0.0.1", RouteRead) {
		t.Error("Second read should be limited")
	}
	if !cl.Allow("10.0.0.1", RouteWrite) {
		t.Error("Write bucket should be independent of reads")
	}
	if !cl.Allow("10.0.0.2", RouteRead) {
		t.Error("Other clients have their own buckets")
	}

	stats := cl.GetStats()
	if stats["read_allowed"] != 2 || stats["read_rejected"] != 1 || stats["write_allowed"] != 1 {
		t.Errorf("Unexpected stats %v", stats)
	}
}

// TestClientLimiterSweepsIdle verifies idle clients are dropped on a later access
func TestClientLimiterSweepsIdle(t *testing.T) {
	now := time.Unix(1000, 0)
	cl := NewClientLimiter(RateLimitConfig{IdleTTL: time.Minute})
	cl.now = func() time.Time { return now }

	cl.Allow("a", RouteRead)
	cl.Allow("b", RouteWrite)
	if cl.Clients() != 2 {
		t.Fatalf("Expected 2 clients, got %d", cl.Clients())
	}

	now = now.Add(45 * time.Second)
	cl.Allow("b", RouteRead)

	now = now.Add(20 * time.Second)
	cl.Allow("c", RouteRead)
	if cl.Clients() != 2 {
		t.Errorf("Expected a to be swept, have %d clients", cl.Clients())
	}
	if _, ok := cl.clients["a"]; ok {
		t.Error("Idle client a should be gone")
	}
}

// TestNewClientLimiterDefaults verifies zero fields take defaults
func TestNewClientLimiterDefaults(t *testing.T) {
	cl := NewClientLimiter(RateLimitConfig{WriteBurst: 3})
	if cl.cfg.ReadBurst != DefaultRateLimitConfig.ReadBurst || cl.cfg.WriteBurst != 3 || cl.cfg.IdleTTL != DefaultRateLimitConfig.IdleTTL {
		t.Errorf("Unexpected config %+v", cl.cfg)
	}
}

// TestClientIP verifies proxy headers only count when trusted
func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/state", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(r, false); got != "192.0.2.7" {
		t.Errorf("Untrusted: got %q", got)
	}
	if got := clientIP(r, true); got != "203.0.113.9" {
		t.Errorf("Trusted XFF: got %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", " 203.0.113.10 ")
	if got := clientIP(r, true); got != "203.0.113.10" {
		t.Errorf("Trusted X-Real-IP: got %q", got)
	}

	r.RemoteAddr = "pipe"
	if got := clientIP(r, false); got != "pipe" {
		t.Errorf("Unparsable RemoteAddr: got %q", got)
	}
}

// TestConnCounter verifies the per-address cap and release
func TestConnCounter(t *testing.T) {
	c := newConnCounter(2)
	if !c.acquire("a") || !c.acquire("a") {
		t.Fatal("First two connections should be accepted")
	}
	if c.acquire("a") {
		t.Error("Third connection should be rejected")
	}
	if !c.acquire("b") {
		t.Error("Other addresses are counted separately")
	}

	c.release("a")
	if c.count("a") != 1 {
		t.Errorf("Expected 1 after release, got %d", c.count("a"))
	}
	c.release("a")
	c.release("a")
	if _, ok := c.counts["a"]; ok || c.count("a") != 0 {
		t.Error("Released addresses should be removed")
	}
}
