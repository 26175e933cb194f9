// Package config provides centralized configuration management.
// Every tunable has a default here and an environment override.
package config

import (
	"os"
	"strconv"
	"strings"

	"tilephys/internal/grid"
	"tilephys/internal/physics"
	"tilephys/internal/world"
)

// =============================================================================
// PHYSICS CONFIGURATION
// =============================================================================

// PhysicsFromEnv returns solver tuning with environment variable overrides.
func PhysicsFromEnv() physics.Config {
	cfg := physics.DefaultConfig()

	if v := getEnvFloat("PHYSICS_EPSILON", -1); v >= 0 {
		cfg.Epsilon = v
	}
	if v := getEnvFloat("PHYSICS_BIAS", 0); v > 0 {
		cfg.Bias = v
	}
	if v := getEnvInt("PHYSICS_REPEAT_LIMIT", 0); v > 0 {
		cfg.RepeatLimit = v
	}
	if v := getEnvInt("PHYSICS_OOB_WIDTH", -1); v >= 0 {
		cfg.OOBWidth = v
	}
	cfg.LegacyGridRecheck = getEnvBool("PHYSICS_LEGACY_GRID_RECHECK", cfg.LegacyGridRecheck)
	if v := getEnvInt("PHYSICS_MAX_COLLISIONS", 0); v > 0 {
		cfg.MaxCollisions = v
	}
	if v := getEnvInt("PHYSICS_MAX_EVENTS", 0); v > 0 {
		cfg.MaxEvents = v
	}

	return cfg
}

// =============================================================================
// WORLD CONFIGURATION
// =============================================================================

// WorldFromEnv returns the world layout with environment variable overrides.
func WorldFromEnv() world.Config {
	cfg := world.DefaultConfig()

	if v := getEnvInt("GRID_COLS", 0); v > 0 {
		cfg.Cols = v
	}
	if v := getEnvInt("GRID_ROWS", 0); v > 0 {
		cfg.Rows = v
	}
	if v := getEnvInt("TILE_SIZE", 0); v > 0 {
		cfg.TileSize = v
	}
	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("MAX_SPRITES", 0); v > 0 {
		cfg.MaxSprites = v
	}
	cfg.Physics = PhysicsFromEnv()

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	RateLimit      float64 // Read requests per second per client IP
	RateBurst      int
	WriteRateLimit float64 // Mutating requests per second per client IP
	WriteRateBurst int
	TrustProxy     bool   // Key clients on X-Forwarded-For behind a reverse proxy
	BroadcastHz    int    // WebSocket snapshot rate
	AdminToken     string // Guards mutating routes when set
	StartPaused    bool   // Leave the tick loop stopped; step via POST /api/step
	DemoSprites    int    // Sprites seeded into the arena at startup
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		AllowedOrigins: []string{"*"},
		RateLimit:      20,
		RateBurst:      40,
		WriteRateLimit: 5,
		WriteRateBurst: 10,
		BroadcastHz:    10,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := getEnvList("ALLOWED_ORIGINS"); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	if v := getEnvFloat("RATE_LIMIT", 0); v > 0 {
		cfg.RateLimit = v
	}
	if v := getEnvInt("RATE_BURST", 0); v > 0 {
		cfg.RateBurst = v
	}
	if v := getEnvFloat("WRITE_RATE_LIMIT", 0); v > 0 {
		cfg.WriteRateLimit = v
	}
	if v := getEnvInt("WRITE_RATE_BURST", 0); v > 0 {
		cfg.WriteRateBurst = v
	}
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", cfg.TrustProxy)
	if v := getEnvInt("BROADCAST_HZ", 0); v > 0 {
		cfg.BroadcastHz = v
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.StartPaused = getEnvBool("START_PAUSED", cfg.StartPaused)
	if v := getEnvInt("DEMO_SPRITES", -1); v >= 0 {
		cfg.DemoSprites = v
	}

	return cfg
}

// =============================================================================
// DEBUG & OUTPUT CONFIGURATION
// =============================================================================

// DebugConfig holds the pprof server and contact log settings.
type DebugConfig struct {
	Addr           string // pprof and metrics listener, loopback only by default
	Disabled       bool
	User, Password string // Basic auth for the debug server when User is set
	ContactLogPath string // Empty disables the JSONL contact log file
	RenderScale    float64
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Addr:        "127.0.0.1:6060",
		RenderScale: 2,
	}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.Disabled = getEnvBool("DISABLE_DEBUG_SERVER", cfg.Disabled)
	cfg.User = os.Getenv("DEBUG_USER")
	cfg.Password = os.Getenv("DEBUG_PASSWORD")
	cfg.ContactLogPath = os.Getenv("CONTACT_LOG_PATH")
	if v := getEnvFloat("RENDER_SCALE", 0); v > 0 {
		cfg.RenderScale = v
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	World  world.Config
	Server ServerConfig
	Debug  DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		World:  WorldFromEnv(),
		Server: ServerFromEnv(),
		Debug:  DebugFromEnv(),
	}
}

// Validate reports configuration that would fail at startup.
func (c AppConfig) Validate() error {
	return c.World.Physics.Validate()
}

// ArenaBorder is the physics class drawn around the default arena.
const ArenaBorder = grid.Solid

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
