package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"tilephys/internal/api"
	"tilephys/internal/config"
	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/physics"
	"tilephys/internal/render"
	"tilephys/internal/world"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🧱 ================================")
	log.Println("🧱  TILEPHYS - COLLISION SANDBOX")
	log.Println("🧱 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	worldCfg := appConfig.World
	serverCfg := appConfig.Server
	debugCfg := appConfig.Debug
	port := strconv.Itoa(serverCfg.Port)

	p := worldCfg.Physics
	log.Printf("🎮 Config: %dx%d cells of %dpx, %d TPS, max %d sprites",
		worldCfg.Cols, worldCfg.Rows, worldCfg.TileSize, worldCfg.TickRate, worldCfg.MaxSprites)
	log.Printf("⚙️ Solver: epsilon %.4f, bias %.3f, %d passes, OOB width %d, legacy recheck %v",
		p.Epsilon, p.Bias, p.RepeatLimit, p.OOBWidth, p.LegacyGridRecheck)

	w, err := world.New(worldCfg)
	if err != nil {
		log.Fatalf("❌ Failed to create world: %v", err)
	}
	buildArena(w)
	seedDemo(w, serverCfg.DemoSprites)

	w.OnTick = func(stats physics.TickStats) {
		api.RecordPhysicsTick(stats)
	}

	// Start contact log
	if debugCfg.ContactLogPath != "" {
		if err := w.StartContactLog(debugCfg.ContactLogPath); err != nil {
			log.Printf("⚠️ Contact log disabled: %v", err)
		} else {
			log.Printf("📝 Contact log: %s", debugCfg.ContactLogPath)
		}
	}

	// Start debug server
	if !debugCfg.Disabled {
		obs := api.DefaultObservabilityConfig()
		obs.ListenAddr = debugCfg.Addr
		obs.BasicAuthUser = debugCfg.User
		obs.BasicAuthPass = debugCfg.Password
		if err := api.StartDebugServer(obs); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	if serverCfg.AdminToken == "" {
		log.Println("⚠️ ADMIN_TOKEN not set - mutating routes are open")
	}

	server := api.NewServer(w, api.ServerOptions{
		Renderer: render.New(debugCfg.RenderScale),
		RateLimitConfig: &api.RateLimitConfig{
			ReadPerSecond:  serverCfg.RateLimit,
			ReadBurst:      serverCfg.RateBurst,
			WritePerSecond: serverCfg.WriteRateLimit,
			WriteBurst:     serverCfg.WriteRateBurst,
			TrustProxy:     serverCfg.TrustProxy,
		},
		AllowedOrigins: serverCfg.AllowedOrigins,
		AdminToken:     serverCfg.AdminToken,
		BroadcastHz:    serverCfg.BroadcastHz,
	})

	if serverCfg.StartPaused {
		log.Println("⏸️ Tick loop paused - advance with POST /api/step")
	} else {
		w.Start()
	}

	// Gauges that are cheaper to poll than to push per tick
	stopGauges := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopGauges:
				return
			case <-ticker.C:
				api.UpdateSpriteCount(w.SpriteCount())
				api.UpdateRateLimitClients(server.RateLimiter().Clients())
				stats := w.ContactLogStats()
				total, _ := stats["total"].(uint64)
				dropped, _ := stats["dropped"].(uint64)
				api.UpdateContactLogStats(total, dropped)
			}
		}
	}()

	go func() {
		addr := ":" + port
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("📡 Snapshots: ws://localhost%s/ws (add ?format=msgpack for binary)", addr)

		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	close(stopGauges)
	w.Stop()
	w.StopContactLog()
	log.Println("👋 Goodbye!")
}

// buildArena walls the grid edge and drops a few rounded pillars.
func buildArena(w *world.World) {
	cfg := w.Config()
	cols, rows := cfg.Cols, cfg.Rows

	w.FillRect(0, 0, cols, 1, config.ArenaBorder)
	w.FillRect(0, rows-1, cols, 1, config.ArenaBorder)
	w.FillRect(0, 0, 1, rows, config.ArenaBorder)
	w.FillRect(cols-1, 0, 1, rows, config.ArenaBorder)

	pillars := [][2]int{{cols / 4, rows / 3}, {cols * 3 / 4, rows / 3}, {cols / 2, rows * 2 / 3}}
	for _, pc := range pillars {
		w.SetCell(pc[0], pc[1], grid.Cell{Physics: grid.Latch, Corners: grid.RoundAll})
	}
	// A hole row the swarm can cross but heroes cannot
	w.FillRect(cols/3, rows/2, cols/3, 1, grid.Hole)
}

// seedDemo scatters n sprites with random velocities.
func seedDemo(w *world.World, n int) {
	if n <= 0 {
		return
	}
	cfg := w.Config()
	ts := float64(cfg.TileSize)
	types := world.TypeNames()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	added := 0
	for i := 0; i < n; i++ {
		opts := world.SpriteOptions{
			Type:   types[i%len(types)],
			X:      ts*1.5 + rng.Float64()*ts*float64(cfg.Cols-3),
			Y:      ts*1.5 + rng.Float64()*ts*float64(cfg.Rows-3),
			Radius: 4 + rng.Float64()*4,
			Shape:  geom.Shape(rng.Intn(2)),
		}
		s, err := w.AddSprite(opts)
		if err != nil {
			log.Printf("⚠️ Demo sprite %d: %v", i, err)
			break
		}
		w.SetVelocity(s.ID, rng.Float64()*120-60, rng.Float64()*120-60)
		added++
	}
	log.Printf("🎲 Seeded %d demo sprites", added)
}
