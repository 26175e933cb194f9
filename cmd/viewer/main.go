// Command viewer runs a world in-process and draws it with ebiten. Arrow keys drive the hero,
// space swings the selected hitbox, left click toggles solid cells and right click drops a monster.
package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/joho/godotenv"

	"tilephys/internal/config"
)

func main() {
	scale := flag.Float64("scale", 3, "pixels per world pixel")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	cfg := config.WorldFromEnv()
	g, err := NewGame(cfg, *scale)
	if err != nil {
		log.Fatalf("❌ Failed to create world: %v", err)
	}

	w, h := g.Layout(0, 0)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("tilephys viewer")
	ebiten.SetWindowResizable(true)
	ebiten.SetTPS(cfg.TickRate)

	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
