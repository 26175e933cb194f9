package main

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"tilephys/internal/config"
	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/physics"
	"tilephys/internal/render"
	"tilephys/internal/world"
)

const (
	heroSpeed = 90.0 // px/s
	hitFrames = 15
)

var (
	backgroundColor = color.RGBA{12, 12, 28, 255}
	hitOutline      = color.RGBA{255, 62, 62, 255}
	probeColor      = color.RGBA{255, 255, 255, 90}
)

// Game implements ebiten.Game over a world.World.
type Game struct {
	cfg     world.Config
	world   *world.World
	scale   float64
	hero    uint32
	facing  float64
	paused  bool
	hitbox  int
	names   []string
	hits    map[uint32]bool
	hitLeft int
	lastErr error
}

// NewGame builds the arena and spawns the hero.
func NewGame(cfg world.Config, scale float64) (*Game, error) {
	if scale < 1 {
		scale = 1
	}
	g := &Game{cfg: cfg, scale: scale, names: physics.HitboxNames()}
	sort.Strings(g.names)
	if err := g.reset(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) reset() error {
	w, err := world.New(g.cfg)
	if err != nil {
		return err
	}
	cols, rows := g.cfg.Cols, g.cfg.Rows
	w.FillRect(0, 0, cols, 1, config.ArenaBorder)
	w.FillRect(0, rows-1, cols, 1, config.ArenaBorder)
	w.FillRect(0, 0, 1, rows, config.ArenaBorder)
	w.FillRect(cols-1, 0, 1, rows, config.ArenaBorder)
	w.SetCell(cols/2, rows/2, grid.Cell{Physics: grid.Solid, Corners: grid.RoundAll})

	ts := float64(g.cfg.TileSize)
	hero, err := w.AddSprite(world.SpriteOptions{
		Type:   world.TypeHero,
		X:      ts * 3,
		Y:      ts * 3,
		Radius: ts * 0.4,
		Shape:  geom.ShapeCircle,
	})
	if err != nil {
		return err
	}
	g.world, g.hero, g.hits, g.lastErr = w, hero.ID, nil, nil
	return nil
}

// Update handles input and advances the world one tick.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		return g.reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.hitbox = (g.hitbox + 1) % len(g.names)
	}

	g.steerHero()
	g.handleMouse()

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		ids, err := g.world.Strike(g.hero, g.names[g.hitbox], g.facing)
		if err != nil {
			g.lastErr = err
		}
		g.hits = make(map[uint32]bool, len(ids))
		for _, id := range ids {
			g.hits[id] = true
		}
		g.hitLeft = hitFrames
	}
	if g.hitLeft > 0 {
		g.hitLeft--
	}

	if !g.paused || inpututil.IsKeyJustPressed(ebiten.KeyN) {
		if _, err := g.world.Step(); err != nil {
			g.lastErr = err
		}
	}
	return nil
}

func (g *Game) steerHero() {
	var vx, vy float64
	if ebiten.IsKeyPressed(ebiten.KeyLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		vx -= heroSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		vx += heroSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		vy -= heroSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		vy += heroSpeed
	}
	if vx != 0 || vy != 0 {
		g.facing = math.Atan2(vy, vx)
	}
	g.world.SetVelocity(g.hero, vx, vy)
}

func (g *Game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	x, y := float64(mx)/g.scale, float64(my)/g.scale
	ts := float64(g.cfg.TileSize)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		col, row := int(x/ts), int(y/ts)
		cell := g.world.Snapshot().Cell(col, row)
		next := grid.Cell{Physics: grid.Solid}
		if cell.Physics != grid.Vacant {
			next = grid.Cell{}
		}
		if err := g.world.SetCell(col, row, next); err != nil {
			g.lastErr = err
		}
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		_, err := g.world.AddSprite(world.SpriteOptions{Type: world.TypeMonster, X: x, Y: y, Radius: ts * 0.4})
		if err != nil {
			g.lastErr = err
		}
	}
}

// Draw renders the latest snapshot.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	snap := g.world.Snapshot()
	s := float32(g.scale)
	ts := float32(snap.TileSize) * s

	for row := 0; row < snap.Rows; row++ {
		for col := 0; col < snap.Cols; col++ {
			drawCell(screen, snap.Cell(col, row), float32(col)*ts, float32(row)*ts, ts)
		}
	}

	for _, sp := range snap.Sprites {
		clr, ok := render.TypeColors[sp.Type]
		if !ok {
			clr = color.RGBA{255, 255, 255, 255}
		}
		x, y, r := float32(sp.X)*s, float32(sp.Y)*s, float32(sp.Radius)*s
		if sp.Shape == geom.ShapeCircle.String() {
			vector.DrawFilledCircle(screen, x, y, r, clr, true)
		} else {
			vector.DrawFilledRect(screen, x-r, y-r, 2*r, 2*r, clr, true)
		}
		if sp.CollidedGrid {
			vector.StrokeCircle(screen, x, y, r+1, 1, hitOutline, true)
		}
		if g.hitLeft > 0 && g.hits[sp.ID] {
			vector.StrokeRect(screen, x-r-2, y-r-2, 2*r+4, 2*r+4, 2, hitOutline, true)
		}
	}

	if g.hitLeft > 0 {
		g.drawProbe(screen)
	}

	stats := snap.Stats
	hud := fmt.Sprintf("tick %d  sprites %d  passes %d  events %d  settled %v\nhitbox %s [tab]  %s",
		snap.Tick, len(snap.Sprites), stats.Passes, stats.Events, stats.Settled, g.names[g.hitbox], g.status())
	if g.lastErr != nil {
		hud += "\n" + g.lastErr.Error()
	}
	ebitenutil.DebugPrint(screen, hud)
}

func (g *Game) status() string {
	if g.paused {
		return "paused [p] step [n]"
	}
	return "running [p]"
}

func (g *Game) drawProbe(screen *ebiten.Image) {
	hero, ok := g.world.Sprite(g.hero)
	if !ok {
		return
	}
	h, _ := physics.GetHitbox(g.names[g.hitbox])
	shape, box, c := h.Probe(hero.X, hero.Y, g.facing)
	s := float32(g.scale)
	if shape == geom.ShapeCircle {
		vector.StrokeCircle(screen, float32(c.X)*s, float32(c.Y)*s, float32(c.Radius)*s, 1, probeColor, true)
		return
	}
	vector.StrokeRect(screen, float32(box.W)*s, float32(box.N)*s, float32(box.E-box.W)*s, float32(box.S-box.N)*s, 1, probeColor, true)
}

// drawCell fills a cell as the union of its inscribed circle and its square quadrants.
func drawCell(screen *ebiten.Image, cell grid.Cell, x, y, size float32) {
	clr, ok := render.ClassColors[cell.Physics]
	if !ok {
		return
	}
	if cell.Corners == 0 {
		vector.DrawFilledRect(screen, x, y, size, size, clr, false)
		return
	}
	half := size / 2
	vector.DrawFilledCircle(screen, x+half, y+half, half, clr, true)
	quadrants := []struct {
		corner grid.Corners
		qx, qy float32
	}{
		{grid.CornerNW, x, y},
		{grid.CornerNE, x + half, y},
		{grid.CornerSW, x, y + half},
		{grid.CornerSE, x + half, y + half},
	}
	for _, q := range quadrants {
		if cell.Corners&q.corner == 0 {
			vector.DrawFilledRect(screen, q.qx, q.qy, half, half, clr, false)
		}
	}
}

// Layout returns the fixed logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return int(float64(g.cfg.Cols*g.cfg.TileSize) * g.scale), int(float64(g.cfg.Rows*g.cfg.TileSize) * g.scale)
}
