// Package render draws world snapshots to images for the debug frame endpoint and viewers.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"tilephys/internal/grid"
	"tilephys/internal/world"
)

var (
	background   = color.RGBA{12, 12, 28, 255}
	gridLine     = color.RGBA{30, 30, 45, 255}
	contactColor = color.RGBA{255, 214, 10, 255}
	hitColor     = color.RGBA{255, 62, 62, 255}
	hudColor     = color.RGBA{230, 230, 240, 255}
)

// ClassColors maps each physics class to its fill. Vacant cells are not filled.
var ClassColors = map[grid.Class]color.RGBA{
	grid.Solid:    {110, 110, 130, 255},
	grid.Hole:     {0, 0, 0, 255},
	grid.Latch:    {150, 105, 60, 255},
	grid.HeroOnly: {40, 80, 140, 255},
	grid.Hazard:   {160, 40, 40, 255},
	grid.Heal:     {40, 140, 70, 255},
}

// TypeColors maps built-in sprite types to their fill.
var TypeColors = map[string]color.RGBA{
	world.TypeHero:    {83, 255, 69, 255},
	world.TypeMonster: {255, 149, 0, 255},
	world.TypeCrate:   {200, 170, 120, 255},
	world.TypeSwarm:   {190, 120, 255, 255},
}

// Renderer draws snapshots at a fixed scale. It is safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex // font faces cache glyphs and are not goroutine-safe
	scale float64
	hud   font.Face
}

// New creates a renderer. Scale below 1 is treated as 1.
func New(scale float64) *Renderer {
	if scale < 1 {
		scale = 1
	}
	return &Renderer{scale: scale, hud: loadHUDFace(12 * scale / 2)}
}

// loadHUDFace parses the embedded Go Regular font, falling back to the fixed 7x13 face.
func loadHUDFace(size float64) font.Face {
	if size < 10 {
		return basicfont.Face7x13
	}
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// Size returns the pixel size of a rendered snapshot.
func (r *Renderer) Size(snap *world.Snapshot) (width, height int) {
	return int(float64(snap.Cols*snap.TileSize) * r.scale), int(float64(snap.Rows*snap.TileSize) * r.scale)
}

// Render draws snap into a new image.
func (r *Renderer) Render(snap *world.Snapshot) image.Image {
	return r.context(snap).Image()
}

// EncodePNG renders snap and writes it as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *world.Snapshot) error {
	return r.context(snap).EncodePNG(w)
}

func (r *Renderer) context(snap *world.Snapshot) *gg.Context {
	width, height := r.Size(snap)
	dc := gg.NewContext(width, height)

	dc.SetColor(background)
	dc.Clear()

	dc.Push()
	dc.Scale(r.scale, r.scale)
	drawCells(dc, snap)
	drawGridLines(dc, snap, r.scale)
	drawContacts(dc, snap, r.scale)
	drawSprites(dc, snap, r.scale)
	dc.Pop()

	r.mu.Lock()
	defer r.mu.Unlock()
	dc.SetFontFace(r.hud)
	dc.SetColor(hudColor)
	s := snap.Stats
	dc.DrawString(fmt.Sprintf("tick %d  sprites %d  passes %d  resolves %d  events %d",
		snap.Tick, len(snap.Sprites), s.Passes, s.Resolves, s.Events), 4, 14*r.scale/2+2)
	return dc
}

func drawCells(dc *gg.Context, snap *world.Snapshot) {
	ts := float64(snap.TileSize)
	half := ts / 2
	for row := 0; row < snap.Rows; row++ {
		for col := 0; col < snap.Cols; col++ {
			cell := snap.Cell(col, row)
			c, ok := ClassColors[cell.Physics]
			if !ok {
				continue
			}
			dc.SetColor(c)
			x, y := float64(col)*ts, float64(row)*ts
			if cell.Corners == 0 {
				dc.DrawRectangle(x, y, ts, ts)
				dc.Fill()
				continue
			}
			cx, cy := x+half, y+half
			drawQuadrant(dc, cell.Corners&grid.CornerNW != 0, x, y, cx, cy, half, math.Pi)
			drawQuadrant(dc, cell.Corners&grid.CornerNE != 0, cx, y, cx, cy, half, 1.5*math.Pi)
			drawQuadrant(dc, cell.Corners&grid.CornerSE != 0, cx, cy, cx, cy, half, 0)
			drawQuadrant(dc, cell.Corners&grid.CornerSW != 0, x, cy, cx, cy, half, 0.5*math.Pi)
		}
	}
}

// drawQuadrant fills one quarter of a cell, either square (origin x,y) or as a pie slice of
// the inscribed circle starting at angle.
func drawQuadrant(dc *gg.Context, rounded bool, x, y, cx, cy, half, angle float64) {
	if !rounded {
		dc.DrawRectangle(x, y, half, half)
		dc.Fill()
		return
	}
	dc.MoveTo(cx, cy)
	dc.DrawArc(cx, cy, half, angle, angle+0.5*math.Pi)
	dc.ClosePath()
	dc.Fill()
}

func drawGridLines(dc *gg.Context, snap *world.Snapshot, scale float64) {
	ts := float64(snap.TileSize)
	w, h := float64(snap.Cols)*ts, float64(snap.Rows)*ts
	dc.SetColor(gridLine)
	dc.SetLineWidth(1 / scale)
	for x := 0.0; x <= w; x += ts {
		dc.DrawLine(x, 0, x, h)
	}
	for y := 0.0; y <= h; y += ts {
		dc.DrawLine(0, y, w, y)
	}
	dc.Stroke()
}

func drawContacts(dc *gg.Context, snap *world.Snapshot, scale float64) {
	if len(snap.Contacts) == 0 {
		return
	}
	byID := make(map[uint32]world.SpriteState, len(snap.Sprites))
	for _, s := range snap.Sprites {
		byID[s.ID] = s
	}
	dc.SetColor(contactColor)
	dc.SetLineWidth(2 / scale)
	for _, c := range snap.Contacts {
		if c.Grid {
			continue
		}
		a, okA := byID[c.A]
		b, okB := byID[c.B]
		if okA && okB {
			dc.DrawLine(a.X, a.Y, b.X, b.Y)
		}
	}
	dc.Stroke()
}

func drawSprites(dc *gg.Context, snap *world.Snapshot, scale float64) {
	for _, s := range snap.Sprites {
		c, ok := TypeColors[s.Type]
		if !ok {
			c = hudColor
		}
		var fill color.Color = c
		if s.Ghost {
			fill = color.NRGBA{c.R, c.G, c.B, 128}
		}
		shape := func() {
			if s.Shape == "circle" {
				dc.DrawCircle(s.X, s.Y, s.Radius)
			} else {
				dc.DrawRectangle(s.X-s.Radius, s.Y-s.Radius, 2*s.Radius, 2*s.Radius)
			}
		}
		dc.SetColor(fill)
		shape()
		dc.Fill()

		if s.CollidedGrid {
			dc.SetColor(hitColor)
			dc.SetLineWidth(2 / scale)
			shape()
			dc.Stroke()
		}
	}
}
