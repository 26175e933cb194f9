// Package grid holds the static tile map the physics solver collides sprites against.
//
// Cells are stored in row-major order (cells[row*cols+col]) in a single preallocated slice.
// The physics solver only reads the grid; construction and editing belong to its owner.
package grid

import (
	"strings"

	"tilephys/internal/geom"
)

const (
	DefaultTileSize = 16
	DefaultCols     = 25
	DefaultRows     = 14
)

// Class is a cell's physics class. Sprites declare which classes block them with an
// impassable mask (bit n set = class n is solid for that sprite).
type Class uint8

const (
	Vacant   Class = iota // pass through freely
	Solid                 // nothing may pass
	Hole                  // pass aerially only
	Latch                 // solid, and grabbable
	HeroOnly              // vacant, but monsters may not pass
	Hazard                // vacant, but harmful to heroes
	Heal                  // vacant, but revives heroes
)

var classNames = [...]string{"vacant", "solid", "hole", "latch", "heroonly", "hazard", "heal"}

// String returns the lowercase class name.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// ParseClass converts a class name (case-insensitive) to a Class.
func ParseClass(name string) (Class, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range classNames {
		if n == name {
			return Class(i), true
		}
	}
	return 0, false
}

// Mask builds an impassable mask from a list of classes.
func Mask(classes ...Class) uint16 {
	var m uint16
	for _, c := range classes {
		if c < 16 {
			m |= 1 << c
		}
	}
	return m
}

// Corners marks which quadrants of a cell are rounded off. A rounded quadrant behaves as the
// cell's inscribed circle for sprites approaching from that side.
type Corners uint8

const (
	CornerNW Corners = 0x01
	CornerNE Corners = 0x02
	CornerSW Corners = 0x04
	CornerSE Corners = 0x08

	RoundNorth = CornerNW | CornerNE
	RoundSouth = CornerSW | CornerSE
	RoundWest  = CornerNW | CornerSW
	RoundEast  = CornerNE | CornerSE
	RoundAll   = CornerNW | CornerNE | CornerSW | CornerSE
)

// Cell is one tile's physics data.
type Cell struct {
	Physics Class   `json:"physics"`
	Corners Corners `json:"corners,omitempty"`
}

// Grid is a fixed-size map of cells.
type Grid struct {
	cols, rows int
	tileSize   int
	cells      []Cell
}

// New creates a grid of vacant square cells. Non-positive dimensions fall back to defaults.
func New(cols, rows, tileSize int) *Grid {
	if cols < 1 {
		cols = DefaultCols
	}
	if rows < 1 {
		rows = DefaultRows
	}
	if tileSize < 1 {
		tileSize = DefaultTileSize
	}
	return &Grid{
		cols:     cols,
		rows:     rows,
		tileSize: tileSize,
		cells:    make([]Cell, cols*rows),
	}
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int) {
	return g.cols, g.rows
}

// TileSize returns the edge length of one cell in pixels.
func (g *Grid) TileSize() int {
	return g.tileSize
}

// Contains reports whether (col,row) is inside the grid.
func (g *Grid) Contains(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

// Cell returns the cell at (col,row), or false if out of bounds.
func (g *Grid) Cell(col, row int) (Cell, bool) {
	if !g.Contains(col, row) {
		return Cell{}, false
	}
	return g.cells[row*g.cols+col], true
}

// SetCell replaces one cell. Out-of-bounds writes are ignored and report false.
func (g *Grid) SetCell(col, row int, cell Cell) bool {
	if !g.Contains(col, row) {
		return false
	}
	g.cells[row*g.cols+col] = cell
	return true
}

// SetCorners changes only the corner hint of one cell.
func (g *Grid) SetCorners(col, row int, corners Corners) bool {
	if !g.Contains(col, row) {
		return false
	}
	g.cells[row*g.cols+col].Corners = corners & RoundAll
	return true
}

// SetPhysics fills a rectangle of cells with a physics class, clipped to the grid.
// Returns the number of cells written.
func (g *Grid) SetPhysics(x, y, w, h int, class Class) int {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > g.cols {
		w = g.cols - x
	}
	if y+h > g.rows {
		h = g.rows - y
	}
	if w < 1 || h < 1 {
		return 0
	}
	for row := y; row < y+h; row++ {
		start := row*g.cols + x
		for i := start; i < start+w; i++ {
			g.cells[i].Physics = class
		}
	}
	return w * h
}

// CellBox returns the pixel bounds of (col,row). Off-grid coordinates are valid.
func (g *Grid) CellBox(col, row int) geom.Box {
	ts := float64(g.tileSize)
	return geom.Box{
		W: float64(col) * ts,
		E: float64(col+1) * ts,
		N: float64(row) * ts,
		S: float64(row+1) * ts,
	}
}

// CellCircle returns the circle inscribed in (col,row). Off-grid coordinates are valid.
func (g *Grid) CellCircle(col, row int) geom.Circle {
	half := g.tileSize >> 1
	return geom.Circle{
		X:      float64(col*g.tileSize + half),
		Y:      float64(row*g.tileSize + half),
		Radius: float64(half),
	}
}

// Stats counts cells per physics class, for debugging.
func (g *Grid) Stats() map[Class]int {
	counts := make(map[Class]int)
	for _, c := range g.cells {
		counts[c.Physics]++
	}
	return counts
}

// Cells returns a copy of the cell data in row-major order.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	copy(out, g.cells)
	return out
}
