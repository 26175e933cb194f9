package render

import (
	"bytes"
	"image/png"
	"testing"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/world"
)

func testSnapshot(t *testing.T) *world.Snapshot {
	t.Helper()
	w, err := world.New(world.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	w.FillRect(10, 10, 1, 1, grid.Solid)
	w.SetCell(12, 10, grid.Cell{Physics: grid.Latch, Corners: grid.RoundAll})
	if _, err := w.AddSprite(world.SpriteOptions{Type: world.TypeHero, X: 60, Y: 60, Radius: 6, Shape: geom.ShapeCircle}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddSprite(world.SpriteOptions{Type: world.TypeMonster, X: 66, Y: 60, Radius: 6}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Step(); err != nil {
		t.Fatal(err)
	}
	return w.Snapshot()
}

// TestRenderSize verifies the image matches grid size times scale
func TestRenderSize(t *testing.T) {
	snap := testSnapshot(t)
	for _, scale := range []float64{0, 1, 2, 3} {
		r := New(scale)
		img := r.Render(snap)
		want := scale
		if want < 1 {
			want = 1
		}
		b := img.Bounds()
		if b.Dx() != int(400*want) || b.Dy() != int(224*want) {
			t.Errorf("scale %v: expected %dx%d, got %dx%d", scale, int(400*want), int(224*want), b.Dx(), b.Dy())
		}
	}
}

// TestRenderCells verifies cell fills land where the grid says
func TestRenderCells(t *testing.T) {
	snap := testSnapshot(t)
	img := New(2).Render(snap)

	solid := ClassColors[grid.Solid]
	r, g, b, _ := img.At((10*16+8)*2, (10*16+8)*2).RGBA()
	if uint8(r>>8) != solid.R || uint8(g>>8) != solid.G || uint8(b>>8) != solid.B {
		t.Errorf("Expected solid fill at cell center, got %d,%d,%d", r>>8, g>>8, b>>8)
	}

	// The rounded cell leaves its square corners unfilled.
	r, g, b, _ = img.At((12*16+1)*2, (10*16+1)*2).RGBA()
	if uint8(r>>8) != background.R || uint8(g>>8) != background.G || uint8(b>>8) != background.B {
		t.Errorf("Expected background at rounded corner, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

// TestEncodePNG verifies the PNG round trip
func TestEncodePNG(t *testing.T) {
	snap := testSnapshot(t)
	var buf bytes.Buffer
	if err := New(1).EncodePNG(&buf, snap); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 {
		t.Errorf("Expected width 400, got %d", img.Bounds().Dx())
	}
}
