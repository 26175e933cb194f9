// Command termview follows a running server over its snapshot WebSocket and draws the grid in
// the terminal, one cell per two columns.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"tilephys/internal/api"
	"tilephys/internal/render"
	"tilephys/internal/world"
)

var spriteGlyphs = map[string]rune{
	world.TypeHero:    '@',
	world.TypeMonster: 'M',
	world.TypeCrate:   '#',
	world.TypeSwarm:   '*',
}

// Viewer holds the terminal and the latest received snapshot.
type Viewer struct {
	screen tcell.Screen
	conn   *websocket.Conn
	latest atomic.Pointer[world.Snapshot]
	frames atomic.Uint64
	err    atomic.Value // error string from the reader
}

func NewViewer(addr string) (*Viewer, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "format=" + api.FormatMsgpack}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u.String())
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := screen.Init(); err != nil {
		conn.Close()
		return nil, err
	}
	return &Viewer{screen: screen, conn: conn}, nil
}

// readLoop decodes snapshots until the connection closes.
func (v *Viewer) readLoop() {
	for {
		kind, data, err := v.conn.ReadMessage()
		if err != nil {
			v.err.Store(err.Error())
			return
		}
		snap, err := api.DecodeSnapshot(kind, data)
		if err != nil {
			v.err.Store(err.Error())
			continue
		}
		v.latest.Store(snap)
		v.frames.Add(1)
	}
}

func (v *Viewer) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
			case *tcell.EventResize:
				v.screen.Sync()
			}
		case <-ticker.C:
			v.draw()
		}
	}
}

func tcellColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func (v *Viewer) draw() {
	v.screen.Clear()
	defer v.screen.Show()

	status := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	snap := v.latest.Load()
	if snap == nil {
		drawText(v.screen, 0, 0, status, "waiting for snapshot... (q to quit)")
		v.drawError(1)
		return
	}

	for row := 0; row < snap.Rows; row++ {
		for col := 0; col < snap.Cols; col++ {
			cell := snap.Cell(col, row)
			clr, ok := render.ClassColors[cell.Physics]
			if !ok {
				continue
			}
			glyph := '█'
			if cell.Corners != 0 {
				glyph = '▓'
			}
			style := tcell.StyleDefault.Foreground(tcellColor(clr))
			v.screen.SetContent(col*2, row+1, glyph, nil, style)
			v.screen.SetContent(col*2+1, row+1, glyph, nil, style)
		}
	}

	ts := float64(snap.TileSize)
	for _, s := range snap.Sprites {
		col, row := int(s.X/ts), int(s.Y/ts)
		if col < 0 || row < 0 || col >= snap.Cols || row >= snap.Rows {
			continue
		}
		glyph, ok := spriteGlyphs[s.Type]
		if !ok {
			glyph = '?'
		}
		style := tcell.StyleDefault.Foreground(tcellColor(render.TypeColors[s.Type]))
		if s.CollidedGrid {
			style = style.Background(tcell.ColorDarkRed)
		}
		// Right half of the cell when the center is past the midpoint
		x := col * 2
		if s.X-float64(col)*ts >= ts/2 {
			x++
		}
		v.screen.SetContent(x, row+1, glyph, nil, style)
	}

	st := snap.Stats
	drawText(v.screen, 0, 0, status, fmt.Sprintf("tick %d  sprites %d  passes %d  events %d  settled %v  frames %d",
		snap.Tick, len(snap.Sprites), st.Passes, st.Events, st.Settled, v.frames.Load()))
	v.drawError(snap.Rows + 1)
}

func (v *Viewer) drawError(y int) {
	if msg, ok := v.err.Load().(string); ok && msg != "" {
		drawText(v.screen, 0, y, tcell.StyleDefault.Foreground(tcell.ColorRed), msg)
	}
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

func (v *Viewer) cleanup() {
	v.conn.Close()
	v.screen.Fini()
}

func main() {
	addr := flag.String("addr", "localhost:3000", "server host:port")
	flag.Parse()

	viewer, err := NewViewer(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer viewer.cleanup()

	go viewer.readLoop()
	viewer.run()
}
