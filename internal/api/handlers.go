package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/physics"
	"tilephys/internal/world"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.world.Snapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	// Lock-free snapshot instead of taking the world lock on every poll
	snap := h.world.Snapshot()
	writeJSON(w, map[string]interface{}{
		"tick":        snap.Tick,
		"spriteCount": len(snap.Sprites),
		"physics":     snap.Stats,
		"contactLog":  h.world.ContactLogStats(),
	})
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	snap := h.world.Snapshot()
	contacts := snap.Contacts
	if contacts == nil {
		contacts = []world.Contact{}
	}
	writeJSON(w, map[string]interface{}{
		"tick":     snap.Tick,
		"contacts": contacts,
	})
}

func (h *routerHandlers) handleGetTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, world.TypeNames())
}

func (h *routerHandlers) handleGetHitboxes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]physics.Hitbox)
	for _, name := range physics.HitboxNames() {
		hb, _ := physics.GetHitbox(name)
		out[name] = hb
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Rendering disabled", http.StatusNotFound)
		return
	}
	start := time.Now()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.EncodePNG(w, h.world.Snapshot()); err != nil {
		log.Printf("❌ Frame encode failed: %v", err)
		return
	}
	RecordRender(time.Since(start))
}

func (h *routerHandlers) handleGetCell(w http.ResponseWriter, r *http.Request) {
	col, row, ok := cellParams(w, r)
	if !ok {
		return
	}
	snap := h.world.Snapshot()
	if col < 0 || row < 0 || col >= snap.Cols || row >= snap.Rows {
		writeError(w, "Cell out of range", http.StatusNotFound)
		return
	}
	cell := snap.Cell(col, row)
	writeJSON(w, map[string]interface{}{
		"col":     col,
		"row":     row,
		"physics": cell.Physics.String(),
		"corners": cell.Corners,
	})
}

func (h *routerHandlers) handleGetSprite(w http.ResponseWriter, r *http.Request) {
	id, ok := spriteParam(w, r)
	if !ok {
		return
	}
	s, found := h.world.Sprite(id)
	if !found {
		writeError(w, "Sprite not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s)
}

func (h *routerHandlers) handleGetCollisions(w http.ResponseWriter, r *http.Request) {
	id, ok := spriteParam(w, r)
	if !ok {
		return
	}
	var other uint64
	if v := r.URL.Query().Get("other"); v != "" {
		var err error
		if other, err = strconv.ParseUint(v, 10, 32); err != nil || other == 0 {
			writeError(w, "Invalid other sprite id", http.StatusBadRequest)
			return
		}
	}
	res, err := h.world.Query(id, uint32(other), r.URL.Query().Get("type"))
	if err != nil {
		writeWorldError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *routerHandlers) handleAddSprite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		world.SpriteOptions
		Shape string `json:"shape"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	shape, ok := parseShape(req.Shape)
	if !ok {
		writeError(w, "Unknown shape", http.StatusBadRequest)
		return
	}
	opts := req.SpriteOptions
	opts.Shape = shape

	s, err := h.world.AddSprite(opts)
	if err != nil {
		writeWorldError(w, err)
		return
	}
	w.Header().Set("Location", "/api/sprites/"+strconv.FormatUint(uint64(s.ID), 10))
	writeJSONStatus(w, s, http.StatusCreated)
}

func (h *routerHandlers) handleRemoveSprite(w http.ResponseWriter, r *http.Request) {
	id, ok := spriteParam(w, r)
	if !ok {
		return
	}
	if !h.world.RemoveSprite(id) {
		writeError(w, "Sprite not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleMoveSprite(w http.ResponseWriter, r *http.Request) {
	id, ok := spriteParam(w, r)
	if !ok {
		return
	}
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.world.MoveSprite(id, req.X, req.Y); err != nil {
		writeWorldError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleSetVelocity(w http.ResponseWriter, r *http.Request) {
	id, ok := spriteParam(w, r)
	if !ok {
		return
	}
	var req struct {
		VX float64 `json:"vx"`
		VY float64 `json:"vy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.world.SetVelocity(id, req.VX, req.VY); err != nil {
		writeWorldError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleSetCell(w http.ResponseWriter, r *http.Request) {
	col, row, ok := cellParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Physics string       `json:"physics"`
		Corners grid.Corners `json:"corners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	class, ok := grid.ParseClass(req.Physics)
	if !ok {
		writeError(w, "Unknown physics class", http.StatusBadRequest)
		return
	}
	if req.Corners > grid.RoundAll {
		writeError(w, "Invalid corners", http.StatusBadRequest)
		return
	}
	if err := h.world.SetCell(col, row, grid.Cell{Physics: class, Corners: req.Corners}); err != nil {
		writeWorldError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleStep(w http.ResponseWriter, r *http.Request) {
	stats, err := h.world.Step()
	if err != nil {
		log.Printf("❌ Manual step failed: %v", err)
		writeWorldError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleStrike(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attacker  uint32  `json:"attacker"`
		Hitbox    string  `json:"hitbox"`
		Direction float64 `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	hits, err := h.world.Strike(req.Attacker, req.Hitbox, req.Direction)
	if err != nil {
		writeWorldError(w, err)
		return
	}
	if hits == nil {
		hits = []uint32{}
	}
	writeJSON(w, map[string]interface{}{"hits": hits})
}

// Helper functions (package-level for reuse)

func spriteParam(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		writeError(w, "Invalid sprite id", http.StatusBadRequest)
		return 0, false
	}
	return uint32(id), true
}

func cellParams(w http.ResponseWriter, r *http.Request) (col, row int, ok bool) {
	col, errCol := strconv.Atoi(chi.URLParam(r, "col"))
	row, errRow := strconv.Atoi(chi.URLParam(r, "row"))
	if errCol != nil || errRow != nil {
		writeError(w, "Invalid cell coordinates", http.StatusBadRequest)
		return 0, 0, false
	}
	return col, row, true
}

// parseShape maps a shape name to a geom.Shape. Empty means box.
func parseShape(name string) (geom.Shape, bool) {
	switch name {
	case "", "box":
		return geom.ShapeBox, true
	case "circle":
		return geom.ShapeCircle, true
	}
	return 0, false
}

// writeWorldError maps world and solver errors to HTTP status codes.
func writeWorldError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, world.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, world.ErrUnknownType),
		errors.Is(err, world.ErrOutOfRange),
		errors.Is(err, physics.ErrInvalidArgument):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, world.ErrFull):
		writeError(w, "Sprite limit reached", http.StatusServiceUnavailable)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeJSONStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
