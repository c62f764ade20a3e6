package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/control"
	"github.com/pveneroso/gogoame-2/internal/game"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	if r.URL.Query().Get("codec") == "msgpack" {
		writeMsgpack(w, snap)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetStats())
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"sessionId": h.engine.SessionID(),
		"seed":      h.engine.Seed(),
		"paused":    h.engine.IsPaused(),
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, "frame rendering disabled", http.StatusNotImplemented)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.frames.EncodePNG(&buf, h.engine.GetSnapshot()); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.engine.Catalog()
	writeJSON(w, map[string]interface{}{
		"maxLevel":    cat.MaxLevel(),
		"topology":    cat.Topology(),
		"definitions": cat.Definitions(),
		"recipes":     cat.Recipes(),
	})
}

func (h *routerHandlers) handleGetSymbol(w http.ResponseWriter, r *http.Request) {
	id := catalog.SymbolID(chi.URLParam(r, "id"))
	def, ok := h.engine.Catalog().Lookup(id)
	if !ok {
		writeError(w, "unknown symbol: "+string(id), http.StatusNotFound)
		return
	}
	writeJSON(w, def)
}

func (h *routerHandlers) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, control.Command{Kind: control.CmdRegenerate})
}

func (h *routerHandlers) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SymbolID string `json:"symbolId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.SymbolID == "" {
		writeError(w, "symbolId is required", http.StatusBadRequest)
		return
	}

	h.dispatch(w, r, control.Command{Kind: control.CmdSpawn, Symbol: catalog.SymbolID(req.SymbolID)})
}

// pointerRequest is the body of /api/drag/start and /api/drag/move.
type pointerRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func decodePointer(r *http.Request) (float64, float64, error) {
	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, 0, errors.Wrap(err, "invalid request")
	}
	if req.X == nil || req.Y == nil {
		return 0, 0, errors.New("x and y are required")
	}
	return *req.X, *req.Y, nil
}

func (h *routerHandlers) handleDragStart(w http.ResponseWriter, r *http.Request) {
	x, y, err := decodePointer(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.dispatch(w, r, control.Command{Kind: control.CmdDragStart, X: x, Y: y})
}

func (h *routerHandlers) handleDragMove(w http.ResponseWriter, r *http.Request) {
	x, y, err := decodePointer(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.dispatch(w, r, control.Command{Kind: control.CmdDragMove, X: x, Y: y})
}

func (h *routerHandlers) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, control.Command{Kind: control.CmdDragEnd})
}

func (h *routerHandlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Config().Params())
}

func (h *routerHandlers) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(values) == 0 {
		writeError(w, "no parameters given", http.StatusBadRequest)
		return
	}

	h.dispatch(w, r, control.Command{Kind: control.CmdConfig, Values: values})
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, control.Command{Kind: control.CmdPause})
}

func (h *routerHandlers) handleResume(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, control.Command{Kind: control.CmdResume})
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, control.Command{Kind: control.CmdRestart})
}

// dispatch runs cmd through the shared command handler, so HTTP and
// WebSocket input are validated the same way.
func (h *routerHandlers) dispatch(w http.ResponseWriter, r *http.Request, cmd control.Command) {
	cmd.Client = "http:" + GetClientIP(r)
	cmd.ReceivedAt = time.Now()

	if err := h.commands.ProcessCommand(cmd); err != nil {
		code := commandStatus(err)
		RecordCommandRejected(rejectReason(err))
		writeError(w, err.Error(), code)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{"success": true, "queued": cmd.Kind.String()})
}

// commandStatus maps command errors to HTTP status codes.
func commandStatus(err error) int {
	switch errors.Cause(err) {
	case control.ErrRateLimited:
		return http.StatusTooManyRequests
	case control.ErrRejected, game.ErrQueueFull:
		return http.StatusServiceUnavailable
	case control.ErrUnknownSymbol:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func rejectReason(err error) string {
	switch errors.Cause(err) {
	case control.ErrRateLimited:
		return "rate_limit"
	case control.ErrRejected, game.ErrQueueFull:
		return "queue_full"
	case control.ErrUnknownCommand:
		return "parse"
	default:
		return "invalid"
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// writeMsgpack encodes data with its json tags as msgpack keys, so both
// codecs share field names.
func writeMsgpack(w http.ResponseWriter, data interface{}) {
	b, err := marshalMsgpack(data)
	if err != nil {
		writeError(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	w.Write(b)
}

func marshalMsgpack(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}

var _ EngineInterface = (*game.Engine)(nil)
