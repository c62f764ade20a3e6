package control

import (
	"log"

	"github.com/pkg/errors"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrRejected      = errors.New("request queue full")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Engine is the part of game.Engine that commands drive.
type Engine interface {
	Spawn(id catalog.SymbolID, source string) bool
	DragStart(x, y float64, source string) bool
	DragMove(x, y float64, source string) bool
	DragEnd(source string) bool
	PatchConfig(values map[string]any, source string) error
	RegenerateCatalog(source string) bool
	Restart(source string) bool
	Pause()
	Resume()
	Catalog() *catalog.Catalog
}

// Handler processes client commands and applies them to the engine
type Handler struct {
	engine      Engine
	rateLimiter *RateLimiter
}

// NewHandler creates a new command handler
func NewHandler(engine Engine, cfg RateLimitConfig) *Handler {
	return &Handler{
		engine:      engine,
		rateLimiter: NewRateLimiter(cfg),
	}
}

// ProcessCommand handles a single command and reports why it was refused.
func (h *Handler) ProcessCommand(cmd Command) error {
	// Rate limit check
	if !h.rateLimiter.Allow(cmd.Client) {
		return ErrRateLimited
	}

	source := cmd.Client
	if source == "" {
		source = "client"
	}

	switch cmd.Kind {
	case CmdSpawn:
		return h.handleSpawn(cmd, source)
	case CmdDragStart:
		return accepted(h.engine.DragStart(cmd.X, cmd.Y, source))
	case CmdDragMove:
		return accepted(h.engine.DragMove(cmd.X, cmd.Y, source))
	case CmdDragEnd:
		return accepted(h.engine.DragEnd(source))
	case CmdPause:
		h.engine.Pause()
		return nil
	case CmdResume:
		h.engine.Resume()
		return nil
	case CmdRestart:
		log.Printf("🔄 Restart requested by %s", source)
		return accepted(h.engine.Restart(source))
	case CmdRegenerate:
		log.Printf("🧬 Catalog regeneration requested by %s", source)
		return accepted(h.engine.RegenerateCatalog(source))
	case CmdConfig:
		return h.handleConfig(cmd, source)
	case CmdHelp:
		return nil
	default:
		return errors.Wrap(ErrUnknownCommand, cmd.Kind.String())
	}
}

func (h *Handler) handleSpawn(cmd Command, source string) error {
	if !h.engine.Catalog().Contains(cmd.Symbol) {
		return errors.Wrap(ErrUnknownSymbol, string(cmd.Symbol))
	}
	return accepted(h.engine.Spawn(cmd.Symbol, source))
}

func (h *Handler) handleConfig(cmd Command, source string) error {
	if err := h.engine.PatchConfig(cmd.Values, source); err != nil {
		log.Printf("⚠️ %s: config patch rejected: %v", source, err)
		return err
	}
	log.Printf("⚙️ %s queued %d parameter change(s)", source, len(cmd.Values))
	return nil
}

// Forget releases per-client state when a connection closes.
func (h *Handler) Forget(client string) {
	h.rateLimiter.Forget(client)
}

// Close stops background cleanup.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// Help lists the accepted command forms.
func Help() string {
	return "spawn <id> | drag_start <x> <y> | drag_move <x> <y> | drag_end | pause | resume | restart | regenerate | config <name>=<value>"
}

func accepted(ok bool) error {
	if !ok {
		return ErrRejected
	}
	return nil
}
