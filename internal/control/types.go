// Package control turns client input (text or JSON commands) into engine
// requests.
package control

import (
	"time"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// CommandKind for routing
type CommandKind int

const (
	CmdSpawn CommandKind = iota
	CmdDragStart
	CmdDragMove
	CmdDragEnd
	CmdPause
	CmdResume
	CmdRestart
	CmdRegenerate
	CmdConfig
	CmdHelp
	CmdUnknown
)

func (k CommandKind) String() string {
	switch k {
	case CmdSpawn:
		return "spawn"
	case CmdDragStart:
		return "drag_start"
	case CmdDragMove:
		return "drag_move"
	case CmdDragEnd:
		return "drag_end"
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdRestart:
		return "restart"
	case CmdRegenerate:
		return "regenerate"
	case CmdConfig:
		return "config"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// SupportedCommands maps command strings to kinds
var SupportedCommands = map[string]CommandKind{
	// Spawn variants
	"spawn": CmdSpawn,
	"add":   CmdSpawn,

	// Pointer contract
	"drag_start": CmdDragStart,
	"down":       CmdDragStart,
	"drag_move":  CmdDragMove,
	"move":       CmdDragMove,
	"drag_end":   CmdDragEnd,
	"up":         CmdDragEnd,

	// Game control
	"pause":      CmdPause,
	"resume":     CmdResume,
	"restart":    CmdRestart,
	"regenerate": CmdRegenerate,

	// Parameters
	"config": CmdConfig,
	"set":    CmdConfig,

	// Help variants
	"help":     CmdHelp,
	"commands": CmdHelp,
}

// GetCommandKind returns the kind for a lower-case command string
func GetCommandKind(cmd string) CommandKind {
	if k, ok := SupportedCommands[cmd]; ok {
		return k
	}
	return CmdUnknown
}

// Command is one parsed client input.
type Command struct {
	Kind       CommandKind
	Symbol     catalog.SymbolID // CmdSpawn
	X, Y       float64          // CmdDragStart, CmdDragMove
	Values     map[string]any   // CmdConfig
	Client     string           // connection id, used for rate limiting and as event source
	ReceivedAt time.Time

	// Reply, when set, receives the outcome once the command is processed.
	Reply func(error)
}
