package game

import (
	"time"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypeSymbolSpawned
	EventTypeSymbolDestroyed
	EventTypeSymbolCombined
	EventTypeSymbolDegraded
	EventTypeShieldBroken
	EventTypeLifeLost
	EventTypeLifeGained
	EventTypeCorruptionChanged
	EventTypeGameOver
	EventTypeCurveSnapped
	EventTypeCurveFinalized
	EventTypeSlotClaimed
	EventTypeLotusStarted
	EventTypeLotusCompleted
	EventTypeWindCombined
	EventTypePointsLost
	EventTypeRestart
	EventTypeCatalogRegenerated
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log and subscribers
type Event struct {
	Version   uint8     `json:"version" msgpack:"version"`
	Type      EventType `json:"type" msgpack:"type"`
	Timestamp int64     `json:"timestamp" msgpack:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence" msgpack:"sequence"`   // Monotonic within a session
	TickNum   uint64    `json:"tickNum" msgpack:"tickNum"`
	SimTime   float64   `json:"simTime" msgpack:"simTime"` // Simulation clock, ms
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Source    string    `json:"source" msgpack:"source"` // Rate limiting key
	Data      any       `json:"data,omitempty" msgpack:"data,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeSymbolSpawned:
		return "symbol_spawned"
	case EventTypeSymbolDestroyed:
		return "symbol_destroyed"
	case EventTypeSymbolCombined:
		return "symbol_combined"
	case EventTypeSymbolDegraded:
		return "symbol_degraded"
	case EventTypeShieldBroken:
		return "shield_broken"
	case EventTypeLifeLost:
		return "life_lost"
	case EventTypeLifeGained:
		return "life_gained"
	case EventTypeCorruptionChanged:
		return "corruption_changed"
	case EventTypeGameOver:
		return "game_over"
	case EventTypeCurveSnapped:
		return "curve_snapped"
	case EventTypeCurveFinalized:
		return "curve_finalized"
	case EventTypeSlotClaimed:
		return "slot_claimed"
	case EventTypeLotusStarted:
		return "lotus_started"
	case EventTypeLotusCompleted:
		return "lotus_completed"
	case EventTypeWindCombined:
		return "wind_combined"
	case EventTypePointsLost:
		return "points_lost"
	case EventTypeRestart:
		return "restart"
	case EventTypeCatalogRegenerated:
		return "catalog_regenerated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name so logs stay readable across enum changes
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DestroyCause tags why a ball left the playfield
type DestroyCause string

const (
	CauseVertical    DestroyCause = "vertical"
	CauseHorizontal  DestroyCause = "horizontal"
	CauseVoid        DestroyCause = "void"
	CauseCombination DestroyCause = "combination"
	CauseExplosion   DestroyCause = "explosion"
	CauseGlory       DestroyCause = "glory"
	CausePool        DestroyCause = "pool"
	CauseWall        DestroyCause = "wall"
	CauseImmunity    DestroyCause = "immunity"
)

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed int64   `json:"rngSeed"`
	Balls   int     `json:"balls"`
	DeltaMs float64 `json:"deltaMs"`
}

// SpawnPayload describes a new ball entering from the top edge
type SpawnPayload struct {
	BallID    uint64           `json:"ballId"`
	Symbol    catalog.SymbolID `json:"symbol"`
	Level     int              `json:"level"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Requested bool             `json:"requested"` // true for spawnSymbol, false for the timer
}

// DestroyPayload contains destruction details
type DestroyPayload struct {
	BallID uint64           `json:"ballId"`
	Symbol catalog.SymbolID `json:"symbol"`
	Level  int              `json:"level"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Cause  DestroyCause     `json:"cause"`
}

// CombinePayload contains combination details
type CombinePayload struct {
	BallID         uint64              `json:"ballId"`
	Symbol         catalog.SymbolID    `json:"symbol"`
	Level          int                 `json:"level"`
	X              float64             `json:"x"`
	Y              float64             `json:"y"`
	Points         int                 `json:"points"`
	Ingredients    [2]catalog.SymbolID `json:"ingredients"`
	FirstDiscovery bool                `json:"firstDiscovery"`
}

// DegradePayload contains degradation details
type DegradePayload struct {
	BallID    uint64           `json:"ballId"`
	NewBallID uint64           `json:"newBallId"`
	From      catalog.SymbolID `json:"from"`
	To        catalog.SymbolID `json:"to"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Cause     DestroyCause     `json:"cause"`
}

// ShieldPayload is emitted when a void strips a metallic shield
type ShieldPayload struct {
	BallID uint64           `json:"ballId"`
	Symbol catalog.SymbolID `json:"symbol"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
}

// LivesPayload carries the life count after a change
type LivesPayload struct {
	Lives int `json:"lives"`
}

// CorruptionPayload carries the pool state after a change
type CorruptionPayload struct {
	Level  float64 `json:"level"`
	Target float64 `json:"target"`
	Rising bool    `json:"rising"`
}

// GameOverPayload describes the terminal state
type GameOverPayload struct {
	Reason string `json:"reason"` // "corruption" or "lives"
	Score  int    `json:"score"`
}

// CurvePayload describes a finalized or snapped wind curve
type CurvePayload struct {
	Points   int     `json:"points"`
	Length   float64 `json:"length"`
	Lifetime float64 `json:"lifetime"`
	RestartX float64 `json:"restartX,omitempty"`
	RestartY float64 `json:"restartY,omitempty"`
}

// SlotPayload describes a reserved slot claim
type SlotPayload struct {
	Slot   int              `json:"slot"`
	BallID uint64           `json:"ballId"`
	Symbol catalog.SymbolID `json:"symbol"`
}

// LotusPayload describes the lotus sequence
type LotusPayload struct {
	Bonus int `json:"bonus"`
	Score int `json:"score"`
}

// WindCombinePayload describes a charged wind combination
type WindCombinePayload struct {
	BallID   uint64           `json:"ballId"`
	Symbol   catalog.SymbolID `json:"symbol"`
	Level    int              `json:"level"`
	Consumed []uint64         `json:"consumed"`
}

// PointsPayload describes a score penalty
type PointsPayload struct {
	Points int              `json:"points"`
	Score  int              `json:"score"`
	Symbol catalog.SymbolID `json:"symbol"`
}

// RestartPayload marks a fresh game in the same session
type RestartPayload struct {
	RNGSeed int64 `json:"rngSeed"`
}

// CatalogPayload describes a regenerated catalog
type CatalogPayload struct {
	MaxLevel int `json:"maxLevel"`
	Topology int `json:"topology"`
	Symbols  int `json:"symbols"`
	Dropped  int `json:"dropped"` // Live balls whose symbol no longer exists
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, data any) Event {
	if source == "" {
		source = eventType.String()
	}
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Data:      data,
	}
}
