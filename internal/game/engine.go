package game

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/config"
)

var (
	ErrQueueFull          = errors.New("request queue full")
	ErrTooManySubscribers = errors.New("too many event subscribers")
)

// EngineConfig bundles everything the engine needs to build its simulation.
type EngineConfig struct {
	World      config.WorldConfig
	Limits     config.ResourceLimits
	Spatial    config.SpatialConfig
	EventLog   config.EventLogConfig
	Simulation config.Simulation
	SessionID  string
}

// TickStats is handed to the tick hook after every tick.
type TickStats struct {
	Tick       uint64
	Duration   time.Duration
	Balls      int
	Score      int
	Lives      int
	Corruption float64
	Events     []Event
}

// Engine runs the simulation loop. It owns the Simulation behind a mutex;
// everything else talks to it through the request queue, snapshots and events.
type Engine struct {
	mu  sync.RWMutex
	sim *Simulation

	requests     *RequestQueue
	snapshotPool *SnapshotPool
	eventLog     *EventLog
	limits       config.ResourceLimits

	tickRate int
	running  bool
	paused   bool
	ticker   *time.Ticker
	stopChan chan struct{}

	// Event fan-out
	subMu       sync.RWMutex
	subscribers map[int]chan Event
	nextSubID   int
	subDropped  atomic.Uint64

	onTick func(TickStats)
}

// NewEngine creates an engine with a fresh simulation and publishes an
// initial snapshot.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	sim, err := NewSimulation(Options{
		World:      cfg.World,
		Limits:     cfg.Limits,
		Spatial:    cfg.Spatial,
		Simulation: cfg.Simulation,
		SessionID:  cfg.SessionID,
		Seed:       cfg.World.Seed,
	})
	if err != nil {
		return nil, err
	}

	tickRate := cfg.World.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}

	e := &Engine{
		sim:          sim,
		requests:     NewRequestQueue(cfg.Limits.RequestQueueSize),
		snapshotPool: NewSnapshotPool(cfg.Limits),
		eventLog:     NewEventLog(cfg.EventLog),
		limits:       cfg.Limits,
		tickRate:     tickRate,
		stopChan:     make(chan struct{}),
		subscribers:  make(map[int]chan Event),
	}
	e.produceSnapshot()
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.stopChan = make(chan struct{})
	ticker, stop := e.ticker, e.stopChan
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.tick()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Simulation engine started at %d TPS (session %s)", e.tickRate, e.sim.SessionID())
}

// Stop stops the game loop. Safe to call more than once; Start resumes it.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Simulation engine stopped")
}

// tick advances one fixed frame unless paused.
func (e *Engine) tick() {
	e.mu.RLock()
	paused := e.paused
	e.mu.RUnlock()
	if paused {
		return
	}
	e.Step(1000 / float64(e.tickRate))
}

// Step drains pending requests, advances the simulation by dt ms, publishes
// a snapshot and forwards the tick's events. Used by the loop, by tests and
// by the headless runner.
func (e *Engine) Step(dt float64) []Event {
	start := time.Now()

	e.mu.Lock()
	e.requests.Drain(func(req Request) {
		e.sim.apply(req)
	})
	events := e.sim.Step(dt)
	e.produceSnapshot()
	stats := TickStats{
		Tick:       e.sim.Tick(),
		Balls:      len(e.sim.Balls()),
		Score:      e.sim.Score(),
		Lives:      e.sim.Lives(),
		Corruption: e.sim.Pool().Level,
		Events:     events,
	}
	hook := e.onTick

	// Forwarded under the lock so concurrent Step calls keep event order
	e.eventLog.EmitAll(events)
	e.broadcast(events)
	e.mu.Unlock()

	stats.Duration = time.Since(start)
	if hook != nil {
		hook(stats)
	}
	return events
}

// produceSnapshot copies the simulation into the next snapshot slot.
// Caller holds e.mu.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	e.sim.FillSnapshot(snap, e.limits)
	snap.Paused = e.paused
	e.snapshotPool.PublishWrite()
}

// SetTickHook registers fn to run after every tick, outside the engine lock.
func (e *Engine) SetTickHook(fn func(TickStats)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// =============================================================================
// REQUESTS
// =============================================================================

// Enqueue queues a raw request for the next tick boundary.
func (e *Engine) Enqueue(req Request) bool {
	return e.requests.Enqueue(req)
}

// Spawn queues spawnSymbol(id). Unknown ids are rejected up front.
func (e *Engine) Spawn(id catalog.SymbolID, source string) bool {
	e.mu.RLock()
	known := e.sim.Catalog().Contains(id)
	e.mu.RUnlock()
	if !known {
		return false
	}
	return e.requests.Enqueue(Request{Kind: RequestSpawn, Symbol: id, Source: source})
}

// DragStart queues the start of a new wind curve.
func (e *Engine) DragStart(x, y float64, source string) bool {
	return e.requests.Enqueue(Request{Kind: RequestDragStart, X: x, Y: y, Source: source})
}

// DragMove queues one pointer sample.
func (e *Engine) DragMove(x, y float64, source string) bool {
	return e.requests.Enqueue(Request{Kind: RequestDragMove, X: x, Y: y, Source: source})
}

// DragEnd queues the end of the current drag.
func (e *Engine) DragEnd(source string) bool {
	return e.requests.Enqueue(Request{Kind: RequestDragEnd, Source: source})
}

// PatchConfig validates values against the active config and queues them.
// Invalid patches are rejected here so callers get the error.
func (e *Engine) PatchConfig(values map[string]any, source string) error {
	e.mu.RLock()
	next := e.sim.Config()
	e.mu.RUnlock()

	if err := next.Apply(values); err != nil {
		return err
	}
	if !e.requests.Enqueue(Request{Kind: RequestConfig, Values: values, Source: source}) {
		return ErrQueueFull
	}
	return nil
}

// RegenerateCatalog queues a catalog rebuild from the current config.
func (e *Engine) RegenerateCatalog(source string) bool {
	return e.requests.Enqueue(Request{Kind: RequestRegenerate, Source: source})
}

// Restart queues a fresh game.
func (e *Engine) Restart(source string) bool {
	return e.requests.Enqueue(Request{Kind: RequestRestart, Source: source})
}

// Pause stops ticking; state stays consistent between ticks.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	e.paused = true
	e.produceSnapshot()
	log.Println("⏸️ Simulation paused")
}

// Resume restarts ticking after Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	e.produceSnapshot()
	log.Println("▶️ Simulation resumed")
}

// IsPaused reports whether ticking is paused.
func (e *Engine) IsPaused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// =============================================================================
// READ SIDE
// =============================================================================

// GetSnapshot returns a private copy of the latest published snapshot.
func (e *Engine) GetSnapshot() *GameSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Clone()
}

// Catalog returns the active catalog. Catalogs are immutable.
func (e *Engine) Catalog() *catalog.Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.Catalog()
}

// Config returns a copy of the active simulation parameters.
func (e *Engine) Config() config.Simulation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.Config()
}

// SessionID returns the session stamped on every event.
func (e *Engine) SessionID() string {
	return e.sim.SessionID()
}

// Seed returns the RNG seed of the current game.
func (e *Engine) Seed() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.Seed()
}

// EngineStats is the /api/stats payload.
type EngineStats struct {
	Tick         uint64                 `json:"tick"`
	SimTime      float64                `json:"simTime"`
	Balls        int                    `json:"balls"`
	Score        int                    `json:"score"`
	Lives        int                    `json:"lives"`
	HighestLevel int                    `json:"highestLevel"`
	Corruption   float64                `json:"corruption"`
	GameOver     bool                   `json:"gameOver"`
	Paused       bool                   `json:"paused"`
	Subscribers  int                    `json:"subscribers"`
	SubDropped   uint64                 `json:"subscriberDropped"`
	Queue        QueueStats             `json:"queue"`
	EventLog     map[string]interface{} `json:"eventLog"`
}

// GetStats returns engine statistics for monitoring.
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	over, _ := e.sim.GameOver()
	stats := EngineStats{
		Tick:         e.sim.Tick(),
		SimTime:      e.sim.Now(),
		Balls:        len(e.sim.Balls()),
		Score:        e.sim.Score(),
		Lives:        e.sim.Lives(),
		HighestLevel: e.sim.HighestLevel(),
		Corruption:   e.sim.Pool().Level,
		GameOver:     over,
		Paused:       e.paused,
	}
	e.mu.RUnlock()

	e.subMu.RLock()
	stats.Subscribers = len(e.subscribers)
	e.subMu.RUnlock()
	stats.SubDropped = e.subDropped.Load()
	stats.Queue = e.requests.Stats()
	stats.EventLog = e.eventLog.GetStats()
	return stats
}

// QueueStats returns request queue statistics.
func (e *Engine) QueueStats() QueueStats {
	return e.requests.Stats()
}

// =============================================================================
// EVENTS
// =============================================================================

// Subscribe registers a buffered event channel. Slow subscribers lose events
// rather than stall the tick. The returned cancel func is idempotent.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func(), error) {
	if buffer <= 0 {
		buffer = 256
	}

	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.limits.MaxEventSubscriber > 0 && len(e.subscribers) >= e.limits.MaxEventSubscriber {
		return nil, nil, ErrTooManySubscribers
	}

	id := e.nextSubID
	e.nextSubID++
	ch := make(chan Event, buffer)
	e.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subscribers, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (e *Engine) broadcast(events []Event) {
	if len(events) == 0 {
		return
	}
	if limit := e.limits.MaxEventsPerTick; limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, ch := range e.subscribers {
		for _, ev := range events {
			if ev.Type == EventTypeTick {
				continue
			}
			select {
			case ch <- ev:
			default:
				e.subDropped.Add(1)
			}
		}
	}
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// GetEventLog exposes the event log for metrics wiring.
func (e *Engine) GetEventLog() *EventLog {
	return e.eventLog
}
