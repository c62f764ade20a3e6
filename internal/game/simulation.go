package game

import (
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/config"
	"github.com/pveneroso/gogoame-2/internal/game/spatial"
)

// maxStepMs caps a single tick so a stalled host cannot tunnel balls
// through each other.
const maxStepMs = 100.0

// Options configures a new Simulation.
type Options struct {
	World      config.WorldConfig
	Limits     config.ResourceLimits
	Spatial    config.SpatialConfig
	Simulation config.Simulation
	SessionID  string
	Seed       int64 // 0 derives a seed from the wall clock
}

// Simulation is the complete game state. It is single-threaded: every method
// must be called from one goroutine (the Engine serializes access).
type Simulation struct {
	cfg     config.Simulation
	world   config.WorldConfig
	limits  config.ResourceLimits
	catalog *catalog.Catalog

	rng       *rand.Rand
	seed      int64
	sessionID string

	// Clock
	tick uint64
	now  float64 // simulation ms
	step float64 // dt in 60 Hz frames

	// Live entities and per-tick worklists
	balls     []*Ball
	removals  []*Ball
	removed   map[uint64]bool
	additions []*Ball
	captured  []*Ball
	nextID    uint64

	wind   WindTracker
	pool   CorruptionPool
	slots  SlotTable
	lotus  lotusState
	charge windCharge

	lives          int
	lifeLossUntil  float64
	score          int
	highestLevel   int
	discovered     map[catalog.SymbolID]bool
	gameOver       bool
	gameOverReason string
	lastCorruption int

	spawnElapsed  float64
	nextSpawnType int

	grid      *spatial.Grid
	maxRadius float64

	events []Event
	seq    uint64
}

// NewSimulation builds a fresh game with a generated catalog.
func NewSimulation(opts Options) (*Simulation, error) {
	cat, err := generateCatalog(opts.Simulation)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cellSize := opts.Spatial.GridCellSize
	if cellSize <= 0 {
		cellSize = config.DefaultSpatial().GridCellSize
	}

	s := &Simulation{
		cfg:       opts.Simulation,
		world:     opts.World,
		limits:    opts.Limits,
		catalog:   cat,
		seed:      seed,
		sessionID: opts.SessionID,
		grid:      spatial.NewGrid(opts.World.Width, opts.World.Height, cellSize),
	}
	s.reset()
	return s, nil
}

func generateCatalog(cfg config.Simulation) (*catalog.Catalog, error) {
	return catalog.GenerateWithOptions(cfg.MaxSymbolLevel, cfg.NumberOfSymbolTypes, catalog.Options{
		AllMetallic: cfg.AllMetallic,
	})
}

// reset restores the initial game state, keeping config, catalog and session.
func (s *Simulation) reset() {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.tick = 0
	s.now = 0
	s.step = 0

	s.balls = make([]*Ball, 0, 64)
	s.removals = s.removals[:0]
	s.removed = make(map[uint64]bool)
	s.additions = s.additions[:0]
	s.captured = s.captured[:0]
	s.nextID = 0

	s.wind = NewWindTracker(s.limits.MaxCurvePoints)
	s.pool = NewCorruptionPool(s.world.Height)
	s.slots.Clear()
	s.lotus = lotusState{}
	s.charge = windCharge{}

	s.lives = s.cfg.InitialLives
	s.lifeLossUntil = 0
	s.score = 0
	s.highestLevel = 0
	s.discovered = make(map[catalog.SymbolID]bool)
	s.gameOver = false
	s.gameOverReason = ""
	s.lastCorruption = 0

	s.spawnElapsed = 0
	s.nextSpawnType = 0
}

// =============================================================================
// TICK
// =============================================================================

// Step advances the simulation by dt milliseconds and returns the ordered
// events of this tick, preceded by any events emitted by operations applied
// since the previous tick. A dt of zero performs no integration.
func (s *Simulation) Step(dt float64) []Event {
	if math.IsNaN(dt) || dt < 0 {
		dt = 0
	}
	if dt > maxStepMs {
		dt = maxStepMs
	}

	s.tick++
	s.now += dt
	s.step = dt / frameMs
	s.emit(EventTypeTick, TickPayload{RNGSeed: s.seed, Balls: len(s.balls), DeltaMs: dt})

	if s.updateLotus() || s.gameOver {
		return s.takeEvents()
	}

	if s.pool.Overflowing(&s.cfg) && !s.pool.Rising {
		s.pool.StartRise(s.now)
		s.emit(EventTypeCorruptionChanged, CorruptionPayload{Level: s.pool.Level, Target: s.pool.Target, Rising: true})
		log.Printf("⚠️ Corruption pool overflowing, rising over %.0fms", s.cfg.PoolRiseDuration)
	}
	if s.pool.Update(&s.cfg, s.world.Height, s.now, s.step) {
		s.endGame("corruption")
		return s.takeEvents()
	}

	s.runSpawner(dt)
	s.highlightDanger()

	s.beginWorklists()
	s.captured = s.captured[:0]
	for _, b := range s.balls {
		b.CapturedByWind = false
	}

	// Physics: every update completes before any collision is resolved
	for _, b := range s.balls {
		if b.IsGrabbed || s.isQueued(b) {
			continue
		}
		b.Update(s)
	}
	applyWindAttraction(s)
	s.sweepPool()
	s.checkWindCombination()

	s.resolveCollisions()
	s.applyWorklists()

	if s.wind.Expire(s.now) {
		s.charge.reset()
	}
	s.checkLotusTrigger()
	s.reportCorruption()

	return s.takeEvents()
}

// takeEvents hands the accumulated events to the caller and starts a new batch.
func (s *Simulation) takeEvents() []Event {
	out := s.events
	s.events = make([]Event, 0, 8)
	return out
}

// sweepPool destroys every ball whose bottom edge sank below the pool.
func (s *Simulation) sweepPool() {
	if s.pool.Level <= 0 {
		return
	}
	for _, b := range s.balls {
		if s.isQueued(b) || b.Target != nil {
			continue
		}
		if b.Y+b.Radius > s.pool.SurfaceY {
			s.destroy(b, CausePool)
		}
	}
}

func (s *Simulation) reportCorruption() {
	level := int(s.pool.Level)
	if level == s.lastCorruption {
		return
	}
	s.lastCorruption = level
	s.emit(EventTypeCorruptionChanged, CorruptionPayload{Level: s.pool.Level, Target: s.pool.Target, Rising: s.pool.Rising})
}

// =============================================================================
// WORKLISTS
// =============================================================================

func (s *Simulation) beginWorklists() {
	s.removals = s.removals[:0]
	clear(s.removed)
	s.additions = s.additions[:0]
}

// isQueued reports whether b is already on this tick's removal list.
func (s *Simulation) isQueued(b *Ball) bool {
	return s.removed[b.ID]
}

// queueRemoval adds b to the removal list once. It returns false for duplicates.
func (s *Simulation) queueRemoval(b *Ball) bool {
	if s.removed[b.ID] {
		return false
	}
	s.removed[b.ID] = true
	s.removals = append(s.removals, b)
	return true
}

func (s *Simulation) queueAddition(b *Ball) {
	s.additions = append(s.additions, b)
}

// applyWorklists filters removals out of the live set, then appends additions.
func (s *Simulation) applyWorklists() {
	if len(s.removals) > 0 {
		kept := s.balls[:0]
		for _, b := range s.balls {
			if !s.removed[b.ID] {
				kept = append(kept, b)
				continue
			}
			if s.lotus.phase != LotusPlaying {
				s.slots.Release(b.ID)
			}
		}
		for i := len(kept); i < len(s.balls); i++ {
			s.balls[i] = nil
		}
		s.balls = kept
	}
	s.balls = append(s.balls, s.additions...)
	s.beginWorklists()
}

// =============================================================================
// BALL LIFECYCLE
// =============================================================================

// radiusFor returns the on-screen radius of a symbol.
func (s *Simulation) radiusFor(def *catalog.Definition) float64 {
	if def.IsVoid() {
		mult := s.cfg.VoidBallRadiusMultiplier
		if s.cfg.EnableVariableVoidSize {
			mult = s.cfg.VoidSizeMultiplierMin + s.rng.Float64()*(s.cfg.VoidSizeMultiplierMax-s.cfg.VoidSizeMultiplierMin)
		}
		return math.Max(5, s.cfg.BaseBallRadius*mult)
	}
	r := s.cfg.BaseBallRadius * def.SizeMultiplier * (1 + float64(def.Level-1)*s.cfg.SizeIncreasePerLevel)
	return math.Max(5, r)
}

// newBall creates a ball for id at (x, y) with a fresh id. It returns nil for
// ids outside the active catalog.
func (s *Simulation) newBall(id catalog.SymbolID, x, y float64) *Ball {
	def, ok := s.catalog.Lookup(id)
	if !ok {
		return nil
	}
	s.nextID++
	mandala, _ := s.catalog.Mandala(id)
	return &Ball{
		ID:         s.nextID,
		X:          x,
		Y:          y,
		Radius:     s.radiusFor(def),
		SymbolID:   id,
		Level:      def.Level,
		Type:       def.Type,
		IsMetallic: mandala.IsMetallic && !def.IsSpecial,
		CreatedAt:  s.now,
		Trail:      NewTrail(s.cfg.BallTrailLength),
	}
}

// addBall inserts b into the live set outside the tick's collision pass.
func (s *Simulation) addBall(b *Ball, requested bool) bool {
	if s.limits.MaxBalls > 0 && len(s.balls) >= s.limits.MaxBalls {
		return false
	}
	s.balls = append(s.balls, b)
	s.emit(EventTypeSymbolSpawned, SpawnPayload{
		BallID:    b.ID,
		Symbol:    b.SymbolID,
		Level:     b.Level,
		X:         b.X,
		Y:         b.Y,
		Requested: requested,
	})
	return true
}

// destroy queues b for removal and applies the destruction side effects:
// life loss, corruption or purification, point loss and the event.
func (s *Simulation) destroy(b *Ball, cause DestroyCause) {
	if !s.queueRemoval(b) {
		return
	}

	if cause != CauseGlory && b.Level > s.cfg.MinLevelToLoseLife && !s.pool.Rising {
		s.loseLife()
	}

	if !s.pool.Rising {
		sq := float64(b.Level * b.Level)
		switch {
		case cause == CauseGlory:
			s.pool.Purify(sq * s.cfg.GloryParticleBaseCount * s.cfg.PurificationPerParticle)
		case b.IsVoid():
			s.pool.Corrupt(s.cfg.VoidParticleCount * s.cfg.CorruptionPerParticle)
		default:
			s.pool.Corrupt(sq * s.cfg.CorruptionParticleBaseCount * s.cfg.CorruptionPerParticle)
		}
	}

	if s.cfg.EnableLosePoints && cause != CauseGlory {
		s.losePoints(b)
	}

	s.emit(EventTypeSymbolDestroyed, DestroyPayload{
		BallID: b.ID,
		Symbol: b.SymbolID,
		Level:  b.Level,
		X:      b.X,
		Y:      b.Y,
		Cause:  cause,
	})
}

func (s *Simulation) findBall(id uint64) *Ball {
	for _, b := range s.balls {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// emit appends an event stamped with the tick, clock, session and sequence.
func (s *Simulation) emit(eventType EventType, data any) {
	e := NewEvent(eventType, s.tick, "", data)
	s.seq++
	e.Sequence = s.seq
	e.SimTime = s.now
	e.SessionID = s.sessionID
	s.events = append(s.events, e)
}

// =============================================================================
// EXTERNAL OPERATIONS
// =============================================================================

// SpawnSymbol places the requested symbol at the top center. Unknown ids and
// requests after game over are ignored.
func (s *Simulation) SpawnSymbol(id catalog.SymbolID) bool {
	if s.gameOver || s.lotus.phase == LotusPlaying {
		return false
	}
	b := s.newBall(id, s.world.Width/2, 0)
	if b == nil {
		return false
	}
	b.Y = -b.Radius
	if s.catalog.IsFinal(id) && !s.reserveSlot(b) {
		return false
	}
	return s.addBall(b, true)
}

// DragStart begins a new wind curve and clears every capture flag.
func (s *Simulation) DragStart(x, y float64) {
	if s.gameOver {
		return
	}
	s.wind.Start(x, y, s.now)
	s.clearCapture()
	s.charge.reset()
}

// DragMove feeds one pointer sample to the curve tracker.
func (s *Simulation) DragMove(x, y float64) MoveResult {
	result, finished := s.wind.Move(x, y, s.now, &s.cfg)
	if result == MoveSnapped {
		s.clearCapture()
		s.charge.reset()
		s.emit(EventTypeCurveSnapped, CurvePayload{
			Points:   len(finished.Points),
			Length:   finished.TotalLength,
			Lifetime: finished.Lifetime,
			RestartX: x,
			RestartY: y,
		})
	}
	return result
}

// DragEnd finalizes the curve; it keeps acting on balls until it expires.
func (s *Simulation) DragEnd() {
	curve := s.wind.End(&s.cfg)
	if curve == nil {
		return
	}
	s.emit(EventTypeCurveFinalized, CurvePayload{
		Points:   len(curve.Points),
		Length:   curve.TotalLength,
		Lifetime: curve.Lifetime,
	})
}

func (s *Simulation) clearCapture() {
	for _, b := range s.balls {
		b.CapturedByWind = false
		b.CaptureTimerUntil = 0
	}
}

// SetGrabbed pins a ball in place (no physics, no collisions) or releases it.
func (s *Simulation) SetGrabbed(id uint64, grabbed bool) bool {
	b := s.findBall(id)
	if b == nil {
		return false
	}
	b.IsGrabbed = grabbed
	return true
}

// SetConfig applies named parameter changes atomically. Catalog-shape
// parameters are stored but only take effect on RegenerateCatalog.
func (s *Simulation) SetConfig(values map[string]any) error {
	next := s.cfg
	if err := next.Apply(values); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Config returns a copy of the active parameters.
func (s *Simulation) Config() config.Simulation {
	return s.cfg
}

// RegenerateCatalog rebuilds the catalog from the current parameters. Live
// balls whose symbol no longer exists are dropped; surviving balls pick up
// the new level and radius of their symbol.
func (s *Simulation) RegenerateCatalog() error {
	cat, err := generateCatalog(s.cfg)
	if err != nil {
		return err
	}
	s.catalog = cat

	dropped := 0
	kept := s.balls[:0]
	for _, b := range s.balls {
		def, ok := cat.Lookup(b.SymbolID)
		if !ok {
			dropped++
			continue
		}
		b.Level = def.Level
		b.Type = def.Type
		if !def.IsVoid() {
			b.Radius = s.radiusFor(def)
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(s.balls); i++ {
		s.balls[i] = nil
	}
	s.balls = kept

	// Slot holders may have lost their reserved status
	s.slots.Clear()
	for _, b := range s.balls {
		if cat.IsFinal(b.SymbolID) {
			if !s.slots.Claim(cat.SlotIndex(b.SymbolID), b.ID) {
				b.Target, b.Docked = nil, false
			}
		} else {
			b.Target, b.Docked = nil, false
		}
	}

	s.emit(EventTypeCatalogRegenerated, CatalogPayload{
		MaxLevel: cat.MaxLevel(),
		Topology: cat.Topology(),
		Symbols:  len(cat.Definitions()),
		Dropped:  dropped,
	})
	log.Printf("🔄 Catalog regenerated: level %d, topology %d, %d balls dropped", cat.MaxLevel(), cat.Topology(), dropped)
	return nil
}

// Restart begins a fresh game with the same session, config and catalog.
func (s *Simulation) Restart() {
	s.seed = s.rng.Int63()
	s.reset()
	s.emit(EventTypeRestart, RestartPayload{RNGSeed: s.seed})
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (s *Simulation) Catalog() *catalog.Catalog { return s.catalog }
func (s *Simulation) Balls() []*Ball            { return s.balls }
func (s *Simulation) Tick() uint64              { return s.tick }
func (s *Simulation) Now() float64              { return s.now }
func (s *Simulation) Score() int                { return s.score }
func (s *Simulation) Lives() int                { return s.lives }
func (s *Simulation) Seed() int64               { return s.seed }
func (s *Simulation) SessionID() string         { return s.sessionID }
func (s *Simulation) HighestLevel() int         { return s.highestLevel }
func (s *Simulation) Pool() CorruptionPool      { return s.pool }
func (s *Simulation) Wind() *WindTracker        { return &s.wind }
func (s *Simulation) LotusPhase() LotusPhase    { return s.lotus.phase }

// GameOver reports the terminal state and its reason.
func (s *Simulation) GameOver() (bool, string) {
	return s.gameOver, s.gameOverReason
}

// World returns the playfield geometry.
func (s *Simulation) World() config.WorldConfig { return s.world }
