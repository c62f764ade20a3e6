package game

import (
	"sync/atomic"
	"time"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/config"
)

// BallSnapshot is an immutable copy of ball state for rendering.
// Trail is a window into the snapshot's shared trail buffer.
type BallSnapshot struct {
	ID            uint64           `json:"id" msgpack:"id"`
	X             float64          `json:"x" msgpack:"x"`
	Y             float64          `json:"y" msgpack:"y"`
	VX            float64          `json:"vx" msgpack:"vx"`
	VY            float64          `json:"vy" msgpack:"vy"`
	Radius        float64          `json:"radius" msgpack:"radius"`
	SymbolID      catalog.SymbolID `json:"symbolId" msgpack:"symbolId"`
	Level         int              `json:"level" msgpack:"level"`
	Trail         []Point          `json:"trail" msgpack:"trail"`
	Captured      bool             `json:"capturedByWind" msgpack:"capturedByWind"`
	WindImmune    bool             `json:"windImmune" msgpack:"windImmune"`
	GravityImmune bool             `json:"gravityImmune" msgpack:"gravityImmune"`
	Dangerous     bool             `json:"isDangerous" msgpack:"isDangerous"`
	Metallic      bool             `json:"isMetallic" msgpack:"isMetallic"`
	Grabbed       bool             `json:"isGrabbed" msgpack:"isGrabbed"`
	Docked        bool             `json:"docked" msgpack:"docked"`
}

// CurveSnapshot is the active wind curve
type CurveSnapshot struct {
	Points    []Point `json:"points" msgpack:"points"`
	Length    float64 `json:"length" msgpack:"length"`
	Phase     string  `json:"phase" msgpack:"phase"`
	Remaining float64 `json:"remaining" msgpack:"remaining"` // ms until expiry, 0 while drawing
}

// PoolSnapshot is the corruption pool state
type PoolSnapshot struct {
	Level    float64 `json:"level" msgpack:"level"`
	Target   float64 `json:"target" msgpack:"target"`
	Max      float64 `json:"max" msgpack:"max"`
	SurfaceY float64 `json:"surfaceY" msgpack:"surfaceY"`
	Rising   bool    `json:"rising" msgpack:"rising"`
}

// SlotSnapshot is one reserved docking slot
type SlotSnapshot struct {
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Occupied bool    `json:"occupied" msgpack:"occupied"`
	BallID   uint64  `json:"ballId,omitempty" msgpack:"ballId,omitempty"`
}

// GameSnapshot is a complete immutable game state for rendering.
// All slices are pre-allocated and capped to prevent memory attacks.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence" msgpack:"sequence"`
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	TickNumber uint64    `json:"tick" msgpack:"tick"`
	SimTime    float64   `json:"simTime" msgpack:"simTime"`
	RNGSeed    int64     `json:"rngSeed" msgpack:"rngSeed"`
	SessionID  string    `json:"sessionId" msgpack:"sessionId"`

	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`

	Balls []BallSnapshot `json:"balls" msgpack:"balls"`
	Curve *CurveSnapshot `json:"curve,omitempty" msgpack:"curve,omitempty"`
	Pool  PoolSnapshot   `json:"pool" msgpack:"pool"`
	Slots []SlotSnapshot `json:"slots" msgpack:"slots"`

	Score        int    `json:"score" msgpack:"score"`
	Lives        int    `json:"lives" msgpack:"lives"`
	HighestLevel int    `json:"highestLevel" msgpack:"highestLevel"`
	GameOver     bool   `json:"gameOver" msgpack:"gameOver"`
	Reason       string `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Paused       bool   `json:"paused" msgpack:"paused"`
	Lotus        string `json:"lotus" msgpack:"lotus"`
	BallCount    int    `json:"ballCount" msgpack:"ballCount"` // Live balls, may exceed len(Balls)

	trailBuf []Point
	curveBuf []Point
	curve    CurveSnapshot
}

// Clone returns a deep copy that does not alias pool memory.
func (g *GameSnapshot) Clone() *GameSnapshot {
	out := *g
	out.trailBuf = nil
	out.curveBuf = nil
	out.curve = CurveSnapshot{}

	out.Balls = make([]BallSnapshot, len(g.Balls))
	copy(out.Balls, g.Balls)
	for i := range out.Balls {
		out.Balls[i].Trail = append([]Point(nil), g.Balls[i].Trail...)
	}
	out.Slots = append([]SlotSnapshot(nil), g.Slots...)
	if g.Curve != nil {
		c := *g.Curve
		c.Points = append([]Point(nil), g.Curve.Points...)
		out.Curve = &c
	}
	return &out
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering: the tick writes one slot while readers copy another.
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	limits    config.ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices.
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = GameSnapshot{
			Balls:    make([]BallSnapshot, 0, limits.MaxBalls),
			Slots:    make([]SlotSnapshot, 0, MaxSlots),
			trailBuf: make([]Point, 0, limits.MaxBalls*limits.MaxSnapshotTrail),
			curveBuf: make([]Point, 0, 256),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick).
// Returns a snapshot with reset slices but preserved capacity.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Balls = snap.Balls[:0]
	snap.Slots = snap.Slots[:0]
	snap.trailBuf = snap.trailBuf[:0]
	snap.curveBuf = snap.curveBuf[:0]
	snap.Curve = nil

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks the write complete and advances the read pointer.
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot (consumer only).
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() config.ResourceLimits {
	return p.limits
}

// FillSnapshot copies the simulation state into snap, honouring the pool's
// caps: at most MaxBalls balls and the newest MaxSnapshotTrail trail points
// per ball.
func (s *Simulation) FillSnapshot(snap *GameSnapshot, limits config.ResourceLimits) {
	snap.TickNumber = s.tick
	snap.SimTime = s.now
	snap.RNGSeed = s.seed
	snap.SessionID = s.sessionID
	snap.Width = s.world.Width
	snap.Height = s.world.Height

	snap.Score = s.score
	snap.Lives = s.lives
	snap.HighestLevel = s.highestLevel
	snap.GameOver = s.gameOver
	snap.Reason = s.gameOverReason
	snap.BallCount = len(s.balls)
	switch s.lotus.phase {
	case LotusAwaiting:
		snap.Lotus = "awaiting"
	case LotusPlaying:
		snap.Lotus = "playing"
	default:
		snap.Lotus = "idle"
	}

	// Trails are carved out of one buffer; reserve up front so appends
	// never reallocate under earlier windows.
	maxTrail := limits.MaxSnapshotTrail
	need := 0
	for i, b := range s.balls {
		if limits.MaxBalls > 0 && i >= limits.MaxBalls {
			break
		}
		need += min(b.Trail.Len(), maxTrail)
	}
	if cap(snap.trailBuf) < need {
		snap.trailBuf = make([]Point, 0, need)
	}

	for i, b := range s.balls {
		if limits.MaxBalls > 0 && i >= limits.MaxBalls {
			break
		}
		pts := b.Trail.Points()
		if len(pts) > maxTrail {
			pts = pts[len(pts)-maxTrail:]
		}
		start := len(snap.trailBuf)
		snap.trailBuf = append(snap.trailBuf, pts...)

		snap.Balls = append(snap.Balls, BallSnapshot{
			ID:            b.ID,
			X:             b.X,
			Y:             b.Y,
			VX:            b.VX,
			VY:            b.VY,
			Radius:        b.Radius,
			SymbolID:      b.SymbolID,
			Level:         b.Level,
			Trail:         snap.trailBuf[start:len(snap.trailBuf):len(snap.trailBuf)],
			Captured:      b.CapturedByWind,
			WindImmune:    s.now < b.WindImmuneUntil,
			GravityImmune: s.now < b.GravityImmuneUntil,
			Dangerous:     b.IsDangerous,
			Metallic:      b.IsMetallic,
			Grabbed:       b.IsGrabbed,
			Docked:        b.Docked,
		})
	}

	if c := s.wind.Curve(); c != nil {
		snap.curveBuf = append(snap.curveBuf[:0], c.Points...)
		snap.curve = CurveSnapshot{
			Points: snap.curveBuf,
			Length: c.TotalLength,
			Phase:  s.wind.Phase().String(),
		}
		if s.wind.Phase() == WindFinalized {
			snap.curve.Remaining = max(0, c.CreatedAt+c.Lifetime-s.now)
		}
		snap.Curve = &snap.curve
	}

	snap.Pool = PoolSnapshot{
		Level:    s.pool.Level,
		Target:   s.pool.Target,
		Max:      s.cfg.MaxCorruptionLevel,
		SurfaceY: s.pool.SurfaceY,
		Rising:   s.pool.Rising,
	}

	for i := 0; i < s.catalog.Topology(); i++ {
		pos := s.cfg.SlotPositions[i]
		id, occupied := s.slots.Holder(i)
		snap.Slots = append(snap.Slots, SlotSnapshot{
			X:        pos.X * s.world.Width,
			Y:        pos.Y * s.world.Height,
			Occupied: occupied,
			BallID:   id,
		})
	}
}
