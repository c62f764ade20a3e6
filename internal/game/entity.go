package game

import (
	"math"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// frameMs is the frame length the per-frame constants are tuned for (60 Hz).
const frameMs = 1000.0 / 60.0

// playfieldEntryY is the depth a ball must pass before top-edge hits count.
const playfieldEntryY = 50.0

// Point is a position in simulation space (pixels, y grows downward).
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Trail is a bounded FIFO of recent positions. The oldest point is evicted
// once Cap is reached.
type Trail struct {
	points []Point
	cap    int
}

// NewTrail creates an empty trail holding at most capacity points.
func NewTrail(capacity int) Trail {
	if capacity < 0 {
		capacity = 0
	}
	return Trail{points: make([]Point, 0, capacity), cap: capacity}
}

// Push appends p, evicting the oldest point when full.
func (t *Trail) Push(p Point) {
	if t.cap == 0 {
		return
	}
	if len(t.points) >= t.cap {
		copy(t.points, t.points[1:])
		t.points = t.points[:len(t.points)-1]
	}
	t.points = append(t.points, p)
}

// Points returns the trail oldest first. The slice is owned by the trail.
func (t *Trail) Points() []Point { return t.points }

// Len returns the number of stored points.
func (t *Trail) Len() int { return len(t.points) }

// Cap returns the configured capacity.
func (t *Trail) Cap() int { return t.cap }

// Ball is a single physical body on the playfield.
type Ball struct {
	ID       uint64
	X, Y     float64
	VX, VY   float64
	Radius   float64
	SymbolID catalog.SymbolID
	Level    int
	Type     catalog.TypeTag

	IsGrabbed   bool
	IsDangerous bool
	IsMetallic  bool
	CreatedAt   float64 // simulation ms

	Trail Trail

	WindImmuneUntil    float64
	GravityImmuneUntil float64
	CapturedByWind     bool
	CaptureTimerUntil  float64 // 0 when no grace timer is armed

	// Target is set for reserved max-level symbols homing in on their slot.
	Target *Point
	Docked bool

	HasEnteredPlayfield bool
	Manipulated         bool
}

// IsVoid reports whether the ball carries the void symbol.
func (b *Ball) IsVoid() bool { return b.Type == catalog.TypeVoid }

// IsLife reports whether the ball carries the life symbol.
func (b *Ball) IsLife() bool { return b.Type == catalog.TypeLife }

// Update advances the ball by one tick. It returns false when the ball was
// destroyed, degraded or otherwise replaced; the caller never removes it
// directly, the simulation worklists do.
func (b *Ball) Update(s *Simulation) bool {
	if b.Target != nil {
		b.updateDocking(s)
		return true
	}

	if s.step > 0 {
		b.Trail.Push(Point{X: b.X, Y: b.Y})
	}

	applyGravity(b, s)
	applyWindForce(b, s)
	applySidewaysWind(b, s)
	applyFriction(b, s)

	b.X += b.VX * s.step
	b.Y += b.VY * s.step

	if !s.checkVerticalBoundary(b) {
		return false
	}
	return s.checkHorizontalBoundary(b)
}

// updateDocking moves a reserved symbol toward its slot, skipping all forces.
func (b *Ball) updateDocking(s *Simulation) {
	dx := b.Target.X - b.X
	dy := b.Target.Y - b.Y

	if math.Hypot(dx, dy) > 1 {
		b.VX = dx * s.cfg.L10AttractionSpeed
		b.VY = dy * s.cfg.L10AttractionSpeed
		b.X += b.VX * s.step
		b.Y += b.VY * s.step
	} else {
		b.VX, b.VY = 0, 0
		b.X, b.Y = b.Target.X, b.Target.Y
		b.Docked = true
	}

	if s.step > 0 {
		b.Trail.Push(Point{X: b.X, Y: b.Y})
	}
}

// BallState is the serializable physical state of a ball.
type BallState struct {
	X        float64          `json:"x" msgpack:"x"`
	Y        float64          `json:"y" msgpack:"y"`
	VX       float64          `json:"vx" msgpack:"vx"`
	VY       float64          `json:"vy" msgpack:"vy"`
	Radius   float64          `json:"radius" msgpack:"radius"`
	SymbolID catalog.SymbolID `json:"symbolId" msgpack:"symbolId"`
	Trail    []Point          `json:"trail" msgpack:"trail"`
}

// State captures the ball's physical state.
func (b *Ball) State() BallState {
	return BallState{
		X:        b.X,
		Y:        b.Y,
		VX:       b.VX,
		VY:       b.VY,
		Radius:   b.Radius,
		SymbolID: b.SymbolID,
		Trail:    append([]Point(nil), b.Trail.Points()...),
	}
}

// RestoreBall recreates a ball from a saved state and adds it to the live
// set. Identity flags derive from the symbol; timers start cleared. It
// returns nil when the symbol is unknown or the ball cap is reached.
func (s *Simulation) RestoreBall(st BallState) *Ball {
	b := s.newBall(st.SymbolID, st.X, st.Y)
	if b == nil {
		return nil
	}
	b.VX, b.VY = st.VX, st.VY
	if st.Radius > 0 {
		b.Radius = st.Radius
	}
	b.Trail = NewTrail(s.cfg.BallTrailLength)
	for _, p := range st.Trail {
		b.Trail.Push(p)
	}
	b.HasEnteredPlayfield = st.Y > playfieldEntryY
	if !s.addBall(b, true) {
		return nil
	}
	return b
}
