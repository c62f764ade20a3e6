package game

import (
	"math"

	"github.com/pveneroso/gogoame-2/internal/config"
)

// WindPhase is the state of the curve tracker
type WindPhase uint8

const (
	WindIdle WindPhase = iota
	WindDrawing
	WindFinalized
)

func (p WindPhase) String() string {
	switch p {
	case WindDrawing:
		return "drawing"
	case WindFinalized:
		return "finalized"
	default:
		return "idle"
	}
}

// WindCurve is a player-drawn polyline that exerts a force field.
type WindCurve struct {
	Points      []Point
	CreatedAt   float64 // simulation ms
	TotalLength float64
	Lifetime    float64 // set on finalize
}

// CurveHit is the closest point of a curve to some position.
type CurveHit struct {
	X, Y       float64
	Dist       float64
	Segment    int
	DirX, DirY float64 // unit direction of the hit segment
}

// Closest projects (x, y) onto every segment and returns the nearest point.
// Ties keep the first segment found. Degenerate segments are skipped.
func (c *WindCurve) Closest(x, y float64) (CurveHit, bool) {
	best := CurveHit{Dist: math.Inf(1), Segment: -1}

	for i := 0; i < len(c.Points)-1; i++ {
		p1, p2 := c.Points[i], c.Points[i+1]
		dx, dy := p2.X-p1.X, p2.Y-p1.Y
		lenSq := dx*dx + dy*dy
		if lenSq == 0 {
			continue
		}

		t := ((x-p1.X)*dx + (y-p1.Y)*dy) / lenSq
		cx, cy := p1.X+t*dx, p1.Y+t*dy
		if t < 0 {
			cx, cy = p1.X, p1.Y
		} else if t > 1 {
			cx, cy = p2.X, p2.Y
		}

		dist := math.Hypot(x-cx, y-cy)
		if dist < best.Dist {
			mag := math.Sqrt(lenSq)
			best = CurveHit{X: cx, Y: cy, Dist: dist, Segment: i, DirX: dx / mag, DirY: dy / mag}
		}
	}

	return best, best.Segment >= 0
}

func (c *WindCurve) recomputeLength() {
	total := 0.0
	for i := 0; i < len(c.Points)-1; i++ {
		total += math.Hypot(c.Points[i+1].X-c.Points[i].X, c.Points[i+1].Y-c.Points[i].Y)
	}
	c.TotalLength = total
}

// MoveResult reports what a drag-move did to the curve
type MoveResult uint8

const (
	MoveIgnored  MoveResult = iota // too close, not drawing, or at capacity
	MoveAppended                   // point appended and curve smoothed
	MoveSnapped                    // turn too sharp: old curve finalized, new one started
)

// WindTracker turns raw pointer drags into a smoothed, angle-snapped curve.
// Idle -> Drawing -> Finalized -> Idle.
type WindTracker struct {
	curve     *WindCurve
	phase     WindPhase
	maxPoints int
}

// NewWindTracker creates an idle tracker capping curves at maxPoints.
func NewWindTracker(maxPoints int) WindTracker {
	return WindTracker{maxPoints: maxPoints}
}

// Curve returns the active curve, or nil.
func (w *WindTracker) Curve() *WindCurve { return w.curve }

// Phase returns the tracker state.
func (w *WindTracker) Phase() WindPhase { return w.phase }

// Start discards any curve and begins a new one at (x, y).
func (w *WindTracker) Start(x, y, now float64) {
	w.curve = &WindCurve{
		Points:    []Point{{X: x, Y: y}},
		CreatedAt: now,
	}
	w.phase = WindDrawing
}

// Move feeds one pointer sample. A snapped move leaves the tracker drawing a
// new curve seeded at (x, y); the finished curve is returned for reporting.
func (w *WindTracker) Move(x, y, now float64, cfg *config.Simulation) (MoveResult, *WindCurve) {
	if w.phase != WindDrawing || w.curve == nil {
		return MoveIgnored, nil
	}

	pts := w.curve.Points
	last := pts[len(pts)-1]
	if math.Hypot(x-last.X, y-last.Y) <= cfg.MinPointDistance {
		return MoveIgnored, nil
	}

	candidate := Point{X: x, Y: y}
	if exceedsTurn(pts, candidate, cfg) {
		finished := w.finalize(cfg)
		w.Start(x, y, now)
		return MoveSnapped, finished
	}

	if w.maxPoints > 0 && len(pts) >= w.maxPoints {
		return MoveIgnored, nil
	}

	w.curve.Points = append(w.curve.Points, candidate)
	smooth(w.curve.Points, cfg.WindSmoothingFactor)
	w.curve.recomputeLength()
	return MoveAppended, nil
}

// End finalizes the curve; it expires Lifetime ms after its creation.
func (w *WindTracker) End(cfg *config.Simulation) *WindCurve {
	if w.phase != WindDrawing || w.curve == nil {
		return nil
	}
	return w.finalize(cfg)
}

func (w *WindTracker) finalize(cfg *config.Simulation) *WindCurve {
	w.curve.recomputeLength()
	w.curve.Lifetime = cfg.WindBaseLifetime + w.curve.TotalLength*cfg.WindLifetimePerPixel
	w.phase = WindFinalized
	return w.curve
}

// Expire clears a finalized curve whose lifetime has passed.
func (w *WindTracker) Expire(now float64) bool {
	if w.phase != WindFinalized || w.curve == nil {
		return false
	}
	if now-w.curve.CreatedAt > w.curve.Lifetime {
		w.Reset()
		return true
	}
	return false
}

// Reset drops the curve and returns to idle.
func (w *WindTracker) Reset() {
	w.curve = nil
	w.phase = WindIdle
}

// exceedsTurn measures the angle between lookback->last and last->candidate.
func exceedsTurn(pts []Point, candidate Point, cfg *config.Simulation) bool {
	lookback := cfg.WindAngleLookback
	if !cfg.EnableAngleSnapping || len(pts) <= lookback {
		return false
	}

	p1 := pts[len(pts)-lookback]
	p2 := pts[len(pts)-1]
	v1x, v1y := p2.X-p1.X, p2.Y-p1.Y
	v2x, v2y := candidate.X-p2.X, candidate.Y-p2.Y

	mag1 := math.Hypot(v1x, v1y)
	mag2 := math.Hypot(v2x, v2y)
	if mag1 == 0 || mag2 == 0 {
		return false
	}

	cos := (v1x*v2x + v1y*v2y) / (mag1 * mag2)
	cos = math.Max(-1, math.Min(1, cos))
	angle := math.Acos(cos) * 180 / math.Pi
	return angle > cfg.MaxWindCurveAngle
}

// smooth relaxes interior points (excluding the two newest) toward the
// average of their neighbours. One pass per move.
func smooth(pts []Point, factor float64) {
	if len(pts) < 3 {
		return
	}
	for i := len(pts) - 3; i > 0; i-- {
		avgX := (pts[i-1].X + pts[i+1].X) / 2
		avgY := (pts[i-1].Y + pts[i+1].Y) / 2
		pts[i].X += (avgX - pts[i].X) * factor
		pts[i].Y += (avgY - pts[i].Y) * factor
	}
}
