package game

import (
	"math"
	"testing"

	"github.com/pveneroso/gogoame-2/internal/config"
)

// TestWindCurveClosest verifies projection onto the nearest segment
func TestWindCurveClosest(t *testing.T) {
	curve := &WindCurve{Points: []Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}}}

	tests := []struct {
		name    string
		x, y    float64
		wantX   float64
		wantY   float64
		wantSeg int
	}{
		{"above first segment", 50, -10, 50, 0, 0},
		{"beside second segment", 120, 60, 100, 60, 1},
		{"before start clamps", -20, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := curve.Closest(tt.x, tt.y)
			if !ok {
				t.Fatal("Expected a hit")
			}
			if hit.X != tt.wantX || hit.Y != tt.wantY {
				t.Errorf("Expected closest (%f, %f), got (%f, %f)", tt.wantX, tt.wantY, hit.X, hit.Y)
			}
			if hit.Segment != tt.wantSeg {
				t.Errorf("Expected segment %d, got %d", tt.wantSeg, hit.Segment)
			}
		})
	}
}

// TestWindCurveClosestDegenerate verifies zero-length segments are skipped
func TestWindCurveClosestDegenerate(t *testing.T) {
	curve := &WindCurve{Points: []Point{{X: 10, Y: 10}, {X: 10, Y: 10}}}
	if _, ok := curve.Closest(0, 0); ok {
		t.Error("Expected no hit on a degenerate curve")
	}
}

// TestWindTrackerLifecycle verifies idle -> drawing -> finalized -> idle
func TestWindTrackerLifecycle(t *testing.T) {
	cfg := config.DefaultSimulation()
	w := NewWindTracker(0)

	if w.Phase() != WindIdle {
		t.Fatalf("Expected idle, got %s", w.Phase())
	}
	if r, _ := w.Move(10, 10, 0, &cfg); r != MoveIgnored {
		t.Error("Expected moves to be ignored while idle")
	}

	w.Start(0, 0, 0)
	if w.Phase() != WindDrawing {
		t.Fatalf("Expected drawing, got %s", w.Phase())
	}
	if r, _ := w.Move(5, 0, 0, &cfg); r != MoveIgnored {
		t.Error("Expected a move under minPointDistance to be ignored")
	}
	if r, _ := w.Move(50, 0, 0, &cfg); r != MoveAppended {
		t.Error("Expected a distant move to be appended")
	}
	if r, _ := w.Move(100, 0, 0, &cfg); r != MoveAppended {
		t.Error("Expected a second move to be appended")
	}

	curve := w.End(&cfg)
	if curve == nil {
		t.Fatal("End returned nil")
	}
	if w.Phase() != WindFinalized {
		t.Errorf("Expected finalized, got %s", w.Phase())
	}
	if math.Abs(curve.TotalLength-100) > 1e-9 {
		t.Errorf("Expected length 100, got %f", curve.TotalLength)
	}
	wantLifetime := cfg.WindBaseLifetime + 100*cfg.WindLifetimePerPixel
	if math.Abs(curve.Lifetime-wantLifetime) > 1e-9 {
		t.Errorf("Expected lifetime %f, got %f", wantLifetime, curve.Lifetime)
	}

	if w.Expire(wantLifetime) {
		t.Error("Expected curve to live through its lifetime")
	}
	if !w.Expire(wantLifetime + 1) {
		t.Error("Expected curve to expire after its lifetime")
	}
	if w.Phase() != WindIdle || w.Curve() != nil {
		t.Error("Expected tracker back to idle")
	}
}

// TestWindTrackerCapacity verifies appends stop at the point cap
func TestWindTrackerCapacity(t *testing.T) {
	cfg := config.DefaultSimulation()
	cfg.EnableAngleSnapping = false
	w := NewWindTracker(3)

	w.Start(0, 0, 0)
	w.Move(20, 0, 0, &cfg)
	w.Move(40, 0, 0, &cfg)
	if r, _ := w.Move(60, 0, 0, &cfg); r != MoveIgnored {
		t.Error("Expected move past capacity to be ignored")
	}
	if len(w.Curve().Points) != 3 {
		t.Errorf("Expected 3 points, got %d", len(w.Curve().Points))
	}
}

// TestAngleSnapEmitsOneEvent verifies a sharp reversal finalizes the curve,
// starts a new one at the pointer and reports exactly one snap
func TestAngleSnapEmitsOneEvent(t *testing.T) {
	s := newTestSimulation(t, nil)

	s.DragStart(100, 100)
	for _, x := range []float64{120, 140, 160, 180} {
		if r := s.DragMove(x, 100); r != MoveAppended {
			t.Fatalf("Expected move to %f to be appended, got %d", x, r)
		}
	}

	if r := s.DragMove(150, 100); r != MoveSnapped {
		t.Fatalf("Expected a reversal to snap, got %d", r)
	}

	if n := countEvents(s.events, EventTypeCurveSnapped); n != 1 {
		t.Errorf("Expected 1 CurveSnapped event, got %d", n)
	}
	if countEvents(s.events, EventTypeCurveFinalized) != 0 {
		t.Error("Expected no CurveFinalized event for a snap")
	}

	curve := s.Wind().Curve()
	if s.Wind().Phase() != WindDrawing || curve == nil {
		t.Fatal("Expected a new curve in the drawing phase")
	}
	if len(curve.Points) != 1 || curve.Points[0] != (Point{X: 150, Y: 100}) {
		t.Errorf("Expected new curve seeded at (150, 100), got %v", curve.Points)
	}
}

// TestDragEndEmitsFinalized verifies a normal release reports the curve
func TestDragEndEmitsFinalized(t *testing.T) {
	s := newTestSimulation(t, nil)

	s.DragStart(100, 100)
	s.DragMove(200, 100)
	s.DragEnd()
	s.DragEnd() // no curve left to finalize

	if n := countEvents(s.events, EventTypeCurveFinalized); n != 1 {
		t.Errorf("Expected 1 CurveFinalized event, got %d", n)
	}
}

// TestSmoothKeepsEndpoints verifies smoothing never moves the first or the
// two newest points
func TestSmoothKeepsEndpoints(t *testing.T) {
	pts := []Point{{X: 0, Y: 0}, {X: 10, Y: 20}, {X: 20, Y: 0}, {X: 30, Y: 20}, {X: 40, Y: 0}}
	orig := append([]Point(nil), pts...)

	smooth(pts, 0.5)

	if pts[0] != orig[0] || pts[3] != orig[3] || pts[4] != orig[4] {
		t.Errorf("Expected endpoints unchanged, got %v", pts)
	}
	if pts[1] == orig[1] || pts[2] == orig[2] {
		t.Errorf("Expected interior points smoothed, got %v", pts)
	}
}

// TestWindCapturesNearbyBall verifies a ball near an active curve is
// captured, levitated and pushed along the curve
func TestWindCapturesNearbyBall(t *testing.T) {
	s := newTestSimulation(t, nil)

	b := s.RestoreBall(BallState{X: 150, Y: 610, SymbolID: "S1_A"})
	s.DragStart(100, 600)
	s.DragMove(200, 600)
	s.DragMove(300, 600)

	s.Step(frameMs)

	if !b.CapturedByWind {
		t.Fatal("Expected ball to be captured")
	}
	if b.VX <= 0 {
		t.Errorf("Expected push along the curve, got vx %f", b.VX)
	}
	if b.GravityImmuneUntil <= s.Now() {
		t.Error("Expected captured ball to be gravity immune")
	}
	if !b.Manipulated {
		t.Error("Expected captured ball to be marked manipulated")
	}
}

// TestWindIgnoresVoid verifies voids are never captured
func TestWindIgnoresVoid(t *testing.T) {
	s := newTestSimulation(t, nil)

	b := s.RestoreBall(BallState{X: 150, Y: 605, SymbolID: "S1_VOID"})
	s.DragStart(100, 600)
	s.DragMove(200, 600)

	s.Step(frameMs)

	if b.CapturedByWind {
		t.Error("Expected void to ignore the wind")
	}
}

// TestWindCombination verifies L+1 captured balls of level L fuse after the
// charge time
func TestWindCombination(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.EnableWindCombination = true
		c.EnableZeroGravityMode = false
		c.WindCombinationChargeTime = 100
	})

	a := s.RestoreBall(BallState{X: 150, Y: 600, SymbolID: "S1_A"})
	b := s.RestoreBall(BallState{X: 250, Y: 600, SymbolID: "S1_B"})

	s.DragStart(100, 600)
	s.DragMove(200, 600)
	s.DragMove(300, 600)

	var events []Event
	for i := 0; i < 12; i++ {
		events = append(events, s.Step(frameMs)...)
		if s.findBall(a.ID) == nil {
			break
		}
	}

	if countEvents(events, EventTypeWindCombined) != 1 {
		t.Fatalf("Expected 1 WindCombined event, got %d", countEvents(events, EventTypeWindCombined))
	}
	if s.findBall(a.ID) != nil || s.findBall(b.ID) != nil {
		t.Error("Expected captured balls to be consumed")
	}
	if len(s.Balls()) != 1 || s.Balls()[0].Level != 2 {
		t.Errorf("Expected a single level 2 ball, got %d balls", len(s.Balls()))
	}
	if s.Wind().Curve() != nil {
		t.Error("Expected the curve to be cleared after combining")
	}
}
