package game

import (
	"math"
	"testing"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/config"
)

// TestHorizontalBoundaryPolicies verifies the side walls kick, degrade or
// destroy depending on mode and level
func TestHorizontalBoundaryPolicies(t *testing.T) {
	tests := []struct {
		name      string
		symbol    catalog.SymbolID
		x         float64
		kick      bool
		hardDeg   bool
		wantAlive bool
		wantQueue bool
		wantRepl  bool
	}{
		{"inside untouched", "S2_A", 300, true, false, true, false, false},
		{"kick on left wall", "S2_A", 5, true, false, true, false, false},
		{"kick on right wall", "S2_A", 715, true, true, true, false, false},
		{"level one is destroyed despite kick", "S1_A", 5, true, false, false, true, false},
		{"hard degrade", "S2_C", 715, false, true, false, true, true},
		{"destroy", "S2_A", 5, false, false, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, func(c *config.Simulation) {
				c.EnableHorizontalKick = tt.kick
				c.EnableHardDegradation = tt.hardDeg
			})
			b := s.RestoreBall(BallState{X: tt.x, Y: 600, SymbolID: tt.symbol})

			if got := s.checkHorizontalBoundary(b); got != tt.wantAlive {
				t.Errorf("Expected alive=%v, got %v", tt.wantAlive, got)
			}
			if got := s.isQueued(b); got != tt.wantQueue {
				t.Errorf("Expected queued=%v, got %v", tt.wantQueue, got)
			}
			if got := len(s.additions) == 1; got != tt.wantRepl {
				t.Errorf("Expected replacement=%v, got %d additions", tt.wantRepl, len(s.additions))
			}
		})
	}
}

// TestKickReflectsWithImmunity verifies a kicked ball leaves the wall at the
// knockback speed and ignores wind for a while
func TestKickReflectsWithImmunity(t *testing.T) {
	s := newTestSimulation(t, nil)

	left := s.RestoreBall(BallState{X: 5, Y: 600, VX: -3, SymbolID: "S2_A"})
	right := s.RestoreBall(BallState{X: 715, Y: 600, VX: 3, SymbolID: "S2_B"})

	s.checkHorizontalBoundary(left)
	s.checkHorizontalBoundary(right)

	k := s.cfg.ImmunityKnockback
	if math.Abs(left.VX-k) > 1e-9 || math.Abs(left.VY) > 1e-9 {
		t.Errorf("Expected left ball velocity (%f, 0), got (%f, %f)", k, left.VX, left.VY)
	}
	if math.Abs(right.VX+k) > 1e-9 || math.Abs(right.VY) > 1e-9 {
		t.Errorf("Expected right ball velocity (%f, 0), got (%f, %f)", -k, right.VX, right.VY)
	}
	want := s.now + s.cfg.DegradationWindImmunityDuration
	if left.WindImmuneUntil != want {
		t.Errorf("Expected wind immunity until %f, got %f", want, left.WindImmuneUntil)
	}
}

// TestHardDegradeSpawnsIngredient verifies the replacement is an ingredient
// pushed away from the wall
func TestHardDegradeSpawnsIngredient(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.EnableHorizontalKick = false
		c.EnableHardDegradation = true
	})
	b := s.RestoreBall(BallState{X: 715, Y: 600, SymbolID: "S2_C"})

	s.checkHorizontalBoundary(b)

	if len(s.additions) != 1 {
		t.Fatalf("Expected 1 replacement, got %d", len(s.additions))
	}
	nb := s.additions[0]
	if nb.SymbolID != "S1_A" && nb.SymbolID != "S1_B" {
		t.Errorf("Expected an ingredient of S2_C, got %s", nb.SymbolID)
	}
	if nb.VX >= 0 {
		t.Errorf("Expected replacement pushed off the right wall, got vx %f", nb.VX)
	}
}

// TestSameSymbolRuleSelection verifies which rule handles identical symbols
// under each mode
func TestSameSymbolRuleSelection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Simulation)
		want   string
	}{
		{"default destroys", nil, "same-destroy"},
		{"hard degradation", func(c *config.Simulation) { c.EnableHardDegradation = true }, "same-degrade"},
		{"simple combination", func(c *config.Simulation) {
			c.EnableSimpleCombinationMode = true
			c.EnableZeroGravityMode = false
		}, "combine"},
		{"wildcard mode", func(c *config.Simulation) {
			c.EnableWildcard = true
			c.EnableHardDegradation = true
			c.EnableZeroGravityMode = false
		}, "combine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, tt.mutate)
			a := s.RestoreBall(BallState{X: 300, Y: 600, SymbolID: "S2_C"})
			b := s.RestoreBall(BallState{X: 310, Y: 600, SymbolID: "S2_C"})

			if rule := s.resolvePair(a, b); rule != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, rule)
			}
		})
	}
}

// TestSameSymbolDegrade verifies only the first ball degrades
func TestSameSymbolDegrade(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.EnableHardDegradation = true
	})
	a := s.RestoreBall(BallState{X: 300, Y: 600, SymbolID: "S2_C"})
	b := s.RestoreBall(BallState{X: 310, Y: 600, SymbolID: "S2_C"})

	s.resolvePair(a, b)

	if !s.isQueued(a) {
		t.Error("Expected the first ball to be replaced")
	}
	if s.isQueued(b) {
		t.Error("Expected the second ball to survive")
	}
	if len(s.additions) != 1 {
		t.Fatalf("Expected 1 replacement, got %d", len(s.additions))
	}
	if nb := s.additions[0]; nb.SymbolID != "S1_A" && nb.SymbolID != "S1_B" {
		t.Errorf("Expected an ingredient of S2_C, got %s", nb.SymbolID)
	}
	if nb := s.additions[0]; nb.VX >= 0 {
		t.Errorf("Expected replacement pushed away from its twin, got vx %f", nb.VX)
	}
}

// TestResolveCombination verifies product resolution for every mode
func TestResolveCombination(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Simulation)
		a, b   catalog.SymbolID
		want   catalog.SymbolID
		wantOK bool
	}{
		{"recipe", nil, "S1_A", "S1_B", "S2_C", true},
		{"recipe reversed", nil, "S1_C", "S1_A", "S2_B", true},
		{"levels differ", nil, "S1_A", "S2_B", "", false},
		{"identical without a mode", nil, "S1_A", "S1_A", "", false},
		{"simple mode bumps level", func(c *config.Simulation) { c.EnableSimpleCombinationMode = true }, "S3_B", "S3_B", "S4_B", true},
		{"wildcard mode makes a wildcard", func(c *config.Simulation) { c.EnableWildcard = true }, "S2_A", "S2_A", "S2_WILDCARD", true},
		{"wildcard substitutes", nil, "S1_WILDCARD", "S1_A", "S2_A", true},
		{"wildcard substitutes either side", nil, "S3_B", "S3_WILDCARD", "S4_B", true},
		{"wildcard substitutes in wildcard mode", func(c *config.Simulation) { c.EnableWildcard = true }, "S1_WILDCARD", "S1_C", "S2_C", true},
		{"two wildcards", nil, "S1_WILDCARD", "S1_WILDCARD", "", false},
		{"specials never combine", nil, catalog.VoidID, "S1_A", "", false},
		{"wind combination disables pairs", func(c *config.Simulation) { c.EnableWindCombination = true }, "S1_A", "S1_B", "", false},
		{"beyond max level", nil, "S10_A", "S10_B", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, tt.mutate)
			got, ok := s.resolveCombination(tt.a, tt.b)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

// TestResolveCombinationOccupiedSlot verifies a max-level product is
// suppressed while its slot is held
func TestResolveCombinationOccupiedSlot(t *testing.T) {
	s := newTestSimulation(t, nil)

	product, ok := s.resolveCombination("S9_A", "S9_B")
	if !ok || product != "S10_C" {
		t.Fatalf("Expected S10_C with a free slot, got (%q, %v)", product, ok)
	}

	if !s.slots.Claim(s.catalog.SlotIndex(product), 999) {
		t.Fatal("Expected to claim the slot")
	}
	if got, ok := s.resolveCombination("S9_A", "S9_B"); ok {
		t.Errorf("Expected no product while the slot is held, got %q", got)
	}
}

// TestWildcardFusesWithSymbol verifies a wildcard and a plain symbol fuse
// in the default mode
func TestWildcardFusesWithSymbol(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.EnableZeroGravityMode = false
	})

	s.RestoreBall(BallState{X: 300, Y: 600, SymbolID: "S1_WILDCARD"})
	s.RestoreBall(BallState{X: 318, Y: 600, SymbolID: "S1_A"})

	s.Step(0)

	balls := s.Balls()
	if len(balls) != 1 {
		t.Fatalf("Expected 1 ball after fusion, got %d", len(balls))
	}
	if balls[0].SymbolID != "S2_A" {
		t.Errorf("Expected S2_A, got %s", balls[0].SymbolID)
	}
}

// TestDockingArrival verifies a docking ball snaps onto its target once it
// is within a pixel, and otherwise keeps homing in
func TestDockingArrival(t *testing.T) {
	tests := []struct {
		name       string
		offset     float64
		wantDocked bool
	}{
		{"within a pixel", 0.5, true},
		{"far away", 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, nil)
			b := s.RestoreBall(BallState{X: 300, Y: 600, VX: 1, VY: 1, SymbolID: "S2_A"})
			target := Point{X: 300 + tt.offset, Y: 600 + tt.offset}
			b.Target = &target
			before := math.Hypot(target.X-b.X, target.Y-b.Y)

			s.Step(16)

			if b.Docked != tt.wantDocked {
				t.Fatalf("Expected docked=%v, got %v", tt.wantDocked, b.Docked)
			}
			if tt.wantDocked {
				if b.X != target.X || b.Y != target.Y {
					t.Errorf("Expected position (%f, %f), got (%f, %f)", target.X, target.Y, b.X, b.Y)
				}
				if b.VX != 0 || b.VY != 0 {
					t.Errorf("Expected zero velocity, got (%f, %f)", b.VX, b.VY)
				}
				return
			}
			if after := math.Hypot(target.X-b.X, target.Y-b.Y); after >= before {
				t.Errorf("Expected distance to shrink from %f, got %f", before, after)
			}
		})
	}
}

// TestLosePointsOnDestroy verifies the penalty path of destruction
func TestLosePointsOnDestroy(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		symbol     catalog.SymbolID
		cause      DestroyCause
		wantScore  int
		wantEvents int
	}{
		{"level three penalty", true, "S3_A", CauseHorizontal, -17, 1},
		{"level one costs nothing", true, "S1_A", CauseHorizontal, 0, 0},
		{"glory costs nothing", true, "S3_A", CauseGlory, 0, 0},
		{"disabled", false, "S3_A", CauseHorizontal, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, func(c *config.Simulation) {
				c.EnableLosePoints = tt.enabled
			})
			b := s.RestoreBall(BallState{X: 300, Y: 600, SymbolID: tt.symbol})
			s.takeEvents()

			s.destroy(b, tt.cause)
			events := s.takeEvents()

			if s.Score() != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, s.Score())
			}
			if n := countEvents(events, EventTypePointsLost); n != tt.wantEvents {
				t.Errorf("Expected %d PointsLost events, got %d", tt.wantEvents, n)
			}
			for _, e := range events {
				if p, ok := e.Data.(PointsPayload); ok && p.Points != tt.wantScore {
					t.Errorf("Expected payload points %d, got %d", tt.wantScore, p.Points)
				}
			}
		})
	}
}
