package game

import (
	"math"
	"reflect"
	"testing"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/config"
)

// newTestSimulation builds a quiet simulation: no spawner, no ambient wind,
// fixed seed. mutate may adjust parameters before creation.
func newTestSimulation(t *testing.T, mutate func(*config.Simulation)) *Simulation {
	t.Helper()

	cfg := config.DefaultSimulation()
	cfg.BallCreationInterval = 0
	cfg.EnableSidewaysWindEffect = false
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewSimulation(Options{
		World:      config.DefaultWorld(),
		Limits:     config.DefaultLimits(),
		Spatial:    config.DefaultSpatial(),
		Simulation: cfg,
		SessionID:  "test-session",
		Seed:       42,
	})
	if err != nil {
		t.Fatalf("NewSimulation failed: %v", err)
	}
	return s
}

func countEvents(events []Event, eventType EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// TestRestoreBallRoundTrip verifies a restored ball reports the state it was
// restored from, and that a zero-length step leaves it untouched
func TestRestoreBallRoundTrip(t *testing.T) {
	s := newTestSimulation(t, nil)

	st := BallState{
		X:        360,
		Y:        640,
		VX:       1.5,
		VY:       -0.5,
		Radius:   14,
		SymbolID: "S1_A",
		Trail:    []Point{{X: 358, Y: 641}, {X: 359, Y: 640.5}},
	}

	b := s.RestoreBall(st)
	if b == nil {
		t.Fatal("RestoreBall returned nil")
	}
	if got := b.State(); !reflect.DeepEqual(got, st) {
		t.Errorf("Expected restored state %+v, got %+v", st, got)
	}

	s.Step(0)

	if len(s.Balls()) != 1 {
		t.Fatalf("Expected 1 ball after Step(0), got %d", len(s.Balls()))
	}
	if got := s.Balls()[0].State(); !reflect.DeepEqual(got, st) {
		t.Errorf("Expected Step(0) to leave state %+v, got %+v", st, got)
	}
}

// TestRestoreBallUnknownSymbol verifies unknown ids are refused
func TestRestoreBallUnknownSymbol(t *testing.T) {
	s := newTestSimulation(t, nil)

	if b := s.RestoreBall(BallState{X: 10, Y: 10, SymbolID: "S99_Z"}); b != nil {
		t.Error("Expected nil for unknown symbol")
	}
	if len(s.Balls()) != 0 {
		t.Errorf("Expected no balls, got %d", len(s.Balls()))
	}
}

// TestStepClampsDelta verifies negative and oversized deltas are clamped
func TestStepClampsDelta(t *testing.T) {
	s := newTestSimulation(t, nil)

	s.Step(-50)
	if s.Now() != 0 {
		t.Errorf("Expected clock 0 after negative step, got %f", s.Now())
	}

	s.Step(5000)
	if s.Now() != maxStepMs {
		t.Errorf("Expected clock %f after oversized step, got %f", maxStepMs, s.Now())
	}
	if s.Tick() != 2 {
		t.Errorf("Expected tick 2, got %d", s.Tick())
	}
}

// TestGravityDrift verifies a free ball drifts down by terminal velocity per frame
func TestGravityDrift(t *testing.T) {
	s := newTestSimulation(t, nil)

	b := s.RestoreBall(BallState{X: 360, Y: 300, SymbolID: "S1_A"})
	if b == nil {
		t.Fatal("RestoreBall returned nil")
	}

	s.Step(frameMs)

	want := 300 + s.Config().TerminalVelocity
	if math.Abs(b.Y-want) > 1e-9 {
		t.Errorf("Expected y %f after one frame, got %f", want, b.Y)
	}
	if b.Trail.Len() != 1 {
		t.Errorf("Expected 1 trail point, got %d", b.Trail.Len())
	}
}

// TestEventsCarrySequence verifies events are stamped with session and
// strictly increasing sequence numbers
func TestEventsCarrySequence(t *testing.T) {
	s := newTestSimulation(t, nil)

	var all []Event
	all = append(all, s.Step(frameMs)...)
	s.SpawnSymbol("S1_A")
	all = append(all, s.Step(frameMs)...)

	if len(all) < 3 {
		t.Fatalf("Expected at least 3 events, got %d", len(all))
	}
	for i, e := range all {
		if e.SessionID != "test-session" {
			t.Errorf("Event %d: expected session 'test-session', got '%s'", i, e.SessionID)
		}
		if i > 0 && e.Sequence <= all[i-1].Sequence {
			t.Errorf("Event %d: sequence %d not after %d", i, e.Sequence, all[i-1].Sequence)
		}
	}
}

// TestSpawnSymbol verifies requested spawns enter at the top center
func TestSpawnSymbol(t *testing.T) {
	tests := []struct {
		name    string
		id      catalog.SymbolID
		wantOK  bool
		wantLen int
	}{
		{"level 1 symbol", "S1_B", true, 1},
		{"void", catalog.VoidID, true, 1},
		{"unknown symbol", "S1_Q", false, 0},
		{"above max level", "S11_A", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulation(t, nil)

			if ok := s.SpawnSymbol(tt.id); ok != tt.wantOK {
				t.Errorf("Expected SpawnSymbol ok=%v, got %v", tt.wantOK, ok)
			}
			if len(s.Balls()) != tt.wantLen {
				t.Fatalf("Expected %d balls, got %d", tt.wantLen, len(s.Balls()))
			}
			if tt.wantLen == 1 {
				b := s.Balls()[0]
				if b.X != s.World().Width/2 {
					t.Errorf("Expected x %f, got %f", s.World().Width/2, b.X)
				}
				if b.Y != -b.Radius {
					t.Errorf("Expected y %f, got %f", -b.Radius, b.Y)
				}
			}
		})
	}
}

// TestSpawnFinalSymbolClaimsSlot verifies a requested max-level symbol
// reserves its slot, and a second one is refused
func TestSpawnFinalSymbolClaimsSlot(t *testing.T) {
	s := newTestSimulation(t, nil)

	if !s.SpawnSymbol("S10_A") {
		t.Fatal("Expected first S10_A spawn to succeed")
	}
	b := s.Balls()[0]
	if b.Target == nil {
		t.Fatal("Expected reserved ball to have a docking target")
	}
	if !s.slots.Occupied(0) {
		t.Error("Expected slot 0 to be occupied")
	}
	if s.SpawnSymbol("S10_A") {
		t.Error("Expected second S10_A spawn to be refused")
	}
}

// TestRestart verifies a restart clears the game but keeps the session
func TestRestart(t *testing.T) {
	s := newTestSimulation(t, nil)
	s.SpawnSymbol("S1_A")
	s.Step(frameMs)
	oldSeed := s.Seed()

	s.Restart()

	if len(s.Balls()) != 0 {
		t.Errorf("Expected no balls after restart, got %d", len(s.Balls()))
	}
	if s.Tick() != 0 {
		t.Errorf("Expected tick 0 after restart, got %d", s.Tick())
	}
	if s.Lives() != s.Config().InitialLives {
		t.Errorf("Expected %d lives, got %d", s.Config().InitialLives, s.Lives())
	}
	if s.Seed() == oldSeed {
		t.Error("Expected a new seed after restart")
	}
	if s.SessionID() != "test-session" {
		t.Errorf("Expected session to survive restart, got '%s'", s.SessionID())
	}
}

// TestSetConfigAtomic verifies a rejected patch leaves the config unchanged
func TestSetConfigAtomic(t *testing.T) {
	s := newTestSimulation(t, nil)
	before := s.Config()

	err := s.SetConfig(map[string]any{
		"friction":      0.9,
		"maxLives":      -1,
		"windMaxSpeed":  7.0,
		"notAParameter": true,
	})
	if err == nil {
		t.Fatal("Expected error for invalid patch")
	}
	if !reflect.DeepEqual(s.Config(), before) {
		t.Error("Expected config unchanged after rejected patch")
	}

	if err := s.SetConfig(map[string]any{"friction": 0.9}); err != nil {
		t.Fatalf("Expected valid patch to apply, got %v", err)
	}
	if s.Config().Friction != 0.9 {
		t.Errorf("Expected friction 0.9, got %f", s.Config().Friction)
	}
}

// TestRegenerateCatalogDropsOrphans verifies balls whose symbol disappears
// are dropped when the catalog shrinks
func TestRegenerateCatalogDropsOrphans(t *testing.T) {
	s := newTestSimulation(t, nil)

	s.RestoreBall(BallState{X: 100, Y: 300, SymbolID: "S1_A"})
	s.RestoreBall(BallState{X: 300, Y: 300, SymbolID: "S8_B"})

	if err := s.SetConfig(map[string]any{"maxSymbolLevel": 5}); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if s.Catalog().MaxLevel() != 10 {
		t.Error("Expected catalog unchanged before regeneration")
	}

	if err := s.RegenerateCatalog(); err != nil {
		t.Fatalf("RegenerateCatalog failed: %v", err)
	}
	if s.Catalog().MaxLevel() != 5 {
		t.Errorf("Expected max level 5, got %d", s.Catalog().MaxLevel())
	}
	if len(s.Balls()) != 1 || s.Balls()[0].SymbolID != "S1_A" {
		t.Errorf("Expected only S1_A to survive, got %d balls", len(s.Balls()))
	}
	if countEvents(s.events, EventTypeCatalogRegenerated) != 1 {
		t.Error("Expected one CatalogRegenerated event")
	}
}

// TestGrabbedBallIsFrozen verifies grabbed balls skip physics and collisions
func TestGrabbedBallIsFrozen(t *testing.T) {
	s := newTestSimulation(t, nil)

	a := s.RestoreBall(BallState{X: 300, Y: 600, SymbolID: "S1_A"})
	b := s.RestoreBall(BallState{X: 310, Y: 600, SymbolID: catalog.VoidID})

	if !s.SetGrabbed(a.ID, true) {
		t.Fatal("SetGrabbed returned false for a live ball")
	}
	s.Step(frameMs)

	if len(s.Balls()) != 2 {
		t.Errorf("Expected grabbed ball to survive the void, got %d balls", len(s.Balls()))
	}
	if a.Y != 600 {
		t.Errorf("Expected grabbed ball to stay at y 600, got %f", a.Y)
	}
	if b.Y == 600 {
		t.Error("Expected free ball to move")
	}
	if s.SetGrabbed(9999, true) {
		t.Error("Expected SetGrabbed to fail for an unknown id")
	}
}

// TestLosePenalty verifies the point penalty per destroyed level
func TestLosePenalty(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 0},
		{2, 4},
		{3, 17},
		{4, 50},
	}

	for _, tt := range tests {
		if got := LosePenalty(tt.level); got != tt.want {
			t.Errorf("LosePenalty(%d): expected %d, got %d", tt.level, tt.want, got)
		}
	}
}

// TestLivesSystem verifies life loss debounce and game over
func TestLivesSystem(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.EnableLivesSystem = true
		c.InitialLives = 2
	})

	s.loseLife()
	s.loseLife() // inside the debounce window
	if s.Lives() != 1 {
		t.Errorf("Expected 1 life after debounced losses, got %d", s.Lives())
	}

	s.now += s.cfg.LifeLossAnimationDuration
	s.loseLife()
	if s.Lives() != 0 {
		t.Errorf("Expected 0 lives, got %d", s.Lives())
	}
	over, reason := s.GameOver()
	if !over || reason != "lives" {
		t.Errorf("Expected game over by lives, got over=%v reason=%s", over, reason)
	}
}

// TestGainLifeCapped verifies life merges never exceed the cap
func TestGainLifeCapped(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.InitialLives = 5
		c.MaxLives = 5
	})

	s.gainLife()
	if s.Lives() != 5 {
		t.Errorf("Expected lives capped at 5, got %d", s.Lives())
	}
}

// TestRestoreBallTrailCapped verifies a restored trail keeps only the newest
// points up to the configured length
func TestRestoreBallTrailCapped(t *testing.T) {
	s := newTestSimulation(t, func(c *config.Simulation) {
		c.BallTrailLength = 3
	})

	trail := []Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}}
	b := s.RestoreBall(BallState{X: 300, Y: 600, SymbolID: "S1_A", Trail: trail})
	if b == nil {
		t.Fatal("RestoreBall returned nil")
	}

	if b.Trail.Cap() != 3 {
		t.Errorf("Expected trail cap 3, got %d", b.Trail.Cap())
	}
	if got, want := b.Trail.Points(), trail[2:]; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected newest points %v, got %v", want, got)
	}
}

// TestDragIgnoredAfterGameOver verifies pointer input cannot start wind once
// the game has ended
func TestDragIgnoredAfterGameOver(t *testing.T) {
	s := newTestSimulation(t, nil)
	s.endGame("lives")

	s.DragStart(100, 100)
	s.DragMove(200, 120)

	if s.wind.Phase() != WindIdle {
		t.Errorf("Expected wind to stay idle, got %s", s.wind.Phase())
	}
	if s.wind.Curve() != nil {
		t.Error("Expected no curve after game over")
	}
}
