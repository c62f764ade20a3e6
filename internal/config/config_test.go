package config

import (
	"testing"

	"github.com/pkg/errors"
)

// TestDefaultSimulationValid verifies the shipped defaults pass validation
func TestDefaultSimulationValid(t *testing.T) {
	if err := DefaultSimulation().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
	if err := DefaultWorld().Validate(); err != nil {
		t.Errorf("Expected default world to validate, got %v", err)
	}
}

// TestEnvName verifies parameter names map to SIM_ environment keys
func TestEnvName(t *testing.T) {
	tests := []struct {
		param string
		want  string
	}{
		{"friction", "SIM_FRICTION"},
		{"windMaxSpeed", "SIM_WIND_MAX_SPEED"},
		{"spawnChanceL1", "SIM_SPAWN_CHANCE_L1"},
		{"windStrengthPer100px", "SIM_WIND_STRENGTH_PER100PX"},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := envName(tt.param); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestSimulationSet verifies typed assignment by name
func TestSimulationSet(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		value   any
		wantErr bool
		check   func(Simulation) bool
	}{
		{"float from float", "friction", 0.9, false, func(s Simulation) bool { return s.Friction == 0.9 }},
		{"float from string", "windMaxSpeed", "4.5", false, func(s Simulation) bool { return s.WindMaxSpeed == 4.5 }},
		{"int from float", "initialLives", 4.0, false, func(s Simulation) bool { return s.InitialLives == 4 }},
		{"int from int32", "maxLives", int32(6), false, func(s Simulation) bool { return s.MaxLives == 6 }},
		{"bool from bool", "enableExplosions", true, false, func(s Simulation) bool { return s.EnableExplosions }},
		{"bool from string", "enableWildcard", "true", false, func(s Simulation) bool { return s.EnableWildcard }},
		{"fractional int", "initialLives", 2.5, true, nil},
		{"bad string", "friction", "fast", true, nil},
		{"unknown name", "noSuchThing", 1, true, nil},
		{"unsupported type", "friction", []int{1}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSimulation()
			err := s.Set(tt.param, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.check != nil && !tt.check(s) {
				t.Errorf("Expected %s to be set to %v", tt.param, tt.value)
			}
		})
	}
}

// TestSimulationSetUnknownCause verifies unknown names wrap ErrUnknownParam
func TestSimulationSetUnknownCause(t *testing.T) {
	s := DefaultSimulation()
	err := s.Set("noSuchThing", 1)
	if errors.Cause(err) != ErrUnknownParam {
		t.Errorf("Expected ErrUnknownParam, got %v", err)
	}
}

// TestSimulationApplyAtomic verifies a failing batch leaves the config unchanged
func TestSimulationApplyAtomic(t *testing.T) {
	s := DefaultSimulation()

	err := s.Apply(map[string]any{
		"friction":            0.5,
		"numberOfSymbolTypes": 5,
	})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if s.Friction != DefaultSimulation().Friction {
		t.Errorf("Expected friction unchanged, got %f", s.Friction)
	}

	if err := s.Apply(map[string]any{"friction": 0.5, "numberOfSymbolTypes": 4}); err != nil {
		t.Fatalf("Expected valid batch to apply, got %v", err)
	}
	if s.Friction != 0.5 || s.NumberOfSymbolTypes != 4 {
		t.Errorf("Expected friction 0.5 and topology 4, got %f and %d", s.Friction, s.NumberOfSymbolTypes)
	}
}

// TestSimulationParams verifies the flat view covers every named parameter
func TestSimulationParams(t *testing.T) {
	s := DefaultSimulation()
	params := s.Params()
	names := s.Names()

	if len(params) != len(names) {
		t.Fatalf("Expected %d params, got %d", len(names), len(params))
	}
	for i, name := range names {
		if _, ok := params[name]; !ok {
			t.Errorf("Missing parameter %s", name)
		}
		if i > 0 && names[i-1] >= name {
			t.Errorf("Expected sorted names, got %s before %s", names[i-1], name)
		}
	}

	v, ok := s.Get("maxSymbolLevel")
	if !ok || v != 10 {
		t.Errorf("Expected maxSymbolLevel 10, got %v", v)
	}
	if _, ok := s.Get("slotPositions"); ok {
		t.Error("Expected untagged fields to stay off the named surface")
	}
}

// TestValidateRanges verifies out-of-range parameters are rejected
func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Simulation)
	}{
		{"topology", func(s *Simulation) { s.NumberOfSymbolTypes = 2 }},
		{"max level", func(s *Simulation) { s.MaxSymbolLevel = 1 }},
		{"friction", func(s *Simulation) { s.Friction = 1.5 }},
		{"spawn rates", func(s *Simulation) { s.VoidSymbolSpawnRate, s.LifeSymbolSpawnRate = 0.7, 0.7 }},
		{"lives", func(s *Simulation) { s.InitialLives = 9 }},
		{"void size", func(s *Simulation) { s.VoidSizeMultiplierMax = 0.5 }},
		{"slot position", func(s *Simulation) { s.SlotPositions[2].X = 1.5 }},
		{"negative min life level", func(s *Simulation) { s.MinLevelToLoseLife = -1 }},
		{"negative wind falloff", func(s *Simulation) { s.WindForceFalloff = -0.5 }},
		{"wind falloff above one", func(s *Simulation) { s.WindForceFalloff = 2 }},
		{"zero danger distance", func(s *Simulation) { s.DangerHighlightMaxDistance = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSimulation()
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

// TestRequiresRegeneration verifies only catalog-shape parameters need a rebuild
func TestRequiresRegeneration(t *testing.T) {
	old := DefaultSimulation()

	next := old
	next.Friction = 0.5
	if next.RequiresRegeneration(old) {
		t.Error("Expected friction change not to need regeneration")
	}

	next.NumberOfSymbolTypes = 4
	if !next.RequiresRegeneration(old) {
		t.Error("Expected topology change to need regeneration")
	}
}

// TestSimulationFromEnv verifies SIM_ overrides and ignored garbage
func TestSimulationFromEnv(t *testing.T) {
	t.Setenv("SIM_WIND_MAX_SPEED", "6")
	t.Setenv("SIM_ENABLE_EXPLOSIONS", "true")
	t.Setenv("SIM_FRICTION", "sticky")

	s := SimulationFromEnv()

	if s.WindMaxSpeed != 6 {
		t.Errorf("Expected windMaxSpeed 6, got %f", s.WindMaxSpeed)
	}
	if !s.EnableExplosions {
		t.Error("Expected explosions enabled")
	}
	if s.Friction != DefaultSimulation().Friction {
		t.Errorf("Expected unparseable friction ignored, got %f", s.Friction)
	}
}

// TestLoad verifies environment overrides and validation in Load
func TestLoad(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TICK_RATE", "30")
	t.Setenv("DEBUG_SERVER", "false")
	t.Setenv("MAX_BALLS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.World.TickRate != 30 {
		t.Errorf("Expected tick rate 30, got %d", cfg.World.TickRate)
	}
	if cfg.Observability.Enabled {
		t.Error("Expected debug server disabled")
	}
	if cfg.Observability.ListenAddr != "127.0.0.1:6060" {
		t.Errorf("Expected loopback debug address, got %s", cfg.Observability.ListenAddr)
	}
	if cfg.Limits.MaxBalls != 50 {
		t.Errorf("Expected max balls 50, got %d", cfg.Limits.MaxBalls)
	}

	t.Setenv("SIM_NUMBER_OF_SYMBOL_TYPES", "7")
	if _, err := Load(); err == nil {
		t.Error("Expected Load to reject an invalid topology")
	}
}
