package config

import (
	"math"
	"os"
	"reflect"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Point is a fractional screen position (0..1 of width/height).
type Point struct {
	X, Y float64
}

// Simulation is the flat parameter surface read by the simulation every tick.
// Every field tagged `param` is addressable by name through Get/Set/Apply and
// can be overridden from the environment as SIM_<UPPER_SNAKE_NAME>.
type Simulation struct {
	// =========================================================================
	// CATALOG (changes need an explicit regeneration)
	// =========================================================================
	MaxSymbolLevel      int  `param:"maxSymbolLevel"`      // Highest normal level; its symbols dock in slots
	NumberOfSymbolTypes int  `param:"numberOfSymbolTypes"` // Topology: 3 or 4 types per level
	AllMetallic         bool `param:"allMetallic"`         // Every symbol carries a shield

	// =========================================================================
	// PHYSICS
	// =========================================================================
	BaseBallRadius         float64 `param:"baseBallRadius"`
	SizeIncreasePerLevel   float64 `param:"sizeIncreasePerLevel"`   // Radius growth per level above 1
	TerminalVelocity       float64 `param:"terminalVelocity"`       // Downward drift per frame
	TerminalVelocitySymbol float64 `param:"terminalVelocitySymbol"` // Drift of level>1 symbols in zero-gravity mode
	GravityMassEffect      float64 `param:"gravityMassEffect"`      // 0 = radius-independent, 1 = fully inverse to radius
	Friction               float64 `param:"friction"`               // Velocity multiplier per frame
	BallTrailLength        int     `param:"ballTrailLength"`        // Trail FIFO capacity

	// =========================================================================
	// BOUNDARIES & KNOCKBACK
	// =========================================================================
	EnableHorizontalKick            bool    `param:"enableHorizontalKick"`
	EnableHardDegradation           bool    `param:"enableHardDegradation"`
	ImmunityKnockback               float64 `param:"immunityKnockback"`
	DegradationKnockback            float64 `param:"degradationKnockback"`
	DegradationWindImmunityDuration float64 `param:"degradationWindImmunityDuration"` // ms

	// =========================================================================
	// COLLISION MODES
	// =========================================================================
	EnableCollision             bool `param:"enableCollision"`
	EnableImmunity              bool `param:"enableImmunity"`
	EnableMetallicShield        bool `param:"enableMetallicShield"`
	EnableBlackSlideOff         bool `param:"enableBlackSlideOff"`
	EnableExplosions            bool `param:"enableExplosions"`
	EnableWildcard              bool `param:"enableWildcard"`
	EnableDegradation           bool `param:"enableDegradation"`
	EnableSimpleCombinationMode bool `param:"enableSimpleCombinationMode"`
	EnableZeroGravityMode       bool `param:"enableZeroGravityMode"`
	EnableLosePoints            bool `param:"enableLosePoints"`

	// =========================================================================
	// WIND CURVE
	// =========================================================================
	EnableWindCombination       bool    `param:"enableWindCombination"`
	WindCombinationChargeTime   float64 `param:"windCombinationChargeTime"` // ms
	EnableWindAttraction        bool    `param:"enableWindAttraction"`
	WindAttractionStrength      float64 `param:"windAttractionStrength"`
	EnableAngleSnapping         bool    `param:"enableAngleSnapping"`
	MaxWindCurveAngle           float64 `param:"maxWindCurveAngle"` // degrees
	WindAngleLookback           int     `param:"windAngleLookback"` // points
	MinPointDistance            float64 `param:"minPointDistance"`
	WindSmoothingFactor         float64 `param:"windSmoothingFactor"`
	WindBaseLifetime            float64 `param:"windBaseLifetime"`     // ms
	WindLifetimePerPixel        float64 `param:"windLifetimePerPixel"` // ms per px of arclength
	WindInfluenceRadius         float64 `param:"windInfluenceRadius"`
	WindMaxSpeed                float64 `param:"windMaxSpeed"`
	WindBaseStrength            float64 `param:"windBaseStrength"`
	WindStrengthPer100px        float64 `param:"windStrengthPer100px"`
	WindForceFalloff            float64 `param:"windForceFalloff"`
	WindCouplingStrength        float64 `param:"windCouplingStrength"`
	CouplingCurvatureFactor     float64 `param:"couplingCurvatureFactor"`
	WindArrivalDistance         float64 `param:"windArrivalDistance"`
	EnableCouplingForceRampDown bool    `param:"enableCouplingForceRampDown"`
	WindCaptureTimer            float64 `param:"windCaptureTimer"`            // ms grace after leaving the radius
	WindGravityImmunityDuration float64 `param:"windGravityImmunityDuration"` // ms
	LevitationLevelMultiplier   float64 `param:"levitationLevelMultiplier"`   // extra ms per level

	// =========================================================================
	// SIDEWAYS WIND
	// =========================================================================
	EnableSidewaysWindEffect  bool    `param:"enableSidewaysWindEffect"`
	SidewaysWindStrength      float64 `param:"sidewaysWindStrength"`
	WindOscillationAmplitude  float64 `param:"windOscillationAmplitude"`
	WindOscillationFrequency1 float64 `param:"windOscillationFrequency1"`
	WindOscillationFrequency2 float64 `param:"windOscillationFrequency2"`

	// =========================================================================
	// SPAWNING
	// =========================================================================
	BallCreationInterval          float64 `param:"ballCreationInterval"` // ms, 0 disables
	VoidSymbolSpawnRate           float64 `param:"voidSymbolSpawnRate"`
	LifeSymbolSpawnRate           float64 `param:"lifeSymbolSpawnRate"`
	EnableMultiLevelSpawning      bool    `param:"enableMultiLevelSpawning"`
	SpawnChanceL1                 float64 `param:"spawnChanceL1"`
	SpawnChanceL2                 float64 `param:"spawnChanceL2"`
	SpawnChanceL3                 float64 `param:"spawnChanceL3"`
	EnableVariableVoidSize        bool    `param:"enableVariableVoidSize"`
	VoidBallRadiusMultiplier      float64 `param:"voidBallRadiusMultiplier"`
	VoidSizeMultiplierMin         float64 `param:"voidSizeMultiplierMin"`
	VoidSizeMultiplierMax         float64 `param:"voidSizeMultiplierMax"`
	VoidSpeedMultiplier           float64 `param:"voidSpeedMultiplier"`
	LifeSymbolFallSpeedMultiplier float64 `param:"lifeSymbolFallSpeedMultiplier"`

	// =========================================================================
	// LIVES
	// =========================================================================
	EnableLivesSystem         bool    `param:"enableLivesSystem"`
	InitialLives              int     `param:"initialLives"`
	MaxLives                  int     `param:"maxLives"`
	MinLevelToLoseLife        int     `param:"minLevelToLoseLife"`
	LifeLossAnimationDuration float64 `param:"lifeLossAnimationDuration"` // ms of loss debounce

	// =========================================================================
	// CORRUPTION POOL
	// =========================================================================
	MaxCorruptionLevel          float64 `param:"maxCorruptionLevel"`
	PoolMaxHeight               float64 `param:"poolMaxHeight"` // Fraction of height at max corruption
	PoolRiseSpeed               float64 `param:"poolRiseSpeed"` // Easing factor per frame
	PoolRiseDuration            float64 `param:"poolRiseDuration"`
	PoolWaveAmplitude           float64 `param:"poolWaveAmplitude"`
	PoolWaveFrequency           float64 `param:"poolWaveFrequency"`
	PoolWaveSpeed               float64 `param:"poolWaveSpeed"`
	CorruptionParticleBaseCount float64 `param:"corruptionParticleBaseCount"`
	CorruptionPerParticle       float64 `param:"corruptionPerParticle"`
	VoidParticleCount           float64 `param:"voidParticleCount"`
	GloryParticleBaseCount      float64 `param:"gloryParticleBaseCount"`
	PurificationPerParticle     float64 `param:"purificationPerParticle"`

	// =========================================================================
	// RESERVED SLOTS & LOTUS
	// =========================================================================
	L10AttractionSpeed     float64  `param:"l10AttractionSpeed"`
	SlotPositions          [4]Point // Fractional docking sockets, one per type
	LotusAnimationPreDelay float64  `param:"lotusAnimationPreDelay"`
	LotusAnimationDuration float64  `param:"lotusAnimationDuration"`
	LotusPointBonus        int      `param:"lotusPointBonus"`

	// =========================================================================
	// DANGER HIGHLIGHT
	// =========================================================================
	EnableDangerHighlight      bool    `param:"enableDangerHighlight"`
	DangerHighlightMinLevel    int     `param:"dangerHighlightMinLevel"`
	DangerHighlightMaxDistance float64 `param:"dangerHighlightMaxDistance"`
}

// DefaultSimulation returns the tuned default parameters.
func DefaultSimulation() Simulation {
	return Simulation{
		MaxSymbolLevel:      10,
		NumberOfSymbolTypes: 3,

		BaseBallRadius:         14,
		SizeIncreasePerLevel:   0.1,
		TerminalVelocity:       0.5,
		TerminalVelocitySymbol: 0.25,
		GravityMassEffect:      1.0,
		Friction:               0.985,
		BallTrailLength:        120,

		EnableHorizontalKick:            true,
		ImmunityKnockback:               2.5,
		DegradationKnockback:            1,
		DegradationWindImmunityDuration: 1000,

		EnableCollision:       true,
		EnableImmunity:        true,
		EnableMetallicShield:  true,
		EnableBlackSlideOff:   true,
		EnableZeroGravityMode: true,

		WindCombinationChargeTime:   1500,
		WindAttractionStrength:      0.8,
		EnableAngleSnapping:         true,
		MaxWindCurveAngle:           120,
		WindAngleLookback:           4,
		MinPointDistance:            10,
		WindSmoothingFactor:         0.5,
		WindBaseLifetime:            0,
		WindLifetimePerPixel:        4,
		WindInfluenceRadius:         28,
		WindMaxSpeed:                3.5,
		WindBaseStrength:            0,
		WindStrengthPer100px:        0.05,
		WindForceFalloff:            1.0,
		WindCouplingStrength:        0.015,
		CouplingCurvatureFactor:     60,
		WindArrivalDistance:         100,
		EnableCouplingForceRampDown: true,
		WindCaptureTimer:            500,
		WindGravityImmunityDuration: 1500,
		LevitationLevelMultiplier:   3000,

		EnableSidewaysWindEffect:  true,
		SidewaysWindStrength:      0.001,
		WindOscillationAmplitude:  0.006,
		WindOscillationFrequency1: 0.2,
		WindOscillationFrequency2: 0.0,

		BallCreationInterval:          800,
		VoidSymbolSpawnRate:           0.25,
		LifeSymbolSpawnRate:           0,
		SpawnChanceL1:                 0.7,
		SpawnChanceL2:                 0.25,
		SpawnChanceL3:                 0.05,
		EnableVariableVoidSize:        true,
		VoidBallRadiusMultiplier:      1.0,
		VoidSizeMultiplierMin:         1.1,
		VoidSizeMultiplierMax:         1.1,
		VoidSpeedMultiplier:           1.5,
		LifeSymbolFallSpeedMultiplier: 1.5,

		InitialLives:              3,
		MaxLives:                  5,
		MinLevelToLoseLife:        1,
		LifeLossAnimationDuration: 400,

		MaxCorruptionLevel:          2000,
		PoolMaxHeight:               0.25,
		PoolRiseSpeed:               0.01,
		PoolRiseDuration:            2000,
		PoolWaveAmplitude:           1,
		PoolWaveFrequency:           0.03,
		PoolWaveSpeed:               0.003,
		CorruptionParticleBaseCount: 15,
		CorruptionPerParticle:       0.2,
		VoidParticleCount:           50,
		GloryParticleBaseCount:      10,
		PurificationPerParticle:     2,

		L10AttractionSpeed: 0.02,
		SlotPositions: [4]Point{
			{X: 0.25, Y: 0.2},
			{X: 0.5, Y: 0.2},
			{X: 0.75, Y: 0.2},
			{X: 0.5, Y: 0.35},
		},
		LotusAnimationPreDelay: 2000,
		LotusAnimationDuration: 10000,
		LotusPointBonus:        1000,

		DangerHighlightMinLevel:    2,
		DangerHighlightMaxDistance: 100,
	}
}

// SimulationFromEnv returns the default parameters with SIM_* overrides applied.
// Unparseable values are ignored, matching the other *FromEnv loaders.
func SimulationFromEnv() Simulation {
	cfg := DefaultSimulation()
	for _, f := range paramFields {
		if v, ok := os.LookupEnv(envName(f.name)); ok {
			_ = cfg.Set(f.name, v)
		}
	}
	return cfg
}

// RequiresRegeneration reports whether moving from old to s changes the catalog shape.
func (s Simulation) RequiresRegeneration(old Simulation) bool {
	return s.MaxSymbolLevel != old.MaxSymbolLevel ||
		s.NumberOfSymbolTypes != old.NumberOfSymbolTypes ||
		s.AllMetallic != old.AllMetallic
}

// Validate checks every parameter range.
func (s Simulation) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{s.NumberOfSymbolTypes == 3 || s.NumberOfSymbolTypes == 4, "numberOfSymbolTypes must be 3 or 4"},
		{s.MaxSymbolLevel >= 2 && s.MaxSymbolLevel <= 31, "maxSymbolLevel must be in [2, 31]"},
		{s.BaseBallRadius > 0, "baseBallRadius must be positive"},
		{s.SizeIncreasePerLevel >= 0, "sizeIncreasePerLevel must not be negative"},
		{s.Friction > 0 && s.Friction <= 1, "friction must be in (0, 1]"},
		{s.BallTrailLength >= 0, "ballTrailLength must not be negative"},
		{s.TerminalVelocity >= 0 && s.TerminalVelocitySymbol >= 0, "terminal velocities must not be negative"},
		{s.WindAngleLookback >= 1, "windAngleLookback must be at least 1"},
		{s.MaxWindCurveAngle > 0 && s.MaxWindCurveAngle <= 180, "maxWindCurveAngle must be in (0, 180]"},
		{s.MinPointDistance >= 0, "minPointDistance must not be negative"},
		{s.WindSmoothingFactor >= 0 && s.WindSmoothingFactor <= 1, "windSmoothingFactor must be in [0, 1]"},
		{s.WindInfluenceRadius >= 0, "windInfluenceRadius must not be negative"},
		{s.WindArrivalDistance >= 0, "windArrivalDistance must not be negative"},
		{s.WindForceFalloff >= 0 && s.WindForceFalloff <= 1, "windForceFalloff must be in [0, 1]"},
		{s.DangerHighlightMaxDistance > 0, "dangerHighlightMaxDistance must be positive"},
		{s.MinLevelToLoseLife >= 0, "minLevelToLoseLife must not be negative"},
		{probability(s.VoidSymbolSpawnRate) && probability(s.LifeSymbolSpawnRate), "spawn rates must be in [0, 1]"},
		{s.VoidSymbolSpawnRate+s.LifeSymbolSpawnRate <= 1, "void and life spawn rates must sum to at most 1"},
		{probability(s.SpawnChanceL1) && probability(s.SpawnChanceL2) && probability(s.SpawnChanceL3), "spawn chances must be in [0, 1]"},
		{s.BallCreationInterval >= 0, "ballCreationInterval must not be negative"},
		{s.VoidSizeMultiplierMin > 0 && s.VoidSizeMultiplierMax >= s.VoidSizeMultiplierMin, "void size multipliers must satisfy 0 < min <= max"},
		{s.InitialLives >= 0 && s.MaxLives >= s.InitialLives, "lives must satisfy 0 <= initialLives <= maxLives"},
		{s.MaxCorruptionLevel > 0, "maxCorruptionLevel must be positive"},
		{s.PoolMaxHeight >= 0 && s.PoolMaxHeight <= 1, "poolMaxHeight must be in [0, 1]"},
		{s.PoolRiseSpeed > 0 && s.PoolRiseSpeed <= 1, "poolRiseSpeed must be in (0, 1]"},
		{s.PoolRiseDuration > 0, "poolRiseDuration must be positive"},
		{s.L10AttractionSpeed > 0 && s.L10AttractionSpeed <= 1, "l10AttractionSpeed must be in (0, 1]"},
		{s.LotusAnimationDuration > 0, "lotusAnimationDuration must be positive"},
	}

	for _, c := range checks {
		if !c.ok {
			return errors.New(c.msg)
		}
	}
	for i, p := range s.SlotPositions {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return errors.Errorf("slot position %d must be fractional, got (%.2f, %.2f)", i, p.X, p.Y)
		}
	}
	return nil
}

func probability(v float64) bool {
	return v >= 0 && v <= 1
}

// =============================================================================
// NAMED PARAMETER ACCESS
// =============================================================================

type paramField struct {
	name  string
	index int
	kind  reflect.Kind
}

var paramFields, paramIndex = indexParams()

func indexParams() ([]paramField, map[string]paramField) {
	t := reflect.TypeOf(Simulation{})
	fields := make([]paramField, 0, t.NumField())
	index := make(map[string]paramField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("param")
		if name == "" {
			continue
		}
		f := paramField{name: name, index: i, kind: t.Field(i).Type.Kind()}
		fields = append(fields, f)
		index[name] = f
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	return fields, index
}

// ErrUnknownParam is returned for names outside the parameter surface.
var ErrUnknownParam = errors.New("unknown parameter")

// Names returns every parameter name in sorted order.
func (s Simulation) Names() []string {
	names := make([]string, len(paramFields))
	for i, f := range paramFields {
		names[i] = f.name
	}
	return names
}

// Params returns the flat {name: value} view of the configuration.
func (s Simulation) Params() map[string]any {
	v := reflect.ValueOf(s)
	out := make(map[string]any, len(paramFields))
	for _, f := range paramFields {
		out[f.name] = v.Field(f.index).Interface()
	}
	return out
}

// Get returns one parameter value.
func (s Simulation) Get(name string) (any, bool) {
	f, ok := paramIndex[name]
	if !ok {
		return nil, false
	}
	return reflect.ValueOf(s).Field(f.index).Interface(), true
}

// Set assigns one parameter. Numbers, booleans and their string forms are
// accepted; the value is converted to the field's type. Set does not run
// Validate; use Apply for checked updates.
func (s *Simulation) Set(name string, value any) error {
	f, ok := paramIndex[name]
	if !ok {
		return errors.Wrap(ErrUnknownParam, name)
	}
	field := reflect.ValueOf(s).Elem().Field(f.index)

	switch f.kind {
	case reflect.Bool:
		b, err := toBool(value)
		if err != nil {
			return errors.Wrapf(err, "parameter %s", name)
		}
		field.SetBool(b)
	case reflect.Int:
		n, err := toFloat(value)
		if err != nil {
			return errors.Wrapf(err, "parameter %s", name)
		}
		if n != math.Trunc(n) {
			return errors.Errorf("parameter %s must be an integer, got %v", name, value)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		n, err := toFloat(value)
		if err != nil {
			return errors.Wrapf(err, "parameter %s", name)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return errors.Errorf("parameter %s must be finite", name)
		}
		field.SetFloat(n)
	default:
		return errors.Errorf("parameter %s has unsupported kind %s", name, f.kind)
	}
	return nil
}

// Apply sets several parameters atomically: either every value is assigned and
// the result validates, or s is left unchanged.
func (s *Simulation) Apply(values map[string]any) error {
	next := *s
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := next.Set(name, values[name]); err != nil {
			return err
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, errors.Errorf("unsupported value type %T", value)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, errors.Errorf("not a boolean: %q", v)
		}
		return b, nil
	default:
		f, err := toFloat(value)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}
