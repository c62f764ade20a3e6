// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for world, server and simulation settings.
//
// IMPORTANT: When changing default values, only modify this package.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// =============================================================================
// WORLD CONFIGURATION
// =============================================================================

// WorldConfig holds the playfield geometry and clock settings.
// These values are shared between the simulation and the renderer.
type WorldConfig struct {
	Width    float64 // Playfield width in simulation units (pixels)
	Height   float64 // Playfield height in simulation units (pixels)
	TickRate int     // Ticks per second of the engine loop
	Seed     int64   // RNG seed; 0 means derive from the wall clock
}

// DefaultWorld returns the default world configuration.
func DefaultWorld() WorldConfig {
	return WorldConfig{
		Width:    720, // Portrait playfield, symbols fall top to bottom
		Height:   1280,
		TickRate: 60, // Per-frame constants are tuned for 60 Hz
		Seed:     0,
	}
}

// WorldFromEnv returns world configuration with environment variable overrides.
func WorldFromEnv() WorldConfig {
	cfg := DefaultWorld()

	if w := getEnvFloat("WORLD_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("WORLD_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if tps := getEnvInt("TICK_RATE", 0); tps > 0 {
		cfg.TickRate = tps
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}

	return cfg
}

// Validate checks the world geometry.
func (w WorldConfig) Validate() error {
	if w.Width <= 0 || w.Height <= 0 {
		return errors.Errorf("world size must be positive, got %.0fx%.0f", w.Width, w.Height)
	}
	if w.TickRate <= 0 || w.TickRate > 1000 {
		return errors.Errorf("tick rate must be in (0, 1000], got %d", w.TickRate)
	}
	return nil
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps memory use of the simulation and its outputs.
type ResourceLimits struct {
	MaxBalls           int // Hard cap on live balls; spawns beyond it are dropped
	MaxSnapshotTrail   int // Trail points copied per ball into a snapshot
	MaxCurvePoints     int // Points kept on one wind curve
	RequestQueueSize   int // Pending external requests between ticks
	MaxEventsPerTick   int // Events retained per tick for subscribers
	MaxEventSubscriber int // Registered event subscribers
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxBalls:           400,
		MaxSnapshotTrail:   32,
		MaxCurvePoints:     2048,
		RequestQueueSize:   256,
		MaxEventsPerTick:   512,
		MaxEventSubscriber: 16,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() ResourceLimits {
	cfg := DefaultLimits()

	if n := getEnvInt("MAX_BALLS", 0); n > 0 {
		cfg.MaxBalls = n
	}
	if n := getEnvInt("MAX_SNAPSHOT_TRAIL", 0); n > 0 {
		cfg.MaxSnapshotTrail = n
	}
	if n := getEnvInt("REQUEST_QUEUE_SIZE", 0); n > 0 {
		cfg.RequestQueueSize = n
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int
	SnapshotInterval int      // Milliseconds between WebSocket snapshot pushes
	AdminToken       string   // Operator token for config and game control; empty leaves them open
	CORSOrigins      []string // Allowed browser origins; nil uses the API defaults
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:             3000,
		SnapshotInterval: 50,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if ms := getEnvInt("SNAPSHOT_INTERVAL_MS", 0); ms > 0 {
		cfg.SnapshotInterval = ms
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

// =============================================================================
// SPATIAL CONFIGURATION
// =============================================================================

// SpatialConfig holds spatial indexing settings.
type SpatialConfig struct {
	GridCellSize float64 // Broad-phase cell size for explosion and danger scans
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		GridCellSize: 64, // pixels, about two level-10 diameters
	}
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the pprof/metrics debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Loopback only; the debug server refuses anything else
	EnablePprof   bool
	EnableMetrics bool
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:       true,
		ListenAddr:    "127.0.0.1:6060",
		EnablePprof:   true,
		EnableMetrics: true,
	}
}

// ObservabilityFromEnv returns observability configuration with environment variable overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	cfg.Enabled = getEnvBool("DEBUG_SERVER", cfg.Enabled)
	cfg.EnablePprof = getEnvBool("DEBUG_PPROF", cfg.EnablePprof)
	cfg.EnableMetrics = getEnvBool("DEBUG_METRICS", cfg.EnableMetrics)
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the append-only event journal.
type EventLogConfig struct {
	Path               string  // JSONL output file; empty keeps events in memory only
	MaxEventsPerSec    float64 // Global rate limit
	MaxEventsPerSource float64 // Per-source rate limit (per event type)
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{
		Path:               "events.jsonl",
		MaxEventsPerSec:    10000,
		MaxEventsPerSource: 2000,
	}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()

	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.Path = v
	}
	if r := getEnvFloat("EVENT_LOG_MAX_PER_SEC", 0); r > 0 {
		cfg.MaxEventsPerSec = r
	}
	if r := getEnvFloat("EVENT_LOG_MAX_PER_SOURCE", 0); r > 0 {
		cfg.MaxEventsPerSource = r
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	World         WorldConfig
	Server        ServerConfig
	Limits        ResourceLimits
	Spatial       SpatialConfig
	Observability ObservabilityConfig
	EventLog      EventLogConfig
	Simulation    Simulation
}

// Load returns the complete configuration with environment overrides.
// Invalid simulation parameters are reported rather than silently clamped.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		World:         WorldFromEnv(),
		Server:        ServerFromEnv(),
		Limits:        LimitsFromEnv(),
		Spatial:       DefaultSpatial(),
		Observability: ObservabilityFromEnv(),
		EventLog:      EventLogFromEnv(),
		Simulation:    SimulationFromEnv(),
	}

	if err := cfg.World.Validate(); err != nil {
		return cfg, errors.Wrap(err, "world config")
	}
	if err := cfg.Simulation.Validate(); err != nil {
		return cfg, errors.Wrap(err, "simulation config")
	}
	return cfg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// envName maps a parameter name like "windMaxSpeed" to "SIM_WIND_MAX_SPEED".
func envName(param string) string {
	var b strings.Builder
	b.WriteString("SIM_")
	for i, r := range param {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
