package game

import (
	"math"

	"github.com/pveneroso/gogoame-2/internal/config"
)

// CorruptionPool is the rising hazard at the bottom of the playfield.
// Level eases toward Target; reaching the configured maximum starts the
// terminal rise.
type CorruptionPool struct {
	Level     float64
	Target    float64
	SurfaceY  float64 // base surface without waves
	Rising    bool
	RiseStart float64 // simulation ms
}

// NewCorruptionPool creates an empty pool for a playfield of the given height.
func NewCorruptionPool(height float64) CorruptionPool {
	return CorruptionPool{SurfaceY: height}
}

// Corrupt raises the target level.
func (p *CorruptionPool) Corrupt(amount float64) {
	if amount > 0 {
		p.Target += amount
	}
}

// Purify lowers the target level, never below zero.
func (p *CorruptionPool) Purify(amount float64) {
	if amount > 0 {
		p.Target = math.Max(0, p.Target-amount)
	}
}

// Overflowing reports whether the level reached the terminal threshold.
func (p *CorruptionPool) Overflowing(cfg *config.Simulation) bool {
	return p.Level >= cfg.MaxCorruptionLevel
}

// StartRise enters the terminal rising state.
func (p *CorruptionPool) StartRise(now float64) {
	if p.Rising {
		return
	}
	p.Rising = true
	p.RiseStart = now
}

// Update eases the level and recomputes the surface. It returns true once a
// rise has covered the whole playfield.
func (p *CorruptionPool) Update(cfg *config.Simulation, height, now, step float64) bool {
	if p.Level != p.Target {
		p.Level += (p.Target - p.Level) * math.Min(1, cfg.PoolRiseSpeed*step)
		p.Level = math.Max(0, p.Level)
	}

	base := p.Level / cfg.MaxCorruptionLevel * height * cfg.PoolMaxHeight

	if !p.Rising {
		p.SurfaceY = height - base
		return false
	}

	progress := math.Min(1, (now-p.RiseStart)/cfg.PoolRiseDuration)
	p.SurfaceY = height - (base + (height-base)*progress)
	return progress >= 1
}

// SurfaceAt returns the wavy surface y at column x. An empty pool sits just
// below the playfield.
func (p *CorruptionPool) SurfaceAt(x, now float64, cfg *config.Simulation, height float64) float64 {
	if p.Level <= 0 {
		return height + 10
	}
	return p.SurfaceY + math.Sin(x*cfg.PoolWaveFrequency+now*cfg.PoolWaveSpeed)*cfg.PoolWaveAmplitude
}
