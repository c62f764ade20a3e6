package game

import (
	"math"

	"github.com/pveneroso/gogoame-2/internal/config"
)

// massFactor scales forces inversely to radius. gravityMassEffect 0 makes it
// radius-independent, 1 makes it fully inverse.
func massFactor(radius float64, cfg *config.Simulation) float64 {
	if radius <= 0 {
		return 1
	}
	return 1 + (cfg.BaseBallRadius/radius-1)*cfg.GravityMassEffect
}

// applyGravity drifts the ball downward directly (no acceleration).
func applyGravity(b *Ball, s *Simulation) {
	cfg := &s.cfg
	if s.now < b.GravityImmuneUntil {
		return
	}

	var drift float64
	switch {
	case cfg.EnableZeroGravityMode && b.Level > 1:
		drift = cfg.TerminalVelocitySymbol
	case b.IsVoid():
		drift = cfg.VoidSpeedMultiplier * cfg.TerminalVelocity
	case b.IsLife():
		drift = cfg.LifeSymbolFallSpeedMultiplier * cfg.TerminalVelocity
	default:
		drift = massFactor(b.Radius, cfg) * cfg.TerminalVelocity
	}
	b.Y += drift * s.step
}

// applyWindForce pulls a ball in range of the curve toward it (coupling) and
// along it (propulsion). Re-evaluated every tick while in range.
func applyWindForce(b *Ball, s *Simulation) {
	cfg := &s.cfg
	if s.now < b.WindImmuneUntil || b.IsVoid() {
		return
	}
	curve := s.wind.Curve()
	if curve == nil || len(curve.Points) < 2 {
		return
	}

	hit, ok := curve.Closest(b.X, b.Y)
	if !ok {
		return
	}
	graceActive := b.CaptureTimerUntil > 0 && s.now < b.CaptureTimerUntil
	if hit.Dist >= cfg.WindInfluenceRadius && !graceActive {
		return
	}

	b.GravityImmuneUntil = s.now + cfg.WindGravityImmunityDuration + cfg.LevitationLevelMultiplier*float64(b.Level)
	s.captured = append(s.captured, b)

	mass := massFactor(b.Radius, cfg)
	progress := float64(hit.Segment) / float64(len(curve.Points)-1)
	strength := math.Max(0, 1-progress*cfg.WindForceFalloff)

	curvature := 1.0
	if hit.Segment < len(curve.Points)-2 {
		n1, n2 := curve.Points[hit.Segment+1], curve.Points[hit.Segment+2]
		nx, ny := n2.X-n1.X, n2.Y-n1.Y
		if mag := math.Hypot(nx, ny); mag > 0 {
			dot := hit.DirX*nx/mag + hit.DirY*ny/mag
			curvature = 1 + (1-dot)*cfg.CouplingCurvatureFactor
		}
	}

	coupling := cfg.WindCouplingStrength
	if cfg.EnableCouplingForceRampDown && cfg.WindArrivalDistance > 0 && hit.Dist < cfg.WindArrivalDistance {
		coupling *= hit.Dist / cfg.WindArrivalDistance
	}

	k := coupling * strength * mass * curvature * s.step
	b.VX += (hit.X - b.X) * k
	b.VY += (hit.Y - b.Y) * k

	along := b.VX*hit.DirX + b.VY*hit.DirY
	if along < cfg.WindMaxSpeed {
		dynamic := cfg.WindBaseStrength + curve.TotalLength/100*cfg.WindStrengthPer100px
		push := (cfg.WindMaxSpeed - along) * dynamic * strength * mass * s.step
		b.VX += hit.DirX * push
		b.VY += hit.DirY * push
	}

	b.CapturedByWind = true
	b.CaptureTimerUntil = s.now + cfg.WindCaptureTimer
	b.Manipulated = true
}

// applySidewaysWind adds the ambient drift: a base strength plus two summed
// sine waves over the simulation clock (in seconds).
func applySidewaysWind(b *Ball, s *Simulation) {
	cfg := &s.cfg
	if !cfg.EnableSidewaysWindEffect {
		return
	}
	if cfg.EnableZeroGravityMode && b.Level > 1 {
		return
	}
	if s.now < b.WindImmuneUntil || b.IsVoid() {
		return
	}

	t := s.now / 1000
	osc := (math.Sin(t*cfg.WindOscillationFrequency1) + math.Sin(t*cfg.WindOscillationFrequency2)) / 2 * cfg.WindOscillationAmplitude
	b.VX += (cfg.SidewaysWindStrength + osc) * s.step
}

func applyFriction(b *Ball, s *Simulation) {
	f := math.Pow(s.cfg.Friction, s.step)
	b.VX *= f
	b.VY *= f
}

// applyWindAttraction pulls every pair of captured balls toward each other.
func applyWindAttraction(s *Simulation) {
	cfg := &s.cfg
	if !cfg.EnableWindAttraction || s.wind.Curve() == nil || len(s.captured) < 2 {
		return
	}

	for i := 0; i < len(s.captured); i++ {
		a := s.captured[i]
		for j := i + 1; j < len(s.captured); j++ {
			b := s.captured[j]
			dx, dy := b.X-a.X, b.Y-a.Y
			dist := math.Hypot(dx, dy)
			if dist < 1 {
				continue
			}
			f := cfg.WindAttractionStrength / dist * s.step
			fx, fy := dx/dist*f, dy/dist*f
			a.VX += fx
			a.VY += fy
			b.VX -= fx
			b.VY -= fy
		}
	}
}
