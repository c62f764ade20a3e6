package game

import (
	"math"
)

// checkVerticalBoundary handles the top edge and the pool surface. It
// returns false when the ball was destroyed or degraded.
func (s *Simulation) checkVerticalBoundary(b *Ball) bool {
	if b.Y > playfieldEntryY {
		b.HasEnteredPlayfield = true
	}

	hitTop := b.Y-b.Radius < 0 && b.HasEnteredPlayfield
	hitBottom := b.Y+b.Radius > s.pool.SurfaceAt(b.X, s.now, &s.cfg, s.world.Height)
	if !hitTop && !hitBottom {
		return true
	}

	// Knockback comes from beyond the wall that was hit
	source := Point{X: b.X, Y: s.world.Height + b.Radius}
	if hitTop {
		source.Y = -b.Radius
	}

	if hitTop && s.cfg.EnableHorizontalKick && b.Level > 1 {
		s.kick(b, source)
		return true
	}
	if s.cfg.EnableHardDegradation && b.Level > 1 {
		s.degrade(b, source, s.cfg.DegradationKnockback, false, CauseVertical)
		return false
	}

	s.destroy(b, CauseVertical)
	return false
}

// checkHorizontalBoundary handles the side walls.
func (s *Simulation) checkHorizontalBoundary(b *Ball) bool {
	hitLeft := b.X-b.Radius < 0
	hitRight := b.X+b.Radius > s.world.Width
	if !hitLeft && !hitRight {
		return true
	}

	source := Point{X: s.world.Width + b.Radius, Y: b.Y}
	if hitLeft {
		source.X = -b.Radius
	}

	if s.cfg.EnableHorizontalKick && b.Level > 1 {
		s.kick(b, source)
		return true
	}
	if s.cfg.EnableHardDegradation && b.Level > 1 {
		s.degrade(b, source, s.cfg.DegradationKnockback, false, CauseHorizontal)
		return false
	}

	s.destroy(b, CauseHorizontal)
	return false
}

// kick reflects the ball away from source and makes it briefly wind-immune.
func (s *Simulation) kick(b *Ball, source Point) {
	dx, dy := b.X-source.X, b.Y-source.Y
	if dist := math.Hypot(dx, dy); dist > 0 {
		b.VX = dx / dist * s.cfg.ImmunityKnockback
		b.VY = dy / dist * s.cfg.ImmunityKnockback
	} else {
		b.VY = -s.cfg.ImmunityKnockback
	}
	b.WindImmuneUntil = s.now + s.cfg.DegradationWindImmunityDuration
}

// degrade replaces b with a random ingredient of its recipe, pushed away from
// source. Balls without a recipe are destroyed instead. It reports whether a
// replacement was spawned.
func (s *Simulation) degrade(b *Ball, source Point, strength float64, inherit bool, cause DestroyCause) bool {
	if s.isQueued(b) {
		return false
	}
	recipe, ok := s.catalog.Ingredients(b.SymbolID)
	if !ok {
		s.destroy(b, cause)
		return false
	}

	ingredient := recipe.A
	if s.rng.Intn(2) == 1 {
		ingredient = recipe.B
	}

	nb := s.newBall(ingredient, b.X, b.Y)
	if nb == nil {
		s.destroy(b, cause)
		return false
	}

	dx, dy := b.X-source.X, b.Y-source.Y
	if dist := math.Hypot(dx, dy); dist > 0 {
		nb.VX = dx / dist * strength
		nb.VY = dy / dist * strength
	} else {
		nb.VY = -s.cfg.DegradationKnockback
	}
	if inherit {
		nb.VX += b.VX
		nb.VY += b.VY
	}
	nb.WindImmuneUntil = s.now + s.cfg.DegradationWindImmunityDuration
	nb.HasEnteredPlayfield = b.HasEnteredPlayfield

	s.queueRemoval(b)
	s.queueAddition(nb)
	s.emit(EventTypeSymbolDegraded, DegradePayload{
		BallID:    b.ID,
		NewBallID: nb.ID,
		From:      b.SymbolID,
		To:        nb.SymbolID,
		X:         b.X,
		Y:         b.Y,
		Cause:     cause,
	})
	return true
}
