package game

import (
	"math"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// collisionRule is one link of the resolution chain. The first rule whose
// match returns true resolves the pair; later rules never see it.
type collisionRule struct {
	name    string
	match   func(s *Simulation, a, b *Ball) bool
	resolve func(s *Simulation, a, b *Ball)
}

// collisionRules is the ordered resolution chain.
var collisionRules = []collisionRule{
	{"final-wall", matchFinalWall, resolveFinalWall},
	{"void", matchVoid, resolveVoid},
	{"life", matchLife, resolveLife},
	{"same-degrade", matchSameDegrade, resolveSameDegrade},
	{"same-destroy", matchSameDestroy, resolveSameDestroy},
	{"combine", matchCombine, resolveCombine},
	{"immunity", matchImmunity, resolveImmunity},
	{"bounce", matchAlways, bounce},
}

// RuleNames returns the resolution chain in priority order.
func RuleNames() []string {
	names := make([]string, len(collisionRules))
	for i, r := range collisionRules {
		names[i] = r.name
	}
	return names
}

// Overlapping reports whether two balls interpenetrate. Touching exactly at
// the radius sum is not a collision.
func Overlapping(a, b *Ball) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	rs := a.Radius + b.Radius
	return dx*dx+dy*dy < rs*rs
}

// resolveCollisions scans every unordered pair once. Grabbed balls and balls
// already queued for removal are skipped; resolution only mutates the worklists
// and the velocities/positions of the pair.
func (s *Simulation) resolveCollisions() {
	for i := 0; i < len(s.balls); i++ {
		a := s.balls[i]
		if a.IsGrabbed {
			continue
		}
		for j := i + 1; j < len(s.balls); j++ {
			if s.isQueued(a) {
				break
			}
			b := s.balls[j]
			if b.IsGrabbed || s.isQueued(b) || !Overlapping(a, b) {
				continue
			}
			s.resolvePair(a, b)
		}
	}
}

// resolvePair runs the rule chain on one colliding pair and returns the name
// of the rule that handled it.
func (s *Simulation) resolvePair(a, b *Ball) string {
	for _, r := range collisionRules {
		if r.match(s, a, b) {
			r.resolve(s, a, b)
			return r.name
		}
	}
	return ""
}

// =============================================================================
// FINAL-SYMBOL WALL
// =============================================================================

func matchFinalWall(s *Simulation, a, b *Ball) bool {
	return s.catalog.IsFinal(a.SymbolID) || s.catalog.IsFinal(b.SymbolID)
}

// resolveFinalWall: the reserved symbol never moves. It eats voids, and
// base-level balls unless they are allowed to slide off.
func resolveFinalWall(s *Simulation, a, b *Ball) {
	other := b
	if s.catalog.IsFinal(b.SymbolID) {
		other = a
	}
	if s.catalog.IsFinal(other.SymbolID) {
		return
	}
	if other.IsVoid() || (other.Level == 1 && !s.cfg.EnableBlackSlideOff) {
		s.destroy(other, CauseWall)
	}
}

// =============================================================================
// VOID EROSION
// =============================================================================

func matchVoid(s *Simulation, a, b *Ball) bool {
	return a.IsVoid() != b.IsVoid()
}

func resolveVoid(s *Simulation, a, b *Ball) {
	void, target := a, b
	if b.IsVoid() {
		void, target = b, a
	}
	source := Point{X: void.X, Y: void.Y}

	if target.IsMetallic && s.cfg.EnableMetallicShield {
		dx, dy := target.X-void.X, target.Y-void.Y
		if dist := math.Hypot(dx, dy); dist > 0 {
			k := s.cfg.DegradationKnockback * 5
			target.VX += dx / dist * k
			target.VY += dy / dist * k
		} else {
			target.VY -= s.cfg.DegradationKnockback
		}
		target.WindImmuneUntil = s.now + s.cfg.DegradationWindImmunityDuration
		target.IsMetallic = false
		s.emit(EventTypeShieldBroken, ShieldPayload{BallID: target.ID, Symbol: target.SymbolID, X: target.X, Y: target.Y})
		return
	}

	if s.cfg.EnableDegradation {
		if _, ok := s.catalog.Ingredients(target.SymbolID); ok {
			if s.degrade(target, source, s.cfg.DegradationKnockback*5, true, CauseVoid) && target.Level > s.cfg.MinLevelToLoseLife {
				s.loseLife()
			}
			return
		}
	}

	s.destroy(target, CauseVoid)
}

// =============================================================================
// LIFE MERGE
// =============================================================================

func matchLife(s *Simulation, a, b *Ball) bool {
	return a.IsLife() && b.IsLife()
}

func resolveLife(s *Simulation, a, b *Ball) {
	s.queueRemoval(a)
	s.queueRemoval(b)
	s.gainLife()
}

// =============================================================================
// SAME SYMBOL
// =============================================================================

func matchSameDegrade(s *Simulation, a, b *Ball) bool {
	return a.SymbolID == b.SymbolID && s.cfg.EnableHardDegradation && !s.cfg.EnableWildcard
}

func resolveSameDegrade(s *Simulation, a, b *Ball) {
	source := Point{X: b.X, Y: b.Y}
	if s.degrade(a, source, s.cfg.DegradationKnockback, false, CauseCombination) && a.Level > s.cfg.MinLevelToLoseLife {
		s.loseLife()
	}
}

func matchSameDestroy(s *Simulation, a, b *Ball) bool {
	if a.SymbolID == b.SymbolID && !s.cfg.EnableWildcard && !s.cfg.EnableSimpleCombinationMode && !s.cfg.EnableWindCombination {
		return true
	}
	return s.cfg.EnableWildcard && a.Type == catalog.TypeWildcard && b.Type == catalog.TypeWildcard && a.Level == b.Level
}

// resolveSameDestroy removes both balls and, with explosions on, sweeps the
// blast radius around their weighted midpoint.
func resolveSameDestroy(s *Simulation, a, b *Ball) {
	mid := weightedMidpoint(a, b)
	def, _ := s.catalog.Lookup(a.SymbolID)

	s.destroy(a, CauseCombination)
	s.destroy(b, CauseCombination)

	if s.cfg.EnableExplosions && def != nil {
		s.explode(def, mid)
	}
}

// explode destroys every ball of an eligible level inside the blast.
func (s *Simulation) explode(def *catalog.Definition, at Point) {
	radius := def.ExplosionRadiusUnits * s.cfg.BaseBallRadius
	if radius <= 0 || len(def.ExplosionEffectLevels) == 0 {
		return
	}

	s.indexBalls()
	candidates := s.grid.Near(at.X, at.Y, radius+s.maxRadius)
	victims := make([]*Ball, 0, len(candidates))
	for _, idx := range candidates {
		b := s.balls[idx]
		if s.isQueued(b) || !def.AffectsLevel(b.Level) {
			continue
		}
		if math.Hypot(b.X-at.X, b.Y-at.Y) < radius+b.Radius {
			victims = append(victims, b)
		}
	}
	for _, b := range victims {
		s.destroy(b, CauseExplosion)
	}
}

// indexBalls rebuilds the broad-phase grid over the live set.
func (s *Simulation) indexBalls() {
	s.grid.Reset()
	s.maxRadius = 0
	for i, b := range s.balls {
		s.grid.Insert(uint32(i), b.X, b.Y)
		s.maxRadius = math.Max(s.maxRadius, b.Radius)
	}
}

// =============================================================================
// LEVEL COMBINATION
// =============================================================================

func matchCombine(s *Simulation, a, b *Ball) bool {
	if a.Level != b.Level {
		return false
	}
	if s.cfg.EnableZeroGravityMode && !a.Manipulated && !b.Manipulated {
		return false
	}
	if _, ok := s.resolveCombination(a.SymbolID, b.SymbolID); ok {
		return true
	}
	return s.catalog.Topology() == catalog.TopologyChain
}

func resolveCombine(s *Simulation, a, b *Ball) {
	product, ok := s.resolveCombination(a.SymbolID, b.SymbolID)
	if !ok {
		// Chain topology leaves some pairs unmapped; they annihilate
		s.destroy(a, CauseCombination)
		s.destroy(b, CauseCombination)
		return
	}
	s.combine(a, b, product)
}

// combine replaces a and b with product at their weighted midpoint.
func (s *Simulation) combine(a, b *Ball, product catalog.SymbolID) {
	mid := weightedMidpoint(a, b)
	nb := s.newBall(product, mid.X, mid.Y)
	if nb == nil {
		return
	}
	mass := a.Radius + b.Radius
	nb.VX = (a.VX*a.Radius + b.VX*b.Radius) / mass
	nb.VY = (a.VY*a.Radius + b.VY*b.Radius) / mass
	nb.GravityImmuneUntil = s.now + s.cfg.WindGravityImmunityDuration + s.cfg.LevitationLevelMultiplier*float64(nb.Level)
	nb.HasEnteredPlayfield = a.HasEnteredPlayfield || b.HasEnteredPlayfield
	nb.Manipulated = a.Manipulated || b.Manipulated

	if s.catalog.IsFinal(product) && !s.reserveSlot(nb) {
		return
	}

	s.queueRemoval(a)
	s.queueRemoval(b)
	s.queueAddition(nb)

	points := 0
	if nb.Level > 1 {
		points = nb.Level * nb.Level
		s.score += points
	}
	if nb.Level > s.highestLevel {
		s.highestLevel = nb.Level
	}

	first := !s.discovered[product]
	glory := s.cfg.GloryParticleBaseCount * 2
	if first {
		s.discovered[product] = true
		glory = float64(nb.Level*nb.Level) * s.cfg.GloryParticleBaseCount
	}
	if !s.pool.Rising {
		s.pool.Purify(glory * s.cfg.PurificationPerParticle)
	}

	s.emit(EventTypeSymbolCombined, CombinePayload{
		BallID:         nb.ID,
		Symbol:         product,
		Level:          nb.Level,
		X:              nb.X,
		Y:              nb.Y,
		Points:         points,
		Ingredients:    [2]catalog.SymbolID{a.SymbolID, b.SymbolID},
		FirstDiscovery: first,
	})
}

// reserveSlot claims the docking slot of a max-level ball and points it at
// its socket. It fails when the slot is taken.
func (s *Simulation) reserveSlot(b *Ball) bool {
	idx := s.catalog.SlotIndex(b.SymbolID)
	if idx < 0 || !s.slots.Claim(idx, b.ID) {
		return false
	}
	pos := s.cfg.SlotPositions[idx]
	b.Target = &Point{X: pos.X * s.world.Width, Y: pos.Y * s.world.Height}
	s.emit(EventTypeSlotClaimed, SlotPayload{Slot: idx, BallID: b.ID, Symbol: b.SymbolID})
	return true
}

// slotAvailable reports whether id may form: non-final ids always can.
func (s *Simulation) slotAvailable(id catalog.SymbolID) bool {
	idx := s.catalog.SlotIndex(id)
	return idx < 0 || !s.slots.Occupied(idx)
}

// resolveCombination returns the symbol two same-level ids would form.
func (s *Simulation) resolveCombination(a, b catalog.SymbolID) (catalog.SymbolID, bool) {
	if s.cfg.EnableWindCombination {
		return "", false
	}
	da, okA := s.catalog.Lookup(a)
	db, okB := s.catalog.Lookup(b)
	if !okA || !okB || da.Level != db.Level || da.IsSpecial || db.IsSpecial {
		return "", false
	}
	level := da.Level

	var result catalog.SymbolID
	var ok bool
	switch {
	case a == b && s.cfg.EnableWildcard:
		result, ok = s.catalog.Wildcard(level)
	case a == b && s.cfg.EnableSimpleCombinationMode:
		result, ok = s.catalog.ID(level+1, da.Type)
	default:
		result, ok = s.catalog.Product(a, b)
		if !ok {
			switch {
			case da.IsWildcard && db.IsWildcard:
				ok = false
			case da.IsWildcard:
				result, ok = s.catalog.ID(level+1, db.Type)
			case db.IsWildcard:
				result, ok = s.catalog.ID(level+1, da.Type)
			}
		}
	}
	if !ok || !s.catalog.Contains(result) || !s.slotAvailable(result) {
		return "", false
	}
	return result, true
}

// =============================================================================
// ASYMMETRIC IMMUNITY
// =============================================================================

func matchImmunity(s *Simulation, a, b *Ball) bool {
	if s.catalog.IsFinal(a.SymbolID) || s.catalog.IsFinal(b.SymbolID) {
		return false
	}
	if a.Level != 1 && b.Level != 1 {
		return false
	}
	if a.Level+b.Level <= 2 {
		return false
	}
	return !s.cfg.EnableCollision || s.cfg.EnableImmunity
}

// resolveImmunity: the simpler ball yields. Without collision response the
// pair passes through.
func resolveImmunity(s *Simulation, a, b *Ball) {
	if !s.cfg.EnableCollision {
		return
	}
	simple := a
	if b.Level < a.Level {
		simple = b
	}
	s.destroy(simple, CauseImmunity)
}

// =============================================================================
// ELASTIC BOUNCE
// =============================================================================

func matchAlways(*Simulation, *Ball, *Ball) bool { return true }

// bounce separates the pair in proportion to the other's radius, then swaps
// normal velocity components as a 1D elastic collision with radius as mass.
func bounce(s *Simulation, a, b *Ball) {
	dx, dy := a.X-b.X, a.Y-b.Y
	dist := math.Hypot(dx, dy)

	nx, ny := 0.0, -1.0
	if dist > 0 {
		nx, ny = dx/dist, dy/dist
	}

	if overlap := a.Radius + b.Radius - dist; overlap > 0 {
		push := overlap / (a.Radius + b.Radius)
		a.X += nx * b.Radius * push
		a.Y += ny * b.Radius * push
		b.X -= nx * a.Radius * push
		b.Y -= ny * a.Radius * push
	}

	tx, ty := -ny, nx
	v1n := a.VX*nx + a.VY*ny
	v1t := a.VX*tx + a.VY*ty
	v2n := b.VX*nx + b.VY*ny
	v2t := b.VX*tx + b.VY*ty

	m1, m2 := a.Radius, b.Radius
	v1nFinal := (v1n*(m1-m2) + 2*m2*v2n) / (m1 + m2)
	v2nFinal := (v2n*(m2-m1) + 2*m1*v1n) / (m1 + m2)

	a.VX = v1nFinal*nx + v1t*tx
	a.VY = v1nFinal*ny + v1t*ty
	b.VX = v2nFinal*nx + v2t*tx
	b.VY = v2nFinal*ny + v2t*ty
}

// weightedMidpoint weights each center by the other ball's radius.
func weightedMidpoint(a, b *Ball) Point {
	sum := a.Radius + b.Radius
	return Point{
		X: (a.X*b.Radius + b.X*a.Radius) / sum,
		Y: (a.Y*b.Radius + b.Y*a.Radius) / sum,
	}
}
