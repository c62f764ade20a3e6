package game

import (
	"math"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// highlightDanger flags pairs that are about to form a symbol which already
// sits near one of them, together with that existing ball. Flags are
// recomputed from scratch every tick.
func (s *Simulation) highlightDanger() {
	for _, b := range s.balls {
		b.IsDangerous = false
	}
	if !s.cfg.EnableDangerHighlight || len(s.balls) < 3 {
		return
	}

	maxDist := s.cfg.DangerHighlightMaxDistance
	s.indexBalls()

	for i, a := range s.balls {
		if a.Level < s.cfg.DangerHighlightMinLevel {
			continue
		}
		partners := append([]uint32(nil), s.grid.Near(a.X, a.Y, maxDist)...)
		for _, j := range partners {
			if int(j) <= i {
				continue
			}
			b := s.balls[j]
			if b.Level < s.cfg.DangerHighlightMinLevel || math.Hypot(a.X-b.X, a.Y-b.Y) >= maxDist {
				continue
			}
			product, ok := s.resolveCombination(a.SymbolID, b.SymbolID)
			if !ok {
				continue
			}
			if existing := s.nearbySymbol(product, a, b, maxDist); existing != nil {
				a.IsDangerous = true
				b.IsDangerous = true
				existing.IsDangerous = true
			}
		}
	}
}

// nearbySymbol returns a live ball of symbol id within maxDist of a or b.
func (s *Simulation) nearbySymbol(id catalog.SymbolID, a, b *Ball, maxDist float64) *Ball {
	for _, anchor := range [2]*Ball{a, b} {
		for _, k := range s.grid.Near(anchor.X, anchor.Y, maxDist) {
			c := s.balls[k]
			if c == a || c == b || c.SymbolID != id {
				continue
			}
			if math.Hypot(c.X-anchor.X, c.Y-anchor.Y) < maxDist {
				return c
			}
		}
	}
	return nil
}
