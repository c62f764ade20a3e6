package game

import (
	"math"
	"sort"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// windCharge tracks a pending wind combination: the exact set of captured
// balls and when it started charging.
type windCharge struct {
	active bool
	start  float64
	ids    []uint64 // sorted
}

func (c *windCharge) reset() {
	c.active = false
	c.ids = c.ids[:0]
}

func (c *windCharge) matches(ids []uint64) bool {
	if len(ids) != len(c.ids) {
		return false
	}
	for i := range ids {
		if ids[i] != c.ids[i] {
			return false
		}
	}
	return true
}

// checkWindCombination fuses L+1 captured balls of level L into one random
// level L+1 symbol once the captured set has held still for the charge time.
// A charge broken by any change in the set is dropped.
func (s *Simulation) checkWindCombination() {
	curve := s.wind.Curve()
	if !s.cfg.EnableWindCombination || curve == nil {
		s.charge.reset()
		return
	}

	captured := s.capturedSet()
	ids := make([]uint64, len(captured))
	for i, b := range captured {
		ids[i] = b.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if !s.charge.active {
		if len(captured) < 2 {
			return
		}
		level := captured[0].Level
		for _, b := range captured {
			if b.Level != level {
				return
			}
		}
		if len(captured) != level+1 {
			return
		}
		s.charge.active = true
		s.charge.start = s.now
		s.charge.ids = append(s.charge.ids[:0], ids...)
		return
	}

	if !s.charge.matches(ids) {
		s.charge.reset()
		return
	}
	if s.now-s.charge.start < s.cfg.WindCombinationChargeTime {
		return
	}

	level := captured[0].Level
	var candidates []catalog.SymbolID
	for _, id := range s.catalog.NormalSymbols(level + 1) {
		if s.slotAvailable(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return
	}

	end := curve.Points[len(curve.Points)-1]
	anchor := captured[0]
	best := math.Inf(1)
	for _, b := range captured {
		if d := math.Hypot(b.X-end.X, b.Y-end.Y); d < best {
			best, anchor = d, b
		}
	}

	nb := s.newBall(candidates[s.rng.Intn(len(candidates))], anchor.X, anchor.Y)
	if nb == nil {
		return
	}
	nb.VX, nb.VY = anchor.VX, anchor.VY
	nb.HasEnteredPlayfield = anchor.HasEnteredPlayfield
	nb.Manipulated = true
	if s.catalog.IsFinal(nb.SymbolID) && !s.reserveSlot(nb) {
		return
	}

	consumed := make([]uint64, 0, len(captured))
	for _, b := range captured {
		s.queueRemoval(b)
		consumed = append(consumed, b.ID)
	}
	s.queueAddition(nb)
	s.charge.reset()
	s.wind.Reset()

	s.emit(EventTypeWindCombined, WindCombinePayload{
		BallID:   nb.ID,
		Symbol:   nb.SymbolID,
		Level:    nb.Level,
		Consumed: consumed,
	})
}

// capturedSet returns the distinct balls captured this tick that are still alive.
func (s *Simulation) capturedSet() []*Ball {
	seen := make(map[uint64]bool, len(s.captured))
	out := make([]*Ball, 0, len(s.captured))
	for _, b := range s.captured {
		if seen[b.ID] || s.isQueued(b) {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out
}
