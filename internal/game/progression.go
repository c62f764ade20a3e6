package game

import (
	"log"
)

// =============================================================================
// RESERVED SLOTS
// =============================================================================

// MaxSlots is the number of docking sockets (one per normal type).
const MaxSlots = 4

// SlotTable tracks which ball holds each reserved slot.
type SlotTable struct {
	balls    [MaxSlots]uint64
	occupied [MaxSlots]bool
}

// Occupied reports whether slot i is claimed.
func (t *SlotTable) Occupied(i int) bool {
	return i >= 0 && i < MaxSlots && t.occupied[i]
}

// Holder returns the ball id in slot i.
func (t *SlotTable) Holder(i int) (uint64, bool) {
	if !t.Occupied(i) {
		return 0, false
	}
	return t.balls[i], true
}

// Claim assigns slot i to a ball. Claiming an occupied slot is refused.
func (t *SlotTable) Claim(i int, ballID uint64) bool {
	if i < 0 || i >= MaxSlots || t.occupied[i] {
		return false
	}
	t.balls[i] = ballID
	t.occupied[i] = true
	return true
}

// Release frees whichever slot ballID holds.
func (t *SlotTable) Release(ballID uint64) {
	for i := range t.balls {
		if t.occupied[i] && t.balls[i] == ballID {
			t.occupied[i] = false
			t.balls[i] = 0
		}
	}
}

// Clear frees every slot.
func (t *SlotTable) Clear() {
	*t = SlotTable{}
}

// allDocked reports whether the first n slots hold balls that reached their socket.
func (s *Simulation) allDocked(n int) bool {
	for i := 0; i < n; i++ {
		id, ok := s.slots.Holder(i)
		if !ok {
			return false
		}
		b := s.findBall(id)
		if b == nil || !b.Docked {
			return false
		}
	}
	return true
}

// =============================================================================
// LOTUS SEQUENCE
// =============================================================================

// LotusPhase is the state of the lotus sequence
type LotusPhase uint8

const (
	LotusIdle LotusPhase = iota
	LotusAwaiting
	LotusPlaying
)

type lotusState struct {
	phase        LotusPhase
	awaitStart   float64
	playStart    float64
	bonusAwarded bool
}

// progress returns how far the playing lotus is, in [0, 1].
func (l *lotusState) progress(now, duration float64) float64 {
	if l.phase != LotusPlaying || duration <= 0 {
		return 0
	}
	p := (now - l.playStart) / duration
	if p > 1 {
		return 1
	}
	return p
}

// checkLotusTrigger starts the pre-delay once every slot holds a docked ball.
func (s *Simulation) checkLotusTrigger() {
	if s.lotus.phase != LotusIdle || !s.allDocked(s.catalog.Topology()) {
		return
	}
	s.lotus.phase = LotusAwaiting
	s.lotus.awaitStart = s.now
}

// updateLotus advances the sequence. It returns true while the lotus plays,
// which suspends the rest of the tick.
func (s *Simulation) updateLotus() bool {
	switch s.lotus.phase {
	case LotusAwaiting:
		if s.now-s.lotus.awaitStart < s.cfg.LotusAnimationPreDelay {
			return false
		}
		s.lotus.phase = LotusPlaying
		s.lotus.playStart = s.now
		s.lotus.bonusAwarded = false
		s.emit(EventTypeLotusStarted, LotusPayload{Bonus: s.cfg.LotusPointBonus, Score: s.score})
		log.Printf("🪷 Lotus sequence started at tick %d", s.tick)

		s.beginWorklists()
		for _, b := range s.balls {
			s.destroy(b, CauseGlory)
		}
		s.applyWorklists()
		return true

	case LotusPlaying:
		progress := s.lotus.progress(s.now, s.cfg.LotusAnimationDuration)
		if progress > 0.9 && !s.lotus.bonusAwarded {
			s.lotus.bonusAwarded = true
			s.score += s.cfg.LotusPointBonus
		}
		if progress >= 1 {
			s.slots.Clear()
			s.lotus.phase = LotusIdle
			s.emit(EventTypeLotusCompleted, LotusPayload{Bonus: s.cfg.LotusPointBonus, Score: s.score})
		}
		return true
	}
	return false
}

// =============================================================================
// LIVES & SCORE
// =============================================================================

// loseLife costs one life, debounced by the life-loss window.
func (s *Simulation) loseLife() {
	if s.gameOver || s.now < s.lifeLossUntil {
		return
	}
	s.lifeLossUntil = s.now + s.cfg.LifeLossAnimationDuration

	if !s.cfg.EnableLivesSystem {
		return
	}
	s.lives--
	s.emit(EventTypeLifeLost, LivesPayload{Lives: s.lives})
	if s.lives <= 0 {
		s.endGame("lives")
	}
}

// gainLife adds one life up to the cap.
func (s *Simulation) gainLife() {
	if s.lives < s.cfg.MaxLives {
		s.lives++
	}
	s.emit(EventTypeLifeGained, LivesPayload{Lives: s.lives})
}

// losePoints applies the destruction penalty: sum of i^2 * 2^(L-i) for i = L..2.
func (s *Simulation) losePoints(b *Ball) {
	penalty := LosePenalty(b.Level)
	if penalty == 0 {
		return
	}
	s.score -= penalty
	s.emit(EventTypePointsLost, PointsPayload{Points: -penalty, Score: s.score, Symbol: b.SymbolID})
}

// LosePenalty returns the points lost when a ball of the given level is destroyed.
func LosePenalty(level int) int {
	penalty, weight := 0, 1
	for i := level; i > 1; i-- {
		penalty += i * i * weight
		weight *= 2
	}
	return penalty
}

// endGame enters the terminal state once.
func (s *Simulation) endGame(reason string) {
	if s.gameOver {
		return
	}
	s.gameOver = true
	s.gameOverReason = reason
	s.emit(EventTypeGameOver, GameOverPayload{Reason: reason, Score: s.score})
	log.Printf("💀 Game over (%s) at tick %d, score %d", reason, s.tick, s.score)
}
