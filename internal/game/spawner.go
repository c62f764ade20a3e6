package game

import (
	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// maxSpawnsPerTick bounds catch-up after a long tick.
const maxSpawnsPerTick = 4

// runSpawner drops one ball every ballCreationInterval ms of simulation time.
func (s *Simulation) runSpawner(dt float64) {
	interval := s.cfg.BallCreationInterval
	if interval <= 0 {
		s.spawnElapsed = 0
		return
	}

	s.spawnElapsed += dt
	for n := 0; s.spawnElapsed >= interval; n++ {
		s.spawnElapsed -= interval
		if n >= maxSpawnsPerTick {
			s.spawnElapsed = 0
			return
		}
		s.spawnRandom()
	}
}

// spawnRandom rolls life, void or a normal symbol and drops it above the
// playfield at a random column.
func (s *Simulation) spawnRandom() {
	id, ok := s.rollSymbol()
	if !ok {
		return
	}
	b := s.newBall(id, 0, 0)
	if b == nil {
		return
	}
	b.X = b.Radius + s.rng.Float64()*(s.world.Width-2*b.Radius)
	b.Y = -b.Radius - s.rng.Float64()*20
	s.addBall(b, false)
}

func (s *Simulation) rollSymbol() (catalog.SymbolID, bool) {
	roll := s.rng.Float64()
	switch {
	case roll < s.cfg.LifeSymbolSpawnRate:
		return catalog.LifeID, true
	case roll < s.cfg.LifeSymbolSpawnRate+s.cfg.VoidSymbolSpawnRate:
		return catalog.VoidID, true
	}

	if s.cfg.EnableMultiLevelSpawning {
		level := s.rng.Float64()
		switch {
		case level < s.cfg.SpawnChanceL1:
			return s.nextLevel1()
		case level < s.cfg.SpawnChanceL1+s.cfg.SpawnChanceL2:
			return s.randomNormal(2)
		default:
			return s.randomNormal(3)
		}
	}
	return s.nextLevel1()
}

// nextLevel1 cycles through the level-1 types in order.
func (s *Simulation) nextLevel1() (catalog.SymbolID, bool) {
	ids := s.catalog.NormalSymbols(1)
	if len(ids) == 0 {
		return "", false
	}
	id := ids[s.nextSpawnType%len(ids)]
	s.nextSpawnType = (s.nextSpawnType + 1) % len(ids)
	return id, true
}

func (s *Simulation) randomNormal(level int) (catalog.SymbolID, bool) {
	ids := s.catalog.NormalSymbols(level)
	if len(ids) == 0 {
		return "", false
	}
	return ids[s.rng.Intn(len(ids))], true
}
