package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/pveneroso/gogoame-2/internal/config"
)

// =============================================================================
// BENCHMARK SUITE: TICK PATH
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

func BenchmarkSimulationStep_50Balls(b *testing.B)  { benchmarkSimulationStep(b, 50) }
func BenchmarkSimulationStep_200Balls(b *testing.B) { benchmarkSimulationStep(b, 200) }
func BenchmarkSimulationStep_400Balls(b *testing.B) { benchmarkSimulationStep(b, 400) }

// populate scatters n level-1 balls over the upper playfield.
func populate(s *Simulation, n int) {
	r := rand.New(rand.NewSource(1))
	ids := s.Catalog().NormalSymbols(1)
	for i := 0; i < n; i++ {
		s.RestoreBall(BallState{
			X:        20 + r.Float64()*(s.World().Width-40),
			Y:        60 + r.Float64()*(s.World().Height/2),
			SymbolID: ids[i%len(ids)],
		})
	}
}

func benchmarkSimulationStep(b *testing.B, n int) {
	cfg := config.DefaultSimulation()
	cfg.BallCreationInterval = 0

	s, err := NewSimulation(Options{
		World:      config.DefaultWorld(),
		Limits:     config.DefaultLimits(),
		Spatial:    config.DefaultSpatial(),
		Simulation: cfg,
		Seed:       1,
	})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%600 == 0 {
			b.StopTimer()
			s.Restart()
			populate(s, n)
			b.StartTimer()
		}
		s.Step(frameMs)
	}
}

func BenchmarkProduceSnapshot(b *testing.B) {
	for _, n := range []int{50, 200, 400} {
		b.Run(fmt.Sprintf("%dBalls", n), func(b *testing.B) {
			s, err := NewSimulation(Options{
				World:      config.DefaultWorld(),
				Limits:     config.DefaultLimits(),
				Simulation: config.DefaultSimulation(),
				Seed:       1,
			})
			if err != nil {
				b.Fatal(err)
			}
			populate(s, n)
			for i := 0; i < 60; i++ {
				s.Step(frameMs)
			}
			pool := NewSnapshotPool(config.DefaultLimits())

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				snap := pool.AcquireWrite()
				s.FillSnapshot(snap, pool.GetLimits())
				pool.PublishWrite()
			}
		})
	}
}

func BenchmarkCurveClosest(b *testing.B) {
	curve := &WindCurve{}
	for i := 0; i < 200; i++ {
		curve.Points = append(curve.Points, Point{X: float64(i) * 3, Y: 400 + float64(i%7)*4})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		curve.Closest(float64(i%600), 410)
	}
}
