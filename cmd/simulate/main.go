// Command simulate runs the simulation headless for a fixed number of ticks.
//
// It is deterministic for a given seed, configuration and script, which
// makes it useful for tuning parameters and for reproducing reports:
//
//	go run ./cmd/simulate -seed 42 -ticks 3600 -script demo.txt \
//	    -events run.jsonl -frames frames/ -frame-every 60
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/pveneroso/gogoame-2/internal/config"
	"github.com/pveneroso/gogoame-2/internal/control"
	"github.com/pveneroso/gogoame-2/internal/game"
	"github.com/pveneroso/gogoame-2/internal/render"
)

type options struct {
	seed       int64
	ticks      uint64
	dt         float64
	script     string
	events     string
	frames     string
	frameEvery uint64
	scale      float64
	session    string
	stopOnOver bool
}

func main() {
	// Load environment
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	}

	var opts options
	flag.Int64Var(&opts.seed, "seed", 1, "RNG seed")
	flag.Uint64Var(&opts.ticks, "ticks", 3600, "number of ticks to run")
	flag.Float64Var(&opts.dt, "dt", 0, "tick length in ms (default 1000/TICK_RATE)")
	flag.StringVar(&opts.script, "script", "", "input script: one \"<tick> <command>\" per line")
	flag.StringVar(&opts.events, "events", "", "write every event as JSONL to this file")
	flag.StringVar(&opts.frames, "frames", "", "write PNG frames into this directory")
	flag.Uint64Var(&opts.frameEvery, "frame-every", 60, "ticks between frames")
	flag.Float64Var(&opts.scale, "scale", 0.5, "frame scale")
	flag.StringVar(&opts.session, "session", "", "session id (default random)")
	flag.BoolVar(&opts.stopOnOver, "stop-on-game-over", true, "stop at game over")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(opts options) error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}

	world := appConfig.World
	world.Seed = opts.seed
	if opts.dt <= 0 {
		opts.dt = 1000 / float64(world.TickRate)
	}
	if opts.session == "" {
		opts.session = uuid.NewString()
	}

	var steps []scriptStep
	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return errors.Wrap(err, "open script")
		}
		steps, err = parseScript(f)
		f.Close()
		if err != nil {
			return errors.Wrap(err, opts.script)
		}
	}

	engine, err := game.NewEngine(game.EngineConfig{
		World:      world,
		Limits:     appConfig.Limits,
		Spatial:    appConfig.Spatial,
		EventLog:   appConfig.EventLog,
		Simulation: appConfig.Simulation,
		SessionID:  opts.session,
	})
	if err != nil {
		return err
	}

	// Scripts are trusted; no per-client throttling
	commands := control.NewHandler(engine, control.RateLimitConfig{PerSecond: 1e9, Burst: 1 << 30})
	defer commands.Close()

	var events *json.Encoder
	if opts.events != "" {
		f, err := os.Create(opts.events)
		if err != nil {
			return errors.Wrap(err, "create event file")
		}
		defer f.Close()
		w := bufio.NewWriterSize(f, 64*1024)
		defer w.Flush()
		events = json.NewEncoder(w)
	}

	var renderer *render.Renderer
	if opts.frames != "" {
		if err := os.MkdirAll(opts.frames, 0o755); err != nil {
			return errors.Wrap(err, "create frame dir")
		}
		renderer = render.NewRenderer(render.Options{Scale: opts.scale, Symbols: engine})
	}

	log.Printf("🎮 Headless run: seed %d, %d ticks of %.3f ms, %d scripted inputs",
		opts.seed, opts.ticks, opts.dt, len(steps))

	start := time.Now()
	counts := make(map[game.EventType]int)
	next := 0
	var tick uint64
	for tick = 0; tick < opts.ticks; tick++ {
		for next < len(steps) && steps[next].Tick <= tick {
			s := steps[next]
			if err := commands.ProcessCommand(s.Cmd); err != nil {
				log.Printf("⚠️ script line %d (%s): %v", s.Line, s.Cmd.Kind, err)
			}
			next++
		}

		if engine.IsPaused() {
			continue
		}

		for _, e := range engine.Step(opts.dt) {
			counts[e.Type]++
			if events != nil {
				if err := events.Encode(e); err != nil {
					return errors.Wrap(err, "write event")
				}
			}
		}

		if renderer != nil && opts.frameEvery > 0 && tick%opts.frameEvery == 0 {
			path := filepath.Join(opts.frames, fmt.Sprintf("frame_%06d.png", tick))
			if err := renderer.SavePNG(path, engine.GetSnapshot()); err != nil {
				return errors.Wrap(err, "write frame")
			}
		}

		if opts.stopOnOver && engine.GetSnapshot().GameOver {
			log.Printf("💀 Game over at tick %d", tick)
			tick++
			break
		}
	}

	stats := engine.GetStats()
	log.Printf("✅ Ran %d ticks in %v (%.1f sim seconds)", tick, time.Since(start).Round(time.Millisecond), stats.SimTime/1000)
	log.Printf("📊 Score %d, lives %d, highest level %d, %d balls, corruption %.1f",
		stats.Score, stats.Lives, stats.HighestLevel, stats.Balls, stats.Corruption)
	for t := game.EventTypeSymbolSpawned; t <= game.EventTypeCatalogRegenerated; t++ {
		if n := counts[t]; n > 0 {
			log.Printf("   %-20s %d", t, n)
		}
	}
	if renderer != nil {
		if err := renderer.SavePNG(filepath.Join(opts.frames, "final.png"), engine.GetSnapshot()); err != nil {
			return errors.Wrap(err, "write final frame")
		}
	}
	return nil
}
