package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pveneroso/gogoame-2/internal/api"
	"github.com/pveneroso/gogoame-2/internal/config"
	"github.com/pveneroso/gogoame-2/internal/game"
	"github.com/pveneroso/gogoame-2/internal/render"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  SYMBOL BALLS - GO ENGINE")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	world := appConfig.World
	limits := appConfig.Limits

	sessionID := uuid.NewString()
	log.Printf("🆔 Session: %s", sessionID)
	log.Printf("🎮 Config: %d TPS, %.0fx%.0f playfield, topology %d, max level %d",
		world.TickRate, world.Width, world.Height,
		appConfig.Simulation.NumberOfSymbolTypes, appConfig.Simulation.MaxSymbolLevel)
	log.Printf("🛡️ Resource limits: %d balls, %d trail points, %d queued requests",
		limits.MaxBalls, limits.MaxSnapshotTrail, limits.RequestQueueSize)

	engine, err := game.NewEngine(game.EngineConfig{
		World:      world,
		Limits:     limits,
		Spatial:    appConfig.Spatial,
		EventLog:   appConfig.EventLog,
		Simulation: appConfig.Simulation,
		SessionID:  sessionID,
	})
	if err != nil {
		log.Fatalf("❌ Engine init failed: %v", err)
	}
	log.Printf("🎲 Seed: %d", engine.Seed())

	// Start event log
	if path := appConfig.EventLog.Path; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	api.AttachEngineMetrics(engine)

	// Start debug server
	debugServer, err := api.StartDebugServer(appConfig.Observability)
	if err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	renderer := render.NewRenderer(render.Options{Scale: 0.5, Symbols: engine})

	server := api.NewServer(engine, api.ServerOptions{
		SnapshotInterval: time.Duration(appConfig.Server.SnapshotInterval) * time.Millisecond,
		Frames:           renderer,
		CORSOrigins:      appConfig.Server.CORSOrigins,
		AdminToken:       appConfig.Server.AdminToken,
		StaticFilesDir:   os.Getenv("STATIC_DIR"),
	})
	if appConfig.Server.AdminToken != "" {
		log.Println("🔐 Operator token required for config and game control")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(":" + strconv.Itoa(appConfig.Server.Port))
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("🛑 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ API shutdown: %v", err)
		}
		if debugServer != nil {
			debugServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("❌ Server error: %v", err)
	}

	engine.Stop()
	engine.StopEventLog()

	stats := engine.GetStats()
	log.Printf("📊 Final: tick %d, score %d, %d events logged", stats.Tick, stats.Score, engine.GetEventLog().GetTotalCount())
	log.Println("👋 Goodbye!")
}
