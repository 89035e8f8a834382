package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/swgo/server/internal/awareness"
	"github.com/swgo/server/internal/config"
	"github.com/swgo/server/internal/data"
	"github.com/swgo/server/internal/feed"
	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/persist"
	"github.com/swgo/server/internal/scripting"
	"github.com/swgo/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              swgo  v0.1.0                 \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      zone awareness · Go game server      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("SWGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Server.StartTime = time.Now().Unix()

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Static data
	printSection("data")
	planets, err := data.LoadPlanetTable(cfg.World.PlanetsFile)
	if err != nil {
		return fmt.Errorf("load planet table: %w", err)
	}
	printStat("planets", planets.Count())

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printOK("lua scripts loaded")
	fmt.Println()

	// 4. Awareness engine and its sinks
	var hub *feed.Hub
	var sink awareness.Sink
	if cfg.Feed.Enabled {
		hub = feed.NewHub(cfg.Feed.ClientQueue, cfg.Feed.WriteTimeout, log)
		sink = hub
	}
	engine := awareness.New(engineOptions(cfg.Awareness, planets), sink, log)
	objects := newObjectStore(engine, nil, log)

	// 5. Replay persisted world objects
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		repo := persist.NewObjectRepo(db)
		rows, err := repo.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load world objects: %w", err)
		}
		objs, err := persist.Replay(rows, engine, scriptedRange(scripts), log)
		if err != nil {
			return fmt.Errorf("replay world objects: %w", err)
		}
		objects.repo = repo
		objects.adopt(objs)
		printStat("world objects", len(objs))
		fmt.Println()
	}

	// 6. Run until signalled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := engine.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if hub != nil {
		hub.Handle(objectsRoute, objects)
		g.Go(func() error {
			return hub.Serve(gctx, cfg.Feed.BindAddress)
		})
		printReady(fmt.Sprintf("awareness feed on ws://%s%s", cfg.Feed.BindAddress, feed.Path))
		printReady(fmt.Sprintf("object admin on http://%s/objects/{id}", cfg.Feed.BindAddress))
	}
	printReady(fmt.Sprintf("scheduler running at %d Hz", cfg.Awareness.TickHz))
	fmt.Println()

	err = g.Wait()
	st := engine.Stats()
	log.Info("server stopped",
		zap.Uint64("ticks", st.Ticks),
		zap.Uint64("enters", st.Enters),
		zap.Uint64("leaves", st.Leaves),
		zap.Int("objects", objects.len()),
	)
	return err
}

func engineOptions(cfg config.AwarenessConfig, planets *data.PlanetTable) awareness.Options {
	return awareness.Options{
		ChunkSide:       cfg.ChunkSideMeters,
		MaxLoadRange:    cfg.MaxLoadRangeMeters,
		TickRate:        cfg.TickRate(),
		HighWater:       cfg.EventQueueHighWater,
		ParallelReaders: cfg.ParallelReaders,
		RefreshBatch:    cfg.RefreshBatch,
		DefaultBounds: world.Bounds{
			MinX: cfg.DefaultMinX, MaxX: cfg.DefaultMaxX,
			MinY: cfg.DefaultMinY, MaxY: cfg.DefaultMaxY,
		},
		Planets:   planets.Bounds(),
		SlowPhase: cfg.TickRate() / 2,
	}
}

// scriptedRange asks the Lua scripts for rows stored without a load range.
func scriptedRange(s *scripting.Engine) persist.DefaultRangeFunc {
	return func(row persist.ObjectRow, kind object.Kind) float64 {
		return s.DefaultLoadRange(scripting.LoadRangeContext{
			ID:       object.ID(row.ID),
			Kind:     kind,
			Template: row.Template,
			Planet:   object.Planet(row.Planet),
			Instance: object.Instance{Kind: object.InstanceKind(row.InstanceKind), Number: row.InstanceNumber},
		})
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
