// worldseed loads a YAML world seed into the world_objects table.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/swgo/server/internal/config"
	"github.com/swgo/server/internal/data"
	"github.com/swgo/server/internal/persist"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: worldseed <world_seed.yaml>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(seedPath string) error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SWGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	entries, err := data.LoadWorldSeed(seedPath)
	if err != nil {
		return err
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	repo := persist.NewObjectRepo(db)
	for _, e := range entries {
		if err := repo.Save(ctx, rowOf(e)); err != nil {
			return err
		}
	}
	fmt.Printf("Seeded %d world objects from %s\n", len(entries), seedPath)
	return nil
}

func rowOf(e data.SeedEntry) persist.ObjectRow {
	row := persist.ObjectRow{
		ID:             int64(e.ID),
		Kind:           e.Kind.String(),
		Template:       e.Template,
		Planet:         string(e.Planet),
		X:              e.Position.X,
		Y:              e.Position.Y,
		Z:              e.Position.Z,
		InstanceKind:   int16(e.Instance.Kind),
		InstanceNumber: e.Instance.Number,
		LoadRange:      e.LoadRange,
		Awareness:      e.Awareness,
	}
	if e.HasParent {
		pid := int64(e.Parent)
		row.ParentID = &pid
	}
	return row
}
