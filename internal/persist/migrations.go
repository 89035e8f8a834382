package persist

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// VersionTable is where goose records the applied world schema versions.
const VersionTable = "swgo_schema_version"

// gooseLogger sends goose output to zap.
type gooseLogger struct{ log *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Errorf(strings.TrimSuffix(format, "\n"), v...)
}

// Migrate brings the world schema up to date.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetLogger(gooseLogger{log: db.log.Sugar()})
	goose.SetBaseFS(migrations)
	goose.SetTableName(VersionTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	from, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	to, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if from == to {
		db.log.Info("world schema up to date", zap.Int64("version", to))
	} else {
		db.log.Info("world schema migrated", zap.Int64("from", from), zap.Int64("to", to))
	}
	return nil
}
