package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"chessmate/migrations"
)

// Apply runs any pending SQL migrations bundled with the binary.
func Apply(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	return apply(ctx, db, migrations.Files, logger)
}

func apply(ctx context.Context, db *sqlx.DB, fsys fs.FS, logger *slog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("migrate: goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: goose up: %w", err)
	}

	for _, result := range results {
		logger.Info("migration applied",
			"version", result.Source.Version,
			"path", result.Source.Path,
			"duration", result.Duration.String(),
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: check goose version: %w", err)
	}
	logger.Info("database schema ready", "version", version, "applied", len(results))
	return nil
}
