package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"fiscalia/internal/config"
	"fiscalia/internal/db"
	"fiscalia/internal/engine"
	"fiscalia/internal/logger"
	"fiscalia/internal/migrate"
)

// Options controls how a workspace is opened.
type Options struct {
	Workspace     string
	BusyTimeoutMS int
	// Config overrides fiscalia.yml when non-nil.
	Config *config.Config
}

// Bootstrap opens the workspace database, applies migrations, loads the
// config (falling back to defaults when fiscalia.yml is absent) and seeds the
// fiscalia catalog. The caller owns the returned *sql.DB.
func Bootstrap(ctx context.Context, opts Options) (engine.Engine, *sql.DB, error) {
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return engine.Engine{}, nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadOptional(opts.Workspace)
		if err != nil {
			return engine.Engine{}, nil, err
		}
		cfg = loaded
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, BusyTimeoutMS: opts.BusyTimeoutMS})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	version, err := migrate.Migrate(conn)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	if err := e.SeedFiscalias(ctx); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	logger.L().Debug("workspace ready",
		zap.String("db", db.Path(opts.Workspace)),
		zap.Int("schema_version", version),
		zap.Int64s("fiscalias", cfg.FiscaliaIDs()),
	)
	return e, conn, nil
}
