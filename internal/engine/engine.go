package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"fiscalia/internal/audit"
	"fiscalia/internal/config"
	"fiscalia/internal/domain"
	"fiscalia/internal/errs"
	"fiscalia/internal/logger"
	"fiscalia/internal/metrics"
	"fiscalia/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Audit   audit.Writer
	Config  *config.Config
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Now     func() time.Time

	// reassignMu serializes the read-validate-write-log sequence of reassignments.
	reassignMu *sync.Mutex
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	e := Engine{
		DB:         db,
		Repo:       r,
		Config:     cfg,
		Metrics:    metrics.New(),
		Log:        logger.L(),
		Now:        time.Now,
		reassignMu: &sync.Mutex{},
	}
	e.Audit = audit.Writer{Repo: r}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.L()
}

// SeedFiscalias makes the fiscalia table match the configured catalog.
// Existing rows are renamed, never removed, so fiscales keep their references.
func (e Engine) SeedFiscalias(ctx context.Context) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(err, "seed fiscalias")
	}
	defer tx.Rollback()
	for _, f := range e.Config.Fiscalias {
		if err := e.Repo.UpsertFiscalia(ctx, tx, domain.Fiscalia{ID: f.ID, Name: f.Name}); err != nil {
			return errs.Storage(err, "seed fiscalias")
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Storage(err, "seed fiscalias")
	}
	return nil
}

// storageErr wraps an unexpected store failure and logs it; classified
// errors pass through unchanged.
func (e Engine) storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := errs.As(err); ok {
		return err
	}
	e.log().Error("storage failure", zap.String("op", op), zap.Error(err))
	return errs.Storage(err, op)
}

func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
