// Package audit appends reassignment records to the append-only log.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"fiscalia/internal/domain"
	"fiscalia/internal/repo"
)

type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

// Snapshot is what the log captures about a reassignment at the moment it happens.
type Snapshot struct {
	Case           domain.Case
	PreviousFiscal domain.Fiscal
	NewFiscal      domain.Fiscal
	Reason         string
	// At is the reassignment time; zero means now.
	At time.Time
}

// Append writes one entry inside tx. The writer never opens its own
// transaction so the entry commits or rolls back with the case update.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, s Snapshot) (domain.ReassignmentLogEntry, error) {
	if tx == nil {
		return domain.ReassignmentLogEntry{}, errors.New("audit append requires a transaction")
	}
	at := s.At
	if at.IsZero() {
		at = time.Now()
		if w.Now != nil {
			at = w.Now()
		}
	}
	entry := domain.ReassignmentLogEntry{
		CaseID:             s.Case.ID,
		CaseDescription:    s.Case.Description,
		PreviousFiscalID:   s.PreviousFiscal.ID,
		PreviousFiscalName: s.PreviousFiscal.Name,
		NewFiscalID:        s.NewFiscal.ID,
		NewFiscalName:      s.NewFiscal.Name,
		Reason:             strings.TrimSpace(s.Reason),
		Timestamp:          at.UTC().Format(time.RFC3339),
	}
	return w.Repo.InsertReassignment(ctx, tx, entry)
}

// List returns every entry, oldest first.
func (w Writer) List(ctx context.Context) ([]domain.ReassignmentLogEntry, error) {
	return w.Repo.ListReassignments(ctx)
}

// After returns up to limit entries newer than cursor.
func (w Writer) After(ctx context.Context, cursor int64, limit int) ([]domain.ReassignmentLogEntry, error) {
	return w.Repo.ReassignmentsAfter(ctx, cursor, limit)
}

// Latest returns the id of the newest entry, or 0 for an empty log.
func (w Writer) Latest(ctx context.Context) (int64, error) {
	return w.Repo.LatestReassignmentID(ctx)
}
