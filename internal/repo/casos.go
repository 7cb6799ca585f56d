package repo

import (
	"context"
	"database/sql"
	"fmt"

	"fiscalia/internal/domain"
)

const caseColumns = `id,descripcion,estado,id_fiscal,created_at,updated_at`

func scanCase(row interface{ Scan(...any) error }) (domain.Case, error) {
	var c domain.Case
	var status string
	err := row.Scan(&c.ID, &c.Description, &status, &c.FiscalID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.Status = domain.CaseStatus(status)
	return c, err
}

// InsertCase stores c and returns it with the assigned id.
func (r Repo) InsertCase(ctx context.Context, tx *sql.Tx, c domain.Case) (domain.Case, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO casos(descripcion,estado,id_fiscal,created_at,updated_at) VALUES (?,?,?,?,?)`,
		c.Description, string(c.Status), c.FiscalID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return c, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return c, err
	}
	c.ID = id
	return c, nil
}

func (r Repo) GetCase(ctx context.Context, tx *sql.Tx, id int64) (domain.Case, error) {
	return scanCase(r.q(tx).QueryRowContext(ctx, `SELECT `+caseColumns+` FROM casos WHERE id=?`, id))
}

// CaseFilters narrows ListCases. Zero values match everything.
type CaseFilters struct {
	FiscalID int64
	Status   domain.CaseStatus
}

// ListCases returns cases ordered by id.
func (r Repo) ListCases(ctx context.Context, f CaseFilters) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM casos WHERE 1=1`
	var args []any
	if f.FiscalID != 0 {
		query += ` AND id_fiscal=?`
		args = append(args, f.FiscalID)
	}
	if f.Status != "" {
		query += ` AND estado=?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateCaseStatus sets the status of a case.
func (r Repo) UpdateCaseStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.CaseStatus, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE casos SET estado=?, updated_at=? WHERE id=?`, string(status), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReassignCaseTx points a case at a new fiscal and returns the fiscal it
// replaced. It only mutates the case; callers own the audit entry and the
// transaction boundary. ErrNotFound means the case is unknown; a missing
// fiscal is reported as ErrUnknownFiscal.
func (r Repo) ReassignCaseTx(ctx context.Context, tx *sql.Tx, caseID, newFiscalID int64, updatedAt string) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("reassign case %d: transaction required", caseID)
	}
	var previous int64
	err := tx.QueryRowContext(ctx, `SELECT id_fiscal FROM casos WHERE id=?`, caseID).Scan(&previous)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	ok, err := r.FiscalExists(ctx, tx, newFiscalID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnknownFiscal
	}
	if _, err := tx.ExecContext(ctx, `UPDATE casos SET id_fiscal=?, updated_at=? WHERE id=?`, newFiscalID, updatedAt, caseID); err != nil {
		return 0, err
	}
	return previous, nil
}
