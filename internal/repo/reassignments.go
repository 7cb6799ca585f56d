package repo

import (
	"context"
	"database/sql"

	"fiscalia/internal/domain"
)

const reassignmentColumns = `id,id_caso,descripcion_caso,id_fiscal_anterior,nombre_fiscal_anterior,id_fiscal_nuevo,nombre_fiscal_nuevo,COALESCE(motivo,''),fecha`

// InsertReassignment appends an audit entry and returns it with its id.
func (r Repo) InsertReassignment(ctx context.Context, tx *sql.Tx, e domain.ReassignmentLogEntry) (domain.ReassignmentLogEntry, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO reasignaciones(id_caso,descripcion_caso,id_fiscal_anterior,nombre_fiscal_anterior,id_fiscal_nuevo,nombre_fiscal_nuevo,motivo,fecha) VALUES (?,?,?,?,?,?,?,?)`,
		e.CaseID, e.CaseDescription, e.PreviousFiscalID, e.PreviousFiscalName, e.NewFiscalID, e.NewFiscalName, nullable(e.Reason), e.Timestamp)
	if err != nil {
		return e, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return e, err
	}
	e.ID = id
	return e, nil
}

// ListReassignments returns entries oldest first.
func (r Repo) ListReassignments(ctx context.Context) ([]domain.ReassignmentLogEntry, error) {
	return r.ReassignmentsAfter(ctx, 0, 0)
}

// ReassignmentsAfter returns up to limit entries with id > cursor, oldest
// first. limit <= 0 means no limit.
func (r Repo) ReassignmentsAfter(ctx context.Context, cursor int64, limit int) ([]domain.ReassignmentLogEntry, error) {
	query := `SELECT ` + reassignmentColumns + ` FROM reasignaciones WHERE id>? ORDER BY id ASC`
	args := []any{cursor}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ReassignmentLogEntry{}
	for rows.Next() {
		var e domain.ReassignmentLogEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.CaseDescription, &e.PreviousFiscalID, &e.PreviousFiscalName,
			&e.NewFiscalID, &e.NewFiscalName, &e.Reason, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestReassignmentID returns the id of the newest entry, or 0.
func (r Repo) LatestReassignmentID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM reasignaciones`).Scan(&id)
	return id, err
}

func (r Repo) CountReassignments(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM reasignaciones`).Scan(&n)
	return n, err
}
