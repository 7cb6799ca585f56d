package repo

import (
	"context"
	"database/sql"

	"fiscalia/internal/domain"
)

// UpsertFiscalia inserts or renames a fiscalia.
func (r Repo) UpsertFiscalia(ctx context.Context, tx *sql.Tx, f domain.Fiscalia) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO fiscalias(id,nombre) VALUES (?,?)
ON CONFLICT(id) DO UPDATE SET nombre=excluded.nombre`, f.ID, f.Name)
	return err
}

func (r Repo) GetFiscalia(ctx context.Context, tx *sql.Tx, id int64) (domain.Fiscalia, error) {
	var f domain.Fiscalia
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,nombre FROM fiscalias WHERE id=?`, id).Scan(&f.ID, &f.Name)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

func (r Repo) ListFiscalias(ctx context.Context) ([]domain.Fiscalia, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,nombre FROM fiscalias ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Fiscalia{}
	for rows.Next() {
		var f domain.Fiscalia
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}
