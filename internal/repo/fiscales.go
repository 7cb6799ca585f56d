package repo

import (
	"context"
	"database/sql"

	"fiscalia/internal/domain"
)

const fiscalColumns = `id,nombre,correo,id_fiscalia,created_at`

func scanFiscal(row interface{ Scan(...any) error }) (domain.Fiscal, error) {
	var f domain.Fiscal
	err := row.Scan(&f.ID, &f.Name, &f.Email, &f.FiscaliaID, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

// InsertFiscal stores f and returns it with the assigned id.
func (r Repo) InsertFiscal(ctx context.Context, tx *sql.Tx, f domain.Fiscal) (domain.Fiscal, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO fiscales(nombre,correo,id_fiscalia,created_at) VALUES (?,?,?,?)`,
		f.Name, f.Email, f.FiscaliaID, f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return f, ErrDuplicate
		}
		return f, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return f, err
	}
	f.ID = id
	return f, nil
}

func (r Repo) GetFiscal(ctx context.Context, tx *sql.Tx, id int64) (domain.Fiscal, error) {
	return scanFiscal(r.q(tx).QueryRowContext(ctx, `SELECT `+fiscalColumns+` FROM fiscales WHERE id=?`, id))
}

func (r Repo) FiscalExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var n int
	if err := r.q(tx).QueryRowContext(ctx, `SELECT count(*) FROM fiscales WHERE id=?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) EmailTaken(ctx context.Context, tx *sql.Tx, email string) (bool, error) {
	var n int
	if err := r.q(tx).QueryRowContext(ctx, `SELECT count(*) FROM fiscales WHERE correo=?`, email).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) ListFiscales(ctx context.Context) ([]domain.Fiscal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+fiscalColumns+` FROM fiscales ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Fiscal{}
	for rows.Next() {
		f, err := scanFiscal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}
