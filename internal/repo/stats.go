package repo

import (
	"context"

	"fiscalia/internal/domain"
)

// StatisticsByFiscal counts cases per status for every fiscal, including
// fiscals without cases. A single statement keeps the counts on one snapshot.
func (r Repo) StatisticsByFiscal(ctx context.Context) ([]domain.StatisticsRow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT f.id, f.nombre,
  COUNT(c.id),
  COALESCE(SUM(CASE WHEN c.estado='Pendiente' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN c.estado='EnProceso' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN c.estado='Cerrado' THEN 1 ELSE 0 END),0)
FROM fiscales f
LEFT JOIN casos c ON c.id_fiscal = f.id
GROUP BY f.id, f.nombre
ORDER BY f.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.StatisticsRow{}
	for rows.Next() {
		var s domain.StatisticsRow
		if err := rows.Scan(&s.FiscalID, &s.FiscalName, &s.TotalCases, &s.PendingCount, &s.InProcessCount, &s.ClosedCount); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// CountCasesByStatus returns the number of cases in each status present.
func (r Repo) CountCasesByStatus(ctx context.Context) (map[domain.CaseStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT estado, count(*) FROM casos GROUP BY estado`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.CaseStatus]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[domain.CaseStatus(status)] = count
	}
	return res, rows.Err()
}
