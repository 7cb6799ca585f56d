package engine

import (
	"context"

	"fiscalia/internal/domain"
)

// StatisticsByFiscal counts every fiscal's cases by status. It reads the case
// table on every call; nothing is cached.
func (e Engine) StatisticsByFiscal(ctx context.Context) ([]domain.StatisticsRow, error) {
	rows, err := e.Repo.StatisticsByFiscal(ctx)
	if err != nil {
		return nil, e.storageErr(err, "statistics by fiscal")
	}
	return rows, nil
}

// StatisticsByStatus returns one row per status, zero counts included.
func (e Engine) StatisticsByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	counts, err := e.Repo.CountCasesByStatus(ctx)
	if err != nil {
		return nil, e.storageErr(err, "statistics by status")
	}
	res := make([]domain.StatusCount, 0, len(domain.AllStatuses))
	for _, st := range domain.AllStatuses {
		res = append(res, domain.StatusCount{Status: st, Count: counts[st]})
	}
	return res, nil
}
