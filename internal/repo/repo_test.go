package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalia/internal/db"
	"fiscalia/internal/domain"
	"fiscalia/internal/migrate"
	"fiscalia/internal/repo"
)

const ts = "2024-01-01T00:00:00Z"

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	require.NoError(t, r.UpsertFiscalia(ctx, nil, domain.Fiscalia{ID: 1, Name: "Centro"}))
	return r, ctx
}

func seedFiscal(t *testing.T, r repo.Repo, name, email string) domain.Fiscal {
	t.Helper()
	f, err := r.InsertFiscal(context.Background(), nil, domain.Fiscal{Name: name, Email: email, FiscaliaID: 1, CreatedAt: ts})
	require.NoError(t, err)
	return f
}

func TestInsertFiscalDuplicateEmail(t *testing.T) {
	r, ctx := newRepo(t)
	seedFiscal(t, r, "Ana", "ana@mp.gob")
	_, err := r.InsertFiscal(ctx, nil, domain.Fiscal{Name: "Otra", Email: "ana@mp.gob", FiscaliaID: 1, CreatedAt: ts})
	assert.ErrorIs(t, err, repo.ErrDuplicate)
}

func TestInsertFiscalUnknownFiscaliaRejectedByForeignKey(t *testing.T) {
	r, ctx := newRepo(t)
	_, err := r.InsertFiscal(ctx, nil, domain.Fiscal{Name: "Ana", Email: "ana@mp.gob", FiscaliaID: 99, CreatedAt: ts})
	assert.Error(t, err)
}

func TestReassignCaseTx(t *testing.T) {
	r, ctx := newRepo(t)
	a := seedFiscal(t, r, "Ana", "ana@mp.gob")
	b := seedFiscal(t, r, "Beto", "beto@mp.gob")
	c, err := r.InsertCase(ctx, nil, domain.Case{Description: "robo", Status: domain.StatusPending, FiscalID: a.ID, CreatedAt: ts, UpdatedAt: ts})
	require.NoError(t, err)

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	prev, err := r.ReassignCaseTx(ctx, tx, c.ID, b.ID, ts)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, a.ID, prev)

	got, err := r.GetCase(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.FiscalID)

	tx, err = r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = r.ReassignCaseTx(ctx, tx, 999, b.ID, ts)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.ReassignCaseTx(ctx, tx, c.ID, 999, ts)
	assert.ErrorIs(t, err, repo.ErrUnknownFiscal)
}

func TestReassignCaseTxRequiresTransaction(t *testing.T) {
	r, ctx := newRepo(t)
	_, err := r.ReassignCaseTx(ctx, nil, 1, 1, ts)
	assert.ErrorContains(t, err, "transaction required")
}

func TestReassignmentsAreAppendOnly(t *testing.T) {
	r, ctx := newRepo(t)
	a := seedFiscal(t, r, "Ana", "ana@mp.gob")
	b := seedFiscal(t, r, "Beto", "beto@mp.gob")
	c, err := r.InsertCase(ctx, nil, domain.Case{Description: "robo", Status: domain.StatusPending, FiscalID: a.ID, CreatedAt: ts, UpdatedAt: ts})
	require.NoError(t, err)
	e, err := r.InsertReassignment(ctx, nil, domain.ReassignmentLogEntry{
		CaseID: c.ID, CaseDescription: c.Description,
		PreviousFiscalID: a.ID, PreviousFiscalName: a.Name,
		NewFiscalID: b.ID, NewFiscalName: b.Name,
		Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)

	_, err = r.DB.ExecContext(ctx, `UPDATE reasignaciones SET motivo='x' WHERE id=?`, e.ID)
	assert.ErrorContains(t, err, "append-only")
	_, err = r.DB.ExecContext(ctx, `DELETE FROM reasignaciones WHERE id=?`, e.ID)
	assert.ErrorContains(t, err, "append-only")

	n, err := r.CountReassignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	latest, err := r.LatestReassignmentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.ID, latest)
	list, err := r.ListReassignments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "", list[0].Reason)
}

func TestStatisticsByFiscalIncludesIdleFiscals(t *testing.T) {
	r, ctx := newRepo(t)
	a := seedFiscal(t, r, "Ana", "ana@mp.gob")
	b := seedFiscal(t, r, "Beto", "beto@mp.gob")
	for _, st := range []domain.CaseStatus{domain.StatusPending, domain.StatusClosed, domain.StatusInProcess, domain.StatusPending} {
		_, err := r.InsertCase(ctx, nil, domain.Case{Description: "caso", Status: st, FiscalID: a.ID, CreatedAt: ts, UpdatedAt: ts})
		require.NoError(t, err)
	}

	rows, err := r.StatisticsByFiscal(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.StatisticsRow{FiscalID: a.ID, FiscalName: "Ana", TotalCases: 4, PendingCount: 2, InProcessCount: 1, ClosedCount: 1}, rows[0])
	assert.Equal(t, domain.StatisticsRow{FiscalID: b.ID, FiscalName: "Beto"}, rows[1])

	counts, err := r.CountCasesByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StatusPending])
	assert.Equal(t, 1, counts[domain.StatusInProcess])
	assert.Equal(t, 1, counts[domain.StatusClosed])
}

func TestListCasesFilters(t *testing.T) {
	r, ctx := newRepo(t)
	a := seedFiscal(t, r, "Ana", "ana@mp.gob")
	b := seedFiscal(t, r, "Beto", "beto@mp.gob")
	for _, f := range []int64{a.ID, b.ID, a.ID} {
		_, err := r.InsertCase(ctx, nil, domain.Case{Description: "caso", Status: domain.StatusPending, FiscalID: f, CreatedAt: ts, UpdatedAt: ts})
		require.NoError(t, err)
	}
	all, err := r.ListCases(ctx, repo.CaseFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	mine, err := r.ListCases(ctx, repo.CaseFilters{FiscalID: a.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	closed, err := r.ListCases(ctx, repo.CaseFilters{Status: domain.StatusClosed})
	require.NoError(t, err)
	assert.Empty(t, closed)
}
