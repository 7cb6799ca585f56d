package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalia/internal/audit"
	"fiscalia/internal/db"
	"fiscalia/internal/domain"
	"fiscalia/internal/migrate"
	"fiscalia/internal/repo"
)

func TestAppendSnapshotsAndOrders(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)

	ctx := context.Background()
	r := repo.Repo{DB: conn}
	require.NoError(t, r.UpsertFiscalia(ctx, nil, domain.Fiscalia{ID: 1, Name: "Centro"}))
	a, err := r.InsertFiscal(ctx, nil, domain.Fiscal{Name: "Ana", Email: "ana@mp.gob", FiscaliaID: 1, CreatedAt: "t"})
	require.NoError(t, err)
	b, err := r.InsertFiscal(ctx, nil, domain.Fiscal{Name: "Beto", Email: "beto@mp.gob", FiscaliaID: 1, CreatedAt: "t"})
	require.NoError(t, err)
	c, err := r.InsertCase(ctx, nil, domain.Case{Description: "robo", Status: domain.StatusPending, FiscalID: a.ID, CreatedAt: "t", UpdatedAt: "t"})
	require.NoError(t, err)

	w := audit.Writer{Repo: r, Now: func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.FixedZone("X", -5*3600)) }}

	_, err = w.Append(ctx, nil, audit.Snapshot{Case: c, PreviousFiscal: a, NewFiscal: b})
	assert.Error(t, err)

	for i, pair := range [][2]domain.Fiscal{{a, b}, {b, a}} {
		tx, err := conn.BeginTx(ctx, nil)
		require.NoError(t, err)
		e, err := w.Append(ctx, tx, audit.Snapshot{Case: c, PreviousFiscal: pair[0], NewFiscal: pair[1], Reason: "  carga  "})
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, int64(i+1), e.ID)
		assert.Equal(t, "carga", e.Reason)
		assert.Equal(t, "2024-03-05T15:00:00Z", e.Timestamp)
	}

	list, err := w.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].PreviousFiscalID)
	assert.Equal(t, "Beto", list[0].NewFiscalName)
	assert.Equal(t, "robo", list[1].CaseDescription)

	after, err := w.After(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(2), after[0].ID)

	latest, err := w.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)
}

func TestRolledBackAppendLeavesNoTrace(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)

	ctx := context.Background()
	r := repo.Repo{DB: conn}
	require.NoError(t, r.UpsertFiscalia(ctx, nil, domain.Fiscalia{ID: 1, Name: "Centro"}))
	a, err := r.InsertFiscal(ctx, nil, domain.Fiscal{Name: "Ana", Email: "ana@mp.gob", FiscaliaID: 1, CreatedAt: "t"})
	require.NoError(t, err)
	c, err := r.InsertCase(ctx, nil, domain.Case{Description: "robo", Status: domain.StatusPending, FiscalID: a.ID, CreatedAt: "t", UpdatedAt: "t"})
	require.NoError(t, err)

	w := audit.Writer{Repo: r}
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = w.Append(ctx, tx, audit.Snapshot{Case: c, PreviousFiscal: a, NewFiscal: a})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	list, err := w.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAppendUsesSnapshotTime(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)

	ctx := context.Background()
	r := repo.Repo{DB: conn}
	require.NoError(t, r.UpsertFiscalia(ctx, nil, domain.Fiscalia{ID: 1, Name: "Centro"}))
	a, err := r.InsertFiscal(ctx, nil, domain.Fiscal{Name: "Ana", Email: "ana@mp.gob", FiscaliaID: 1, CreatedAt: "t"})
	require.NoError(t, err)
	c, err := r.InsertCase(ctx, nil, domain.Case{Description: "robo", Status: domain.StatusPending, FiscalID: a.ID, CreatedAt: "t", UpdatedAt: "t"})
	require.NoError(t, err)

	w := audit.Writer{Repo: r, Now: func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }}
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	e, err := w.Append(ctx, tx, audit.Snapshot{Case: c, PreviousFiscal: a, NewFiscal: a, At: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T12:00:00Z", e.Timestamp)
	assert.Empty(t, e.Reason)
}
