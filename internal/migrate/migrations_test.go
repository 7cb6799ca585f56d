package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalia/internal/db"
)

func TestLoadMigrationsOrdered(t *testing.T) {
	ms, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	for i, m := range ms {
		assert.Equal(t, i+1, m.Version, m.Name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v1, err := Migrate(conn)
	require.NoError(t, err)
	v2, err := Migrate(conn)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	ms, err := loadMigrations()
	require.NoError(t, err)
	assert.Equal(t, ms[len(ms)-1].Version, v1)

	for _, table := range []string{"fiscalias", "fiscales", "casos", "reasignaciones"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestCaseStatusCheckConstraint(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	_, err = Migrate(conn)
	require.NoError(t, err)

	_, err = conn.Exec(`INSERT INTO fiscalias(id,nombre) VALUES (1,'General')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO fiscales(nombre,correo,id_fiscalia,created_at) VALUES ('A','a@mp.gob',1,'t')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO casos(descripcion,estado,id_fiscal,created_at,updated_at) VALUES ('x','Abierto',1,'t','t')`)
	assert.Error(t, err)
	_, err = conn.Exec(`INSERT INTO casos(descripcion,estado,id_fiscal,created_at,updated_at) VALUES ('x','Pendiente',7,'t','t')`)
	assert.Error(t, err, "foreign keys are enforced")
}
