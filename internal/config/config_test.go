package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Fiscalias, 1)
	assert.Equal(t, int64(1), cfg.Fiscalias[0].ID)
	assert.False(t, cfg.Reassignment.AllowSameFiscal)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, []int64{1}, cfg.FiscaliaIDs())
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "not found")
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`fiscalias:
  - id: 1
    nombre: Centro
  - id: 4
    nombre: Norte
reassignment:
  allow_same_fiscal: true
webhooks:
  - url: https://hooks.example.org/casos
    secret: s3cret
`)
	require.NoError(t, os.WriteFile(Path(dir), data, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, cfg.FiscaliaIDs())
	assert.True(t, cfg.Reassignment.AllowSameFiscal)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, "s3cret", cfg.Webhooks[0].Secret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no fiscalias", "fiscalias: []\n", "at least one"},
		{"zero id", "fiscalias:\n  - id: 0\n    nombre: X\n", "positive integer"},
		{"empty name", "fiscalias:\n  - id: 2\n    nombre: \" \"\n", "empty nombre"},
		{"duplicate", "fiscalias:\n  - id: 2\n    nombre: A\n  - id: 2\n    nombre: B\n", "declared twice"},
		{"bad level", "fiscalias:\n  - id: 1\n    nombre: A\nlog:\n  level: loud\n", "config.log.level"},
		{"bad base path", "fiscalias:\n  - id: 1\n    nombre: A\nserver:\n  base_path: api\n", "base_path"},
		{"bad webhook", "fiscalias:\n  - id: 1\n    nombre: A\nwebhooks:\n  - url: ftp://x\n", "invalid url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFromYAMLSyntaxError(t *testing.T) {
	_, err := FromYAML([]byte("fiscalias: [\n"))
	assert.ErrorContains(t, err, "invalid config yaml")
}
