package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "X-Org-ID", cfg.Auth.OrgHeader)
	assert.Equal(t, "0 1 * * *", cfg.Worker.OverdueCron)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("SERVER_PORT=9090\nUPLOADS_TTL=2h\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("UPLOADS_TTL")
	})
	t.Setenv("DATABASE_URL", "postgres://localhost/rental")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Uploads.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestProcessEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("REDIS_DB=3\n"), 0o600))
	t.Setenv("REDIS_DB", "5")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Redis.DB)
}
