package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, path string) AppConfig {
	t.Helper()

	v, err := Load(path)
	require.NoError(t, err)

	var cfg AppConfig
	require.NoError(t, decode(v, &cfg))

	return cfg
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, SQLite, cfg.DB.Type)
	assert.Equal(t, StorageLocal, cfg.Storage.Type)
	assert.Equal(t, 24*time.Hour, cfg.Lifecycle.GetTTL())
	assert.Equal(t, DefaultRetentionDays, cfg.Lifecycle.RetentionDays)
	assert.Equal(t, DefaultTokenLength, cfg.Lifecycle.TokenLength)
	assert.Equal(t, "memory", cfg.KV.GetKVType())
	assert.Equal(t, MQTypeGoChannel, cfg.MQ.GetMQType())
	assert.Equal(t, int64(100<<20), cfg.Lifecycle.GetMaxUploadBytes())
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9090
lifecycle:
  ttl_seconds: 60
  retention_days: 7
storage:
  type: local
  local:
    root: /var/lib/dropvault
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg := loadFrom(t, dir)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Lifecycle.GetTTL())
	assert.Equal(t, 7, cfg.Lifecycle.RetentionDays)
	assert.Equal(t, "/var/lib/dropvault", cfg.Storage.Local.Root)
}

func TestLegacyEnvAliases(t *testing.T) {
	t.Setenv("FILE_EXPIRY_SECONDS", "120")
	t.Setenv("UPLOAD_DIR", "/tmp/uploads")

	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, int64(120), cfg.Lifecycle.TTLSeconds)
	assert.Equal(t, "/tmp/uploads", cfg.Storage.Local.Root)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("FILE_EXPIRY_SECONDS", "120")
	t.Setenv("DROPVAULT_LIFECYCLE_TTL_SECONDS", "30")

	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, int64(30), cfg.Lifecycle.TTLSeconds)
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Setenv("DROPVAULT_KV_TYPE", "memcached")

	v, err := Load(t.TempDir())
	require.NoError(t, err)

	var cfg AppConfig
	assert.Error(t, decode(v, &cfg))
}

func TestDSN(t *testing.T) {
	c := DBConfig{Type: SQLite, Database: "dv"}
	assert.Equal(t, "file:dv.db", c.GetDSN())

	c = DBConfig{Type: MySQL, User: "u", Password: "p", Host: "h", Port: 3306, Database: "d"}
	assert.Contains(t, c.GetDSN(), "loc=UTC")

	c.DSN = "explicit"
	assert.Equal(t, "explicit", c.GetDSN())
}

func TestRateLimitForUpload(t *testing.T) {
	c := RateLimitConfig{RPS: 50, Burst: 100}
	rps, burst := c.ForUpload()
	assert.InDelta(t, 50.0, rps, 0.001)
	assert.Equal(t, 100, burst)

	c.UploadRPS, c.UploadBurst = 2, 4
	rps, burst = c.ForUpload()
	assert.InDelta(t, 2.0, rps, 0.001)
	assert.Equal(t, 4, burst)
}
