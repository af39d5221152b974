package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
server:
  port: 9010
  host: "0.0.0.0"
  read_timeout: 30s
  write_timeout: 30s
  max_header_bytes: 1048576

security:
  aes_key_hex: "0011223344556677889900112233445566778899001122334455667788990011"
  expected_magic: "MAGIC\0\0\0"
  max_upload_bytes: 524288000

storage:
  bucket_dir: "/tmp/blobserve-bucket"

integrity_worker:
  enabled: true
  interval: 1h

logging:
  level: "info"
  path: "/tmp/blobserve.log"
  max_size_mb: 50
  max_backups: 3
  max_age_days: 14
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9010, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/tmp/blobserve-bucket", cfg.Storage.BucketDir)
	assert.True(t, cfg.Integrity.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsShortAESKey(t *testing.T) {
	path := writeTestConfig(t)

	shortKeyYAML := `
server:
  port: 9010
  host: "0.0.0.0"
  read_timeout: 30s
  write_timeout: 30s
  max_header_bytes: 1048576

security:
  aes_key_hex: "deadbeef"
  expected_magic: "MAGIC\0\0\0"
  max_upload_bytes: 1024

storage:
  bucket_dir: "/tmp/blobserve-bucket"

integrity_worker:
  enabled: false
  interval: 1h

logging:
  level: "info"
  path: "/tmp/blobserve.log"
  max_size_mb: 50
  max_backups: 3
  max_age_days: 14
`
	require.NoError(t, os.WriteFile(path, []byte(shortKeyYAML), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
