package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://fabman.io/api/v1", cfg.Fabman.BaseURL)
	assert.Equal(t, 1000, cfg.Fabman.PageSize)
	assert.Equal(t, 4, cfg.Form.LookupAttempts)
	assert.Equal(t, 2*time.Second, cfg.Form.LookupBackoff)
	assert.Equal(t, "local", cfg.Export.Backend)
	assert.Equal(t, "Assigned during self sign-up", cfg.Member.PackageNote)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
fabman:
  base_url: "http://localhost:3000/api/v1/"
  page_size: 50
form:
  lookup_attempts: 0
security:
  secret_key: "${FABSIGNUP_TEST_SECRET}"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("FABSIGNUP_TEST_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	// 末尾斜杠被去掉
	assert.Equal(t, "http://localhost:3000/api/v1", cfg.Fabman.BaseURL)
	assert.Equal(t, 50, cfg.Fabman.PageSize)
	assert.Equal(t, 1, cfg.Form.LookupAttempts, "尝试次数至少为 1")
	assert.Equal(t, "s3cret", cfg.Security.SecretKey)
	assert.Same(t, cfg, Get())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
