package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chloepilonv/mcp-server-qarnot/internal/config"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvToken, "env-token")
	t.Setenv(config.EnvClusterURL, "")
	t.Setenv(config.EnvStorageURL, "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Empty(t, cfg.ClusterURL)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvToken, "")

	_, err := config.Load("")
	require.Error(t, err)
	assert.EqualError(t, err, "QARNOT_TOKEN is not set")
}

func TestLoadFile(t *testing.T) {
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvClusterURL, "")
	t.Setenv(config.EnvStorageURL, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "token: file-token\ncluster_url: https://cluster.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, "https://cluster.example.com", cfg.ClusterURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv(config.EnvToken, "env-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: file-token\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Token)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	t.Setenv(config.EnvToken, "env-token")

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadBadYAML(t *testing.T) {
	t.Setenv(config.EnvToken, "env-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- bad"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}
