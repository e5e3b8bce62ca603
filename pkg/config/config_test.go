package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := LoadDefaults()
	assert.Equal(t, "http", cfg.Scheme)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 7474, cfg.Port)
	assert.Equal(t, "text", cfg.Format)
	assert.Empty(t, cfg.User)
	assert.Empty(t, cfg.Password)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("GRAPHTOOL_HOST", "graph.internal")
	t.Setenv("GRAPHTOOL_PORT", "8484")
	t.Setenv("GRAPHTOOL_USER", "neo")
	t.Setenv("GRAPHTOOL_FORMAT", "json")

	cfg := LoadFromEnv(LoadDefaults())
	assert.Equal(t, "graph.internal", cfg.Host)
	assert.Equal(t, 8484, cfg.Port)
	assert.Equal(t, "neo", cfg.User)
	assert.Equal(t, "json", cfg.Format)
	// Untouched settings keep their defaults.
	assert.Equal(t, "http", cfg.Scheme)
}

func TestLoadFromEnv_BadIntIgnored(t *testing.T) {
	t.Setenv("GRAPHTOOL_PORT", "not-a-port")
	cfg := LoadFromEnv(LoadDefaults())
	assert.Equal(t, 7474, cfg.Port)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphtool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"scheme: https\nhost: graph.example.org\nport: 7473\nformat: csv\n"), 0600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, "graph.example.org", cfg.Host)
	assert.Equal(t, 7473, cfg.Port)
	assert.Equal(t, "csv", cfg.Format)
}

func TestLoadFromFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, LoadDefaults(), cfg)
}

func TestLoadFromFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphtool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheme: [broken"), 0600))
	_, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := LoadDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Scheme = "bolt"
	assert.Error(t, cfg.Validate())

	cfg = LoadDefaults()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}
