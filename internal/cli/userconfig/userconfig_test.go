package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRMDASH_CONFIG_DIR", dir)

	got, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), path)
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Setenv("CRMDASH_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &UserConfig{}, cfg)
}

func TestSelectedEndpointRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv("CRMDASH_CONFIG_DIR", dir)

	require.NoError(t, SetSelectedEndpoint("http://localhost:8080/graphql"))

	selected, err := GetSelectedEndpoint()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/graphql", selected)

	require.NoError(t, SetSelectedEndpoint(""))
	selected, err = GetSelectedEndpoint()
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestLoad_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRMDASH_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("not json"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse user config file")
}
