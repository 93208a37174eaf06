package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gzip", cfg.Tools.Gzip)
	assert.Equal(t, "gunzip", cfg.Tools.Gunzip)
	assert.Equal(t, "matlab-spm8", cfg.Tools.Matlab)
	assert.Equal(t, 1, cfg.Processing.Jobs)
	assert.Equal(t, "u", cfg.Realign.Prefix)
	assert.Equal(t, 50.0, cfg.Motion.Radius)
	assert.Zero(t, cfg.Acquisition.TR)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsfmri.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  matlab: /opt/matlab/bin/matlab -nojvm
acquisition:
  tr: 2.2
processing:
  jobs: 4
realign:
  quality: 0.75
  wrap: [0, 1, 0]
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/matlab/bin/matlab -nojvm", cfg.Tools.Matlab)
	assert.Equal(t, "gzip", cfg.Tools.Gzip, "unset keys keep their defaults")
	assert.Equal(t, 2.2, cfg.Acquisition.TR)
	assert.Equal(t, 4, cfg.ZipOptions().Jobs)
	assert.Equal(t, 0.75, cfg.Realign.Quality)
	assert.Equal(t, [3]int{0, 1, 0}, cfg.Realign.Wrap)
	assert.Equal(t, "u", cfg.Realign.Prefix)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsfmri.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rsfmri.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
