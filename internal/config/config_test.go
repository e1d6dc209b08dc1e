package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, path, err := Load(context.Background(), LoadOptions{SearchDir: t.TempDir()})
	require.NoError(t, err)

	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig(), cfg)

	layout := cfg.Layout()
	assert.Equal(t, "assets", layout.Assets)
	assert.Equal(t, filepath.Join("public", "assets"), layout.PublicAssets)
	assert.Equal(t, filepath.Join("var", "asset-manifest.json"), layout.Manifest)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	content := `
root: /srv/site
paths:
  build: /tmp/assetpipe-build
manifest:
  driver: sqlite
compile:
  always: true
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assetpipe.yaml"), []byte(content), 0o644))

	cfg, path, err := Load(context.Background(), LoadOptions{SearchDir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "assetpipe.yaml"), path)
	assert.True(t, cfg.Compile.Always)
	assert.True(t, cfg.Compile.Minify, "unset keys keep their defaults")
	assert.Equal(t, log.DebugLevel, cfg.LogLevel())

	layout := cfg.Layout()
	assert.Equal(t, "/srv/site/assets", layout.Assets)
	assert.Equal(t, "/tmp/assetpipe-build", layout.Build)
	assert.Equal(t, "/srv/site/var/asset-manifest.db", layout.Manifest)
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		_, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.yaml")})
		require.Error(t, err)
	})

	t.Run("Used exclusively", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("manifest:\n  path: state/manifest.json\n"), 0o644))

		cfg, used, err := Load(context.Background(), LoadOptions{ConfigFilePath: path})
		require.NoError(t, err)
		assert.Equal(t, path, used)
		assert.Equal(t, filepath.Join("state", "manifest.json"), cfg.ManifestPath())
	})
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ASSETPIPE_MANIFEST_DRIVER", "sqlite")
	t.Setenv("ASSETPIPE_LOG_LEVEL", "warn")
	t.Setenv("ASSETPIPE_COMPILE_MINIFY", "false")

	cfg, _, err := Load(context.Background(), LoadOptions{SearchDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Manifest.Driver)
	assert.Equal(t, log.WarnLevel, cfg.LogLevel())
	assert.False(t, cfg.Compile.Minify)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Unknown driver", func(c *Config) { c.Manifest.Driver = "redis" }},
		{"Unknown level", func(c *Config) { c.Log.Level = "loud" }},
		{"Empty path", func(c *Config) { c.Paths.Build = " " }},
		{"Public assets outside public", func(c *Config) { c.Paths.PublicAssets = "static" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Load(ctx, LoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
