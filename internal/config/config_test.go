package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBasePath(t *testing.T) {
	env := Env{HomeDir: "/home/steve", ExecutableDir: "/opt/craftsync/bin"}

	tests := []struct {
		name   string
		mode   Mode
		custom string
		want   string
	}{
		{name: "documents", mode: ModeDocuments, want: "/home/steve/Documents/.minecraft"},
		{name: "app local", mode: ModeAppLocal, want: "/opt/craftsync/bin/.minecraft"},
		{name: "app parent", mode: ModeAppParent, want: "/opt/craftsync/.minecraft"},
		{name: "custom", mode: ModeCustom, custom: "/data/games/mc/", want: "/data/games/mc"},
		{name: "custom ignores subdir", mode: ModeCustom, custom: "/srv/mc", want: "/srv/mc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBasePath(tt.mode, ".minecraft", tt.custom, env)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestResolveBasePathInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		custom string
		env    Env
	}{
		{name: "empty custom", mode: ModeCustom, env: Env{HomeDir: "/h"}},
		{name: "relative custom", mode: ModeCustom, custom: "games/mc"},
		{name: "unknown mode", mode: "cloud"},
		{name: "documents without home", mode: ModeDocuments},
		{name: "app local without executable", mode: ModeAppLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveBasePath(tt.mode, ".minecraft", tt.custom, tt.env)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidDirectory, apperr.KindOf(err))
		})
	}
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
storage:
  mode: custom
  custom: /srv/mc
download:
  max_attempts: 5
  backoff: 250ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModeCustom, cfg.Storage.Mode)
	assert.Equal(t, "/srv/mc", cfg.Storage.Custom)
	assert.Equal(t, 5, cfg.Download.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Download.Backoff)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched values keep their defaults
	assert.Equal(t, 10, cfg.Download.AssetBatchSize)
	assert.NotEmpty(t, cfg.Mirror.Rules)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  max_attempts: 0\n"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestEnsureLayout(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, EnsureLayout(base))
	require.NoError(t, EnsureLayout(base))

	for _, dir := range []string{LibrariesDir, VersionsDir, AssetIndexesDir, AssetObjectsDir} {
		info, err := os.Stat(filepath.Join(base, filepath.FromSlash(dir)))
		require.NoError(t, err)
		assert.True(t, info.IsDir(), dir)
	}
}
