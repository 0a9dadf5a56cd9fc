package poolconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagecache/internal/poolconfig"
	"github.com/tuannm99/pagecache/internal/replacement"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesPoolConfig(t *testing.T) {
	path := writeConfig(t, `
pool:
  page_file: /data/db.page
  num_frames: 64
  strategy: lru
`)

	cfg, err := poolconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/db.page", cfg.Pool.PageFile)
	require.Equal(t, 64, cfg.Pool.NumFrames)
	require.Equal(t, replacement.LRU, cfg.Strategy())
}

func TestStrategyDefaultsToFIFO(t *testing.T) {
	path := writeConfig(t, `
pool:
  page_file: /data/db.page
  num_frames: 8
  strategy: not-a-real-strategy
`)

	cfg, err := poolconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, replacement.FIFO, cfg.Strategy())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := poolconfig.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
