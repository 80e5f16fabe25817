package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Nodes)
	assert.Equal(t, DefaultCVThreshold, cfg.CVThreshold)
	assert.Equal(t, "rst", cfg.Format)
	assert.Equal(t, DefaultEngines, cfg.EngineNames())
	assert.NoError(t, cfg.Validate())

	w := cfg.Workload()
	assert.Equal(t, 10, w.Roots)
	assert.Equal(t, 100, w.Moves)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/env")
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodes: 500
moves: 20
seed: 9
max_trials: 10
min_trials: 3
timeout: 90s
models: [mp, ns-sorted]
postgres:
  - name: pg16
    dsn: postgres://localhost/bench
format: csv
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Nodes)
	assert.Equal(t, 20, cfg.Moves)
	assert.Equal(t, uint64(9), cfg.Seed)
	assert.Equal(t, 10, cfg.MaxTrials)
	assert.Equal(t, 3, cfg.MinTrials)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"mp", "ns-sorted"}, cfg.Models)
	assert.Equal(t, "csv", cfg.Format)
	assert.Equal(t, []string{"sqlite", "sqlite-file", "dolt", "pg16", "postgres"}, cfg.EngineNames())

	dsn, ok := cfg.PostgresDSN("postgres")
	assert.True(t, ok)
	assert.Equal(t, "postgres://localhost/env", dsn)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: [1"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestAddPostgres(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddPostgres(map[string]string{"pg2": "dsn2", "pg1": "dsn1"})
	cfg.AddPostgres(map[string]string{"pg1": "dsn1b"})
	assert.Equal(t, []Target{{"pg1", "dsn1b"}, {"pg2", "dsn2"}}, cfg.Postgres)

	cfg.Engines = []string{"pg2"}
	assert.Equal(t, []string{"pg2"}, cfg.EngineNames())
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"nodes":   func(c *Config) { c.Nodes = 0 },
		"trials":  func(c *Config) { c.MinTrials, c.MaxTrials = 5, 2 },
		"cv":      func(c *Config) { c.CVThreshold = 0 },
		"timeout": func(c *Config) { c.Timeout = 0 },
		"format":  func(c *Config) { c.Format = "html" },
		"shadow":  func(c *Config) { c.Postgres = []Target{{Name: "sqlite", DSN: "x"}} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkDir = "/work"
	cfg.ResultDir = "/out"
	cfg.SessionID = "s1"
	assert.Equal(t, filepath.Join("/work", "tree_bench-dolt.db"), cfg.DatabasePath("dolt"))
	assert.Equal(t, filepath.Join("/out", "s1-results.csv"), cfg.ResultFile("results"))
	assert.Equal(t, filepath.Join("/out", "tree_bench-archive.db"), cfg.ArchivePath())
	cfg.Archive = "/archive"
	assert.Equal(t, "/archive", cfg.ArchivePath())
}

func TestCreateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	abs, err := CreateDirectory(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
	assert.DirExists(t, abs)

	require.NoError(t, os.WriteFile(filepath.Join(abs, "f"), make([]byte, 100), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "..", "g"), make([]byte, 20), 0644))
	assert.Equal(t, int64(100), FileOrDirectorySize(abs))
	assert.Equal(t, int64(120), FileOrDirectorySize(filepath.Dir(abs)))
	assert.Equal(t, int64(20), FileOrDirectorySize(filepath.Join(dir, "..", "g")))
	assert.Zero(t, FileOrDirectorySize(filepath.Join(dir, "missing")))
}
