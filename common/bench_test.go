package common_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree_bench/al"
	"tree_bench/common"
	"tree_bench/mp"
	"tree_bench/ns"
	"tree_bench/sqlite"
	"tree_bench/tree"
)

func testConfig(t *testing.T) *common.Config {
	cfg := common.DefaultConfig()
	cfg.Nodes = 60
	cfg.Rounds = 1
	cfg.WorkDir = t.TempDir()
	cfg.ResultDir = t.TempDir()
	cfg.Timeout = time.Minute
	return cfg
}

func TestBenchRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinTrials = 2
	cfg.MaxTrials = 2
	path := cfg.DatabasePath(common.EngineSQLiteFile)

	var progress bytes.Buffer
	b := &common.Bench{
		Config:   cfg,
		Engines:  []common.Engine{sqlite.NewMemory(), sqlite.NewFile(path)},
		Models:   tree.Models(mp.Strategy, al.Strategy, ns.Strategy),
		Progress: &progress,
	}
	results, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Inserts", "Descendants", "Move", "Delete"}, results.Tests)
	assert.Equal(t, []string{"TB MP", "TB AL", "TB NS", "TB MP Sorted", "TB AL Sorted", "TB NS Sorted"}, results.Models)
	assert.Equal(t, []string{"sqlite", "sqlite-file"}, results.Engines)

	for _, c := range results.Cells() {
		samples := results.Samples(c)
		if c.Test == "Descendants" && c.Tx {
			assert.Empty(t, samples, "%+v", c)
			continue
		}
		assert.Len(t, samples, 2, "%+v", c)
	}
	// 4 tests x 6 models x 2 engines, less the Descendants tx column
	assert.Equal(t, 4*6*2*2-6*2, results.Measured())

	assert.Contains(t, progress.String(), "Trials")
	assert.NoFileExists(t, path)

	// only the file engine leaves anything on disk
	assert.Contains(t, b.Sizes, "sqlite-file")
	assert.Positive(t, b.Sizes["sqlite-file"])
	assert.NotContains(t, b.Sizes, "sqlite")
	assert.Contains(t, progress.String(), "Disk usage: sqlite-file ")
}

func TestBenchTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxTrials = 100
	cfg.Timeout = time.Nanosecond

	var progress bytes.Buffer
	b := &common.Bench{
		Config:   cfg,
		Engines:  []common.Engine{sqlite.NewMemory()},
		Models:   tree.Models(mp.Strategy),
		Progress: &progress,
	}
	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, progress.String(), "** TIMED OUT **")

	// the first trial always completes
	samples := results.Samples(common.Cell{Test: "Inserts", Model: "TB MP", Engine: "sqlite"})
	assert.Len(t, samples, 1)
}

func TestBenchSync(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.WorkDir, "sync.db")
	engine := sqlite.NewFile(path)
	b := &common.Bench{
		Config:   cfg,
		Engines:  []common.Engine{engine},
		Models:   tree.Models(mp.Strategy, al.Strategy, ns.Strategy),
		Progress: os.Stderr,
	}
	require.NoError(t, b.Sync(context.Background()))
	assert.FileExists(t, path)

	db, err := engine.Open(context.Background())
	require.NoError(t, err)
	defer func() {
		engine.Close()
		engine.Remove()
	}()
	for _, m := range b.Models {
		n, err := m.New(engine.Dialect()).Count(context.Background(), db)
		require.NoError(t, err, m.Name)
		assert.Zero(t, n)
	}
}

func TestTestNames(t *testing.T) {
	assert.Equal(t, []string{"Inserts", "Descendants", "Move", "Delete"}, common.TestNames())
}
