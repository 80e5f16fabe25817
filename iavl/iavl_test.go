package iavl

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree_bench/common"
)

func results(engine string, ms float64) *common.Results {
	r := common.NewResults([]string{"Inserts"}, []string{"TB MP"}, []string{engine})
	r.Add(common.Cell{Test: "Inserts", Model: "TB MP", Engine: engine}, ms)
	return r
}

func TestArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := Open(path)
	require.NoError(t, err)

	v1, err := a.Save("20240102", results("sqlite", 10))
	require.NoError(t, err)
	v2, err := a.Save("20240101", results("dolt", 20))
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	entry, err := a.Load("20240102")
	require.NoError(t, err)
	assert.Equal(t, "20240102", entry.Session)
	assert.Equal(t, v1, entry.Version)
	assert.Equal(t, []string{"sqlite"}, entry.Results.Engines)
	mean, ok := entry.Results.Mean(common.Cell{Test: "Inserts", Model: "TB MP", Engine: "sqlite"})
	assert.True(t, ok)
	assert.Equal(t, 10.0, mean)

	_, err = a.Load("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.NoError(t, a.Close())

	// reopened archives keep every session, listed by name
	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()
	entries, err := a.Sessions()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "20240101", entries[0].Session)
	assert.Equal(t, "20240102", entries[1].Session)
	assert.Equal(t, []string{"dolt"}, entries[0].Results.Engines)
}

func TestArchiveReplace(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Save("s", results("sqlite", 10))
	require.NoError(t, err)
	v, err := a.Save("s", results("sqlite", 30))
	require.NoError(t, err)

	entries, err := a.Sessions()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, v, entries[0].Version)
	mean, _ := entries[0].Results.Mean(common.Cell{Test: "Inserts", Model: "TB MP", Engine: "sqlite"})
	assert.Equal(t, 30.0, mean)

	_, err = a.Save("", results("sqlite", 1))
	assert.Error(t, err)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("run0"), prefixEnd("run/"))
}
