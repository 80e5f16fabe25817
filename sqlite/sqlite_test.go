package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	e := NewMemory()
	assert.Equal(t, "sqlite", e.Name())

	db, err := e.Open(ctx)
	require.NoError(t, err)
	again, err := e.Open(ctx)
	require.NoError(t, err)
	assert.Same(t, db, again)

	_, err = db.ExecContext(ctx, `CREATE TABLE t (`+Dialect{}.PrimaryKey()+`, v TEXT)`)
	require.NoError(t, err)
	id, err := Dialect{}.InsertID(ctx, db, `INSERT INTO t (v) VALUES (?)`, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	id, err = Dialect{}.InsertID(ctx, db, `INSERT INTO t (v) VALUES (?)`, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	var concat string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT `+Dialect{}.ConcatParam("v")+` FROM t WHERE id = 2`, "x").Scan(&concat))
	assert.Equal(t, "xb", concat)

	require.NoError(t, e.Close())
	require.NoError(t, e.Remove())
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bench.db")
	e := NewFile(path)
	assert.Equal(t, "sqlite-file", e.Name())

	db, err := e.Open(ctx)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.FileExists(t, path)

	// reopened databases keep their tables until removed
	db, err = e.Open(ctx)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (v) VALUES (1)`)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.NoError(t, e.Remove())
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+"-wal")
	require.NoError(t, e.Remove())
}
