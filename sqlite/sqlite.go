// Package sqlite runs the benchmark on SQLite through the pure Go
// modernc.org/sqlite driver, either in memory or on a file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"tree_bench/common"
	"tree_bench/tree"
)

type Dialect struct{}

var _ tree.Dialect = Dialect{}

func (Dialect) Name() string                   { return "sqlite" }
func (Dialect) Rebind(query string) string     { return query }
func (Dialect) PrimaryKey() string             { return "id INTEGER PRIMARY KEY" }
func (Dialect) BinaryVarchar(n int) string     { return fmt.Sprintf("VARCHAR(%d)", n) }
func (Dialect) ConcatParam(expr string) string { return "? || " + expr }

func (Dialect) InsertID(ctx context.Context, ex tree.Executor, query string, args ...any) (tree.NodeID, error) {
	return tree.LastInsertID(ctx, ex, query, args...)
}

type SQLiteEngine struct {
	name string
	// empty for an in-memory database
	path string
	db   *sql.DB
}

var _ common.Engine = (*SQLiteEngine)(nil)

// NewMemory is SQLite held in RAM, gone once the engine is closed.
func NewMemory() *SQLiteEngine {
	return &SQLiteEngine{name: "sqlite"}
}

// NewFile is SQLite on a database file at path.
func NewFile(path string) *SQLiteEngine {
	return &SQLiteEngine{name: "sqlite-file", path: path}
}

func (e *SQLiteEngine) Name() string          { return e.name }
func (e *SQLiteEngine) Dialect() tree.Dialect { return Dialect{} }
func (e *SQLiteEngine) Location() string      { return e.path }

func (e *SQLiteEngine) Open(ctx context.Context) (*sql.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	dsn := ":memory:"
	if e.path != "" {
		dsn = "file:" + e.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", e.name)
	}
	// an in-memory database lives in a single connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect sqlite %s", e.name)
	}
	e.db = db
	return db, nil
}

func (e *SQLiteEngine) Close() error {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			return errors.Wrapf(err, "close sqlite %s", e.name)
		}
		e.db = nil
	}
	return nil
}

func (e *SQLiteEngine) Remove() error {
	if e.path == "" {
		return nil
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(e.path + suffix); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", e.path+suffix)
		}
	}
	return nil
}
