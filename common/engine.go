package common

import (
	"context"
	"database/sql"

	"tree_bench/tree"
)

// Engine is a database the benchmark runs against.
type Engine interface {
	Name() string
	Dialect() tree.Dialect
	// Open returns the engine's database, connecting on first use.
	Open(ctx context.Context) (*sql.DB, error)
	// Location is the file or directory holding the database, empty when
	// nothing is kept on local disk.
	Location() string
	// Close disconnects. Files the engine created stay on disk.
	Close() error
	// Remove deletes any on-disk state the engine created. The engine must
	// be closed.
	Remove() error
}
