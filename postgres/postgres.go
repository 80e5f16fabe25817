// Package postgres runs the benchmark on PostgreSQL servers through pgx's
// database/sql adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"tree_bench/common"
	"tree_bench/tree"
)

type Dialect struct{}

var _ tree.Dialect = Dialect{}

func (Dialect) Name() string                   { return "postgres" }
func (Dialect) Rebind(query string) string     { return tree.RebindDollar(query) }
func (Dialect) PrimaryKey() string             { return "id BIGSERIAL PRIMARY KEY" }
func (Dialect) BinaryVarchar(n int) string     { return fmt.Sprintf(`VARCHAR(%d) COLLATE "C"`, n) }
func (Dialect) ConcatParam(expr string) string { return "CAST(? AS TEXT) || " + expr }

func (Dialect) InsertID(ctx context.Context, ex tree.Executor, query string, args ...any) (tree.NodeID, error) {
	var id tree.NodeID
	if err := ex.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert")
	}
	return id, nil
}

// PostgresEngine is one named PostgreSQL target. Only the benchmark tables
// are touched; the database itself is left in place on Close.
type PostgresEngine struct {
	name string
	dsn  string
	db   *sql.DB
}

var _ common.Engine = (*PostgresEngine)(nil)

func New(name, dsn string) *PostgresEngine {
	return &PostgresEngine{name: name, dsn: dsn}
}

func (e *PostgresEngine) Name() string          { return e.name }
func (e *PostgresEngine) Dialect() tree.Dialect { return Dialect{} }
func (e *PostgresEngine) Location() string      { return "" }

func (e *PostgresEngine) Open(ctx context.Context) (*sql.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	config, err := pgx.ParseConfig(e.dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "parse dsn of %s", e.name)
	}
	db := stdlib.OpenDB(*config)
	db.SetMaxOpenConns(4)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect %s", e.name)
	}
	e.db = db
	return db, nil
}

func (e *PostgresEngine) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return errors.Wrapf(err, "close %s", e.name)
}

// Remove leaves the server untouched; every schema is dropped and
// recreated before it is used.
func (e *PostgresEngine) Remove() error {
	return nil
}
