// Package doltdb runs the benchmark on an embedded Dolt database, which
// speaks the MySQL dialect and stores its tables in prolly trees.
package doltdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/dolthub/driver"
	"github.com/pkg/errors"

	"tree_bench/common"
	"tree_bench/tree"
)

const database = "treebench"

type Dialect struct{}

var _ tree.Dialect = Dialect{}

func (Dialect) Name() string                   { return "dolt" }
func (Dialect) Rebind(query string) string     { return query }
func (Dialect) PrimaryKey() string             { return "id BIGINT AUTO_INCREMENT PRIMARY KEY" }
func (Dialect) BinaryVarchar(n int) string     { return fmt.Sprintf("VARCHAR(%d) COLLATE utf8mb4_0900_bin", n) }
func (Dialect) ConcatParam(expr string) string { return "CONCAT(?, " + expr + ")" }

func (Dialect) InsertID(ctx context.Context, ex tree.Executor, query string, args ...any) (tree.NodeID, error) {
	id, err := tree.LastInsertID(ctx, ex, query, args...)
	if err != nil || id != 0 {
		return id, err
	}
	// the session holds the id when the driver result does not
	if err := ex.QueryRowContext(ctx, "SELECT LAST_INSERT_ID()").Scan(&id); err != nil {
		return 0, errors.Wrap(err, "last insert id")
	}
	return id, nil
}

type DoltDBEngine struct {
	Path string
	Db   *sql.DB
}

var _ common.Engine = (*DoltDBEngine)(nil)

func New(path string) *DoltDBEngine {
	return &DoltDBEngine{Path: path}
}

func (e *DoltDBEngine) Name() string          { return "dolt" }
func (e *DoltDBEngine) Dialect() tree.Dialect { return Dialect{} }
func (e *DoltDBEngine) Location() string      { return e.Path }

func (e *DoltDBEngine) Open(ctx context.Context) (*sql.DB, error) {
	if e.Db != nil {
		return e.Db, nil
	}
	if _, err := common.CreateDirectory(e.Path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file://%s?commitname=%s&commitemail=%s&database=%s",
		e.Path,
		url.QueryEscape("tree bench"),
		"treebench@localhost",
		database,
	)
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open doltdb")
	}
	// LAST_INSERT_ID() is per session
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE DATABASE IF NOT EXISTS `+database); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create database %s", database)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect doltdb")
	}
	e.Db = db
	return db, nil
}

func (e *DoltDBEngine) Close() error {
	if e.Db != nil {
		if err := e.Db.Close(); err != nil {
			return errors.Wrap(err, "close doltdb")
		}
		e.Db = nil
	}
	return nil
}

func (e *DoltDBEngine) Remove() error {
	if _, err := os.Stat(e.Path); err == nil {
		if err = os.RemoveAll(e.Path); err != nil {
			return errors.Wrapf(err, "remove %s", e.Path)
		}
	}
	return nil
}
