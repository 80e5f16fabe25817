// Package tree defines the contract shared by the tree storage models
// (materialized path, adjacency list and nested sets) that the benchmark
// measures.
package tree

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrInvalidMove  = errors.New("cannot move a node below itself")
	ErrTreeTooDeep  = errors.New("tree depth exceeds the path capacity")
	ErrPathOverflow = errors.New("no free path step left under parent")
)

// NodeID is the primary key of a node row.
type NodeID = int64

// Node is one row of a model table as seen by the benchmark.
type Node struct {
	ID    NodeID
	Label string
	Depth int
}

// Executor is satisfied by both *sql.DB and *sql.Tx, which lets the same
// model code run with and without a surrounding transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Executor = (*sql.DB)(nil)
	_ Executor = (*sql.Tx)(nil)
)

// Tree is a tree storage model bound to one table.
//
// Unsorted models append new and moved nodes as the last child of their
// parent. Sorted models keep siblings ordered by label.
type Tree interface {
	Table() string
	CreateSchema(ctx context.Context, ex Executor) error

	AddRoot(ctx context.Context, ex Executor, label string) (NodeID, error)
	AddChild(ctx context.Context, ex Executor, parent NodeID, label string) (NodeID, error)

	Get(ctx context.Context, ex Executor, id NodeID) (Node, error)
	Children(ctx context.Context, ex Executor, id NodeID) ([]Node, error)
	// Descendants returns the subtree below id in pre-order, without id itself.
	Descendants(ctx context.Context, ex Executor, id NodeID) ([]Node, error)
	Count(ctx context.Context, ex Executor) (int, error)

	Move(ctx context.Context, ex Executor, id, parent NodeID) error
	Delete(ctx context.Context, ex Executor, id NodeID) error
}

// Count is the COUNT(*) helper the models share.
func Count(ctx context.Context, ex Executor, table string) (int, error) {
	var n int
	if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}

// ScanNodes reads (id, label, depth) rows.
func ScanNodes(rows *sql.Rows) ([]Node, error) {
	defer rows.Close()
	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Label, &n.Depth); err != nil {
			return nil, errors.Wrap(err, "scan node")
		}
		nodes = append(nodes, n)
	}
	return nodes, errors.Wrap(rows.Err(), "iterate nodes")
}

// NotFound maps sql.ErrNoRows to ErrNodeNotFound.
func NotFound(err error, id NodeID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNodeNotFound, "id %d", id)
	}
	return errors.Wrapf(err, "load node %d", id)
}
