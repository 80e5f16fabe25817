// Package al stores trees as an adjacency list: every node points at its
// parent and subtrees are walked one level at a time.
package al

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"tree_bench/tree"
)

// deleteBatch caps the number of ids bound into one IN (...) list.
const deleteBatch = 500

var Strategy = tree.Strategy{Key: "al", Name: "TB AL", New: New}

type Tree struct {
	d      tree.Dialect
	sorted bool
	table  string
}

var _ tree.Tree = (*Tree)(nil)

func New(d tree.Dialect, sorted bool) tree.Tree {
	table := "tb_al_node"
	if sorted {
		table = "tb_al_sorted_node"
	}
	return &Tree{d: d, sorted: sorted, table: table}
}

type row struct {
	id       tree.NodeID
	parentID sql.NullInt64
	sibOrder int
	label    string
}

func (t *Tree) Table() string { return t.table }

func (t *Tree) q(query string) string {
	return t.d.Rebind(strings.ReplaceAll(query, "{table}", t.table))
}

func (t *Tree) order() string {
	if t.sorted {
		return "label, id"
	}
	return "sib_order, id"
}

func (t *Tree) CreateSchema(ctx context.Context, ex tree.Executor) error {
	stmts := []string{
		`DROP TABLE IF EXISTS {table}`,
		`CREATE TABLE {table} (
			` + t.d.PrimaryKey() + `,
			parent_id BIGINT NULL,
			sib_order INTEGER NOT NULL DEFAULT 0,
			label VARCHAR(255) NOT NULL
		)`,
		`CREATE INDEX {table}_parent_id ON {table} (parent_id)`,
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, t.q(stmt)); err != nil {
			return errors.Wrapf(err, "create schema %s", t.table)
		}
	}
	return nil
}

func (t *Tree) AddRoot(ctx context.Context, ex tree.Executor, label string) (tree.NodeID, error) {
	order, err := t.nextOrder(ctx, ex, sql.NullInt64{})
	if err != nil {
		return 0, err
	}
	return t.d.InsertID(ctx, ex, t.q(`INSERT INTO {table} (parent_id, sib_order, label) VALUES (NULL, ?, ?)`), order, label)
}

func (t *Tree) AddChild(ctx context.Context, ex tree.Executor, parent tree.NodeID, label string) (tree.NodeID, error) {
	if _, err := t.get(ctx, ex, parent); err != nil {
		return 0, err
	}
	order, err := t.nextOrder(ctx, ex, sql.NullInt64{Int64: parent, Valid: true})
	if err != nil {
		return 0, err
	}
	return t.d.InsertID(ctx, ex, t.q(`INSERT INTO {table} (parent_id, sib_order, label) VALUES (?, ?, ?)`), parent, order, label)
}

func (t *Tree) Get(ctx context.Context, ex tree.Executor, id tree.NodeID) (tree.Node, error) {
	r, err := t.get(ctx, ex, id)
	if err != nil {
		return tree.Node{}, err
	}
	depth, err := t.depth(ctx, ex, r)
	if err != nil {
		return tree.Node{}, err
	}
	return tree.Node{ID: r.id, Label: r.label, Depth: depth}, nil
}

func (t *Tree) Children(ctx context.Context, ex tree.Executor, id tree.NodeID) ([]tree.Node, error) {
	n, err := t.Get(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	return t.children(ctx, ex, id, n.Depth+1)
}

// Descendants walks the subtree depth first with one query per node.
func (t *Tree) Descendants(ctx context.Context, ex tree.Executor, id tree.NodeID) ([]tree.Node, error) {
	n, err := t.Get(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	var result []tree.Node
	var walk func(id tree.NodeID, depth int) error
	walk = func(id tree.NodeID, depth int) error {
		children, err := t.children(ctx, ex, id, depth)
		if err != nil {
			return err
		}
		for _, c := range children {
			result = append(result, c)
			if err := walk(c.ID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(n.ID, n.Depth+1); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *Tree) Count(ctx context.Context, ex tree.Executor) (int, error) {
	return tree.Count(ctx, ex, t.table)
}

func (t *Tree) Move(ctx context.Context, ex tree.Executor, id, parent tree.NodeID) error {
	n, err := t.get(ctx, ex, id)
	if err != nil {
		return err
	}
	// the target must not sit in the moved subtree
	cur := parent
	for {
		if cur == id {
			return errors.Wrapf(tree.ErrInvalidMove, "node %d below %d", parent, id)
		}
		r, err := t.get(ctx, ex, cur)
		if err != nil {
			return err
		}
		if !r.parentID.Valid {
			break
		}
		cur = r.parentID.Int64
	}
	if t.sorted && n.parentID.Valid && n.parentID.Int64 == parent {
		return nil
	}
	order, err := t.nextOrder(ctx, ex, sql.NullInt64{Int64: parent, Valid: true})
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET parent_id = ?, sib_order = ? WHERE id = ?`), parent, order, id); err != nil {
		return errors.Wrap(err, "move node")
	}
	return nil
}

func (t *Tree) Delete(ctx context.Context, ex tree.Executor, id tree.NodeID) error {
	if _, err := t.get(ctx, ex, id); err != nil {
		return err
	}
	ids := []tree.NodeID{id}
	level := []tree.NodeID{id}
	for len(level) > 0 {
		var next []tree.NodeID
		for start := 0; start < len(level); start += deleteBatch {
			batch := level[start:min(start+deleteBatch, len(level))]
			rows, err := ex.QueryContext(ctx, t.q(`SELECT id FROM {table} WHERE parent_id IN (`+tree.Placeholders(len(batch))+`)`), args(batch)...)
			if err != nil {
				return errors.Wrap(err, "query subtree level")
			}
			for rows.Next() {
				var c tree.NodeID
				if err := rows.Scan(&c); err != nil {
					rows.Close()
					return errors.Wrap(err, "scan child id")
				}
				next = append(next, c)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return errors.Wrap(err, "iterate subtree level")
			}
		}
		ids = append(ids, next...)
		level = next
	}
	for start := 0; start < len(ids); start += deleteBatch {
		batch := ids[start:min(start+deleteBatch, len(ids))]
		if _, err := ex.ExecContext(ctx, t.q(`DELETE FROM {table} WHERE id IN (`+tree.Placeholders(len(batch))+`)`), args(batch)...); err != nil {
			return errors.Wrap(err, "delete subtree")
		}
	}
	return nil
}

func (t *Tree) get(ctx context.Context, ex tree.Executor, id tree.NodeID) (row, error) {
	var r row
	err := ex.QueryRowContext(ctx, t.q(`SELECT id, parent_id, sib_order, label FROM {table} WHERE id = ?`), id).
		Scan(&r.id, &r.parentID, &r.sibOrder, &r.label)
	if err != nil {
		return row{}, tree.NotFound(err, id)
	}
	return r, nil
}

// depth counts the ancestors of r by following parent_id.
func (t *Tree) depth(ctx context.Context, ex tree.Executor, r row) (int, error) {
	depth := 1
	for r.parentID.Valid {
		var err error
		if r, err = t.get(ctx, ex, r.parentID.Int64); err != nil {
			return 0, err
		}
		depth++
	}
	return depth, nil
}

func (t *Tree) children(ctx context.Context, ex tree.Executor, id tree.NodeID, depth int) ([]tree.Node, error) {
	rows, err := ex.QueryContext(ctx, t.q(`SELECT id, label FROM {table} WHERE parent_id = ? ORDER BY `+t.order()), id)
	if err != nil {
		return nil, errors.Wrap(err, "query children")
	}
	defer rows.Close()
	var nodes []tree.Node
	for rows.Next() {
		n := tree.Node{Depth: depth}
		if err := rows.Scan(&n.ID, &n.Label); err != nil {
			return nil, errors.Wrap(err, "scan child")
		}
		nodes = append(nodes, n)
	}
	return nodes, errors.Wrap(rows.Err(), "iterate children")
}

// nextOrder is the sib_order of a node appended below parent. Sorted
// models order siblings by label and leave it at zero.
func (t *Tree) nextOrder(ctx context.Context, ex tree.Executor, parent sql.NullInt64) (int, error) {
	if t.sorted {
		return 0, nil
	}
	var last sql.NullInt64
	var err error
	if parent.Valid {
		err = ex.QueryRowContext(ctx, t.q(`SELECT MAX(sib_order) FROM {table} WHERE parent_id = ?`), parent.Int64).Scan(&last)
	} else {
		err = ex.QueryRowContext(ctx, t.q(`SELECT MAX(sib_order) FROM {table} WHERE parent_id IS NULL`)).Scan(&last)
	}
	if err != nil {
		return 0, errors.Wrap(err, "query last sibling")
	}
	return int(last.Int64) + 1, nil
}

func args(ids []tree.NodeID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
