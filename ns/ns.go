// Package ns stores trees as nested sets. Each root owns a tree_id and
// every node covers the [lft, rgt] interval of its subtree.
package ns

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"tree_bench/tree"
)

var Strategy = tree.Strategy{Key: "ns", Name: "TB NS", New: New}

type Tree struct {
	d      tree.Dialect
	sorted bool
	table  string
}

var _ tree.Tree = (*Tree)(nil)

func New(d tree.Dialect, sorted bool) tree.Tree {
	table := "tb_ns_node"
	if sorted {
		table = "tb_ns_sorted_node"
	}
	return &Tree{d: d, sorted: sorted, table: table}
}

type row struct {
	id     tree.NodeID
	treeID int
	lft    int
	rgt    int
	depth  int
	label  string
}

func (r row) width() int { return r.rgt - r.lft + 1 }

func (r row) contains(o row) bool {
	return r.treeID == o.treeID && o.lft >= r.lft && o.rgt <= r.rgt
}

func (t *Tree) Table() string { return t.table }

func (t *Tree) q(query string) string {
	return t.d.Rebind(strings.ReplaceAll(query, "{table}", t.table))
}

func (t *Tree) CreateSchema(ctx context.Context, ex tree.Executor) error {
	stmts := []string{
		`DROP TABLE IF EXISTS {table}`,
		`CREATE TABLE {table} (
			` + t.d.PrimaryKey() + `,
			tree_id INTEGER NOT NULL,
			lft INTEGER NOT NULL,
			rgt INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			label VARCHAR(255) NOT NULL
		)`,
		`CREATE INDEX {table}_tree_id ON {table} (tree_id)`,
		`CREATE INDEX {table}_lft ON {table} (lft)`,
		`CREATE INDEX {table}_rgt ON {table} (rgt)`,
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, t.q(stmt)); err != nil {
			return errors.Wrapf(err, "create schema %s", t.table)
		}
	}
	return nil
}

func (t *Tree) AddRoot(ctx context.Context, ex tree.Executor, label string) (tree.NodeID, error) {
	var last sql.NullInt64
	if err := ex.QueryRowContext(ctx, t.q(`SELECT MAX(tree_id) FROM {table}`)).Scan(&last); err != nil {
		return 0, errors.Wrap(err, "query last tree")
	}
	treeID := int(last.Int64) + 1
	if t.sorted {
		var next sql.NullInt64
		err := ex.QueryRowContext(ctx, t.q(`SELECT MIN(tree_id) FROM {table} WHERE depth = 1 AND label > ?`), label).Scan(&next)
		if err != nil {
			return 0, errors.Wrap(err, "query next root")
		}
		if next.Valid {
			treeID = int(next.Int64)
			if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET tree_id = tree_id + 1 WHERE tree_id >= ?`), treeID); err != nil {
				return 0, errors.Wrap(err, "shift trees")
			}
		}
	}
	return t.insert(ctx, ex, treeID, 1, 1, label)
}

func (t *Tree) AddChild(ctx context.Context, ex tree.Executor, parent tree.NodeID, label string) (tree.NodeID, error) {
	p, err := t.get(ctx, ex, parent)
	if err != nil {
		return 0, err
	}
	pos, err := t.childPosition(ctx, ex, p, label)
	if err != nil {
		return 0, err
	}
	if err := t.openGap(ctx, ex, p.treeID, pos, 2); err != nil {
		return 0, err
	}
	return t.insert(ctx, ex, p.treeID, pos, p.depth+1, label)
}

func (t *Tree) Get(ctx context.Context, ex tree.Executor, id tree.NodeID) (tree.Node, error) {
	r, err := t.get(ctx, ex, id)
	if err != nil {
		return tree.Node{}, err
	}
	return tree.Node{ID: r.id, Label: r.label, Depth: r.depth}, nil
}

func (t *Tree) Children(ctx context.Context, ex tree.Executor, id tree.NodeID) ([]tree.Node, error) {
	p, err := t.get(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx,
		t.q(`SELECT id, label, depth FROM {table} WHERE tree_id = ? AND lft > ? AND rgt < ? AND depth = ? ORDER BY lft`),
		p.treeID, p.lft, p.rgt, p.depth+1)
	if err != nil {
		return nil, errors.Wrap(err, "query children")
	}
	return tree.ScanNodes(rows)
}

func (t *Tree) Descendants(ctx context.Context, ex tree.Executor, id tree.NodeID) ([]tree.Node, error) {
	p, err := t.get(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx,
		t.q(`SELECT id, label, depth FROM {table} WHERE tree_id = ? AND lft > ? AND rgt < ? ORDER BY lft`),
		p.treeID, p.lft, p.rgt)
	if err != nil {
		return nil, errors.Wrap(err, "query descendants")
	}
	return tree.ScanNodes(rows)
}

func (t *Tree) Count(ctx context.Context, ex tree.Executor) (int, error) {
	return tree.Count(ctx, ex, t.table)
}

// Move opens a gap at the destination, shifts the subtree into it and
// closes the hole it left behind.
func (t *Tree) Move(ctx context.Context, ex tree.Executor, id, parent tree.NodeID) error {
	n, err := t.get(ctx, ex, id)
	if err != nil {
		return err
	}
	target, err := t.get(ctx, ex, parent)
	if err != nil {
		return err
	}
	if n.contains(target) {
		return errors.Wrapf(tree.ErrInvalidMove, "node %d below %d", parent, id)
	}
	if t.sorted && target.depth == n.depth-1 && target.contains(n) {
		return nil
	}

	pos, err := t.childPosition(ctx, ex, target, n.label)
	if err != nil {
		return err
	}
	w := n.width()
	if err := t.openGap(ctx, ex, target.treeID, pos, w); err != nil {
		return err
	}
	if n, err = t.get(ctx, ex, id); err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		t.q(`UPDATE {table} SET tree_id = ?, lft = lft + ?, rgt = rgt + ?, depth = depth + ?
			WHERE tree_id = ? AND lft BETWEEN ? AND ?`),
		target.treeID, pos-n.lft, pos-n.lft, target.depth+1-n.depth,
		n.treeID, n.lft, n.rgt)
	if err != nil {
		return errors.Wrap(err, "move subtree")
	}
	return t.closeGap(ctx, ex, n.treeID, n.rgt, w)
}

func (t *Tree) Delete(ctx context.Context, ex tree.Executor, id tree.NodeID) error {
	n, err := t.get(ctx, ex, id)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, t.q(`DELETE FROM {table} WHERE tree_id = ? AND lft BETWEEN ? AND ?`), n.treeID, n.lft, n.rgt)
	if err != nil {
		return errors.Wrap(err, "delete subtree")
	}
	return t.closeGap(ctx, ex, n.treeID, n.rgt, n.width())
}

func (t *Tree) get(ctx context.Context, ex tree.Executor, id tree.NodeID) (row, error) {
	var r row
	err := ex.QueryRowContext(ctx, t.q(`SELECT id, tree_id, lft, rgt, depth, label FROM {table} WHERE id = ?`), id).
		Scan(&r.id, &r.treeID, &r.lft, &r.rgt, &r.depth, &r.label)
	if err != nil {
		return row{}, tree.NotFound(err, id)
	}
	return r, nil
}

func (t *Tree) insert(ctx context.Context, ex tree.Executor, treeID, lft, depth int, label string) (tree.NodeID, error) {
	return t.d.InsertID(ctx, ex,
		t.q(`INSERT INTO {table} (tree_id, lft, rgt, depth, label) VALUES (?, ?, ?, ?, ?)`),
		treeID, lft, lft+1, depth, label)
}

// childPosition is the lft a new child of p labelled label takes: the end
// of p for unsorted models, otherwise the lft of the first child whose
// label sorts after it.
func (t *Tree) childPosition(ctx context.Context, ex tree.Executor, p row, label string) (int, error) {
	if !t.sorted {
		return p.rgt, nil
	}
	var pos sql.NullInt64
	err := ex.QueryRowContext(ctx,
		t.q(`SELECT MIN(lft) FROM {table} WHERE tree_id = ? AND lft > ? AND rgt < ? AND depth = ? AND label > ?`),
		p.treeID, p.lft, p.rgt, p.depth+1, label).Scan(&pos)
	if err != nil {
		return 0, errors.Wrap(err, "query insert position")
	}
	if pos.Valid {
		return int(pos.Int64), nil
	}
	return p.rgt, nil
}

// openGap makes w free positions starting at pos.
func (t *Tree) openGap(ctx context.Context, ex tree.Executor, treeID, pos, w int) error {
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET lft = lft + ? WHERE tree_id = ? AND lft >= ?`), w, treeID, pos); err != nil {
		return errors.Wrap(err, "open gap (lft)")
	}
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET rgt = rgt + ? WHERE tree_id = ? AND rgt >= ?`), w, treeID, pos); err != nil {
		return errors.Wrap(err, "open gap (rgt)")
	}
	return nil
}

// closeGap removes the w positions that ended at rgt.
func (t *Tree) closeGap(ctx context.Context, ex tree.Executor, treeID, rgt, w int) error {
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET lft = lft - ? WHERE tree_id = ? AND lft > ?`), w, treeID, rgt); err != nil {
		return errors.Wrap(err, "close gap (lft)")
	}
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET rgt = rgt - ? WHERE tree_id = ? AND rgt > ?`), w, treeID, rgt); err != nil {
		return errors.Wrap(err, "close gap (rgt)")
	}
	return nil
}
