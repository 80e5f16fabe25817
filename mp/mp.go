// Package mp stores trees as materialized paths: every node carries the
// concatenated steps of its ancestors, so a subtree is a path prefix.
package mp

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"tree_bench/tree"
)

const (
	StepLen  = 4
	PathLen  = 255
	MaxDepth = PathLen / StepLen
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// 36^4 - 1
const maxStep = 1679615

var Strategy = tree.Strategy{Key: "mp", Name: "TB MP", New: New}

type Tree struct {
	d      tree.Dialect
	sorted bool
	table  string
}

var _ tree.Tree = (*Tree)(nil)

func New(d tree.Dialect, sorted bool) tree.Tree {
	table := "tb_mp_node"
	if sorted {
		table = "tb_mp_sorted_node"
	}
	return &Tree{d: d, sorted: sorted, table: table}
}

type row struct {
	id       tree.NodeID
	path     string
	depth    int
	numchild int
	label    string
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
			path ` + t.d.BinaryVarchar(PathLen) + ` NOT NULL UNIQUE,
			depth INTEGER NOT NULL,
			numchild INTEGER NOT NULL DEFAULT 0,
			label VARCHAR(255) NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, t.q(stmt)); err != nil {
			return errors.Wrapf(err, "create schema %s", t.table)
		}
	}
	return nil
}

func (t *Tree) AddRoot(ctx context.Context, ex tree.Executor, label string) (tree.NodeID, error) {
	path, err := t.childPath(ctx, ex, "", 1, label)
	if err != nil {
		return 0, err
	}
	return t.insert(ctx, ex, path, 1, label)
}

func (t *Tree) AddChild(ctx context.Context, ex tree.Executor, parent tree.NodeID, label string) (tree.NodeID, error) {
	p, err := t.get(ctx, ex, parent)
	if err != nil {
		return 0, err
	}
	path, err := t.childPath(ctx, ex, p.path, p.depth+1, label)
	if err != nil {
		return 0, err
	}
	id, err := t.insert(ctx, ex, path, p.depth+1, label)
	if err != nil {
		return 0, err
	}
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET numchild = numchild + 1 WHERE id = ?`), p.id); err != nil {
		return 0, errors.Wrap(err, "update numchild")
	}
	return id, nil
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
	rows, err := ex.QueryContext(ctx, t.q(`SELECT id, label, depth FROM {table} WHERE path LIKE ? AND depth = ? ORDER BY path`),
		p.path+"%", p.depth+1)
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
	rows, err := ex.QueryContext(ctx, t.q(`SELECT id, label, depth FROM {table} WHERE path LIKE ? AND depth > ? ORDER BY path`),
		p.path+"%", p.depth)
	if err != nil {
		return nil, errors.Wrap(err, "query descendants")
	}
	return tree.ScanNodes(rows)
}

func (t *Tree) Count(ctx context.Context, ex tree.Executor) (int, error) {
	return tree.Count(ctx, ex, t.table)
}

func (t *Tree) Move(ctx context.Context, ex tree.Executor, id, parent tree.NodeID) error {
	n, err := t.get(ctx, ex, id)
	if err != nil {
		return err
	}
	target, err := t.get(ctx, ex, parent)
	if err != nil {
		return err
	}
	if strings.HasPrefix(target.path, n.path) {
		return errors.Wrapf(tree.ErrInvalidMove, "node %d below %d", parent, id)
	}
	if t.sorted && parentPath(n.path) == target.path {
		return nil
	}

	var deepest int
	if err := ex.QueryRowContext(ctx, t.q(`SELECT MAX(depth) FROM {table} WHERE path LIKE ?`), n.path+"%").Scan(&deepest); err != nil {
		return errors.Wrap(err, "query subtree depth")
	}
	delta := target.depth + 1 - n.depth
	if deepest+delta > MaxDepth {
		return errors.Wrapf(tree.ErrTreeTooDeep, "moving %d below %d", id, parent)
	}

	newPath, err := t.childPath(ctx, ex, target.path, target.depth+1, n.label)
	if err != nil {
		return err
	}
	if t.sorted {
		// making room under target may have shifted the node itself
		if n, err = t.get(ctx, ex, id); err != nil {
			return err
		}
	}

	_, err = ex.ExecContext(ctx,
		t.q(`UPDATE {table} SET path = `+t.d.ConcatParam("SUBSTR(path, ?)")+`, depth = depth + ? WHERE path LIKE ?`),
		newPath, len(n.path)+1, delta, n.path+"%")
	if err != nil {
		return errors.Wrap(err, "move subtree")
	}
	if n.depth > 1 {
		if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET numchild = numchild - 1 WHERE path = ?`), parentPath(n.path)); err != nil {
			return errors.Wrap(err, "update old parent")
		}
	}
	if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET numchild = numchild + 1 WHERE id = ?`), target.id); err != nil {
		return errors.Wrap(err, "update new parent")
	}
	return nil
}

func (t *Tree) Delete(ctx context.Context, ex tree.Executor, id tree.NodeID) error {
	n, err := t.get(ctx, ex, id)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, t.q(`DELETE FROM {table} WHERE path LIKE ?`), n.path+"%"); err != nil {
		return errors.Wrap(err, "delete subtree")
	}
	if n.depth > 1 {
		if _, err := ex.ExecContext(ctx, t.q(`UPDATE {table} SET numchild = numchild - 1 WHERE path = ?`), parentPath(n.path)); err != nil {
			return errors.Wrap(err, "update parent")
		}
	}
	return nil
}

func (t *Tree) get(ctx context.Context, ex tree.Executor, id tree.NodeID) (row, error) {
	var r row
	err := ex.QueryRowContext(ctx, t.q(`SELECT id, path, depth, numchild, label FROM {table} WHERE id = ?`), id).
		Scan(&r.id, &r.path, &r.depth, &r.numchild, &r.label)
	if err != nil {
		return row{}, tree.NotFound(err, id)
	}
	return r, nil
}

func (t *Tree) insert(ctx context.Context, ex tree.Executor, path string, depth int, label string) (tree.NodeID, error) {
	return t.d.InsertID(ctx, ex, t.q(`INSERT INTO {table} (path, depth, numchild, label) VALUES (?, ?, 0, ?)`), path, depth, label)
}

// childPath picks the path of a new node labelled label at depth below
// prefix.
func (t *Tree) childPath(ctx context.Context, ex tree.Executor, prefix string, depth int, label string) (string, error) {
	if depth > MaxDepth {
		return "", errors.Wrapf(tree.ErrTreeTooDeep, "depth %d", depth)
	}
	if t.sorted {
		return t.sortedPath(ctx, ex, prefix, depth, label)
	}
	return t.nextPath(ctx, ex, prefix, depth)
}

// nextPath is the step after the last child of prefix.
func (t *Tree) nextPath(ctx context.Context, ex tree.Executor, prefix string, depth int) (string, error) {
	var last sql.NullString
	err := ex.QueryRowContext(ctx, t.q(`SELECT MAX(path) FROM {table} WHERE path LIKE ? AND depth = ?`), prefix+"%", depth).Scan(&last)
	if err != nil {
		return "", errors.Wrap(err, "query last child")
	}
	step := 1
	if last.Valid {
		n, err := decodeStep(lastStep(last.String))
		if err != nil {
			return "", err
		}
		step = n + 1
	}
	s, err := encodeStep(step)
	if err != nil {
		return "", errors.Wrapf(err, "below %q", prefix)
	}
	return prefix + s, nil
}

// sortedPath frees the slot of the first sibling whose label sorts after
// label. The consecutive run of siblings starting there moves one step to
// the right, last one first, so paths never collide.
func (t *Tree) sortedPath(ctx context.Context, ex tree.Executor, prefix string, depth int, label string) (string, error) {
	rows, err := ex.QueryContext(ctx, t.q(`SELECT path FROM {table} WHERE path LIKE ? AND depth = ? AND label > ? ORDER BY path`),
		prefix+"%", depth, label)
	if err != nil {
		return "", errors.Wrap(err, "query right siblings")
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return "", errors.Wrap(err, "scan sibling")
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "iterate siblings")
	}
	if len(paths) == 0 {
		return t.nextPath(ctx, ex, prefix, depth)
	}

	steps := make([]int, len(paths))
	for i, p := range paths {
		if steps[i], err = decodeStep(lastStep(p)); err != nil {
			return "", err
		}
	}
	end := 0
	for end+1 < len(steps) && steps[end+1] == steps[end]+1 {
		end++
	}
	shift := t.q(`UPDATE {table} SET path = ` + t.d.ConcatParam("SUBSTR(path, ?)") + ` WHERE path LIKE ?`)
	for i := end; i >= 0; i-- {
		s, err := encodeStep(steps[i] + 1)
		if err != nil {
			return "", errors.Wrapf(err, "below %q", prefix)
		}
		if _, err := ex.ExecContext(ctx, shift, prefix+s, len(paths[i])+1, paths[i]+"%"); err != nil {
			return "", errors.Wrap(err, "shift sibling")
		}
	}
	return paths[0], nil
}

func encodeStep(n int) (string, error) {
	if n < 1 || n > maxStep {
		return "", tree.ErrPathOverflow
	}
	b := make([]byte, StepLen)
	for i := StepLen - 1; i >= 0; i-- {
		b[i] = alphabet[n%len(alphabet)]
		n /= len(alphabet)
	}
	return string(b), nil
}

func decodeStep(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		k := strings.IndexByte(alphabet, s[i])
		if k < 0 {
			return 0, errors.Errorf("invalid path step %q", s)
		}
		n = n*len(alphabet) + k
	}
	return n, nil
}

func lastStep(path string) string {
	return path[len(path)-StepLen:]
}

func parentPath(path string) string {
	return path[:len(path)-StepLen]
}
