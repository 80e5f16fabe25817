// Package treetest is the behaviour every tree.Tree model must share,
// runnable against any database.
package treetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree_bench/sqlite"
	"tree_bench/tree"
)

// Opener returns an empty database for one subtest.
type Opener func(t *testing.T) *sql.DB

// Memory opens a fresh in-memory SQLite database, closed with the test.
func Memory(t *testing.T) *sql.DB {
	e := sqlite.NewMemory()
	db, err := e.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return db
}

// Run checks the model returned by newTree for both ordering variants.
func Run(t *testing.T, open Opener, d tree.Dialect, newTree func(d tree.Dialect, sorted bool) tree.Tree) {
	for _, sorted := range []bool{false, true} {
		name := "unsorted"
		if sorted {
			name = "sorted"
		}
		t.Run(name, func(t *testing.T) {
			m := &modelTest{open: open, newTree: func() tree.Tree { return newTree(d, sorted) }, sorted: sorted}
			t.Run("InsertAndDescendants", m.testInsertAndDescendants)
			t.Run("Children", m.testChildren)
			t.Run("Move", m.testMove)
			t.Run("MoveSameParent", m.testMoveSameParent)
			t.Run("MoveAcrossRoots", m.testMoveAcrossRoots)
			t.Run("MoveBelowItself", m.testMoveBelowItself)
			t.Run("Delete", m.testDelete)
			t.Run("NotFound", m.testNotFound)
			t.Run("Transaction", m.testTransaction)
		})
	}
}

type modelTest struct {
	open    Opener
	newTree func() tree.Tree
	sorted  bool
}

// fixture builds
//
//	b
//	├── c
//	│   └── x
//	└── a
//
// inserting c before a, so unsorted and sorted models disagree on order.
type fixture struct {
	ctx  context.Context
	db   *sql.DB
	tr   tree.Tree
	root tree.NodeID
	ids  map[string]tree.NodeID
}

func (m *modelTest) fixture(t *testing.T) *fixture {
	ctx := context.Background()
	f := &fixture{ctx: ctx, db: m.open(t), tr: m.newTree(), ids: map[string]tree.NodeID{}}
	require.NoError(t, f.tr.CreateSchema(ctx, f.db))

	var err error
	f.root, err = f.tr.AddRoot(ctx, f.db, "b")
	require.NoError(t, err)
	f.ids["b"] = f.root
	f.add(t, "b", "c")
	f.add(t, "c", "x")
	f.add(t, "b", "a")
	return f
}

func (f *fixture) add(t *testing.T, parent, label string) {
	id, err := f.tr.AddChild(f.ctx, f.db, f.ids[parent], label)
	require.NoError(t, err)
	f.ids[label] = id
}

type entry struct {
	Label string
	Depth int
}

func (f *fixture) descendants(t *testing.T, label string) []entry {
	nodes, err := f.tr.Descendants(f.ctx, f.db, f.ids[label])
	require.NoError(t, err)
	return entries(nodes)
}

func entries(nodes []tree.Node) []entry {
	out := make([]entry, len(nodes))
	for i, n := range nodes {
		out[i] = entry{n.Label, n.Depth}
	}
	return out
}

func (m *modelTest) testInsertAndDescendants(t *testing.T) {
	f := m.fixture(t)

	count, err := f.tr.Count(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	if m.sorted {
		assert.Equal(t, []entry{{"a", 2}, {"c", 2}, {"x", 3}}, f.descendants(t, "b"))
	} else {
		assert.Equal(t, []entry{{"c", 2}, {"x", 3}, {"a", 2}}, f.descendants(t, "b"))
	}
	assert.Equal(t, []entry{{"x", 3}}, f.descendants(t, "c"))
	assert.Empty(t, f.descendants(t, "x"))

	n, err := f.tr.Get(f.ctx, f.db, f.ids["x"])
	require.NoError(t, err)
	assert.Equal(t, tree.Node{ID: f.ids["x"], Label: "x", Depth: 3}, n)
}

func (m *modelTest) testChildren(t *testing.T) {
	f := m.fixture(t)
	f.add(t, "c", "d")

	children, err := f.tr.Children(f.ctx, f.db, f.root)
	require.NoError(t, err)
	if m.sorted {
		assert.Equal(t, []entry{{"a", 2}, {"c", 2}}, entries(children))
	} else {
		assert.Equal(t, []entry{{"c", 2}, {"a", 2}}, entries(children))
	}

	children, err = f.tr.Children(f.ctx, f.db, f.ids["c"])
	require.NoError(t, err)
	if m.sorted {
		assert.Equal(t, []entry{{"d", 3}, {"x", 3}}, entries(children))
	} else {
		assert.Equal(t, []entry{{"x", 3}, {"d", 3}}, entries(children))
	}
}

func (m *modelTest) testMove(t *testing.T) {
	f := m.fixture(t)

	require.NoError(t, f.tr.Move(f.ctx, f.db, f.ids["a"], f.ids["c"]))
	if m.sorted {
		assert.Equal(t, []entry{{"c", 2}, {"a", 3}, {"x", 3}}, f.descendants(t, "b"))
	} else {
		assert.Equal(t, []entry{{"c", 2}, {"x", 3}, {"a", 3}}, f.descendants(t, "b"))
	}

	// back up under the root, then under a leaf
	require.NoError(t, f.tr.Move(f.ctx, f.db, f.ids["a"], f.root))
	require.NoError(t, f.tr.Move(f.ctx, f.db, f.ids["c"], f.ids["a"]))
	assert.Equal(t, []entry{{"a", 2}, {"c", 3}, {"x", 4}}, f.descendants(t, "b"))

	count, err := f.tr.Count(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

// moving a node under its own parent sends it last when unsorted and keeps
// it in place when sorted
func (m *modelTest) testMoveSameParent(t *testing.T) {
	f := m.fixture(t)
	f.add(t, "b", "d")

	require.NoError(t, f.tr.Move(f.ctx, f.db, f.ids["c"], f.root))
	if m.sorted {
		assert.Equal(t, []entry{{"a", 2}, {"c", 2}, {"x", 3}, {"d", 2}}, f.descendants(t, "b"))
	} else {
		assert.Equal(t, []entry{{"a", 2}, {"d", 2}, {"c", 2}, {"x", 3}}, f.descendants(t, "b"))
	}

	// a last child stays last either way
	require.NoError(t, f.tr.Move(f.ctx, f.db, f.ids["x"], f.ids["c"]))
	assert.Equal(t, []entry{{"x", 3}}, f.descendants(t, "c"))

	count, err := f.tr.Count(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func (m *modelTest) testMoveAcrossRoots(t *testing.T) {
	f := m.fixture(t)
	other, err := f.tr.AddRoot(f.ctx, f.db, "r")
	require.NoError(t, err)
	f.ids["r"] = other
	f.add(t, "r", "s")

	require.NoError(t, f.tr.Move(f.ctx, f.db, f.ids["c"], other))
	assert.Equal(t, []entry{{"a", 2}}, f.descendants(t, "b"))
	if m.sorted {
		assert.Equal(t, []entry{{"c", 2}, {"x", 3}, {"s", 2}}, f.descendants(t, "r"))
	} else {
		assert.Equal(t, []entry{{"s", 2}, {"c", 2}, {"x", 3}}, f.descendants(t, "r"))
	}

	// a whole tree moved below another root
	require.NoError(t, f.tr.Move(f.ctx, f.db, f.root, f.ids["s"]))
	if m.sorted {
		assert.Equal(t, []entry{{"c", 2}, {"x", 3}, {"s", 2}, {"b", 3}, {"a", 4}}, f.descendants(t, "r"))
	} else {
		assert.Equal(t, []entry{{"s", 2}, {"b", 3}, {"a", 4}, {"c", 2}, {"x", 3}}, f.descendants(t, "r"))
	}
}

func (m *modelTest) testMoveBelowItself(t *testing.T) {
	f := m.fixture(t)

	err := f.tr.Move(f.ctx, f.db, f.ids["c"], f.ids["x"])
	assert.ErrorIs(t, err, tree.ErrInvalidMove)
	err = f.tr.Move(f.ctx, f.db, f.ids["c"], f.ids["c"])
	assert.ErrorIs(t, err, tree.ErrInvalidMove)
	err = f.tr.Move(f.ctx, f.db, f.root, f.ids["x"])
	assert.ErrorIs(t, err, tree.ErrInvalidMove)

	// rejected moves leave the tree untouched
	if m.sorted {
		assert.Equal(t, []entry{{"a", 2}, {"c", 2}, {"x", 3}}, f.descendants(t, "b"))
	} else {
		assert.Equal(t, []entry{{"c", 2}, {"x", 3}, {"a", 2}}, f.descendants(t, "b"))
	}
}

func (m *modelTest) testDelete(t *testing.T) {
	f := m.fixture(t)

	require.NoError(t, f.tr.Delete(f.ctx, f.db, f.ids["c"]))
	assert.Equal(t, []entry{{"a", 2}}, f.descendants(t, "b"))
	count, err := f.tr.Count(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = f.tr.Get(f.ctx, f.db, f.ids["x"])
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
	assert.ErrorIs(t, f.tr.Delete(f.ctx, f.db, f.ids["c"]), tree.ErrNodeNotFound)

	// new nodes still fit after the hole is closed
	f.add(t, "a", "y")
	assert.Equal(t, []entry{{"a", 2}, {"y", 3}}, f.descendants(t, "b"))

	require.NoError(t, f.tr.Delete(f.ctx, f.db, f.root))
	count, err = f.tr.Count(f.ctx, f.db)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func (m *modelTest) testNotFound(t *testing.T) {
	f := m.fixture(t)
	const missing = tree.NodeID(1 << 40)

	_, err := f.tr.Get(f.ctx, f.db, missing)
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
	_, err = f.tr.AddChild(f.ctx, f.db, missing, "z")
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
	_, err = f.tr.Descendants(f.ctx, f.db, missing)
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
	assert.ErrorIs(t, f.tr.Move(f.ctx, f.db, f.ids["a"], missing), tree.ErrNodeNotFound)
	assert.ErrorIs(t, f.tr.Move(f.ctx, f.db, missing, f.ids["a"]), tree.ErrNodeNotFound)
	assert.ErrorIs(t, f.tr.Delete(f.ctx, f.db, missing), tree.ErrNodeNotFound)
}

func (m *modelTest) testTransaction(t *testing.T) {
	f := m.fixture(t)

	tx, err := f.db.BeginTx(f.ctx, nil)
	require.NoError(t, err)
	_, err = f.tr.AddChild(f.ctx, tx, f.ids["x"], "w")
	require.NoError(t, err)
	require.NoError(t, f.tr.Move(f.ctx, tx, f.ids["a"], f.ids["x"]))
	require.NoError(t, f.tr.Delete(f.ctx, tx, f.ids["c"]))
	count, err := f.tr.Count(f.ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, tx.Rollback())

	count, err = f.tr.Count(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
