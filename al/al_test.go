package al

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree_bench/sqlite"
	"tree_bench/tree"
	"tree_bench/tree/treetest"
)

func TestModel(t *testing.T) {
	treetest.Run(t, treetest.Memory, sqlite.Dialect{}, New)
}

func TestDeleteWideSubtree(t *testing.T) {
	ctx := context.Background()
	db := treetest.Memory(t)
	tr := New(sqlite.Dialect{}, false)
	require.NoError(t, tr.CreateSchema(ctx, db))

	root, err := tr.AddRoot(ctx, db, "root")
	require.NoError(t, err)
	keep, err := tr.AddRoot(ctx, db, "keep")
	require.NoError(t, err)
	// more children than fit in one IN (...) batch
	for i := 0; i < deleteBatch+20; i++ {
		child, err := tr.AddChild(ctx, db, root, fmt.Sprintf("c%04d", i))
		require.NoError(t, err)
		if i%100 == 0 {
			_, err = tr.AddChild(ctx, db, child, "leaf")
			require.NoError(t, err)
		}
	}

	require.NoError(t, tr.Delete(ctx, db, root))
	count, err := tr.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = tr.Get(ctx, db, keep)
	assert.NoError(t, err)
	_, err = tr.Get(ctx, db, root)
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
}

func TestSiblingOrder(t *testing.T) {
	ctx := context.Background()
	db := treetest.Memory(t)
	tr := New(sqlite.Dialect{}, false)
	require.NoError(t, tr.CreateSchema(ctx, db))

	root, err := tr.AddRoot(ctx, db, "root")
	require.NoError(t, err)
	a, err := tr.AddChild(ctx, db, root, "a")
	require.NoError(t, err)
	_, err = tr.AddChild(ctx, db, root, "b")
	require.NoError(t, err)

	// moving below the same parent appends at the end
	require.NoError(t, tr.Move(ctx, db, a, root))
	children, err := tr.Children(ctx, db, root)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "b", children[0].Label)
	assert.Equal(t, "a", children[1].Label)
}
