package workload

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tree_bench/tree"
)

type Test string

const (
	Inserts     Test = "Inserts"
	Descendants Test = "Descendants"
	Move        Test = "Move"
	Delete      Test = "Delete"
)

// Tests in execution and report order.
var Tests = []Test{Inserts, Descendants, Move, Delete}

// Transactional reports whether the test is also timed inside a
// transaction. Descendants only reads, so it has no tx variant.
func (t Test) Transactional() bool {
	return t != Descendants
}

// Timings holds the elapsed time of every test that ran.
type Timings map[Test]time.Duration

// Run replays the plan against t, which must have a fresh schema. With tx
// set, each test runs inside one transaction committed when it ends.
func (p *Plan) Run(ctx context.Context, db *sql.DB, t tree.Tree, tx bool) (Timings, error) {
	timings := make(Timings, len(Tests))
	ids := make([]tree.NodeID, p.Len())

	elapsed, err := measure(ctx, db, tx, func(ex tree.Executor) error {
		for i, label := range p.Labels {
			var err error
			if p.Parents[i] < 0 {
				ids[i], err = t.AddRoot(ctx, ex, label)
			} else {
				ids[i], err = t.AddChild(ctx, ex, ids[p.Parents[i]], label)
			}
			if err != nil {
				return errors.Wrapf(err, "insert node %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s on %s", Inserts, t.Table())
	}
	timings[Inserts] = elapsed

	if !tx {
		elapsed, err = measure(ctx, db, false, func(ex tree.Executor) error {
			for r := 0; r < p.Rounds; r++ {
				for _, id := range ids {
					if _, err := t.Descendants(ctx, ex, id); err != nil {
						return errors.Wrapf(err, "descendants of %d", id)
					}
				}
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "%s on %s", Descendants, t.Table())
		}
		timings[Descendants] = elapsed
	}

	skipped := 0
	elapsed, err = measure(ctx, db, tx, func(ex tree.Executor) error {
		for _, mv := range p.Moves {
			err := t.Move(ctx, ex, ids[mv[0]], ids[mv[1]])
			if errors.Is(err, tree.ErrInvalidMove) || errors.Is(err, tree.ErrTreeTooDeep) {
				skipped++
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "move %d below %d", mv[0], mv[1])
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s on %s", Move, t.Table())
	}
	timings[Move] = elapsed
	if skipped > 0 {
		zap.L().Warn("moves rejected by model", zap.String("table", t.Table()), zap.Int("skipped", skipped))
	}

	elapsed, err = measure(ctx, db, tx, func(ex tree.Executor) error {
		for _, i := range p.Deletes {
			err := t.Delete(ctx, ex, ids[i])
			if errors.Is(err, tree.ErrNodeNotFound) {
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "delete node %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s on %s", Delete, t.Table())
	}
	timings[Delete] = elapsed

	left, err := t.Count(ctx, db)
	if err != nil {
		return nil, err
	}
	if left != 0 {
		return nil, errors.Errorf("%s: %d nodes left after %s", t.Table(), left, Delete)
	}
	return timings, nil
}

func measure(ctx context.Context, db *sql.DB, tx bool, fn func(ex tree.Executor) error) (time.Duration, error) {
	runtime.GC()
	start := time.Now()
	if !tx {
		if err := fn(db); err != nil {
			return 0, err
		}
		return time.Since(start), nil
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	if err := fn(sqlTx); err != nil {
		if rerr := sqlTx.Rollback(); rerr != nil {
			zap.L().Warn("failed to roll back", zap.Error(rerr))
		}
		return 0, err
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return time.Since(start), nil
}
