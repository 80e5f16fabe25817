package common

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tree_bench/tree"
	"tree_bench/workload"
)

// Bench replays one workload plan over every model on every engine, trial
// after trial, until the results settle.
type Bench struct {
	Config   *Config
	Engines  []Engine
	Models   []tree.Model
	Progress io.Writer

	// Sizes is the largest on-disk size in bytes seen per engine at the end
	// of a trial. Engines without local files are absent.
	Sizes map[string]int64
}

// Run performs the trials. Every engine is opened fresh for a trial and its
// on-disk state removed afterwards.
func (b *Bench) Run(ctx context.Context) (*Results, error) {
	cfg := b.Config
	plan := workload.NewPlan(cfg.Workload())
	results := NewResults(TestNames(), b.modelNames(), b.engineNames())

	fmt.Fprintln(b.Progress, time.Now().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(b.Progress, "=== Tree Benchmark (%d nodes, %d moves) ===\n", plan.Len(), len(plan.Moves))

	timer := NewExpirationTimer(b.Progress, cfg.Timeout, 10, cfg.MaxTrials, 10)
	timer.Heading()
	for timer.Current() < cfg.MaxTrials {
		for _, engine := range b.Engines {
			// the first trial always completes so that every cell is measured
			if timer.Current() > 0 && timer.Expired() {
				break
			}
			if err := b.trial(ctx, engine, plan, results); err != nil {
				return nil, err
			}
		}
		notify := timer.CarriedOut(1)

		unsettled := results.Unsettled(cfg.CVThreshold)
		if timer.Current() >= cfg.MinTrials && len(unsettled) == 0 {
			b.summary(timer, results, unsettled)
			break
		}
		if timer.Expired() {
			b.summary(timer, results, unsettled)
			fmt.Fprintln(b.Progress, "** TIMED OUT **")
			break
		}
		if notify {
			b.summary(timer, results, unsettled)
		}
	}
	b.printSizes()
	return results, nil
}

func (b *Bench) printSizes() {
	for _, engine := range b.Engines {
		if size, ok := b.Sizes[engine.Name()]; ok {
			fmt.Fprintf(b.Progress, "Disk usage: %s %d bytes\n", engine.Name(), size)
		}
	}
}

// recordSize keeps the size of what the engine left on disk. The engine
// must be closed so that journals are folded into the database.
func (b *Bench) recordSize(engine Engine) {
	path := engine.Location()
	if path == "" {
		return
	}
	size := FileOrDirectorySize(path)
	if b.Sizes == nil {
		b.Sizes = make(map[string]int64)
	}
	b.Sizes[engine.Name()] = max(b.Sizes[engine.Name()], size)
	zap.L().Debug("database size", zap.String("engine", engine.Name()), zap.Int64("bytes", size))
}

func (b *Bench) summary(timer *ExpirationTimer, results *Results, unsettled []Cell) {
	timer.Summary(results.Measured(), results.MaxRelative(), len(unsettled))
}

func (b *Bench) trial(ctx context.Context, engine Engine, plan *workload.Plan, results *Results) error {
	db, err := engine.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			zap.L().Warn("failed to close engine", zap.String("engine", engine.Name()), zap.Error(err))
		}
		b.recordSize(engine)
		if err := engine.Remove(); err != nil {
			zap.L().Warn("failed to remove database", zap.String("engine", engine.Name()), zap.Error(err))
		}
	}()

	for _, model := range b.Models {
		t := model.New(engine.Dialect())
		for _, tx := range []bool{false, true} {
			if err := t.CreateSchema(ctx, db); err != nil {
				return errors.Wrapf(err, "%s on %s", model.Name, engine.Name())
			}
			timings, err := plan.Run(ctx, db, t, tx)
			if err != nil {
				return errors.Wrapf(err, "%s on %s", model.Name, engine.Name())
			}
			for test, elapsed := range timings {
				cell := Cell{Test: string(test), Model: model.Name, Engine: engine.Name(), Tx: tx}
				results.Add(cell, float64(elapsed.Nanoseconds())/1000.0/1000.0)
			}
			zap.L().Debug("model measured",
				zap.String("engine", engine.Name()),
				zap.String("model", model.Name),
				zap.Bool("tx", tx))
		}
	}
	return nil
}

// Sync creates the schema of every model on every engine and leaves the
// databases in place.
func (b *Bench) Sync(ctx context.Context) error {
	for _, engine := range b.Engines {
		db, err := engine.Open(ctx)
		if err != nil {
			return err
		}
		for _, model := range b.Models {
			t := model.New(engine.Dialect())
			if err := t.CreateSchema(ctx, db); err != nil {
				engine.Close()
				return errors.Wrapf(err, "%s on %s", model.Name, engine.Name())
			}
			zap.L().Info("schema created", zap.String("engine", engine.Name()), zap.String("table", t.Table()))
		}
		if err := engine.Close(); err != nil {
			return err
		}
	}
	return nil
}

// TestNames lists the measured tests in report order.
func TestNames() []string {
	names := make([]string, len(workload.Tests))
	for i, t := range workload.Tests {
		names[i] = string(t)
	}
	return names
}

func (b *Bench) modelNames() []string {
	names := make([]string, len(b.Models))
	for i, m := range b.Models {
		names[i] = m.Name
	}
	return names
}

func (b *Bench) engineNames() []string {
	names := make([]string, len(b.Engines))
	for i, e := range b.Engines {
		names[i] = e.Name()
	}
	return names
}

// システム情報の表示
func (b *Bench) PrintSystemInfo() {
	cfg := b.Config
	w := cfg.Workload()
	fmt.Fprintf(b.Progress, "=== Tree Benchmark ===\n")
	fmt.Fprintf(b.Progress, "Engines: %s\n", strings.Join(b.engineNames(), ", "))
	fmt.Fprintf(b.Progress, "Models: %s\n", strings.Join(b.modelNames(), ", "))
	fmt.Fprintf(b.Progress, "Working directory: %s\n", cfg.WorkDir)
	fmt.Fprintf(b.Progress, "Result directory: %s\n", cfg.ResultDir)
	fmt.Fprintf(b.Progress, "Session ID: %s\n", cfg.SessionID)
	fmt.Fprintf(b.Progress, "Nodes: %d (roots %d)\n", w.Nodes, w.Roots)
	fmt.Fprintf(b.Progress, "Moves: %d\n", w.Moves)
	fmt.Fprintf(b.Progress, "Descendant rounds: %d\n", w.Rounds)
	fmt.Fprintf(b.Progress, "Seed: %d\n", w.Seed)
	fmt.Fprintf(b.Progress, "Max trials: %d\n", cfg.MaxTrials)
	fmt.Fprintf(b.Progress, "Min trials: %d\n", cfg.MinTrials)
	fmt.Fprintf(b.Progress, "Timeout: %v\n", cfg.Timeout)
	fmt.Fprintf(b.Progress, "StdDev threshold: %.1f%%\n", cfg.CVThreshold*100)
	fmt.Fprintln(b.Progress)
}
