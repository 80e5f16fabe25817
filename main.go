package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tree_bench/al"
	"tree_bench/common"
	"tree_bench/doltdb"
	"tree_bench/iavl"
	"tree_bench/mp"
	"tree_bench/ns"
	"tree_bench/postgres"
	"tree_bench/report"
	"tree_bench/sqlite"
	"tree_bench/tree"
)

// コマンドライン引数
type options struct {
	configFile string
	workDir    string
	resultDir  string
	session    string
	clean      bool
	timeout    time.Duration
	nodes      int
	roots      int
	moves      int
	rounds     int
	maxTrials  int
	minTrials  int
	seed       uint64
	engines    []string
	models     []string
	postgres   map[string]string
	format     string
	archive    string
	logLevel   string
}

func main() {
	err := newRootCommand().Execute()
	zap.L().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	var cfg *common.Config

	rootCmd := &cobra.Command{
		Use:   "treebench",
		Short: "Tree storage benchmark for relational databases",
		Long: `Tree storage benchmark for relational databases

  Times inserts, descendant retrieval, subtree moves and deletes on
  materialized path, adjacency list and nested sets trees, sorted and
  unsorted, on every configured database engine with and without
  transactions. The mean milliseconds are printed as a reStructuredText
  grid table.
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = opts.config(cmd)
			if err != nil {
				return err
			}
			logger, err := common.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.clean {
				return clean(cfg)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flags.StringVarP(&opts.workDir, "dir", "d", os.TempDir(), "Database directory used for benchmarking")
	flags.StringVarP(&opts.resultDir, "output", "o", common.DefaultResultDir, "Directory to save result CSV files")
	flags.StringVarP(&opts.session, "session", "s", "", "Session name for result file naming (default: current time)")
	flags.BoolVarP(&opts.clean, "clean", "c", false, "Remove all cached files and exit")
	flags.DurationVar(&opts.timeout, "timeout", common.DefaultTimeout, "Benchmark timeout (e.g., 30s, 5m)")
	flags.IntVarP(&opts.nodes, "nodes", "n", 1000, "Number of nodes inserted")
	flags.IntVar(&opts.roots, "roots", 0, "Number of root nodes (default: nodes/100)")
	flags.IntVar(&opts.moves, "moves", 0, "Number of subtree moves (default: nodes/10)")
	flags.IntVar(&opts.rounds, "rounds", 3, "Descendant retrieval rounds")
	flags.IntVar(&opts.maxTrials, "trials", common.DefaultMaxTrials, "Maximum number of trials")
	flags.IntVar(&opts.minTrials, "min-trials", common.DefaultMinTrials, "Minimum number of trials")
	flags.Uint64Var(&opts.seed, "seed", 1, "Seed of the workload plan")
	flags.StringSliceVarP(&opts.engines, "engine", "e", nil, "Engines to benchmark (default: all)")
	flags.StringSliceVarP(&opts.models, "model", "m", nil, "Models to benchmark, e.g. mp, al-sorted (default: all)")
	flags.StringToStringVar(&opts.postgres, "postgres", nil, "PostgreSQL target as name=dsn")
	flags.StringVar(&opts.format, "format", "rst", "Report format: rst or csv")
	flags.StringVar(&opts.archive, "archive", "", "Results archive directory (default: in the output directory)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Create the tables of every model on the configured engines",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return syncSchemas(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the known engines and models",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return list(cfg)
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "List the archived benchmark sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return history(cfg)
			},
		},
		&cobra.Command{
			Use:   "show <session>",
			Short: "Print the report of an archived session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return show(cfg, args[0])
			},
		},
	)
	return rootCmd
}

// config loads the configuration file and applies the flags given on the
// command line over it.
func (o *options) config(cmd *cobra.Command) (*common.Config, error) {
	cfg, err := common.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("dir") || cfg.WorkDir == "" {
		cfg.WorkDir = o.workDir
	}
	if flags.Changed("output") || cfg.ResultDir == "" {
		cfg.ResultDir = o.resultDir
	}
	if flags.Changed("session") {
		cfg.SessionID = o.session
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("nodes") {
		cfg.Nodes = o.nodes
	}
	if flags.Changed("roots") {
		cfg.Roots = o.roots
	}
	if flags.Changed("moves") {
		cfg.Moves = o.moves
	}
	if flags.Changed("rounds") {
		cfg.Rounds = o.rounds
	}
	if flags.Changed("trials") {
		cfg.MaxTrials = o.maxTrials
		cfg.MinTrials = min(cfg.MinTrials, o.maxTrials)
	}
	if flags.Changed("min-trials") {
		cfg.MinTrials = o.minTrials
		cfg.MaxTrials = max(cfg.MaxTrials, o.minTrials)
	}
	if flags.Changed("seed") {
		cfg.Seed = o.seed
	}
	if flags.Changed("engine") {
		cfg.Engines = o.engines
	}
	if flags.Changed("model") {
		cfg.Models = o.models
	}
	if flags.Changed("postgres") {
		cfg.AddPostgres(o.postgres)
	}
	if flags.Changed("format") {
		cfg.Format = o.format
	}
	if flags.Changed("archive") {
		cfg.Archive = o.archive
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.WorkDir, err = common.CreateDirectory(cfg.WorkDir); err != nil {
		return nil, err
	}
	if cfg.ResultDir, err = common.CreateDirectory(cfg.ResultDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func models(cfg *common.Config) ([]tree.Model, error) {
	return tree.Select(tree.Models(mp.Strategy, al.Strategy, ns.Strategy), cfg.Models)
}

func engines(cfg *common.Config) ([]common.Engine, error) {
	var engines []common.Engine
	for _, name := range cfg.EngineNames() {
		switch name {
		case common.EngineSQLite:
			engines = append(engines, sqlite.NewMemory())
		case common.EngineSQLiteFile:
			engines = append(engines, sqlite.NewFile(cfg.DatabasePath(name)))
		case common.EngineDolt:
			engines = append(engines, doltdb.New(cfg.DatabasePath(name)))
		default:
			dsn, ok := cfg.PostgresDSN(name)
			if !ok {
				return nil, errors.Errorf("unknown engine: %s", name)
			}
			engines = append(engines, postgres.New(name, dsn))
		}
	}
	return engines, nil
}

func newBench(cfg *common.Config) (*common.Bench, error) {
	ms, err := models(cfg)
	if err != nil {
		return nil, err
	}
	es, err := engines(cfg)
	if err != nil {
		return nil, err
	}
	return &common.Bench{Config: cfg, Engines: es, Models: ms, Progress: os.Stderr}, nil
}

func run(ctx context.Context, cfg *common.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bench, err := newBench(cfg)
	if err != nil {
		return err
	}
	bench.PrintSystemInfo()

	results, err := bench.Run(ctx)
	if err != nil {
		return err
	}

	path := cfg.ResultFile("results")
	if err := results.Save(path); err != nil {
		return err
	}
	zap.L().Info("trial data saved", zap.String("path", path))

	if err := report.Write(os.Stdout, results, cfg.Format); err != nil {
		return err
	}

	archive, err := iavl.Open(cfg.ArchivePath())
	if err != nil {
		return err
	}
	defer archive.Close()
	_, err = archive.Save(cfg.SessionID, results)
	return err
}

func syncSchemas(ctx context.Context, cfg *common.Config) error {
	bench, err := newBench(cfg)
	if err != nil {
		return err
	}
	return bench.Sync(ctx)
}

func clean(cfg *common.Config) error {
	es, err := engines(cfg)
	if err != nil {
		return err
	}
	for _, e := range es {
		if err := e.Remove(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "The database is deleted: %s\n", e.Name())
	}
	return nil
}

func list(cfg *common.Config) error {
	fmt.Println("Engines:")
	for _, name := range cfg.EngineNames() {
		switch name {
		case common.EngineSQLite:
			fmt.Printf("  %-16s in memory\n", name)
		case common.EngineSQLiteFile, common.EngineDolt:
			fmt.Printf("  %-16s %s\n", name, cfg.DatabasePath(name))
		default:
			fmt.Printf("  %-16s postgres\n", name)
		}
	}
	ms, err := models(cfg)
	if err != nil {
		return err
	}
	fmt.Println("Models:")
	for _, m := range ms {
		fmt.Printf("  %-16s %s\n", m.Key, m.Name)
	}
	return nil
}

func history(cfg *common.Config) error {
	archive, err := iavl.Open(cfg.ArchivePath())
	if err != nil {
		return err
	}
	defer archive.Close()

	entries, err := archive.Sessions()
	if err != nil {
		return err
	}
	fmt.Printf("%-20s %8s %-20s %s\n", "SESSION", "VERSION", "SAVED", "ENGINES")
	for _, e := range entries {
		fmt.Printf("%-20s %8d %-20s %v\n", e.Session, e.Version, e.SavedAt.Local().Format("2006-01-02 15:04:05"), e.Results.Engines)
	}
	return nil
}

func show(cfg *common.Config, session string) error {
	archive, err := iavl.Open(cfg.ArchivePath())
	if err != nil {
		return err
	}
	defer archive.Close()

	entry, err := archive.Load(session)
	if err != nil {
		return err
	}
	return report.Write(os.Stdout, entry.Results, cfg.Format)
}
