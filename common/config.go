package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tree_bench/workload"
)

// ベンチマーク設定
const (
	DefaultMaxTrials   = 1    // 最大試行回数
	DefaultMinTrials   = 1    // 最小試行回数
	DefaultCVThreshold = 0.05 // 標準偏差/平均値のしきい値 (5%)
	DefaultTimeout     = 10 * time.Minute
	DefaultResultDir   = "." // デフォルトの結果出力ディレクトリ
)

// Built-in engine names. PostgreSQL targets are named by configuration.
const (
	EngineSQLite     = "sqlite"
	EngineSQLiteFile = "sqlite-file"
	EngineDolt       = "dolt"
)

var DefaultEngines = []string{EngineSQLite, EngineSQLiteFile, EngineDolt}

// Target is a named PostgreSQL server.
type Target struct {
	Name string `yaml:"name"`
	DSN  string `yaml:"dsn"`
}

// コマンドライン引数と設定ファイル
type Config struct {
	Nodes       int           `yaml:"nodes"`
	Roots       int           `yaml:"roots"`
	Moves       int           `yaml:"moves"`
	Rounds      int           `yaml:"descendant_rounds"`
	Seed        uint64        `yaml:"seed"`
	MinTrials   int           `yaml:"min_trials"`
	MaxTrials   int           `yaml:"max_trials"`
	CVThreshold float64       `yaml:"cv_threshold"`
	Timeout     time.Duration `yaml:"timeout"`
	Engines     []string      `yaml:"engines"`
	Models      []string      `yaml:"models"`
	Postgres    []Target      `yaml:"postgres"`
	WorkDir     string        `yaml:"work_dir"`
	ResultDir   string        `yaml:"output"`
	SessionID   string        `yaml:"session"`
	Archive     string        `yaml:"archive"`
	Format      string        `yaml:"format"`
	LogLevel    string        `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Nodes:       1000,
		Rounds:      3,
		Seed:        1,
		MinTrials:   DefaultMinTrials,
		MaxTrials:   DefaultMaxTrials,
		CVThreshold: DefaultCVThreshold,
		Timeout:     DefaultTimeout,
		WorkDir:     os.TempDir(),
		ResultDir:   DefaultResultDir,
		SessionID:   time.Now().Format("20060102150405"),
		Format:      "rst",
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML configuration file over the defaults. An empty
// path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && cfg.target("postgres") == nil {
		cfg.Postgres = append(cfg.Postgres, Target{Name: "postgres", DSN: dsn})
	}
	return cfg, nil
}

// AddPostgres adds or replaces named targets, in name order.
func (c *Config) AddPostgres(targets map[string]string) {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if t := c.target(name); t != nil {
			t.DSN = targets[name]
			continue
		}
		c.Postgres = append(c.Postgres, Target{Name: name, DSN: targets[name]})
	}
}

func (c *Config) target(name string) *Target {
	for i := range c.Postgres {
		if c.Postgres[i].Name == name {
			return &c.Postgres[i]
		}
	}
	return nil
}

// EngineNames is the configured engine list, or the built-in engines
// followed by every PostgreSQL target.
func (c *Config) EngineNames() []string {
	if len(c.Engines) > 0 {
		return c.Engines
	}
	names := append([]string(nil), DefaultEngines...)
	for _, t := range c.Postgres {
		names = append(names, t.Name)
	}
	return names
}

// PostgresDSN returns the DSN of a PostgreSQL target.
func (c *Config) PostgresDSN(name string) (string, bool) {
	if t := c.target(name); t != nil {
		return t.DSN, true
	}
	return "", false
}

func (c *Config) Validate() error {
	if c.Nodes <= 0 {
		return errors.Errorf("nodes must be positive: %d", c.Nodes)
	}
	if c.MinTrials <= 0 || c.MaxTrials < c.MinTrials {
		return errors.Errorf("invalid trials: min %d, max %d", c.MinTrials, c.MaxTrials)
	}
	if c.CVThreshold <= 0 {
		return errors.Errorf("cv threshold must be positive: %v", c.CVThreshold)
	}
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive: %v", c.Timeout)
	}
	switch c.Format {
	case "rst", "csv":
	default:
		return errors.Errorf("unknown format: %s", c.Format)
	}
	for _, t := range c.Postgres {
		if t.Name == EngineSQLite || t.Name == EngineSQLiteFile || t.Name == EngineDolt {
			return errors.Errorf("postgres target shadows built-in engine: %s", t.Name)
		}
	}
	return nil
}

func (c *Config) Workload() workload.Config {
	return workload.Config{
		Nodes:  c.Nodes,
		Roots:  c.Roots,
		Moves:  c.Moves,
		Rounds: c.Rounds,
		Seed:   c.Seed,
	}.WithDefaults()
}

func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.WorkDir, fmt.Sprintf("tree_bench-%s.db", name))
}

func (c *Config) ResultFile(id string) string {
	return filepath.Join(c.ResultDir, fmt.Sprintf("%s-%s.csv", c.SessionID, id))
}

// ArchivePath is where archived runs are kept, inside the result
// directory unless configured.
func (c *Config) ArchivePath() string {
	if c.Archive != "" {
		return c.Archive
	}
	return filepath.Join(c.ResultDir, "tree_bench-archive.db")
}
