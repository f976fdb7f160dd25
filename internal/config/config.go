// Package config loads parenthunter settings from an optional YAML file, a
// .env file, and PARENTHUNTER_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/morozRed/parenthunter/internal/fileutil"
	"github.com/morozRed/parenthunter/internal/parentmap"
	"github.com/morozRed/parenthunter/internal/zdb"
)

const (
	DefaultDataDir = "~/.parenthunter"
	ConfigFileName = "config.yaml"

	EnvDataDir   = "PARENTHUNTER_DATA_DIR"
	EnvTool      = "PARENTHUNTER_ZDB"
	EnvQueryRate = "PARENTHUNTER_QUERY_RATE"
)

type Config struct {
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Tool       ToolConfig       `yaml:"tool" json:"tool"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Source is the config file that was read, if any.
	Source string `yaml:"-" json:"source,omitempty"`
}

type ToolConfig struct {
	Path              string   `yaml:"path" json:"path"`
	Args              []string `yaml:"args" json:"args"`
	ParentLabel       string   `yaml:"parent_label" json:"parent_label"`
	TolerateExitCodes []int    `yaml:"tolerate_exit_codes" json:"tolerate_exit_codes,omitempty"`
	QueryRate         float64  `yaml:"query_rate" json:"query_rate"`
}

type CheckpointConfig struct {
	Interval    int  `yaml:"interval" json:"interval"`
	SaveRetries int  `yaml:"save_retries" json:"save_retries"`
	FlushOnExit bool `yaml:"flush_on_exit" json:"flush_on_exit"`
}

func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Tool: ToolConfig{
			Path:        zdb.DefaultTool,
			Args:        append([]string(nil), zdb.DefaultArgs...),
			ParentLabel: zdb.DefaultParentLabel,
		},
		Checkpoint: CheckpointConfig{
			Interval:    parentmap.DefaultCheckpointInterval,
			SaveRetries: parentmap.DefaultSaveRetries,
		},
	}
}

// Load builds the effective configuration. An explicit path must exist; without
// one, config.yaml in the data directory is read when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	envDataDir := strings.TrimSpace(os.Getenv(EnvDataDir))
	if envDataDir != "" {
		cfg.DataDir = envDataDir
	}

	path = strings.TrimSpace(path)
	explicit := path != ""
	if !explicit {
		dataDir, err := fileutil.ExpandHome(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dataDir, ConfigFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Source = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The file may set data_dir; the environment still wins.
	if envDataDir != "" {
		cfg.DataDir = envDataDir
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	expanded, err := fileutil.ExpandHome(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = expanded

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if tool := strings.TrimSpace(os.Getenv(EnvTool)); tool != "" {
		cfg.Tool.Path = tool
	}
	if raw := strings.TrimSpace(os.Getenv(EnvQueryRate)); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvQueryRate, raw, err)
		}
		cfg.Tool.QueryRate = rate
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must not be empty")
	}
	if strings.TrimSpace(c.Tool.Path) == "" {
		return errors.New("tool.path must not be empty")
	}
	if c.Tool.QueryRate < 0 {
		return fmt.Errorf("tool.query_rate must be >= 0, got %v", c.Tool.QueryRate)
	}
	for _, code := range c.Tool.TolerateExitCodes {
		if code <= 0 {
			return fmt.Errorf("tool.tolerate_exit_codes must be positive, got %d", code)
		}
	}
	if c.Checkpoint.Interval < 1 {
		return fmt.Errorf("checkpoint.interval must be >= 1, got %d", c.Checkpoint.Interval)
	}
	if c.Checkpoint.SaveRetries < 0 {
		return fmt.Errorf("checkpoint.save_retries must be >= 0, got %d", c.Checkpoint.SaveRetries)
	}
	return nil
}

// QuerierOptions maps the tool section onto zdb options.
func (c *Config) QuerierOptions() zdb.Options {
	return zdb.Options{
		Tool:              c.Tool.Path,
		Args:              c.Tool.Args,
		ParentLabel:       c.Tool.ParentLabel,
		TolerateExitCodes: c.Tool.TolerateExitCodes,
		QueryRate:         c.Tool.QueryRate,
	}
}
