// Package config loads the extractor's YAML settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/java-callgraph/internal/discover"
	"github.com/DeusData/java-callgraph/internal/lsp"
	"github.com/DeusData/java-callgraph/internal/resolve"
)

// FileName is the config file looked up in the working directory when no
// path is given.
const FileName = ".cgrconfig"

// DefaultOutput is the output directory used when none is configured.
const DefaultOutput = "callgraph-out"

// Config holds user-overridable settings. Command-line flags take
// precedence over the file.
type Config struct {
	Semantic   bool     `yaml:"semantic"`
	MaxWorkers int      `yaml:"max_workers"`
	Output     string   `yaml:"output"`
	Ignore     []string `yaml:"ignore"`

	LSP    LSPConfig    `yaml:"lsp"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
}

// LSPConfig configures the language server used in semantic mode.
type LSPConfig struct {
	Command               string         `yaml:"command"`
	Args                  []string       `yaml:"args"`
	RequestTimeout        time.Duration  `yaml:"request_timeout"`
	StartTimeout          time.Duration  `yaml:"start_timeout"`
	InitializationOptions map[string]any `yaml:"initialization_options"`
}

// SQLiteConfig enables the SQLite sink when Path is set.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Neo4jConfig enables the Neo4j sink when URI is set.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxWorkers: runtime.NumCPU(),
		Output:     DefaultOutput,
		LSP: LSPConfig{
			Command:        lsp.JavaConfig().Command,
			RequestTimeout: resolve.DefaultRequestTimeout,
			StartTimeout:   resolve.DefaultStartTimeout,
		},
	}
}

// Load reads the config at path over the defaults. An empty path means
// FileName in the working directory. A missing file yields the defaults;
// an unreadable or invalid one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if explicit {
			slog.Warn("config.missing", "path", path)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must not be negative, got %d", c.MaxWorkers)
	}
	if c.LSP.RequestTimeout < 0 || c.LSP.StartTimeout < 0 {
		return errors.New("lsp timeouts must not be negative")
	}
	return nil
}

// Workers returns MaxWorkers, or the CPU count when unset.
func (c *Config) Workers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return runtime.NumCPU()
}

// DiscoverOptions returns the file discovery settings.
func (c *Config) DiscoverOptions() *discover.Options {
	if len(c.Ignore) == 0 {
		return nil
	}
	return &discover.Options{Ignore: c.Ignore}
}

// LanguageServer returns the language server configuration.
func (c *Config) LanguageServer() lsp.LanguageConfig {
	lc := lsp.JavaConfig()
	if c.LSP.Command != "" {
		lc.Command = c.LSP.Command
	}
	lc.Args = c.LSP.Args
	if c.LSP.InitializationOptions != nil {
		lc.InitializationOptions = c.LSP.InitializationOptions
	}
	return lc
}

// ResolveOptions returns the resolver timeouts.
func (c *Config) ResolveOptions() resolve.Options {
	return resolve.Options{
		RequestTimeout: c.LSP.RequestTimeout,
		StartTimeout:   c.LSP.StartTimeout,
	}
}
