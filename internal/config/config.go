// Package config provides configuration loading and validation for
// domain-email-records. It reads an optional YAML file, fills in defaults
// and checks that every setting is usable before a run starts.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ndejong/domain-email-records/internal/filesys"
	"github.com/ndejong/domain-email-records/internal/log"
	"github.com/ndejong/domain-email-records/internal/lookup"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
	// ErrConfigExists is returned by Save when it would overwrite a file.
	ErrConfigExists = errors.New("configuration file already exists")
)

const (
	// DefaultConfigPath is the default path for the configuration file,
	// relative to the user's home directory.
	DefaultConfigPath = ".domain-email-records/config.yaml"
	// DefaultChunkSize is the default number of domains resolved concurrently.
	DefaultChunkSize = 500
	// DefaultQueryTimeout is the default lifetime of a single DNS query.
	DefaultQueryTimeout = 10 * time.Second
	// DefaultCSVColumn is the default 1-based column holding the domain in CSV input.
	DefaultCSVColumn = 2
	// DefaultLogLevel is the default diagnostic level.
	DefaultLogLevel = "info"
)

// Config holds the application configuration.
type Config struct {
	Lookup  LookupConfig  `yaml:"lookup"`
	Input   InputConfig   `yaml:"input"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LookupConfig holds the resolution settings.
type LookupConfig struct {
	ChunkSize    int           `yaml:"chunk_size"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Nameservers  []string      `yaml:"nameservers,omitempty"`
	Types        []string      `yaml:"types"`
	RateLimit    float64       `yaml:"rate_limit"`
}

// InputConfig holds domain list parsing settings.
type InputConfig struct {
	CSVColumn int `yaml:"csv_column"`
}

// LogConfig holds diagnostic settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig holds the optional prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// New creates a provider for path, or for the default location under the
// user's home directory when path is empty.
func New(path string) *FSProvider {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
			home = ""
		}
		path = filepath.Join(home, DefaultConfigPath)
	}
	return NewWithPath(filesys.OS(), path)
}

// NewWithPath creates a new provider with a specific filesystem and config path.
func NewWithPath(fs filesys.ReadWriteFS, path string) *FSProvider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default() *Config {
	types := make([]string, len(lookup.DefaultTypes))
	for i, t := range lookup.DefaultTypes {
		types[i] = string(t)
	}
	return &Config{
		Lookup: LookupConfig{
			ChunkSize:    DefaultChunkSize,
			QueryTimeout: DefaultQueryTimeout,
			Types:        types,
		},
		Input: InputConfig{
			CSVColumn: DefaultCSVColumn,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load loads the configuration from the provider's path. A missing file
// yields the defaults; settings absent from the file keep their defaults.
func (p *FSProvider) Load() (*Config, error) {
	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every setting is usable. The returned error wraps
// ErrInvalidConfig, and lookup.ErrUnsupportedLookupType for unknown types.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Lookup.ChunkSize < 1 {
		return errors.New("chunk size must be at least 1")
	}
	if c.Lookup.QueryTimeout < time.Second {
		return errors.New("query timeout must be at least 1 second")
	}
	if c.Lookup.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}
	for _, ns := range c.Lookup.Nameservers {
		if strings.TrimSpace(ns) == "" {
			return errors.New("nameserver cannot be empty")
		}
	}
	if _, err := lookup.ParseTypes(c.Lookup.Types); err != nil {
		return err
	}
	if c.Input.CSVColumn < 1 {
		return errors.New("csv column must be at least 1")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Path returns the location the provider reads from.
func (p *FSProvider) Path() string { return p.path }

// Save writes cfg to the provider's path, creating its directory. An
// existing file is only replaced when overwrite is set.
func (p *FSProvider) Save(cfg *Config, overwrite bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := p.fs.Stat(p.path); err == nil && !overwrite {
		return fmt.Errorf("%w: %s", ErrConfigExists, p.path)
	}

	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := p.fs.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// LookupTypes returns the configured types in their typed form.
func (c *Config) LookupTypes() ([]lookup.Type, error) {
	return lookup.ParseTypes(c.Lookup.Types)
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	// an empty file decodes to io.EOF and keeps the defaults
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return cfg, nil
}
