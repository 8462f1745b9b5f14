package config_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ndejong/domain-email-records/internal/config"
	"github.com/ndejong/domain-email-records/internal/lookup"
)

type ConfigTestSuite struct {
	suite.Suite
	fs       mockFS
	provider *config.FSProvider
}

type mockFS struct {
	files map[string]string
	dirs  map[string]bool
}

func (m mockFS) Stat(path string) (os.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return nil, nil
	}
	if m.dirs[path] {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

func (m mockFS) MkdirAll(path string, _ os.FileMode) error {
	m.dirs[path] = true
	return nil
}

func (m mockFS) Open(path string) (*os.File, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	tmp, err := os.CreateTemp("", "mock-*") // caller cleans up in t.Cleanup
	if err != nil {
		return nil, err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}

func (m mockFS) WriteFile(path string, content []byte, _ os.FileMode) error {
	m.files[path] = string(content)
	return nil
}

func (s *ConfigTestSuite) SetupTest() {
	s.fs = mockFS{
		files: make(map[string]string),
		dirs:  make(map[string]bool),
	}
	s.provider = config.NewWithPath(s.fs, "test/config.yaml")
}

func (s *ConfigTestSuite) TestLoadDefaultWhenNoFile() {
	// When loading configuration with no file present
	cfg, err := s.provider.Load()

	// Then default configuration should be returned
	s.Require().NoError(err)
	s.Equal(config.DefaultChunkSize, cfg.Lookup.ChunkSize)
	s.Equal(config.DefaultQueryTimeout, cfg.Lookup.QueryTimeout)
	s.Equal([]string{"ns", "apex", "mx", "spf", "dmarc"}, cfg.Lookup.Types)
	s.Empty(cfg.Lookup.Nameservers)
	s.Equal(config.DefaultCSVColumn, cfg.Input.CSVColumn)
	s.Equal(config.DefaultLogLevel, cfg.Log.Level)
	s.Empty(cfg.Metrics.Addr)
}

func (s *ConfigTestSuite) TestLoadValidConfig() {
	// Given a valid config file
	s.fs.files["test/config.yaml"] = `
lookup:
  chunk_size: 50
  query_timeout: 3s
  nameservers: [1.1.1.1, "8.8.8.8:53"]
  types: [mx, txt]
  rate_limit: 250
input:
  csv_column: 1
log:
  level: debug
metrics:
  addr: 127.0.0.1:9153
`
	// When loading configuration
	cfg, err := s.provider.Load()

	// Then custom values should be loaded
	s.Require().NoError(err)
	s.Equal(50, cfg.Lookup.ChunkSize)
	s.Equal(3*time.Second, cfg.Lookup.QueryTimeout)
	s.Equal([]string{"1.1.1.1", "8.8.8.8:53"}, cfg.Lookup.Nameservers)
	s.Equal([]string{"mx", "txt"}, cfg.Lookup.Types)
	s.InDelta(250.0, cfg.Lookup.RateLimit, 0)
	s.Equal(1, cfg.Input.CSVColumn)
	s.Equal("debug", cfg.Log.Level)
	s.Equal("127.0.0.1:9153", cfg.Metrics.Addr)

	types, err := cfg.LookupTypes()
	s.Require().NoError(err)
	s.Equal([]lookup.Type{lookup.MX, lookup.TXT}, types)
}

func (s *ConfigTestSuite) TestPartialConfigKeepsDefaults() {
	s.fs.files["test/config.yaml"] = `
lookup:
  chunk_size: 10
`
	cfg, err := s.provider.Load()

	s.Require().NoError(err)
	s.Equal(10, cfg.Lookup.ChunkSize)
	s.Equal(config.DefaultQueryTimeout, cfg.Lookup.QueryTimeout)
	s.Equal(config.DefaultCSVColumn, cfg.Input.CSVColumn)
}

func (s *ConfigTestSuite) TestEmptyFileKeepsDefaults() {
	s.fs.files["test/config.yaml"] = ""

	cfg, err := s.provider.Load()

	s.Require().NoError(err)
	s.Equal(config.Default(), cfg)
}

func (s *ConfigTestSuite) TestValidation() {
	valid := func(mutate func(c *config.Config)) config.Config {
		c := config.Default()
		mutate(c)
		return *c
	}

	testCases := []struct {
		name        string
		config      config.Config
		expectedErr string
	}{
		{
			name:   "defaults",
			config: valid(func(*config.Config) {}),
		},
		// Chunk size
		{
			name:        "chunk size zero",
			config:      valid(func(c *config.Config) { c.Lookup.ChunkSize = 0 }),
			expectedErr: "chunk size must be at least 1",
		},
		{
			name:        "chunk size negative",
			config:      valid(func(c *config.Config) { c.Lookup.ChunkSize = -5 }),
			expectedErr: "chunk size must be at least 1",
		},
		{
			name:   "chunk size one",
			config: valid(func(c *config.Config) { c.Lookup.ChunkSize = 1 }),
		},

		// Query timeout
		{
			name:        "query timeout zero",
			config:      valid(func(c *config.Config) { c.Lookup.QueryTimeout = 0 }),
			expectedErr: "query timeout must be at least 1 second",
		},
		{
			name:        "query timeout too short",
			config:      valid(func(c *config.Config) { c.Lookup.QueryTimeout = 500 * time.Millisecond }),
			expectedErr: "query timeout must be at least 1 second",
		},
		{
			name:   "query timeout exactly 1 second",
			config: valid(func(c *config.Config) { c.Lookup.QueryTimeout = time.Second }),
		},

		// Rate limit and nameservers
		{
			name:        "negative rate limit",
			config:      valid(func(c *config.Config) { c.Lookup.RateLimit = -1 }),
			expectedErr: "rate limit cannot be negative",
		},
		{
			name:        "blank nameserver",
			config:      valid(func(c *config.Config) { c.Lookup.Nameservers = []string{"1.1.1.1", "  "} }),
			expectedErr: "nameserver cannot be empty",
		},

		// Types
		{
			name:        "unsupported type",
			config:      valid(func(c *config.Config) { c.Lookup.Types = []string{"mx", "caa"} }),
			expectedErr: "unsupported domain record lookup_type requested: caa",
		},
		{
			name:   "txt on request",
			config: valid(func(c *config.Config) { c.Lookup.Types = []string{"txt"} }),
		},

		// Input and log
		{
			name:        "csv column zero",
			config:      valid(func(c *config.Config) { c.Input.CSVColumn = 0 }),
			expectedErr: "csv column must be at least 1",
		},
		{
			name:        "unknown log level",
			config:      valid(func(c *config.Config) { c.Log.Level = "loud" }),
			expectedErr: `unknown log level "loud"`,
		},
		{
			name:   "critical log level",
			config: valid(func(c *config.Config) { c.Log.Level = "critical" }),
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := tc.config.Validate()
			if tc.expectedErr == "" {
				s.NoError(err)
			} else {
				s.Error(err)
				s.ErrorIs(err, config.ErrInvalidConfig)
				s.Contains(err.Error(), tc.expectedErr)
			}
		})
	}
}

func (s *ConfigTestSuite) TestUnsupportedTypeKeepsTypedError() {
	s.fs.files["test/config.yaml"] = `
lookup:
  types: [ns, soa]
`
	_, err := s.provider.Load()

	s.Require().Error(err)
	s.ErrorIs(err, config.ErrInvalidConfig)
	s.ErrorIs(err, lookup.ErrUnsupportedLookupType)
}

func (s *ConfigTestSuite) TestLoadInvalidYAML() {
	// Given an invalid YAML file
	s.fs.files["test/config.yaml"] = `
lookup:
  chunk_size: [invalid: yaml]
`
	// When loading configuration
	_, err := s.provider.Load()

	// Then an error should be returned
	s.Error(err)
	s.Contains(err.Error(), "decoding config file")
}

func (s *ConfigTestSuite) TestSaveRoundTrip() {
	cfg := config.Default()
	cfg.Lookup.Nameservers = []string{"9.9.9.9"}

	s.Require().NoError(s.provider.Save(cfg, false))
	s.True(s.fs.dirs["test"])
	s.Contains(s.fs.files["test/config.yaml"], "query_timeout: 10s")

	loaded, err := s.provider.Load()
	s.Require().NoError(err)
	s.Equal(cfg, loaded)
}

func (s *ConfigTestSuite) TestSaveRefusesOverwrite() {
	s.fs.files["test/config.yaml"] = "lookup:\n  chunk_size: 7\n"

	err := s.provider.Save(config.Default(), false)
	s.ErrorIs(err, config.ErrConfigExists)
	s.Equal("lookup:\n  chunk_size: 7\n", s.fs.files["test/config.yaml"])

	s.Require().NoError(s.provider.Save(config.Default(), true))
	s.NotEqual("lookup:\n  chunk_size: 7\n", s.fs.files["test/config.yaml"])
}

func (s *ConfigTestSuite) TestSaveRejectsInvalid() {
	cfg := config.Default()
	cfg.Lookup.ChunkSize = 0

	s.ErrorIs(s.provider.Save(cfg, false), config.ErrInvalidConfig)
	s.Empty(s.fs.files)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
