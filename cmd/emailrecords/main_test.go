package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ndejong/domain-email-records/internal/config"
	"github.com/ndejong/domain-email-records/internal/lookup"
)

type CLITestSuite struct {
	suite.Suite
	cfgPath string
}

func (s *CLITestSuite) SetupTest() {
	s.cfgPath = filepath.Join(s.T().TempDir(), "config.yaml")
}

func (s *CLITestSuite) execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", s.cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func (s *CLITestSuite) TestFlagsOverrideConfigFile() {
	s.Require().NoError(os.WriteFile(s.cfgPath, []byte(`
lookup:
  chunk_size: 20
  query_timeout: 4s
  types: [mx]
`), 0o644))

	cfg, err := s.configFor("--config", s.cfgPath, "-c", "7", "-n", "1.1.1.1", "-n", "9.9.9.9", "-v", "-d", "example.com")
	s.Require().NoError(err)
	s.Equal(7, cfg.Lookup.ChunkSize)
	s.Equal(4*time.Second, cfg.Lookup.QueryTimeout, "unset flags keep the file's value")
	s.Equal([]string{"mx"}, cfg.Lookup.Types)
	s.Equal([]string{"1.1.1.1", "9.9.9.9"}, cfg.Lookup.Nameservers)
	s.Equal("debug", cfg.Log.Level)
}

func (s *CLITestSuite) TestDefaultsWithoutConfigFile() {
	cfg, err := s.configFor("--config", s.cfgPath, "-T", "3", "-t", "mx,txt", "-q", "-d", "example.com")
	s.Require().NoError(err)
	s.Equal(config.DefaultChunkSize, cfg.Lookup.ChunkSize)
	s.Equal(3*time.Second, cfg.Lookup.QueryTimeout)
	s.Equal([]string{"mx", "txt"}, cfg.Lookup.Types)
	s.Equal("critical", cfg.Log.Level)
}

func (s *CLITestSuite) TestInvalidFlagValue() {
	_, err := s.configFor("--config", s.cfgPath, "-c", "0", "-d", "example.com")
	s.ErrorIs(err, config.ErrInvalidConfig)
}

func (s *CLITestSuite) TestUnsupportedTypeFailsBeforeLookups() {
	_, err := s.execute("-t", "mx,aaaa", "-d", "example.com")
	s.Require().Error(err)
	s.ErrorIs(err, lookup.ErrUnsupportedLookupType)
	var typed *lookup.UnsupportedLookupTypeError
	s.Require().ErrorAs(err, &typed)
	s.Equal([]string{"aaaa"}, typed.Unsupported)
}

func (s *CLITestSuite) TestDomainSourceFlags() {
	_, err := s.execute("-f", "domains.txt", "-d", "example.com")
	s.Error(err, "filename and domains are mutually exclusive")

	_, err = s.execute("-t", "mx")
	s.Error(err, "one of filename or domains is required")
}

func (s *CLITestSuite) TestTypesCommand() {
	out, err := s.execute("types")
	s.Require().NoError(err)
	s.Contains(out, "LOOKUP TYPES:")
	for _, t := range lookup.All {
		s.Contains(out, string(t))
	}
	s.Contains(out, "_dmarc.<domain>")
}

func (s *CLITestSuite) TestVersionCommand() {
	out, err := s.execute("version")
	s.Require().NoError(err)
	s.Contains(out, "version: ")
	s.Contains(out, "commit: ")
}

func (s *CLITestSuite) TestConfigInit() {
	_, err := s.execute("config", "init")
	s.Require().NoError(err)

	cfg, err := config.New(s.cfgPath).Load()
	s.Require().NoError(err)
	s.Equal(config.Default(), cfg)

	_, err = s.execute("config", "init")
	s.ErrorIs(err, config.ErrConfigExists)

	_, err = s.execute("config", "init", "--force")
	s.NoError(err)
}

// configFor parses args on a fresh lookup command and resolves its config.
func (s *CLITestSuite) configFor(args ...string) (*config.Config, error) {
	cmd, f := newLookupCmd()
	s.Require().NoError(cmd.ParseFlags(args))
	return f.config(cmd)
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}
