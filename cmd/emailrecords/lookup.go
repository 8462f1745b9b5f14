package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/ndejong/domain-email-records/internal/buildinfo"
	"github.com/ndejong/domain-email-records/internal/config"
	"github.com/ndejong/domain-email-records/internal/domainlist"
	"github.com/ndejong/domain-email-records/internal/engine"
	"github.com/ndejong/domain-email-records/internal/filesys"
	"github.com/ndejong/domain-email-records/internal/log"
	"github.com/ndejong/domain-email-records/internal/lookup"
	"github.com/ndejong/domain-email-records/internal/metrics"
)

var errUsage = errors.New("usage")

// lookupFlags are the command-line settings of a lookup run. Only flags the
// user actually set override the configuration file.
type lookupFlags struct {
	configPath  string
	quiet       bool
	verbose     bool
	out         string
	timeout     int
	nameservers []string
	types       []string
	chunk       int
	domains     []string
	filename    string
	csvColumn   int
	rateLimit   float64
	metricsAddr string
}

func newLookupCmd() (*cobra.Command, *lookupFlags) {
	f := &lookupFlags{}

	cmd := &cobra.Command{
		Use:   "emailrecords",
		Short: "Look up MX, SPF and DMARC records for many domains",
		Long: `emailrecords resolves the email related DNS records (ns, apex, mx,
mx_preference, spf, txt, dmarc) of many domains at once and writes one
JSON object per domain, in input order.`,
		Example: `  emailrecords -d example.com,example.org
  emailrecords -f domains.csv --csv-column 2 -o records.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.config(cmd)
			if err != nil {
				return err
			}
			return runLookups(cmd.Context(), cfg, f, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVar(&f.configPath, "config", "", "Configuration file (default: ~/.domain-email-records/config.yaml)")

	fl := cmd.Flags()
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Set quiet logging output")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Set verbose logging output")
	fl.StringVarP(&f.out, "out", "o", "", "Filename to save JSON formatted output to (default: stdout)")
	fl.IntVarP(&f.timeout, "timeout", "T", int(config.DefaultQueryTimeout/time.Second), "Timeout seconds per domain-record query")
	fl.StringSliceVarP(&f.nameservers, "nameservers", "n", nil, "Alternate nameservers (default: system nameservers)")
	fl.StringSliceVarP(&f.types, "types", "t", nil, "Lookup types to collect (default: ns,apex,mx,spf,dmarc); see 'emailrecords types'")
	fl.IntVarP(&f.chunk, "chunk", "c", config.DefaultChunkSize, "Number of domains to resolve together")
	fl.StringSliceVarP(&f.domains, "domains", "d", nil, "Domain names to query")
	fl.StringVarP(&f.filename, "filename", "f", "", "File with domains to use; plain list -or- comma-separated CSV")
	fl.IntVar(&f.csvColumn, "csv-column", config.DefaultCSVColumn, "CSV column number holding the domain names")
	fl.Float64Var(&f.rateLimit, "rate-limit", 0, "Maximum DNS queries per second (0: unlimited)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address during the run")

	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose")
	cmd.MarkFlagsMutuallyExclusive("filename", "domains")
	cmd.MarkFlagsOneRequired("filename", "domains")

	return cmd, f
}

// config loads the configuration file and applies the flags set on cmd.
func (f *lookupFlags) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.New(f.configPath).Load()
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("timeout") {
		cfg.Lookup.QueryTimeout = time.Duration(f.timeout) * time.Second
	}
	if changed("nameservers") {
		cfg.Lookup.Nameservers = f.nameservers
	}
	if changed("types") {
		cfg.Lookup.Types = f.types
	}
	if changed("chunk") {
		cfg.Lookup.ChunkSize = f.chunk
	}
	if changed("csv-column") {
		cfg.Input.CSVColumn = f.csvColumn
	}
	if changed("rate-limit") {
		cfg.Lookup.RateLimit = f.rateLimit
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	switch {
	case f.quiet:
		cfg.Log.Level = "critical"
	case f.verbose:
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *lookupFlags) loadDomains(cfg *config.Config) ([]string, error) {
	if f.filename != "" {
		return domainlist.New(filesys.OS(), cfg.Input.CSVColumn).Load(f.filename)
	}
	domains := domainlist.Split(f.domains)
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: no domains given", errUsage)
	}
	return domains, nil
}

func runLookups(ctx context.Context, cfg *config.Config, f *lookupFlags, stdout io.Writer) error {
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	log.Debug("starting", "build", buildinfo.UserAgent(), "config", cfg)

	types, err := cfg.LookupTypes()
	if err != nil {
		return err
	}
	domains, err := f.loadDomains(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Warn("metrics endpoint failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	eng, err := engine.New(
		engine.WithLogger(log.Logger),
		engine.WithChunkSize(cfg.Lookup.ChunkSize),
		engine.WithTimeout(cfg.Lookup.QueryTimeout),
		engine.WithNameservers(cfg.Lookup.Nameservers),
		engine.WithRateLimit(cfg.Lookup.RateLimit),
	)
	if err != nil {
		return err
	}

	if f.out == "" {
		return logFault(eng.Lookups(ctx, domains, types, stdout))
	}

	out, err := filesys.CreateAtomic(filesys.OS(), f.out, 0o644)
	if err != nil {
		return err
	}
	err = logFault(eng.Lookups(ctx, domains, types, out))
	// an interrupted run keeps the complete lines written so far
	if err == nil || errors.Is(err, context.Canceled) {
		if cerr := out.Commit(); cerr != nil {
			return multierr.Append(err, cerr)
		}
		return err
	}
	_ = out.Abort()
	return err
}

// logFault records engine failures other than a rejected request, which
// is reported to the user directly.
func logFault(err error) error {
	if err != nil && !errors.Is(err, lookup.ErrUnsupportedLookupType) {
		log.Error("lookups failed", "error", err)
	}
	return err
}
