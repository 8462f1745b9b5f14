// Package engine drives a lookup run: it validates the requested types,
// schedules the domains in batches, resolves each domain through the
// lookup dispatcher and writes one JSON line per domain in input order.
// The engine owns the MX cache, so cached answers live as long as it does.
package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ndejong/domain-email-records/internal/dnsresolver"
	"github.com/ndejong/domain-email-records/internal/lookup"
	"github.com/ndejong/domain-email-records/internal/mxcache"
	"github.com/ndejong/domain-email-records/internal/scheduler"
)

const (
	// DefaultChunkSize is the number of domains resolved concurrently.
	DefaultChunkSize = 500
	// DefaultTimeout is the lifetime of a single DNS query.
	DefaultTimeout = 10 * time.Second

	_etaLayout = "2006-01-02T15:04:05-0700"
)

// Engine resolves domain lists. It is safe to call Lookups repeatedly;
// runs share the MX cache.
type Engine struct {
	log         *zap.SugaredLogger
	querier     dnsresolver.Querier
	cache       *mxcache.Cache
	cacheSize   int
	chunkSize   int
	timeout     time.Duration
	nameservers []string
	rateLimit   float64
	progress    func(scheduler.Progress)
}

// Opt is a function option for configuring the Engine.
type Opt func(e *Engine)

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Opt {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithQuerier replaces the DNS client, for tests or custom transports.
// Timeout, nameserver and rate limit options no longer apply.
func WithQuerier(q dnsresolver.Querier) Opt {
	return func(e *Engine) {
		e.querier = q
	}
}

// WithChunkSize sets how many domains are resolved concurrently.
func WithChunkSize(n int) Opt {
	return func(e *Engine) {
		e.chunkSize = n
	}
}

// WithTimeout sets the per-query timeout.
func WithTimeout(d time.Duration) Opt {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithNameservers queries the given servers instead of the system ones.
func WithNameservers(ns []string) Opt {
	return func(e *Engine) {
		e.nameservers = ns
	}
}

// WithRateLimit caps DNS queries per second across the run.
func WithRateLimit(qps float64) Opt {
	return func(e *Engine) {
		e.rateLimit = qps
	}
}

// WithCacheSize sets the MX cache capacity.
func WithCacheSize(n int) Opt {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithProgress registers fn to receive every batch's progress after its
// results are written.
func WithProgress(fn func(scheduler.Progress)) Opt {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New creates an Engine.
func New(opts ...Opt) (*Engine, error) {
	e := &Engine{
		log:       zap.NewNop().Sugar(),
		cacheSize: mxcache.DefaultSize,
		chunkSize: DefaultChunkSize,
		timeout:   DefaultTimeout,
	}
	for _, o := range opts {
		o(e)
	}

	if e.chunkSize < 1 {
		return nil, fmt.Errorf("engine: %w", scheduler.ErrInvalidChunkSize)
	}
	if e.cacheSize < 1 {
		return nil, fmt.Errorf("engine: cache size must be at least 1, got %d", e.cacheSize)
	}

	if e.querier == nil {
		e.querier = dnsresolver.New(e.timeout,
			dnsresolver.WithResolvers(e.nameservers),
			dnsresolver.WithLogger(e.log),
			dnsresolver.WithRateLimit(e.rateLimit),
		)
	}
	e.cache = mxcache.New(e.cacheSize)

	return e, nil
}

// CacheStats reports the MX cache counters accumulated so far.
func (e *Engine) CacheStats() mxcache.Stats {
	return e.cache.Stats()
}

// Lookups resolves types for every domain and writes one JSON object per
// line to w, in the order of domains. An unsupported type fails the run
// before any query is sent.
func (e *Engine) Lookups(ctx context.Context, domains []string, types []lookup.Type, w io.Writer) (err error) {
	if err := lookup.Validate(types); err != nil {
		return err
	}

	log := e.log.With("run_id", uuid.NewString())
	log.Infof("Looking up %d domains in chunks of %d using %s nameservers",
		len(domains), e.chunkSize, e.nameserverLabel())

	dispatcher := lookup.NewDispatcher(e.querier, e.cache, log)
	sched := scheduler.New(e.chunkSize, scheduler.WithQueriesPerDomain(len(types)))

	bw := bufio.NewWriter(w)
	defer func() {
		err = multierr.Append(err, bw.Flush())
	}()
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	resolve := func(ctx context.Context, domain string) (lookup.DomainResult, error) {
		records, err := dispatcher.Resolve(ctx, domain, types)
		return lookup.DomainResult{Domain: domain, Records: records}, err
	}

	for batch, err := range scheduler.Run(ctx, sched, domains, resolve) {
		if err != nil {
			return fmt.Errorf("lookups: %w", err)
		}
		for _, res := range batch.Results {
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("writing result for %q: %w", res.Domain, err)
			}
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("writing batch %d: %w", batch.Progress.Batch, err)
		}

		p := batch.Progress
		perDomain, perQuery := millis(p.PerDomain), millis(p.PerQuery)
		log.With(
			"batch", p.Batch,
			"ms_per_domain", perDomain,
			"ms_per_query", perQuery,
			"avg_ms_per_domain", millis(p.AvgPerDomain),
		).Infof("from:%s (index:%d) to:%s (index:%d) query rate ~%.1fms per domain (%.1fms per query) ETA: %s",
			p.FirstDomain, p.StartIndex, p.LastDomain, p.EndIndex,
			perDomain, perQuery, p.ETA.Format(_etaLayout))
		if e.progress != nil {
			e.progress(p)
		}
	}

	stats := e.cache.Stats()
	log.Debugw("lookups complete",
		"domains", len(domains),
		"mx_cache_hits", stats.Hits,
		"mx_cache_misses", stats.Misses,
		"mx_queries", stats.Computes,
	)
	return nil
}

// millis rounds d to a tenth of a millisecond.
func millis(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*10) / 10
}

func (e *Engine) nameserverLabel() string {
	if len(e.nameservers) == 0 {
		return "system-local"
	}
	return strings.Join(e.nameservers, ", ")
}
