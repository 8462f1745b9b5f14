// Package scheduler runs a per-domain function over a domain list in
// fixed-size batches: every domain of a batch concurrently, batches one
// after another, with throughput and ETA accounting after each batch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndejong/domain-email-records/internal/metrics"
)

// ErrInvalidChunkSize is returned by Run when the chunk size is below one.
var ErrInvalidChunkSize = errors.New("chunk size must be at least 1")

// Func processes one domain. A returned error aborts the run.
type Func[T any] func(ctx context.Context, domain string) (T, error)

// Metrics are the timings of one batch plus the running figures of the run.
type Metrics struct {
	Elapsed      time.Duration // wall time of this batch
	PerDomain    time.Duration // Elapsed / domains in this batch
	PerQuery     time.Duration // PerDomain / queries per domain
	AvgPerDomain time.Duration // cumulative moving average of PerDomain
	ETA          time.Time     // run start + total domains × AvgPerDomain, local zone
}

// Progress describes a finished batch for diagnostics.
type Progress struct {
	Batch       int
	FirstDomain string
	LastDomain  string
	StartIndex  int // index of FirstDomain in the input
	EndIndex    int // one past the index of LastDomain
	Processed   int
	Total       int
	Metrics
}

// Batch holds the results of one batch in input order.
type Batch[T any] struct {
	Domains  []string
	Results  []T
	Progress Progress
}

// Scheduler holds the batching parameters; it keeps no state between runs.
type Scheduler struct {
	chunkSize        int
	queriesPerDomain int
	now              func() time.Time
}

// Opt is a function option for configuring the Scheduler.
type Opt func(s *Scheduler)

// New returns a Scheduler running chunkSize domains at a time.
func New(chunkSize int, opts ...Opt) *Scheduler {
	s := &Scheduler{
		chunkSize:        chunkSize,
		queriesPerDomain: 1,
		now:              time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithQueriesPerDomain sets the divisor used for the per-query rate.
func WithQueriesPerDomain(n int) Opt {
	return func(s *Scheduler) {
		if n > 0 {
			s.queriesPerDomain = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Opt {
	return func(s *Scheduler) {
		s.now = now
	}
}

// ChunkSize returns the configured batch size.
func (s *Scheduler) ChunkSize() int { return s.chunkSize }

// Run returns a single-use sequence yielding one Batch per chunk of domains.
// The next batch does not start until the consumer's loop body returns.
// The sequence stops after the first error, which is yielded with a zero Batch.
func Run[T any](ctx context.Context, s *Scheduler, domains []string, fn Func[T]) iter.Seq2[Batch[T], error] {
	return func(yield func(Batch[T], error) bool) {
		if s.chunkSize < 1 {
			yield(Batch[T]{}, ErrInvalidChunkSize)
			return
		}

		var (
			runStart = s.now()
			avg      time.Duration
			batchNum int
		)
		metrics.SetDomainsRemaining(len(domains))

		for start := 0; start < len(domains); start += s.chunkSize {
			if err := ctx.Err(); err != nil {
				yield(Batch[T]{}, fmt.Errorf("run interrupted at index %d: %w", start, err))
				return
			}

			end := min(start+s.chunkSize, len(domains))
			chunk := domains[start:end]

			batchStart := s.now()
			results, err := runChunk(ctx, chunk, fn)
			if err != nil {
				yield(Batch[T]{}, err)
				return
			}
			// results finished after cancellation may be incomplete
			if err := ctx.Err(); err != nil {
				yield(Batch[T]{}, fmt.Errorf("run interrupted in batch at index %d: %w", start, err))
				return
			}
			now := s.now()

			batchNum++
			m := Metrics{Elapsed: now.Sub(batchStart)}
			m.PerDomain = m.Elapsed / time.Duration(len(chunk))
			m.PerQuery = m.PerDomain / time.Duration(s.queriesPerDomain)
			avg += (m.PerDomain - avg) / time.Duration(batchNum)
			m.AvgPerDomain = avg
			m.ETA = runStart.Add(time.Duration(len(domains)) * avg).Local()

			metrics.SetDomainsRemaining(len(domains) - end)

			batch := Batch[T]{
				Domains: chunk,
				Results: results,
				Progress: Progress{
					Batch:       batchNum,
					FirstDomain: chunk[0],
					LastDomain:  chunk[len(chunk)-1],
					StartIndex:  start,
					EndIndex:    end,
					Processed:   end,
					Total:       len(domains),
					Metrics:     m,
				},
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// runChunk calls fn for every domain concurrently and waits for all of them.
func runChunk[T any](ctx context.Context, chunk []string, fn Func[T]) ([]T, error) {
	defer metrics.TrackDuration("scheduler.batch")()

	results := make([]T, len(chunk))
	grp, gctx := errgroup.WithContext(ctx)

	for i, domain := range chunk {
		grp.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic processing %q: %v", domain, r)
				}
			}()

			res, err := fn(gctx, domain)
			if err != nil {
				return fmt.Errorf("processing %q: %w", domain, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
