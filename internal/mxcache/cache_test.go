package mxcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type CacheTestSuite struct {
	suite.Suite
	cache *Cache
	calls *atomic.Int64
}

func (s *CacheTestSuite) SetupTest() {
	s.cache = New(3)
	s.calls = atomic.NewInt64(0)
}

func (s *CacheTestSuite) compute(ctx context.Context, domain string) Entry {
	s.calls.Inc()
	return Entry{
		Exchanges:   []string{"mx1." + domain + ".", "mx2." + domain + "."},
		Preferences: []string{"10", "20"},
	}
}

func (s *CacheTestSuite) TestGetOrComputeMemoizes() {
	ctx := context.Background()

	first := s.cache.GetOrCompute(ctx, "example.com", s.compute)
	second := s.cache.GetOrCompute(ctx, "example.com", s.compute)

	s.Equal(first, second)
	s.Equal(int64(1), s.calls.Load())
	s.Equal(Stats{Hits: 1, Misses: 1, Computes: 1}, s.cache.Stats())
}

func (s *CacheTestSuite) TestReturnedSlicesAreCopies() {
	ctx := context.Background()

	e := s.cache.GetOrCompute(ctx, "example.com", s.compute)
	e.Exchanges[0] = "tampered."

	again := s.cache.GetOrCompute(ctx, "example.com", s.compute)
	s.Equal("mx1.example.com.", again.Exchanges[0])
}

func (s *CacheTestSuite) TestEmptyAnswerIsCached() {
	ctx := context.Background()
	empty := func(context.Context, string) Entry {
		s.calls.Inc()
		return Entry{}
	}

	s.Empty(s.cache.GetOrCompute(ctx, "nonexistent.invalid", empty).Exchanges)
	s.Empty(s.cache.GetOrCompute(ctx, "nonexistent.invalid", empty).Preferences)
	s.Equal(int64(1), s.calls.Load())
}

func (s *CacheTestSuite) TestEvictsLeastRecentlyUsed() {
	ctx := context.Background()

	for _, d := range []string{"a.test", "b.test", "c.test"} {
		s.cache.GetOrCompute(ctx, d, s.compute)
	}
	// touch a.test so b.test becomes the oldest
	s.cache.GetOrCompute(ctx, "a.test", s.compute)
	s.cache.GetOrCompute(ctx, "d.test", s.compute)

	s.Equal(3, s.cache.Len())
	s.Equal(int64(4), s.calls.Load())

	s.cache.GetOrCompute(ctx, "a.test", s.compute)
	s.Equal(int64(4), s.calls.Load(), "a.test should still be cached")

	s.cache.GetOrCompute(ctx, "b.test", s.compute)
	s.Equal(int64(5), s.calls.Load(), "b.test should have been evicted")
}

func (s *CacheTestSuite) TestConcurrentSameKeyComputesOnce() {
	ctx := context.Background()
	release := make(chan struct{})
	slow := func(ctx context.Context, domain string) Entry {
		<-release
		return s.compute(ctx, domain)
	}

	var wg sync.WaitGroup
	results := make([]Entry, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.cache.GetOrCompute(ctx, "example.com", slow)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int64(1), s.calls.Load())
	for _, r := range results {
		s.Equal(results[0], r)
	}
}

func (s *CacheTestSuite) TestConcurrentDistinctKeys() {
	ctx := context.Background()
	c := New(DefaultSize)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := fmt.Sprintf("d%d.test", i%20)
			e := c.GetOrCompute(ctx, d, s.compute)
			s.Len(e.Exchanges, len(e.Preferences))
		}(i)
	}
	wg.Wait()

	s.Equal(int64(20), s.calls.Load())
	s.Equal(20, c.Len())
}

func (s *CacheTestSuite) TestNewPanicsOnInvalidSize() {
	s.Panics(func() { New(0) })
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestLRU(t *testing.T) {
	c := newLRU[string, int](2)

	if _, ok := c.Add("a", 1); ok {
		t.Fatal("unexpected eviction")
	}
	c.Add("b", 2)
	c.Add("a", 10) // update moves a to front

	evicted, ok := c.Add("c", 3)
	if !ok || evicted != "b" {
		t.Fatalf("expected b evicted, got %q (%v)", evicted, ok)
	}
	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("expected a=10, got %d (%v)", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should be gone")
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}
