package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/mock"
	"go.uber.org/atomic"

	"github.com/ndejong/domain-email-records/internal/dnsresolver"
)

var (
	_ dnsresolver.Querier = (*MockQuerier)(nil)
	_ dnsresolver.Querier = (*Zone)(nil)
)

// MockQuerier is a testify mock of dnsresolver.Querier.
type MockQuerier struct {
	mock.Mock
}

// Query mocks the Query method.
func (m *MockQuerier) Query(ctx context.Context, name string, qtype uint16) []dns.RR {
	args := m.Called(ctx, name, qtype)
	// Need to handle potential nil slice return
	var rrs []dns.RR
	if args.Get(0) != nil {
		rrs = args.Get(0).([]dns.RR)
	}
	return rrs
}

type zoneKey struct {
	name  string
	qtype uint16
}

// Zone is an in-memory Querier answering from records added to it and
// counting every query it receives.
type Zone struct {
	// Delay is slept before answering, to let concurrent lookups overlap.
	Delay time.Duration

	mu      sync.Mutex
	records map[zoneKey][]dns.RR
	calls   map[zoneKey]int
	total   atomic.Int64
}

// NewZone returns a Zone holding rrs, given in zone-file presentation format.
func NewZone(rrs ...string) *Zone {
	z := &Zone{
		records: make(map[zoneKey][]dns.RR),
		calls:   make(map[zoneKey]int),
	}
	for _, s := range rrs {
		z.Add(MustRR(s))
	}
	return z
}

// Add stores rr under its owner name and type.
func (z *Zone) Add(rr dns.RR) {
	z.mu.Lock()
	defer z.mu.Unlock()
	k := key(rr.Header().Name, rr.Header().Rrtype)
	z.records[k] = append(z.records[k], rr)
}

// Query answers from the stored records; unknown names get nil.
func (z *Zone) Query(ctx context.Context, name string, qtype uint16) []dns.RR {
	z.total.Inc()
	k := key(name, qtype)

	z.mu.Lock()
	z.calls[k]++
	rrs := append([]dns.RR(nil), z.records[k]...)
	z.mu.Unlock()

	if z.Delay > 0 {
		select {
		case <-time.After(z.Delay):
		case <-ctx.Done():
			return nil
		}
	}
	if len(rrs) == 0 {
		return nil
	}
	return rrs
}

// Calls returns how often name/qtype was queried.
func (z *Zone) Calls(name string, qtype uint16) int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.calls[key(name, qtype)]
}

// Total returns the number of queries received.
func (z *Zone) Total() int64 { return z.total.Load() }

// MustRR parses a presentation-format record and panics on error.
func MustRR(s string) dns.RR {
	rr, err := dns.NewRR(s)
	if err != nil {
		panic(err)
	}
	return rr
}

func key(name string, qtype uint16) zoneKey {
	return zoneKey{name: strings.ToLower(dns.Fqdn(name)), qtype: qtype}
}
