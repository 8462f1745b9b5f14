// Package lookup turns a domain and a list of lookup types into a RecordSet
// using a fixed table of per-type handlers.
package lookup

import (
	"context"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/ndejong/domain-email-records/internal/dnsresolver"
	"github.com/ndejong/domain-email-records/internal/mxcache"
)

// handler extracts the values of one lookup type for the domain of r.
// A nil or empty result means the type is left out of the RecordSet.
type handler func(ctx context.Context, r *request) []string

// request is the state of a single Resolve call.
type request struct {
	domain string
	mx     *mxcache.Entry
}

// Dispatcher resolves the requested lookup types of a domain in order.
type Dispatcher struct {
	resolver dnsresolver.Querier
	cache    *mxcache.Cache
	log      *zap.SugaredLogger
	handlers map[Type]handler
}

// NewDispatcher builds the handler table over resolver and the shared MX cache.
func NewDispatcher(resolver dnsresolver.Querier, cache *mxcache.Cache, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Dispatcher{
		resolver: resolver,
		cache:    cache,
		log:      log,
	}
	d.handlers = map[Type]handler{
		NS:           d.nameServers,
		Apex:         d.apex,
		MX:           d.exchanges,
		MXPreference: d.preferences,
		SPF:          d.spf,
		TXT:          d.txt,
		DMARC:        d.dmarc,
	}
	return d
}

// Resolve validates types and then runs each handler in evaluation order,
// keeping only non-empty results. No query is issued if validation fails.
func (d *Dispatcher) Resolve(ctx context.Context, domain string, types []Type) (RecordSet, error) {
	if err := Validate(types); err != nil {
		return RecordSet{}, err
	}

	d.log.Debugw("domain record lookups", "domain", domain, "types", types)

	r := &request{domain: domain}
	var records RecordSet
	for _, t := range expand(types) {
		records.Set(t, d.handlers[t](ctx, r))
	}
	return records, nil
}

func (d *Dispatcher) nameServers(ctx context.Context, r *request) []string {
	var out []string
	for _, rr := range d.resolver.Query(ctx, r.domain, dns.TypeNS) {
		if ns, ok := rr.(*dns.NS); ok {
			out = append(out, ns.Ns)
		}
	}
	return out
}

func (d *Dispatcher) apex(ctx context.Context, r *request) []string {
	var out []string
	for _, rr := range d.resolver.Query(ctx, r.domain, dns.TypeA) {
		if a, ok := rr.(*dns.A); ok {
			out = append(out, a.A.String())
		}
	}
	return out
}

func (d *Dispatcher) exchanges(ctx context.Context, r *request) []string {
	return d.mxEntry(ctx, r).Exchanges
}

func (d *Dispatcher) preferences(ctx context.Context, r *request) []string {
	return d.mxEntry(ctx, r).Preferences
}

// mxEntry reads the cache at most once per request, so mx and mx_preference
// come from the same answer even if the entry is evicted in between.
func (d *Dispatcher) mxEntry(ctx context.Context, r *request) mxcache.Entry {
	if r.mx == nil {
		e := d.cache.GetOrCompute(ctx, r.domain, d.queryMX)
		r.mx = &e
	}
	return *r.mx
}

// queryMX is the single MX query behind both mx and mx_preference.
func (d *Dispatcher) queryMX(ctx context.Context, domain string) mxcache.Entry {
	var e mxcache.Entry
	for _, rr := range d.resolver.Query(ctx, domain, dns.TypeMX) {
		if mx, ok := rr.(*dns.MX); ok {
			e.Exchanges = append(e.Exchanges, mx.Mx)
			e.Preferences = append(e.Preferences, strconv.Itoa(int(mx.Preference)))
		}
	}
	return e
}

func (d *Dispatcher) spf(ctx context.Context, r *request) []string {
	var out []string
	for _, v := range d.texts(ctx, r.domain, r.domain) {
		lower := strings.ToLower(v)
		if strings.Contains(lower, "spf1") || strings.Contains(lower, "spf2") {
			out = append(out, v)
		}
	}
	return out
}

func (d *Dispatcher) txt(ctx context.Context, r *request) []string {
	return d.texts(ctx, r.domain, r.domain)
}

func (d *Dispatcher) dmarc(ctx context.Context, r *request) []string {
	return d.texts(ctx, r.domain, "_dmarc."+r.domain)
}

// texts queries TXT at name and returns the decoded, non-empty values.
// Decode warnings name the domain being looked up, not the queried name.
func (d *Dispatcher) texts(ctx context.Context, domain, name string) []string {
	var out []string
	for _, rr := range d.resolver.Query(ctx, name, dns.TypeTXT) {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		if v, ok := dnsresolver.DecodeTXT(d.log, domain, txt); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}
