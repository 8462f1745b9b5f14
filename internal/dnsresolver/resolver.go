// Package dnsresolver issues single DNS queries for the record types the
// lookup dispatcher needs and decodes TXT payloads.
package dnsresolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ndejong/domain-email-records/internal/metrics"
)

var (
	// ErrEmptyHostname is returned when an empty hostname is provided.
	ErrEmptyHostname = errors.New("empty hostname")
	// ErrEmptyMsg is returned when a nameserver replies with no message.
	ErrEmptyMsg = errors.New("empty message")
	// ErrNXDomain is returned when the queried name does not exist.
	ErrNXDomain = errors.New("non-existent domain")
	// ErrServFail is returned when a nameserver fails or refuses the query.
	ErrServFail = errors.New("server failure")
	// ErrNoAnswer is returned when the name exists but has no records of the type.
	ErrNoAnswer = errors.New("no answer")
	// ErrTimeout is returned when the query lifetime expires.
	ErrTimeout = errors.New("query timeout")
)

var (
	_defaultResolver = "1.1.1.1:53"
	_resolvConf      = "/etc/resolv.conf"
)

var _ Querier = (*Client)(nil)

// Querier issues one query and absorbs every failure into a nil answer.
type Querier interface {
	Query(ctx context.Context, name string, qtype uint16) []dns.RR
}

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Client resolves single (name, type) questions against a list of
// nameservers, trying them in order until one gives a usable reply.
type Client struct {
	Client    Exchanger
	TCPClient Exchanger // used when a UDP reply comes back truncated
	Timeout   time.Duration
	Resolvers []string
	Limiter   *rate.Limiter

	log *zap.SugaredLogger
}

// Opt is a function option for configuring the Client.
type Opt func(r *Client)

// New creates a Client with the given per-query lifetime. Without
// WithResolvers the nameservers come from the system resolver configuration.
func New(timeout time.Duration, opts ...Opt) *Client {
	res := &Client{
		Client: &dns.Client{
			Net:     "udp",
			Timeout: timeout,
		},
		TCPClient: &dns.Client{
			Net:     "tcp",
			Timeout: timeout,
		},
		Timeout: timeout,
		log:     zap.NewNop().Sugar(),
	}

	for _, o := range opts {
		o(res)
	}

	if len(res.Resolvers) == 0 {
		res.Resolvers = systemResolvers(_resolvConf)
	}

	return res
}

// WithResolvers sets the nameservers to query. Addresses without a port get :53.
func WithResolvers(resolvers []string) Opt {
	return func(r *Client) {
		r.Resolvers = normalizeResolvers(resolvers)
	}
}

// WithTimeout overrides the timeout provided to New.
func WithTimeout(timeout time.Duration) Opt {
	return func(r *Client) {
		r.Timeout = timeout
	}
}

// WithLogger sets the logger used for per-query diagnostics.
func WithLogger(l *zap.SugaredLogger) Opt {
	return func(r *Client) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRateLimit caps outgoing queries per second. Zero or less means unlimited.
func WithRateLimit(qps float64) Opt {
	return func(r *Client) {
		if qps > 0 {
			burst := int(qps)
			if burst < 1 {
				burst = 1
			}
			r.Limiter = rate.NewLimiter(rate.Limit(qps), burst)
		}
	}
}

// Query resolves qtype for name and returns the matching answer records.
// Any failure is logged at debug level and reported as a nil answer.
func (r *Client) Query(ctx context.Context, name string, qtype uint16) []dns.RR {
	defer metrics.TrackNamedDuration("dns.query", dns.TypeToString[qtype])()

	answers, err := r.Lookup(ctx, name, qtype)
	if err != nil {
		metrics.TrackStatus("dns.query", statusOf(err))
		r.log.Debugw("unable to query",
			"domain", name,
			"type", strings.ToLower(dns.TypeToString[qtype]),
			"error", err,
		)
		return nil
	}
	metrics.TrackStatus("dns.query", "ok")
	r.log.Debugw("query answered",
		"domain", name,
		"type", strings.ToLower(dns.TypeToString[qtype]),
		"records", len(answers),
	)
	return answers
}

// Lookup resolves qtype for name within the client's timeout. Nameservers are
// tried in order; transport errors and server failures move on to the next one,
// while a definitive answer (records, NXDOMAIN or an empty answer) ends the lookup.
func (r *Client) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyHostname
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %v", ErrTimeout, err)
		}
	}

	resolvers := r.Resolvers
	if len(resolvers) == 0 {
		resolvers = []string{_defaultResolver}
	}

	var errs error
	for _, server := range resolvers {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, classify(err))
			break
		}

		answers, err := r.exchange(ctx, name, qtype, server)
		if err == nil {
			return answers, nil
		}
		if errors.Is(err, ErrNXDomain) || errors.Is(err, ErrNoAnswer) {
			return nil, err
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", server, err))
	}

	return nil, fmt.Errorf("dns lookup %s %q: %w", dns.TypeToString[qtype], name, errs)
}

// exchange asks a single nameserver and extracts the answers of qtype.
func (r *Client) exchange(ctx context.Context, name string, qtype uint16, server string) ([]dns.RR, error) {
	// Fresh request each attempt: ExchangeContext mutates *dns.Msg
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(name), qtype)

	resp, _, err := r.Client.ExchangeContext(ctx, req, server)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil {
		return nil, ErrEmptyMsg
	}

	if resp.Truncated && r.TCPClient != nil {
		req = &dns.Msg{}
		req.SetQuestion(dns.Fqdn(name), qtype)
		resp, _, err = r.TCPClient.ExchangeContext(ctx, req, server)
		if err != nil {
			return nil, classify(err)
		}
		if resp == nil {
			return nil, ErrEmptyMsg
		}
	}

	return parseAnswers(resp, qtype)
}

// parseAnswers maps the response code onto the package errors and keeps only
// the answer records of qtype, dropping any CNAME chain that led to them.
func parseAnswers(resp *dns.Msg, qtype uint16) ([]dns.RR, error) {
	if resp == nil {
		return nil, ErrEmptyMsg
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, ErrNXDomain
	case dns.RcodeServerFailure, dns.RcodeRefused:
		return nil, fmt.Errorf("%w: %s", ErrServFail, dns.RcodeToString[resp.Rcode])
	default:
		return nil, fmt.Errorf("%w: unexpected rcode %s", ErrServFail, dns.RcodeToString[resp.Rcode])
	}

	var answers []dns.RR
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype == qtype {
			answers = append(answers, rr)
		}
	}

	if len(answers) == 0 {
		return nil, ErrNoAnswer
	}
	return answers, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrNXDomain):
		return "nxdomain"
	case errors.Is(err, ErrNoAnswer):
		return "no_answer"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServFail):
		return "servfail"
	default:
		return "error"
	}
}

// systemResolvers reads nameservers from a resolv.conf style file.
func systemResolvers(path string) []string {
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil || len(conf.Servers) == 0 {
		return []string{_defaultResolver}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

// normalizeResolvers ensures host:port formatting and drops blanks and duplicates.
func normalizeResolvers(resolvers []string) []string {
	var out []string
	seen := make(map[string]bool, len(resolvers))
	for _, server := range resolvers {
		value := strings.TrimSpace(server)
		if value == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(value); err != nil {
			value = net.JoinHostPort(strings.Trim(value, "[]"), "53")
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
