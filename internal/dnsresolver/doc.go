// Package dnsresolver provides single-question DNS resolution for the
// email-record lookups (NS, A, MX and TXT) and TXT payload decoding.
//
// The resolver is built for bulk runs where one missing record type must
// never stop its siblings from being attempted. Query therefore never
// returns an error: every failure degrades to a nil answer and a debug
// event. Lookup exposes the classified error for callers that care.
//
// # Basic Usage
//
// Create a resolver that uses the system nameservers (/etc/resolv.conf):
//
//	resolver := dnsresolver.New(10 * time.Second)
//	for _, rr := range resolver.Query(ctx, "example.com", dns.TypeMX) {
//		fmt.Println(rr.(*dns.MX).Mx)
//	}
//
// Configure resolver with custom options:
//
//	resolver := dnsresolver.New(
//		10 * time.Second,
//		dnsresolver.WithResolvers([]string{"1.1.1.1", "8.8.8.8:53"}),
//		dnsresolver.WithLogger(logger),
//		dnsresolver.WithRateLimit(200),
//	)
//
// # Nameserver Failover
//
// Nameservers are tried in order inside a single query lifetime:
//   - transport errors, SERVFAIL and REFUSED move on to the next nameserver
//   - NXDOMAIN and an empty answer section are definitive and stop the lookup
//   - a truncated UDP reply is retried over TCP against the same nameserver
//
// Failures from every nameserver are aggregated with go.uber.org/multierr.
//
// # Error Handling
//
// Lookup classifies failures into:
//   - ErrNXDomain: the name does not exist
//   - ErrNoAnswer: the name exists but has no records of the type
//   - ErrServFail: server failure, refusal or an unexpected rcode
//   - ErrTimeout: the query lifetime expired
//   - ErrEmptyMsg, ErrEmptyHostname
//
// # TXT Decoding
//
// DecodeTXT uses the first character-string of a TXT record only; strings
// two and onwards of a multi-string record are ignored. Bytes that are not
// valid UTF-8 cause a warning and the value is dropped.
package dnsresolver
