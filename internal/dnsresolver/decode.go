package dnsresolver

import (
	"fmt"
	"unicode/utf8"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// DecodeTXT returns the first character-string of a TXT record as UTF-8 text.
// Later strings of a multi-string record are not concatenated. When the bytes
// are not valid UTF-8 a warning naming the domain is logged and ok is false.
func DecodeTXT(log *zap.SugaredLogger, domain string, rr *dns.TXT) (value string, ok bool) {
	if rr == nil || len(rr.Txt) == 0 {
		return "", false
	}

	raw := unescapeTXT(rr.Txt[0])
	if !utf8.Valid(raw) {
		if log != nil {
			log.Warnw("unable to UTF-8 decode rdata",
				"domain", domain,
				"rdata", fmt.Sprintf("%q", raw),
			)
		}
		return "", false
	}
	return string(raw), true
}

// unescapeTXT reverses the presentation escaping miekg/dns applies when it
// unpacks a character-string: \DDD for unprintable bytes and \X for quotes
// and backslashes.
func unescapeTXT(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			out = append(out, c)
			continue
		}
		if i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) {
			n := int(s[i+1]-'0')*100 + int(s[i+2]-'0')*10 + int(s[i+3]-'0')
			if n <= 0xff {
				out = append(out, byte(n))
				i += 3
				continue
			}
		}
		out = append(out, s[i+1])
		i++
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
