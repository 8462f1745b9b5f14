package lookup

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Type is one of the closed set of lookup types a domain can be queried for.
type Type string

const (
	NS           Type = "ns"
	Apex         Type = "apex"
	MX           Type = "mx"
	MXPreference Type = "mx_preference"
	SPF          Type = "spf"
	TXT          Type = "txt"
	DMARC        Type = "dmarc"
)

// All lists every supported lookup type in canonical order.
var All = []Type{NS, Apex, MX, MXPreference, SPF, TXT, DMARC}

// DefaultTypes is what a run collects when no types are requested.
var DefaultTypes = []Type{NS, Apex, MX, SPF, DMARC}

// Valid reports whether t belongs to the supported set.
func (t Type) Valid() bool { return slices.Contains(All, t) }

// ErrUnsupportedLookupType is matched by every *UnsupportedLookupTypeError.
var ErrUnsupportedLookupType = errors.New("unsupported domain record lookup_type requested")

// UnsupportedLookupTypeError carries the full request and the offending types.
type UnsupportedLookupTypeError struct {
	Requested   []string
	Unsupported []string
}

func (e *UnsupportedLookupTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedLookupType, strings.Join(e.Unsupported, ", "))
}

// Is lets errors.Is(err, ErrUnsupportedLookupType) match.
func (e *UnsupportedLookupTypeError) Is(target error) bool {
	return target == ErrUnsupportedLookupType
}

// ParseTypes validates names against the supported set. Names must match
// exactly after trimming; nothing is returned if any is unknown.
func ParseTypes(names []string) ([]Type, error) {
	types := make([]Type, 0, len(names))
	var unsupported []string
	for _, n := range names {
		t := Type(strings.TrimSpace(n))
		if !t.Valid() {
			unsupported = append(unsupported, n)
			continue
		}
		types = append(types, t)
	}
	if len(unsupported) > 0 {
		return nil, &UnsupportedLookupTypeError{Requested: names, Unsupported: unsupported}
	}
	return types, nil
}

// Validate checks already-typed values, e.g. ones built by a library caller.
func Validate(types []Type) error {
	var unsupported []string
	for _, t := range types {
		if !t.Valid() {
			unsupported = append(unsupported, string(t))
		}
	}
	if len(unsupported) == 0 {
		return nil
	}
	requested := make([]string, len(types))
	for i, t := range types {
		requested[i] = string(t)
	}
	return &UnsupportedLookupTypeError{Requested: requested, Unsupported: unsupported}
}

// expand returns the evaluation order for a request: duplicates are dropped
// keeping the first occurrence, and mx_preference is placed right after mx
// when mx is requested without it. An explicit mx_preference keeps its position.
func expand(types []Type) []Type {
	out := make([]Type, 0, len(types)+1)
	seen := make(map[Type]bool, len(types)+1)
	hasPref := slices.Contains(types, MXPreference)
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if t == MX && !hasPref {
			seen[MXPreference] = true
			out = append(out, MXPreference)
		}
	}
	return out
}
