package lookup

import (
	"bytes"
	"encoding/json"
)

// RecordSet maps lookup types to their values, remembering insertion order
// so serialized output follows the requested type order.
type RecordSet struct {
	keys   []Type
	values map[Type][]string
}

// Set stores values under t. Empty values are ignored so a type is never
// present with zero entries; setting an existing type replaces its values.
func (r *RecordSet) Set(t Type, values []string) {
	if len(values) == 0 {
		return
	}
	if r.values == nil {
		r.values = make(map[Type][]string)
	}
	if _, ok := r.values[t]; !ok {
		r.keys = append(r.keys, t)
	}
	r.values[t] = values
}

// Get returns the values for t.
func (r RecordSet) Get(t Type) ([]string, bool) {
	v, ok := r.values[t]
	return v, ok
}

// Types returns the present types in insertion order.
func (r RecordSet) Types() []Type { return append([]Type(nil), r.keys...) }

// Len returns the number of present types.
func (r RecordSet) Len() int { return len(r.keys) }

// MarshalJSON encodes the set as an object whose keys keep insertion order.
func (r RecordSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(t))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[t])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DomainResult is the output unit: one domain and its record set.
type DomainResult struct {
	Domain  string
	Records RecordSet
}

// MarshalJSON encodes the result as {"<domain>": {...}}.
func (d DomainResult) MarshalJSON() ([]byte, error) {
	k, err := json.Marshal(d.Domain)
	if err != nil {
		return nil, err
	}
	v, err := d.Records.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(k)+len(v)+3)
	out = append(out, '{')
	out = append(out, k...)
	out = append(out, ':')
	out = append(out, v...)
	out = append(out, '}')
	return out, nil
}
