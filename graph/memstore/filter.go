package memstore

import (
	"encoding/json"
	"strings"
)

// Filter is the Enhanced Store query language (§4.3):
//
//	Filter ::= ContentEquals(path, value)
//	        |  ContentContains(path, substring)
//	        |  MetadataEquals(key, value)
//	        |  MetadataContains(key, substring)
//	        |  And(Filter*) | Or(Filter*)
//
// Paths use dotted notation against the value's JSON object.
type Filter struct {
	Kind  FilterKind
	Path  string // ContentEquals / ContentContains
	Key   string // MetadataEquals / MetadataContains
	Value any
	Sub   string // substring for *Contains kinds
	And   []Filter
	Or    []Filter
}

type FilterKind int

const (
	ContentEquals FilterKind = iota
	ContentContains
	MetadataEquals
	MetadataContains
	AndFilter
	OrFilter
)

// Eval evaluates f against a value's JSON-decoded content and a flat
// metadata map, short-circuiting And/Or.
func (f Filter) Eval(content any, metadata map[string]any) bool {
	switch f.Kind {
	case ContentEquals:
		v, ok := lookupPath(content, f.Path)
		return ok && jsonEqual(v, f.Value)
	case ContentContains:
		v, ok := lookupPath(content, f.Path)
		if !ok {
			return false
		}
		s, ok := v.(string)
		return ok && strings.Contains(s, f.Sub)
	case MetadataEquals:
		v, ok := metadata[f.Key]
		return ok && jsonEqual(v, f.Value)
	case MetadataContains:
		v, ok := metadata[f.Key]
		if !ok {
			return false
		}
		s, ok := v.(string)
		return ok && strings.Contains(s, f.Sub)
	case AndFilter:
		for _, sub := range f.And {
			if !sub.Eval(content, metadata) {
				return false
			}
		}
		return true
	case OrFilter:
		for _, sub := range f.Or {
			if sub.Eval(content, metadata) {
				return true
			}
		}
		return len(f.Or) == 0
	default:
		return false
	}
}

func jsonEqual(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ab) == string(bb)
}

// lookupPath resolves dotted notation ("a.b.c") against a JSON-decoded
// value (expected to be a map[string]any tree, as produced by
// json.Unmarshal into `any`).
func lookupPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
