// Package bencode implements the four bencoded value kinds used by the
// liasis control protocol: integers, byte strings, lists and dictionaries.
//
// The codec is deliberately self-contained rather than built on a
// struct-tag marshaller: the dispatcher needs to round-trip arbitrary
// client-supplied command lists byte-for-byte (including malformed ones),
// which a reflective marshaller does not give you for free.
package bencode

import "sort"

// Kind identifies which of the four bencode grammar productions a Value
// holds.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindList
	KindDict
)

// Value is a decoded bencode value. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind

	Int  int64
	Str  []byte
	List []Value
	Dict map[string]Value
}

// Int64 returns a bencode integer value.
func Int64(v int64) Value { return Value{Kind: KindInt, Int: v} }

// String returns a bencode byte-string value.
func String(v []byte) Value { return Value{Kind: KindString, Str: v} }

// StringFrom is a convenience wrapper for Go string literals.
func StringFrom(v string) Value { return String([]byte(v)) }

// List returns a bencode list value.
func List(v ...Value) Value { return Value{Kind: KindList, List: v} }

// Dict returns a bencode dictionary value.
func Dict(m map[string]Value) Value { return Value{Kind: KindDict, Dict: m} }

// IsList reports whether the value is a list.
func (v Value) IsList() bool { return v.Kind == KindList }

// IsString reports whether the value is a byte string.
func (v Value) IsString() bool { return v.Kind == KindString }

// Equal does a deep structural comparison of two values. Two values
// produced by Decode are Equal iff their canonical encodings match.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.Int == b.Int
	case KindString:
		if len(a.Str) != len(b.Str) {
			return false
		}
		for i := range a.Str {
			if a.Str[i] != b.Str[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(a.Dict) != len(b.Dict) {
			return false
		}
		for k, av := range a.Dict {
			bv, ok := b.Dict[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// sortedKeys returns a dictionary's keys in ascending raw-byte
// lexicographic order, the order bencode dictionaries must be emitted in.
func sortedKeys(d map[string]Value) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
