// Package value implements the tagged Value type stored in a cutis
// database (string, list, or set) and the process-wide shared reply
// fragments.
//
// Reference counting is deliberately not carried on Value: per the
// redesign note in SPEC_FULL.md (grounded on spec.md §9, "map to a tagged
// enum wrapped in a shared-ownership smart handle... drop the free-object
// list unless profiling justifies it"), the Go garbage collector plays the
// role of the shared-ownership handle. Where the C code would bump a
// refcount before a destructive iteration (BGSAVE snapshotting), this
// package exposes Clone instead.
package value

import "container/list"

type Kind int

const (
	KindString Kind = iota
	KindList
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	default:
		return "none"
	}
}

// Value is the unit stored in the keyspace: a tagged union of string, list
// of byte strings, or set of byte strings.
type Value struct {
	Kind Kind
	Str  []byte
	List *list.List           // element type []byte
	Set  map[string]struct{}
}

func NewString(b []byte) *Value {
	return &Value{Kind: KindString, Str: b}
}

func NewList() *Value {
	return &Value{Kind: KindList, List: list.New()}
}

func NewSet() *Value {
	return &Value{Kind: KindSet, Set: make(map[string]struct{})}
}

// Clone deep-copies v. Used where the original would have bumped a
// refcount and relied on copy-on-write semantics: BGSAVE's point-in-time
// snapshot (store.Database.Snapshot).
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindString:
		b := make([]byte, len(v.Str))
		copy(b, v.Str)
		return &Value{Kind: KindString, Str: b}
	case KindList:
		nl := list.New()
		for e := v.List.Front(); e != nil; e = e.Next() {
			src := e.Value.([]byte)
			dst := make([]byte, len(src))
			copy(dst, src)
			nl.PushBack(dst)
		}
		return &Value{Kind: KindList, List: nl}
	case KindSet:
		ns := make(map[string]struct{}, len(v.Set))
		for k := range v.Set {
			ns[k] = struct{}{}
		}
		return &Value{Kind: KindSet, Set: ns}
	default:
		return &Value{Kind: v.Kind}
	}
}

// ListElements returns the list's elements as a slice, front to back.
func (v *Value) ListElements() [][]byte {
	out := make([][]byte, 0, v.List.Len())
	for e := v.List.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.([]byte))
	}
	return out
}

// ClampRange resolves Python-style negative start/end indices against
// length into a half-open [lo, hi) slice range, clamped to [0, length].
// Returns ok=false if the resolved range is empty.
func ClampRange(length, start, end int) (lo, hi int, ok bool) {
	if start < 0 {
		start = length + start
	}
	if end < 0 {
		end = length + end
	}
	if start < 0 {
		start = 0
	}
	if end >= length {
		end = length - 1
	}
	if start > end || length == 0 {
		return 0, 0, false
	}
	return start, end + 1, true
}

// NormalizeIndex resolves a single Python-style index against length.
// Returns ok=false if out of range.
func NormalizeIndex(length, index int) (int, bool) {
	if index < 0 {
		index = length + index
	}
	if index < 0 || index >= length {
		return 0, false
	}
	return index, true
}

// Shared replies: immortal, interned fixed reply fragments (spec.md §3,
// §9 Open Question #5). Held by this package-level var for the life of the
// process -- the Go-native realization of "created at startup, carried by
// an extra reference, never freed until shutdown".
var (
	ReplyCRLF    = []byte("\r\n")
	ReplyOK      = []byte("+OK\r\n")
	ReplyErr     = []byte("-ERR\r\n")
	ReplyZero    = []byte("0\r\n")
	ReplyOne     = []byte("1\r\n")
	ReplyNil     = []byte("nil\r\n")
	ReplyPong    = []byte("+PONG\r\n")
	ReplyEmptyBulk = []byte("0\r\n\r\n")
)
