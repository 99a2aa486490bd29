package command

import (
	"sort"

	"github.com/deiio/cutis/internal/value"
)

// registerSetCommands grounds spec §4.6's set contracts on the teacher's
// handler_set.go, including the mandated SINTER optimisation (sort by
// cardinality ascending, iterate the smallest). Per the wire protocol's
// bulk framing (spec §4.5: one trailing bulk argument per command), SADD/
// SREM/SISMEMBER operate on a single member per invocation.
func registerSetCommands() {
	register(&Command{Name: "sadd", Arity: 3, Bulk: true, Mutates: true, Handler: cmdSAdd})
	register(&Command{Name: "srem", Arity: 3, Bulk: true, Mutates: true, Handler: cmdSRem})
	register(&Command{Name: "sismember", Arity: 3, Bulk: true, Handler: cmdSIsMember})
	register(&Command{Name: "scard", Arity: 2, Handler: cmdSCard})
	register(&Command{Name: "sinter", Arity: -2, Handler: cmdSInter})
	// smembers is aliased to the intersection handler with a single set,
	// which degenerates correctly to "all members" -- spec §9 Open
	// Question #1 leaves the choice between keeping this alias or adding
	// a distinct handler to the implementer; we keep the alias, matching
	// the original's registration exactly, and document the decision in
	// DESIGN.md.
	register(&Command{Name: "smembers", Arity: 2, Handler: cmdSInter})
}

// cmdSAdd: "set mutation... reply the new cardinality delta" (spec: "set
// mutation and queries"); grounded on teacher's per-member add-if-absent
// count, simplified to the single bulk member the wire protocol admits.
// Wrong-type replies with an error status line, not the -1 sentinel: spec
// scopes -1 to the query commands (SISMEMBER/SCARD), and the original's
// SAddCommand replies "-ERR SADD against key not holding a set value".
func cmdSAdd(ctx *Context) []byte {
	key, member := ctx.Argv[1], ctx.Argv[2]
	v, ok := ctx.DB().Get(key)
	if ok {
		if v.Kind != value.KindSet {
			return replyErrf("SADD against key not holding a set value")
		}
	} else {
		v = value.NewSet()
		ctx.DB().Set(key, v)
	}
	if _, present := v.Set[member]; present {
		return replyInt(0)
	}
	v.Set[member] = struct{}{}
	ctx.Env.Store.MarkDirty(1)
	return replyInt(1)
}

// cmdSRem mirrors cmdSAdd's wrong-type handling: an error status line, per
// the original's SRemCommand ("-ERR SREM against key not holding a set
// value"), not the query commands' -1 sentinel.
func cmdSRem(ctx *Context) []byte {
	key, member := ctx.Argv[1], ctx.Argv[2]
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyInt(0)
	}
	if v.Kind != value.KindSet {
		return replyErrf("SREM against key not holding a set value")
	}
	if _, present := v.Set[member]; !present {
		return replyInt(0)
	}
	delete(v.Set, member)
	ctx.Env.Store.MarkDirty(1)
	if len(v.Set) == 0 {
		ctx.DB().Delete(key)
	}
	return replyInt(1)
}

// cmdSIsMember/cmdSCard: "wrong-type returns -1 sentinel for the query
// commands" (spec §4.6).
func cmdSIsMember(ctx *Context) []byte {
	key, member := ctx.Argv[1], ctx.Argv[2]
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyInt(0)
	}
	if v.Kind != value.KindSet {
		return replyInt(-1)
	}
	if _, present := v.Set[member]; present {
		return replyInt(1)
	}
	return replyInt(0)
}

func cmdSCard(ctx *Context) []byte {
	key := ctx.Argv[1]
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyInt(0)
	}
	if v.Kind != value.KindSet {
		return replyInt(-1)
	}
	return replyInt(len(v.Set))
}

// cmdSInter: "intersect N sets. Sort the sets by cardinality ascending and
// iterate the smallest, keeping only elements present in every other."
// Spec §9 Open Question #2 asks whether a wrong-type key in the middle of
// the argument list should short-circuit with an error or be silently
// skipped; this implementation short-circuits with an error reply, since
// silently degrading an intersection is more surprising than failing loud.
func cmdSInter(ctx *Context) []byte {
	keys := ctx.Argv[1:]
	sets := make([]map[string]struct{}, 0, len(keys))
	for _, k := range keys {
		v, ok := ctx.DB().Get(k)
		if !ok {
			return replyMultiBulk(nil)
		}
		if v.Kind != value.KindSet {
			return replyBulkErr([]byte(ErrWrongType.Error()))
		}
		sets = append(sets, v.Set)
	}
	if len(sets) == 0 {
		return replyMultiBulk(nil)
	}
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	var result [][]byte
	for member := range sets[0] {
		presentInAll := true
		for _, s := range sets[1:] {
			if _, ok := s[member]; !ok {
				presentInAll = false
				break
			}
		}
		if presentInAll {
			result = append(result, []byte(member))
		}
	}
	return replyMultiBulk(result)
}
