package command

import (
	"strings"

	"github.com/deiio/cutis/internal/glob"
)

// registerKeyCommands grounds spec §4.6's keyspace-management contracts on
// the shape of the teacher's handler_key.go, narrowed to the single-key,
// literal-reply contracts spec.md actually specifies (e.g. DEL takes one
// key and always replies +OK, unlike the teacher's variadic/count form).
func registerKeyCommands() {
	register(&Command{Name: "exists", Arity: 2, Handler: cmdExists})
	register(&Command{Name: "del", Arity: 2, Mutates: true, Handler: cmdDel})
	register(&Command{Name: "type", Arity: 2, Handler: cmdType})
	register(&Command{Name: "rename", Arity: 3, Mutates: true, Handler: cmdRename(true)})
	register(&Command{Name: "renamenx", Arity: 3, Mutates: true, Handler: cmdRename(false)})
	register(&Command{Name: "keys", Arity: 2, Handler: cmdKeys})
	register(&Command{Name: "randomkey", Arity: 1, Handler: cmdRandomKey})
}

// cmdExists: "reply 1 or 0".
func cmdExists(ctx *Context) []byte {
	if ctx.DB().Exists(ctx.Argv[1]) {
		return replyInt(1)
	}
	return replyInt(0)
}

// cmdDel: "delete if present, always reply +OK, increment dirty iff
// deleted".
func cmdDel(ctx *Context) []byte {
	if ctx.DB().Delete(ctx.Argv[1]) {
		ctx.Env.Store.MarkDirty(1)
	}
	return replyOK()
}

// cmdType: "reply one of string, list, set, none".
func cmdType(ctx *Context) []byte {
	v, ok := ctx.DB().Get(ctx.Argv[1])
	if !ok {
		return replyRaw("none")
	}
	return replyRaw(v.Kind.String())
}

// cmdRename: "RENAME replaces, RENAMENX errors on existing target; same
// source and destination is always an error."
func cmdRename(overwrite bool) Handler {
	return func(ctx *Context) []byte {
		src, dst := ctx.Argv[1], ctx.Argv[2]
		if src == dst {
			return replyErrf("%s", ErrSameSourceDest.Error())
		}
		v, ok := ctx.DB().Get(src)
		if !ok {
			return replyErrf("%s", ErrNoSuchKey.Error())
		}
		if !overwrite && ctx.DB().Exists(dst) {
			return replyErrf("target key already exists")
		}
		ctx.DB().Set(dst, v)
		ctx.DB().Delete(src)
		ctx.Env.Store.MarkDirty(1)
		return replyOK()
	}
}

// cmdKeys: "emit a space-separated list of all matching keys (via the
// pattern matcher) as one bulk reply."
func cmdKeys(ctx *Context) []byte {
	pattern := ctx.Argv[1]
	var matched []string
	for _, k := range ctx.DB().Keys.Keys() {
		if glob.Match(pattern, k, false) {
			matched = append(matched, k)
		}
	}
	return replyBulk([]byte(strings.Join(matched, " ")))
}

// cmdRandomKey: "emit an arbitrary key from the current database, or empty
// on empty DB."
func cmdRandomKey(ctx *Context) []byte {
	k, ok := ctx.DB().RandomKey()
	if !ok {
		return replyBulk(nil)
	}
	return replyBulk([]byte(k))
}
