package command

import (
	"strconv"

	"github.com/deiio/cutis/internal/value"
)

// registerStringCommands grounds spec §4.6's GET/SET/SETNX/INCR/DECR on the
// teacher's handler_string.go shape (validate argc, touch the database,
// mark dirty on write) simplified for the single-threaded no-lock model:
// no RWMutex, no AOF, no memory-eviction side path (Non-goals).
func registerStringCommands() {
	register(&Command{Name: "get", Arity: 2, Handler: cmdGet})
	register(&Command{Name: "set", Arity: 3, Bulk: true, Mutates: true, Handler: cmdSet})
	register(&Command{Name: "setnx", Arity: 3, Bulk: true, Mutates: true, Handler: cmdSetNX})
	register(&Command{Name: "incr", Arity: 2, Mutates: true, Handler: cmdIncr})
	register(&Command{Name: "decr", Arity: 2, Mutates: true, Handler: cmdDecr})
}

// cmdGet: "bulk-reply value if string, nil if missing, error length-encoded
// bulk if present but not string" (spec §4.6).
func cmdGet(ctx *Context) []byte {
	key := ctx.Argv[1]
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyNil()
	}
	if v.Kind != value.KindString {
		return replyBulkErr([]byte(ErrWrongType.Error()))
	}
	return replyBulk(v.Str)
}

func cmdSet(ctx *Context) []byte {
	key, val := ctx.Argv[1], ctx.Argv[2]
	ctx.DB().Set(key, value.NewString([]byte(val)))
	ctx.Env.Store.MarkDirty(1)
	return replyOK()
}

// cmdSetNX: "create or replace (SETNX only if absent)... increment the
// dirty counter on write; reply +OK" (spec §4.6) -- SETNX shares SET's
// reply contract exactly, it just skips the write when the key exists.
func cmdSetNX(ctx *Context) []byte {
	key, val := ctx.Argv[1], ctx.Argv[2]
	if ctx.DB().Exists(key) {
		return replyOK()
	}
	ctx.DB().Set(key, value.NewString([]byte(val)))
	ctx.Env.Store.MarkDirty(1)
	return replyOK()
}

// incrDecrBy: "treat missing/non-string as 0, else parse decimal; write
// back as string; reply the new value as a bulk string" -- shared by INCR
// and DECR exactly as the teacher's incrDecrBy helper is shared.
func incrDecrBy(ctx *Context, key string, delta int64) []byte {
	var current int64
	if v, ok := ctx.DB().Get(key); ok {
		if v.Kind != value.KindString {
			return replyBulkErr([]byte(ErrWrongType.Error()))
		}
		n, err := strconv.ParseInt(string(v.Str), 10, 64)
		if err != nil {
			return replyBulkErr([]byte(ErrNotInteger.Error()))
		}
		current = n
	}
	current += delta
	encoded := strconv.FormatInt(current, 10)
	ctx.DB().Set(key, value.NewString([]byte(encoded)))
	ctx.Env.Store.MarkDirty(1)
	return replyBulk([]byte(encoded))
}

func cmdIncr(ctx *Context) []byte { return incrDecrBy(ctx, ctx.Argv[1], 1) }
func cmdDecr(ctx *Context) []byte { return incrDecrBy(ctx, ctx.Argv[1], -1) }
