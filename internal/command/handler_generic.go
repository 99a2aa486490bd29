package command

import (
	"strconv"

	"github.com/deiio/cutis/internal/value"
)

// registerGenericCommands grounds SELECT/MOVE/DBSIZE/PING/ECHO/LASTSAVE/
// QUIT on the teacher's handler_generic.go shape, plus the supplemented
// FLUSHDB/INFO commands (SPEC_FULL.md "Supplemented features").
func registerGenericCommands() {
	register(&Command{Name: "select", Arity: 2, Handler: cmdSelect})
	register(&Command{Name: "move", Arity: 3, Mutates: true, Handler: cmdMove})
	register(&Command{Name: "dbsize", Arity: 1, Handler: cmdDBSize})
	register(&Command{Name: "flushdb", Arity: 1, Mutates: true, Handler: cmdFlushDB})
	register(&Command{Name: "ping", Arity: 1, Handler: cmdPing})
	register(&Command{Name: "echo", Arity: 2, Handler: cmdEcho})
	register(&Command{Name: "lastsave", Arity: 1, Handler: cmdLastSave})
	register(&Command{Name: "info", Arity: 1, Handler: cmdInfo})
	register(&Command{Name: "quit", Arity: 1, Handler: cmdQuit})
}

// cmdSelect: "change the client's current database to i if 0 <= i <
// db_num."
func cmdSelect(ctx *Context) []byte {
	idx, err := strconv.Atoi(ctx.Argv[1])
	if err != nil || idx < 0 || idx >= len(ctx.Env.Store.Databases) {
		return replyErrf("invalid DB index")
	}
	*ctx.DBIndex = idx
	return replyOK()
}

// cmdMove: "move key to another database; error if same DB, if absent, or
// if the target already has it."
func cmdMove(ctx *Context) []byte {
	key := ctx.Argv[1]
	idx, err := strconv.Atoi(ctx.Argv[2])
	if err != nil || idx < 0 || idx >= len(ctx.Env.Store.Databases) {
		return replyErrf("invalid DB index")
	}
	if idx == *ctx.DBIndex {
		return replyErrf("source and destination objects are the same")
	}
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyErrf("no such key")
	}
	target := ctx.Env.Store.Databases[idx]
	if target.Exists(key) {
		return replyErrf("target DB already contains key")
	}
	target.Set(key, v)
	ctx.DB().Delete(key)
	ctx.Env.Store.MarkDirty(1)
	return replyOK()
}

func cmdDBSize(ctx *Context) []byte {
	return replyInt(ctx.DB().Size())
}

func cmdFlushDB(ctx *Context) []byte {
	ctx.Env.Store.FlushDB(*ctx.DBIndex)
	ctx.Env.Store.MarkDirty(1)
	return replyOK()
}

func cmdPing(ctx *Context) []byte { return value.ReplyPong }

func cmdEcho(ctx *Context) []byte { return replyBulk([]byte(ctx.Argv[1])) }

func cmdLastSave(ctx *Context) []byte {
	return replyInt(int(ctx.Env.LastSaveUnix()))
}

// cmdInfo is supplemented beyond spec.md's literal command list to anchor
// the gopsutil domain-stack dependency (SPEC_FULL.md DOMAIN STACK).
func cmdInfo(ctx *Context) []byte {
	return replyBulk([]byte(ctx.Env.Info()))
}

func cmdQuit(ctx *Context) []byte {
	*ctx.Quit = true
	return replyOK()
}
