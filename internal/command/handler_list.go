package command

import (
	"container/list"
	"strconv"

	"github.com/deiio/cutis/internal/value"
)

// registerListCommands grounds spec §4.6's list contracts on the shape of
// the teacher's handler_list.go (fetch-or-create, wrong-type guard, touch,
// delete-on-empty) adapted to spec's literal single-value RPUSH/LPUSH with
// a +OK reply (rather than the teacher's multi-value/integer-length reply).
func registerListCommands() {
	register(&Command{Name: "rpush", Arity: 3, Bulk: true, Mutates: true, Handler: cmdPush(false)})
	register(&Command{Name: "lpush", Arity: 3, Bulk: true, Mutates: true, Handler: cmdPush(true)})
	register(&Command{Name: "rpop", Arity: 2, Mutates: true, Handler: cmdPop(false)})
	register(&Command{Name: "lpop", Arity: 2, Mutates: true, Handler: cmdPop(true)})
	register(&Command{Name: "llen", Arity: 2, Handler: cmdLLen})
	register(&Command{Name: "lindex", Arity: 3, Handler: cmdLIndex})
	register(&Command{Name: "lrange", Arity: 4, Handler: cmdLRange})
	register(&Command{Name: "ltrim", Arity: 4, Mutates: true, Handler: cmdLTrim})
	register(&Command{Name: "lset", Arity: 4, Bulk: true, Mutates: true, Handler: cmdLSet})
}

// cmdPush: "create list if absent, error if existing value is not a list;
// append/prepend; reply +OK" (spec §4.6).
func cmdPush(front bool) Handler {
	return func(ctx *Context) []byte {
		key, elem := ctx.Argv[1], ctx.Argv[2]
		v, found := ctx.DB().Get(key)
		if found {
			if v.Kind != value.KindList {
				return replyErrf("%s", ErrWrongType.Error())
			}
		} else {
			v = value.NewList()
			ctx.DB().Set(key, v)
		}
		if front {
			v.List.PushFront([]byte(elem))
		} else {
			v.List.PushBack([]byte(elem))
		}
		ctx.Env.Store.MarkDirty(1)
		return replyOK()
	}
}

// cmdPop: "reply the removed element as bulk, nil on empty/missing, error
// if wrong type".
func cmdPop(front bool) Handler {
	return func(ctx *Context) []byte {
		key := ctx.Argv[1]
		v, ok := ctx.DB().Get(key)
		if !ok {
			return replyNil()
		}
		if v.Kind != value.KindList {
			return replyBulkErr([]byte(ErrWrongType.Error()))
		}
		if v.List.Len() == 0 {
			return replyNil()
		}
		var e *list.Element
		if front {
			e = v.List.Front()
		} else {
			e = v.List.Back()
		}
		elem := e.Value.([]byte)
		v.List.Remove(e)
		ctx.Env.Store.MarkDirty(1)
		if v.List.Len() == 0 {
			ctx.DB().Delete(key)
		}
		return replyBulk(elem)
	}
}

// cmdLLen: "reply decimal length; 0 for missing; -1 for wrong type".
func cmdLLen(ctx *Context) []byte {
	key := ctx.Argv[1]
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyInt(0)
	}
	if v.Kind != value.KindList {
		return replyInt(-1)
	}
	return replyInt(v.List.Len())
}

// cmdLIndex: "Python-style negative indexing; reply bulk element or nil".
func cmdLIndex(ctx *Context) []byte {
	key := ctx.Argv[1]
	idx, err := strconv.Atoi(ctx.Argv[2])
	if err != nil {
		return replyBulkErr([]byte(ErrNotInteger.Error()))
	}
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyNil()
	}
	if v.Kind != value.KindList {
		return replyBulkErr([]byte(ErrWrongType.Error()))
	}
	elems := v.ListElements()
	norm, inRange := value.NormalizeIndex(len(elems), idx)
	if !inRange {
		return replyNil()
	}
	return replyBulk(elems[norm])
}

// cmdLRange: "inclusive, clamped; emit multi-bulk".
func cmdLRange(ctx *Context) []byte {
	key := ctx.Argv[1]
	start, err1 := strconv.Atoi(ctx.Argv[2])
	end, err2 := strconv.Atoi(ctx.Argv[3])
	if err1 != nil || err2 != nil {
		return replyBulkErr([]byte(ErrNotInteger.Error()))
	}
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyMultiBulk(nil)
	}
	if v.Kind != value.KindList {
		return replyBulkErr([]byte(ErrWrongType.Error()))
	}
	elems := v.ListElements()
	lo, hi, inRange := value.ClampRange(len(elems), start, end)
	if !inRange {
		return replyMultiBulk(nil)
	}
	return replyMultiBulk(elems[lo:hi])
}

// cmdLTrim: "retain only the inclusive range; reply +OK".
func cmdLTrim(ctx *Context) []byte {
	key := ctx.Argv[1]
	start, err1 := strconv.Atoi(ctx.Argv[2])
	end, err2 := strconv.Atoi(ctx.Argv[3])
	if err1 != nil || err2 != nil {
		return replyErrf("%s", ErrNotInteger.Error())
	}
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyOK()
	}
	if v.Kind != value.KindList {
		return replyErrf("%s", ErrWrongType.Error())
	}
	elems := v.ListElements()
	lo, hi, inRange := value.ClampRange(len(elems), start, end)
	nl := list.New()
	if inRange {
		for _, e := range elems[lo:hi] {
			nl.PushBack(e)
		}
	}
	v.List = nl
	ctx.Env.Store.MarkDirty(1)
	if nl.Len() == 0 {
		ctx.DB().Delete(key)
	}
	return replyOK()
}

// cmdLSet: "error if missing, error if wrong type, error if index out of
// range; otherwise replace".
func cmdLSet(ctx *Context) []byte {
	key := ctx.Argv[1]
	idx, err := strconv.Atoi(ctx.Argv[2])
	if err != nil {
		return replyErrf("%s", ErrNotInteger.Error())
	}
	val := ctx.Argv[3]
	v, ok := ctx.DB().Get(key)
	if !ok {
		return replyErrf("%s", ErrNoSuchKey.Error())
	}
	if v.Kind != value.KindList {
		return replyErrf("%s", ErrWrongType.Error())
	}
	norm, inRange := value.NormalizeIndex(v.List.Len(), idx)
	if !inRange {
		return replyErrf("%s", ErrIndexOutOfRange.Error())
	}
	e := v.List.Front()
	for i := 0; i < norm; i++ {
		e = e.Next()
	}
	e.Value = []byte(val)
	ctx.Env.Store.MarkDirty(1)
	return replyOK()
}
