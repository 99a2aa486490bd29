package command

import (
	"fmt"
	"testing"

	"github.com/deiio/cutis/internal/store"
)

func newTestContext(t *testing.T, st *store.Store, argv ...string) *Context {
	t.Helper()
	dbIndex := 0
	quit := false
	return &Context{
		Argv:    argv,
		DBIndex: &dbIndex,
		Quit:    &quit,
		Env: &Env{
			Store:         st,
			Save:          func() error { return nil },
			BGSave:        func() error { return nil },
			LastSaveUnix:  func() int64 { return 0 },
			Info:          func() string { return "" },
			StartTimeUnix: 0,
			Timeout:       300,
			StopServer:    func() {},
		},
	}
}

func TestGetSet(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "set", "foo", "bar")
	if got := string(cmdSet(ctx)); got != "+OK\r\n" {
		t.Fatalf("SET: got %q", got)
	}
	ctx = newTestContext(t, st, "get", "foo")
	if got := string(cmdGet(ctx)); got != "3\r\nbar\r\n" {
		t.Fatalf("GET: got %q", got)
	}
	if st.Dirty != 1 {
		t.Fatalf("expected dirty=1, got %d", st.Dirty)
	}
}

func TestGetMissingIsNil(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "get", "nope")
	if got := string(cmdGet(ctx)); got != "nil\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestIncrDecr(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "incr", "counter")
	if got := string(cmdIncr(ctx)); got != "1\r\n1\r\n" {
		t.Fatalf("INCR: got %q", got)
	}
	ctx = newTestContext(t, st, "incr", "counter")
	if got := string(cmdIncr(ctx)); got != "1\r\n2\r\n" {
		t.Fatalf("INCR again: got %q", got)
	}
	ctx = newTestContext(t, st, "decr", "counter")
	if got := string(cmdDecr(ctx)); got != "1\r\n1\r\n" {
		t.Fatalf("DECR: got %q", got)
	}
}

func TestSetNX(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "setnx", "k", "v1")
	if got := string(cmdSetNX(ctx)); got != "+OK\r\n" {
		t.Fatalf("first SETNX: got %q", got)
	}
	ctx = newTestContext(t, st, "setnx", "k", "v2")
	if got := string(cmdSetNX(ctx)); got != "+OK\r\n" {
		t.Fatalf("second SETNX: got %q", got)
	}
	ctx = newTestContext(t, st, "get", "k")
	if got := string(cmdGet(ctx)); got != "2\r\nv1\r\n" {
		t.Fatalf("GET after SETNX: got %q", got)
	}
}

func TestListPushPop(t *testing.T) {
	st := store.New(1)
	push := cmdPush(false)
	ctx := newTestContext(t, st, "rpush", "l", "a")
	push(ctx)
	ctx = newTestContext(t, st, "rpush", "l", "b")
	push(ctx)

	ctx = newTestContext(t, st, "llen", "l")
	if got := string(cmdLLen(ctx)); got != "2\r\n" {
		t.Fatalf("LLEN: got %q", got)
	}

	pop := cmdPop(true)
	ctx = newTestContext(t, st, "lpop", "l")
	if got := string(pop(ctx)); got != "1\r\na\r\n" {
		t.Fatalf("LPOP: got %q", got)
	}
}

func TestSetAddInterMembers(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "sadd", "s1", "a")
	cmdSAdd(ctx)
	ctx = newTestContext(t, st, "sadd", "s1", "b")
	cmdSAdd(ctx)
	ctx = newTestContext(t, st, "sadd", "s2", "a")
	cmdSAdd(ctx)

	ctx = newTestContext(t, st, "sinter", "s1", "s2")
	got := string(cmdSInter(ctx))
	if got != "1\r\n1\r\na\r\n" {
		t.Fatalf("SINTER: got %q", got)
	}
}

func TestDelAndExists(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "set", "k", "v")
	cmdSet(ctx)

	ctx = newTestContext(t, st, "exists", "k")
	if got := string(cmdExists(ctx)); got != "1\r\n" {
		t.Fatalf("EXISTS: got %q", got)
	}

	ctx = newTestContext(t, st, "del", "k")
	if got := string(cmdDel(ctx)); got != "+OK\r\n" {
		t.Fatalf("DEL: got %q", got)
	}

	ctx = newTestContext(t, st, "exists", "k")
	if got := string(cmdExists(ctx)); got != "0\r\n" {
		t.Fatalf("EXISTS after DEL: got %q", got)
	}
}

func TestKeysGlob(t *testing.T) {
	st := store.New(1)
	for _, k := range []string{"user:1", "user:2", "order:1"} {
		ctx := newTestContext(t, st, "set", k, "v")
		cmdSet(ctx)
	}
	ctx := newTestContext(t, st, "keys", "user:*")
	got := string(cmdKeys(ctx))
	if got != "13\r\nuser:1 user:2\r\n" && got != "13\r\nuser:2 user:1\r\n" {
		t.Fatalf("KEYS: got %q", got)
	}
}

func TestRenameSameKeyErrors(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "set", "k", "v")
	cmdSet(ctx)
	ctx = newTestContext(t, st, "rename", "k", "k")
	got := string(cmdRename(true)(ctx))
	want := "-ERR " + ErrSameSourceDest.Error() + "\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestWrongTypeReplyConventions locks in the three distinct wire forms
// wrong-type errors take depending on the command's success-reply shape:
// bulk-shaped commands use a negative-length bulk, status-line commands use
// a plain "-ERR ..." line, and the query-only set commands (SISMEMBER,
// SCARD) keep the -1 sentinel untouched by this change.
func TestWrongTypeReplyConventions(t *testing.T) {
	st := store.New(1)
	ctx := newTestContext(t, st, "rpush", "list", "a")
	cmdPush(false)(ctx)

	ctx = newTestContext(t, st, "get", "list")
	got := string(cmdGet(ctx))
	want := fmt.Sprintf("%d\r\n%s\r\n", -len(ErrWrongType.Error()), ErrWrongType.Error())
	if got != want {
		t.Fatalf("GET wrong-type: got %q, want %q", got, want)
	}

	ctx = newTestContext(t, st, "set", "str", "v")
	cmdSet(ctx)
	ctx = newTestContext(t, st, "rpush", "str", "a")
	got = string(cmdPush(false)(ctx))
	want = "-ERR " + ErrWrongType.Error() + "\r\n"
	if got != want {
		t.Fatalf("RPUSH wrong-type: got %q, want %q", got, want)
	}

	ctx = newTestContext(t, st, "sadd", "str", "a")
	got = string(cmdSAdd(ctx))
	want = "-ERR SADD against key not holding a set value\r\n"
	if got != want {
		t.Fatalf("SADD wrong-type: got %q, want %q", got, want)
	}

	ctx = newTestContext(t, st, "sismember", "str", "a")
	if got := string(cmdSIsMember(ctx)); got != "-1\r\n" {
		t.Fatalf("SISMEMBER wrong-type: got %q, want -1 sentinel", got)
	}
}

func TestLookupAndArity(t *testing.T) {
	c, ok := Lookup("GET")
	if !ok {
		t.Fatalf("expected GET to be registered")
	}
	if !c.CheckArity(2) || c.CheckArity(3) {
		t.Fatalf("GET arity check wrong")
	}
	if _, ok := Lookup("bogus"); ok {
		t.Fatalf("expected bogus command to be unregistered")
	}
}
