// Package command implements the cutis command repertoire: the dispatch
// table with arity/bulk-length gating (spec §4.5 step 4) and every
// handler's contract from spec §4.6.
package command

import (
	"errors"
	"strings"

	"github.com/deiio/cutis/internal/store"
)

// Sentinel errors whose text the handlers format into their reply forms
// (Handler returns bytes, so these never reach the dispatcher), per spec
// §7's error taxonomy: wrong-type and domain errors reply and continue,
// protocol errors close the connection (handled in package resp, not
// here), fatal invariant violations are not representable as a command
// error at all (they call into the logger's Fatalf).
var (
	ErrWrongType      = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrNoSuchKey      = errors.New("no such key")
	ErrSyntax         = errors.New("syntax error")
	ErrWrongArgs      = errors.New("wrong number of arguments")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotInteger     = errors.New("value is not an integer or out of range")
	ErrSameSourceDest = errors.New("source and destination objects are the same")
	ErrBGSaveInProgress = errors.New("Background save already in progress")
)

// Env is the set of server-wide collaborators a command handler may need
// beyond the keyspace itself: persistence triggers, process stats, and the
// save-policy bookkeeping the cron also consults.
type Env struct {
	Store       *store.Store
	Save        func() error             // foreground SAVE
	BGSave      func() error             // start background save, error if one is already running
	LastSaveUnix func() int64
	Info        func() string            // supplemental INFO command body
	StartTimeUnix int64
	Timeout     int
	StopServer  func() // SHUTDOWN: stop the whole event loop, not just this connection
}

// Context is handed to every command handler: the parsed argument vector
// (argv[0] is the command name), the client's database selector (by
// pointer so SELECT/MOVE can mutate it), and the server environment.
type Context struct {
	Argv    []string
	DBIndex *int
	Env     *Env
	Quit    *bool // set true to request the connection close (QUIT)
}

func (c *Context) DB() *store.Database {
	return c.Env.Store.Databases[*c.DBIndex]
}

// Handler executes a command and returns its fully wire-encoded reply
// (including error forms -- spec §7: "every failed command produces
// exactly one reply"). A handler that mutates persistent state is
// responsible for calling ctx.Env.Store.MarkDirty itself, at the precise
// point the mutation actually happens: several commands only increment
// the dirty counter conditionally (DEL only if a key was actually
// removed, SETNX only if it wrote), so a single blanket "Mutates ⇒
// MarkDirty" rule in the dispatcher cannot express spec §4.6's per-command
// rules. Command.Mutates remains descriptive metadata; no code reads it.
type Handler func(ctx *Context) []byte

// Command is one entry of the dispatch table.
type Command struct {
	Name string
	// Arity: positive means exact argc (including the command name
	// itself); negative means "at least -Arity arguments" (spec §4.5
	// step 4).
	Arity int
	// Bulk marks commands whose last inline argument is a declared bulk
	// length rather than a literal argument (spec §4.5 step 4: SET,
	// SETNX, RPUSH, LPUSH, LSET, SADD, SREM, SISMEMBER).
	Bulk bool
	// Mutates marks every command that can write persistent state. The
	// dirty counter itself is incremented by each handler (see Handler).
	Mutates bool
	Handler Handler
}

var table = map[string]*Command{}

func register(c *Command) {
	table[c.Name] = c
}

// Lookup returns the table entry for a lower-cased command name.
func Lookup(name string) (*Command, bool) {
	c, ok := table[strings.ToLower(name)]
	return c, ok
}

// CheckArity reports whether argc (including the command name) satisfies
// c.Arity.
func (c *Command) CheckArity(argc int) bool {
	if c.Arity >= 0 {
		return argc == c.Arity
	}
	return argc >= -c.Arity
}

func init() {
	registerStringCommands()
	registerListCommands()
	registerSetCommands()
	registerKeyCommands()
	registerGenericCommands()
	registerPersistenceCommands()
}
