// Package resp implements the per-connection client state machine and wire
// parser from spec §4.5: a query buffer fed by the event loop, inline vs
// bulk-length-prefixed argument parsing, a reply queue drained as the
// socket becomes writable, and command dispatch into package command.
//
// Grounded on the teacher's handler_connection.go / cutis.go client
// read/write loop, generalized from the teacher's real-RESP multibulk
// parser back down to cutis's older single-trailing-bulk-argument
// protocol (spec §4.5), and on original_source/cutis.c's CutisClient
// struct for field naming (query_buf, bulk_len, argv).
package resp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deiio/cutis/internal/ae"
	"github.com/deiio/cutis/internal/command"
	"github.com/deiio/cutis/internal/log"
)

const (
	// MaxArgs bounds the argument count of a single command line, per
	// spec's CUTIS_MAX_ARGS.
	MaxArgs = 16
	// MaxInlineLen bounds an inline command line's length before it is
	// treated as a protocol error (prevents an unbounded buffer from a
	// client that never sends '\n'), per spec §4.5.
	MaxInlineLen = 1024
	// MaxBulkLen is spec's CUTIS_MAX_STRING_LENGTH: 1 GiB.
	MaxBulkLen = 1024 * 1024 * 1024
)

// ErrProtocol marks a malformed request: the caller must close the
// connection, per spec §7 ("protocol errors: respond (if possible) then
// close the connection").
type ErrProtocol struct{ msg string }

func (e *ErrProtocol) Error() string { return e.msg }

func protoErr(format string, args ...any) error {
	return &ErrProtocol{msg: fmt.Sprintf(format, args...)}
}

// Client holds one connection's parsing and reply state. The socket I/O
// itself (reading bytes in, writing reply bytes out) lives in Conn; Client
// is deliberately free of any fd/syscall dependency so its parsing state
// machine can be driven directly by Feed in tests.
type Client struct {
	Env             *command.Env
	DBIndex         int
	LastInteraction int64
	Logger          *log.Logger

	queryBuf []byte
	argv     []string // arguments accumulated so far for the in-flight command
	bulkLen  int       // -1 = inline mode; otherwise remaining bytes (payload+CRLF) to consume as the declared bulk argument

	Quit bool
}

// NewClient returns a freshly reset Client bound to database 0.
func NewClient(env *command.Env, logger *log.Logger) *Client {
	return &Client{
		Env:     env,
		DBIndex: 0,
		bulkLen: -1,
		Logger:  logger,
	}
}

// Idle reports whether the client has gone silent for longer than
// timeoutSeconds, as measured from nowUnix. A non-positive timeoutSeconds
// means "no idle timeout", matching spec §6's `timeout 0` directive.
func (c *Client) Idle(nowUnix int64, timeoutSeconds int) bool {
	if timeoutSeconds <= 0 {
		return false
	}
	return nowUnix-c.LastInteraction > int64(timeoutSeconds)
}

// Feed appends newly read bytes to the query buffer and parses/dispatches
// as many complete commands as are now available, returning their
// wire-encoded replies in order. A blank line ends the pass early:
// commands buffered behind it are parsed on the next Feed. A protocol error is returned alongside
// whatever replies were produced before the error; the caller must close
// the connection after flushing them (spec §7).
func (c *Client) Feed(data []byte) ([][]byte, error) {
	c.queryBuf = append(c.queryBuf, data...)

	var replies [][]byte
	for {
		complete, err := c.parseOneCommand()
		if err != nil {
			return replies, err
		}
		if !complete {
			return replies, nil
		}
		reply := c.dispatch()
		if reply != nil {
			replies = append(replies, reply)
		}
		if c.Quit {
			return replies, nil
		}
	}
}

// parseOneCommand advances the state machine by at most one command.
// Returns complete=true once c.argv holds a fully-parsed command ready
// for dispatch (and resets bulkLen to -1 for the next command).
func (c *Client) parseOneCommand() (complete bool, err error) {
	if c.bulkLen == -1 {
		return c.parseInline()
	}
	return c.parseBulk()
}

// parseInline consumes one CRLF- or LF-terminated line from the query
// buffer, splits it on whitespace into argv, and -- if the command is
// bulk-flagged -- reinterprets the line's last token as a declared
// payload length and switches into bulk-waiting mode instead of
// dispatching immediately (spec §4.5 steps 1-4).
func (c *Client) parseInline() (bool, error) {
	nl := indexByte(c.queryBuf, '\n')
	if nl == -1 {
		if len(c.queryBuf) >= MaxInlineLen {
			return false, protoErr("inline command too long")
		}
		return false, nil
	}
	line := c.queryBuf[:nl]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	rest := c.queryBuf[nl+1:]

	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		// Blank line: discard and keep waiting, matching the teacher's
		// tolerance of stray newlines between commands.
		c.queryBuf = rest
		return false, nil
	}
	if len(fields) > MaxArgs {
		return false, protoErr("too many arguments")
	}

	cmd, ok := command.Lookup(fields[0])
	if !ok {
		c.queryBuf = rest
		c.argv = fields
		c.bulkLen = -1
		return true, nil // dispatch() reports "unknown command"
	}

	if !cmd.Bulk {
		c.queryBuf = rest
		c.argv = fields
		c.bulkLen = -1
		return true, nil // dispatch() re-checks arity and reports any mismatch
	}

	// Bulk command: the last field is the declared length of the
	// argument that follows as raw bytes, not a literal argument.
	declared := fields[len(fields)-1]
	n, convErr := strconv.Atoi(declared)
	if convErr != nil || n < 0 || n > MaxBulkLen {
		return false, protoErr("invalid bulk length %q", declared)
	}
	c.argv = fields[:len(fields)-1]
	c.bulkLen = n + 2 // payload plus trailing CRLF
	c.queryBuf = rest
	// The payload may already be buffered behind the header line.
	return c.parseBulk()
}

// parseBulk waits for bulkLen bytes (the declared payload plus its
// trailing CRLF) to accumulate in the query buffer, then appends the
// payload as the final argument and completes the command.
func (c *Client) parseBulk() (bool, error) {
	if len(c.queryBuf) < c.bulkLen {
		return false, nil
	}
	payloadLen := c.bulkLen - 2
	payload := c.queryBuf[:payloadLen]
	c.argv = append(c.argv, string(payload))
	c.queryBuf = c.queryBuf[c.bulkLen:]
	c.bulkLen = -1
	return true, nil
}

func indexByte(b []byte, target byte) int {
	for i, c := range b {
		if c == target {
			return i
		}
	}
	return -1
}

// dispatch runs the fully-parsed command in c.argv and clears it, per
// spec §4.5 step 5. The parser does not reject anything itself: unknown
// commands are reported here, and arity is checked here for every
// command, inline and bulk alike.
func (c *Client) dispatch() []byte {
	argv := c.argv
	c.argv = nil
	if len(argv) == 0 {
		return nil
	}

	cmd, ok := command.Lookup(argv[0])
	if !ok {
		return []byte("-ERR unknown command '" + argv[0] + "'\r\n")
	}
	if !cmd.CheckArity(len(argv)) {
		return []byte("-ERR wrong number of arguments for '" + argv[0] + "'\r\n")
	}

	dbIndex := c.DBIndex
	ctx := &command.Context{
		Argv:    argv,
		DBIndex: &dbIndex,
		Env:     c.Env,
		Quit:    &c.Quit,
	}
	reply := cmd.Handler(ctx)
	c.DBIndex = dbIndex
	return reply
}

// ReadMask/WriteMask re-export ae's interest bits so callers wiring a
// Client into an ae.Loop don't need a second import just for the
// constants.
const (
	ReadMask  = ae.Readable
	WriteMask = ae.Writable
)
