package resp

import (
	"bytes"
	"time"

	"golang.org/x/sys/unix"

	"github.com/deiio/cutis/internal/ae"
	"github.com/deiio/cutis/internal/command"
	"github.com/deiio/cutis/internal/log"
)

const readChunk = 1024

// Conn binds a Client's parsing state machine to a raw, non-blocking
// socket fd registered with an ae.Loop. Writes are queued and drained as
// the fd becomes writable rather than written synchronously, so one slow
// client can never stall the single-threaded loop (spec §4.4/§4.5).
type Conn struct {
	Fd   int
	Loop *ae.Loop
	Client *Client

	outBuf   bytes.Buffer
	sentLen  int
	onClose  func(*Conn)
}

// Accept wraps an already-accepted, already-non-blocking fd, registers it
// for read events, and returns the new Conn.
func Accept(loop *ae.Loop, fd int, env *command.Env, logger *log.Logger, onClose func(*Conn)) (*Conn, error) {
	c := &Conn{
		Fd:      fd,
		Loop:    loop,
		Client:  NewClient(env, logger),
		onClose: onClose,
	}
	c.Client.LastInteraction = time.Now().Unix()
	if err := loop.CreateFileEvent(fd, ae.Readable, c.onReadable, c, nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) onReadable(loop *ae.Loop, fd int, clientData any, mask int) {
	buf := make([]byte, readChunk)
	n, err := unix.Read(fd, buf)
	if n <= 0 {
		if err != nil && isWouldBlock(err) {
			return
		}
		c.close()
		return
	}
	c.Client.LastInteraction = time.Now().Unix()

	replies, ferr := c.Client.Feed(buf[:n])
	for _, r := range replies {
		c.outBuf.Write(r)
	}
	if c.outBuf.Len() > 0 {
		c.enableWrite()
	}
	if ferr != nil {
		c.Client.Logger.Debugf("protocol error on fd %d: %v", fd, ferr)
		c.drainThenClose()
		return
	}
	if c.Client.Quit && c.outBuf.Len() == 0 {
		c.close()
	}
}

func (c *Conn) enableWrite() {
	c.Loop.CreateFileEvent(c.Fd, ae.Writable, c.onWritable, c, nil)
}

func (c *Conn) onWritable(loop *ae.Loop, fd int, clientData any, mask int) {
	if c.outBuf.Len() == 0 {
		c.Loop.DeleteFileEvent(c.Fd, ae.Writable)
		return
	}
	pending := c.outBuf.Bytes()
	n, err := unix.Write(fd, pending)
	if n > 0 {
		c.outBuf.Next(n)
	}
	if err != nil && !isWouldBlock(err) {
		c.close()
		return
	}
	if c.outBuf.Len() == 0 {
		c.Loop.DeleteFileEvent(c.Fd, ae.Writable)
		if c.Client.Quit {
			c.close()
		}
	}
}

// drainThenClose keeps the writable interest registered so any queued
// reply (the replies Feed produced before the protocol error) is flushed
// before the fd is torn down; with nothing queued it closes immediately.
func (c *Conn) drainThenClose() {
	if c.outBuf.Len() > 0 {
		c.enableWrite()
		c.Client.Quit = true
		return
	}
	c.close()
}

// Close tears down the connection from outside the event-loop callbacks
// that normally drive it, used by the server's idle-client cron sweep
// (spec §4.8 duty #3). No reply is sent, matching spec's Testable
// Scenario E7 ("the server closes it without sending any reply").
func (c *Conn) Close() {
	c.close()
}

func (c *Conn) close() {
	c.Loop.DeleteFileEvent(c.Fd, ae.Readable|ae.Writable)
	unix.Close(c.Fd)
	if c.onClose != nil {
		c.onClose(c)
	}
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
