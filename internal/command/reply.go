package command

import (
	"bytes"
	"fmt"

	"github.com/deiio/cutis/internal/value"
)

// Reply encoders for the four wire forms spec §4.6 names: status lines,
// decimal integers, length-prefixed bulk strings, and multi-bulk arrays of
// bulk strings.

func replyOK() []byte { return value.ReplyOK }

func replyNil() []byte { return value.ReplyNil }

func replyInt(n int) []byte {
	return []byte(fmt.Sprintf("%d\r\n", n))
}

// replyRaw writes s followed by a bare CRLF, with neither a "+" status
// prefix nor a length prefix -- TYPE's reply form in the original
// implementation (AddReplySds(type); AddReply(shared.crlf)).
func replyRaw(s string) []byte {
	return []byte(s + "\r\n")
}

func replyBulk(b []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\r\n", len(b))
	buf.Write(b)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// replyBulkErr renders an error as a negative-length bulk reply, the form
// the original implementation uses for commands whose success reply is
// itself bulk-shaped (GET, LINDEX, LRANGE, SINTER, INCR/DECR): the wrong-
// type or domain-error text is announced with a negative length instead of
// the usual non-negative one, so the caller can distinguish "bulk value"
// from "bulk-shaped error" without a separate status line.
func replyBulkErr(msg []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\r\n", -len(msg))
	buf.Write(msg)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func replyMultiBulk(items [][]byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\r\n", len(items))
	for _, it := range items {
		buf.Write(replyBulk(it))
	}
	return buf.Bytes()
}

func replyErrf(format string, args ...any) []byte {
	return []byte(fmt.Sprintf("-ERR "+format+"\r\n", args...))
}
