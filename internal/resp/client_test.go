package resp

import (
	"testing"

	"github.com/deiio/cutis/internal/command"
	"github.com/deiio/cutis/internal/log"
	"github.com/deiio/cutis/internal/store"
)

func newTestEnv(t *testing.T) *command.Env {
	t.Helper()
	st := store.New(4)
	return &command.Env{
		Store:         st,
		Save:          func() error { return nil },
		BGSave:        func() error { return nil },
		LastSaveUnix:  func() int64 { return 0 },
		Info:          func() string { return "" },
		StartTimeUnix: 0,
		Timeout:       300,
		StopServer:    func() {},
	}
}

func TestFeedInlineCommand(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	replies, err := c.Feed([]byte("PING\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || string(replies[0]) != "+PONG\r\n" {
		t.Fatalf("got %q", replies)
	}
}

func TestFeedBulkCommandSplitAcrossReads(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())

	replies, err := c.Feed([]byte("SET foo 3\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 0 {
		t.Fatalf("expected no reply yet, got %q", replies)
	}

	replies, err = c.Feed([]byte("bar\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || string(replies[0]) != "+OK\r\n" {
		t.Fatalf("got %q", replies)
	}

	replies, err = c.Feed([]byte("GET foo\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || string(replies[0]) != "3\r\nbar\r\n" {
		t.Fatalf("got %q", replies)
	}
}

func TestFeedMultipleCommandsInOneRead(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	replies, err := c.Feed([]byte("SET a 1\r\nx\r\nGET a\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d: %q", len(replies), replies)
	}
	if string(replies[0]) != "+OK\r\n" {
		t.Fatalf("got %q", replies[0])
	}
	if string(replies[1]) != "1\r\nx\r\n" {
		t.Fatalf("got %q", replies[1])
	}
}

func TestFeedUnknownCommand(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	replies, err := c.Feed([]byte("BOGUS\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	if string(replies[0])[0] != '-' {
		t.Fatalf("expected error reply, got %q", replies[0])
	}
}

func TestFeedWrongArity(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	replies, err := c.Feed([]byte("GET\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || replies[0][0] != '-' {
		t.Fatalf("got %q", replies)
	}
}

func TestFeedInlineTooLongIsProtocolError(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	long := make([]byte, MaxInlineLen+10)
	for i := range long {
		long[i] = 'a'
	}
	_, err := c.Feed(long)
	if err == nil {
		t.Fatalf("expected protocol error")
	}
	if _, ok := err.(*ErrProtocol); !ok {
		t.Fatalf("expected ErrProtocol, got %T", err)
	}
}

// TestFeedInlineOver1024BytesIsProtocolError pins spec §4.5's literal
// threshold ("a buffer of >= 1024 bytes") with a fixed-size buffer rather
// than one derived from MaxInlineLen, so it still fails if the constant
// is ever raised to 1100 or beyond.
func TestFeedInlineOver1024BytesIsProtocolError(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	long := make([]byte, 1100)
	for i := range long {
		long[i] = 'a'
	}
	_, err := c.Feed(long)
	if err == nil {
		t.Fatalf("expected protocol error")
	}
	if _, ok := err.(*ErrProtocol); !ok {
		t.Fatalf("expected ErrProtocol, got %T", err)
	}
}

func TestQuitSetsFlag(t *testing.T) {
	c := NewClient(newTestEnv(t), log.NewStdout())
	replies, err := c.Feed([]byte("QUIT\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || string(replies[0]) != "+OK\r\n" {
		t.Fatalf("got %q", replies)
	}
	if !c.Quit {
		t.Fatalf("expected Quit to be set")
	}
}
