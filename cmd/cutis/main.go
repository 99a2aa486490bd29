// Command cutis is the server binary: an in-memory key/value database
// speaking the wire protocol described in spec §4.5.
//
// Usage, per spec §6: `cutis [path/to/cutis.conf]` -- zero or one
// argument; a missing config file yields the built-in defaults, and more
// than one argument is a usage error.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/deiio/cutis/internal/config"
	"github.com/deiio/cutis/internal/log"
	"github.com/deiio/cutis/internal/server"
)

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [path/to/cutis.conf]\n", os.Args[0])
		os.Exit(1)
	}

	cfg := config.New()
	if len(os.Args) == 2 {
		loaded, err := config.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
		cfg = loaded
	}

	sink, closeable, err := cfg.OpenLogSink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: opening log file: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	var closer io.Closer
	if closeable {
		closer = sink
	}
	logger := log.New(sink, cfg.LogLevel, closer)
	defer logger.Close()

	logger.Noticef("cutis starting, port=%d databases=%d dir=%s", cfg.Port, cfg.Databases, cfg.Dir)

	srv, err := server.New(cfg, logger, time.Now().Unix())
	if err != nil {
		logger.Fatalf("initializing server: %v", err)
	}
	srv.LoadSnapshot()

	if err := srv.Listen(); err != nil {
		logger.Fatalf("listening on port %d: %v", cfg.Port, err)
	}
	defer srv.Close()

	srv.StartCron()

	logger.Noticef("ready to accept connections")
	srv.Run()

	logger.Noticef("cutis exiting")
}
