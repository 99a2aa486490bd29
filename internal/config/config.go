// Package config parses the cutis config file and holds the resulting
// server configuration.
//
// The parsing approach (line-based bufio.Scanner, # comments, whitespace
// split into directive + args, a directive switch) is grounded on the
// teacher's conf.go ReadConf/parseLine, extended to cutis's directive set.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/deiio/cutis/internal/log"
)

// SaveParam is a (seconds, changes) pair: a background save fires when at
// least Changes writes have happened since the last save AND at least
// Seconds have elapsed.
type SaveParam struct {
	Seconds int64
	Changes int
}

// DefaultSaveParams mirrors cutis's built-in defaults, used when no config
// file is supplied (or a supplied file has no "save" directives at all).
func DefaultSaveParams() []SaveParam {
	return []SaveParam{
		{Seconds: 3600, Changes: 1},
		{Seconds: 300, Changes: 100},
		{Seconds: 60, Changes: 10000},
	}
}

// Config holds every directive recognized by the cutis config file format
// (spec §6).
type Config struct {
	Port      int
	BindAddr  string
	Timeout   int // seconds, 0 means no idle timeout
	Dir       string
	LogLevel  log.Level
	LogFile   string // "" or "stdout" means stdout
	Databases int
	SaveParams []SaveParam

	path string
}

// New returns a Config with cutis's built-in defaults.
func New() *Config {
	return &Config{
		Port:       6380,
		Timeout:    300,
		Dir:        ".",
		LogLevel:   log.Notice,
		LogFile:    "stdout",
		Databases:  16,
		SaveParams: DefaultSaveParams(),
	}
}

// ReadFile loads directives from filename on top of New()'s defaults. A
// missing file is not an error: it returns the defaults, matching the
// teacher's "file doesn't exist -> default config with a warning" behavior.
func ReadFile(filename string) (*Config, error) {
	cfg := New()

	f, err := os.Open(filename)
	if err != nil {
		return cfg, nil
	}
	defer f.Close()

	cfg.path = filename
	clearedSaveParams := false

	s := bufio.NewScanner(f)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// "When a config file is supplied, the built-in save-param
		// defaults are cleared first" (spec §6) -- cleared lazily, on the
		// first save directive actually encountered.
		if strings.HasPrefix(line, "save ") && !clearedSaveParams {
			cfg.SaveParams = nil
			clearedSaveParams = true
		}
		if err := parseLine(line, cfg); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, lineNo, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return cfg, nil
}

func parseLine(line string, cfg *Config) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	directive, rest := args[0], args[1:]

	switch directive {
	case "port":
		if len(rest) != 1 {
			return fmt.Errorf("port requires one argument")
		}
		p, err := strconv.Atoi(rest[0])
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid port %q", rest[0])
		}
		cfg.Port = p

	case "timeout":
		if len(rest) != 1 {
			return fmt.Errorf("timeout requires one argument")
		}
		t, err := strconv.Atoi(rest[0])
		if err != nil || t < 0 {
			return fmt.Errorf("invalid timeout %q", rest[0])
		}
		cfg.Timeout = t

	case "save":
		if len(rest) != 2 {
			return fmt.Errorf("save requires <seconds> <changes>")
		}
		secs, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid save seconds %q", rest[0])
		}
		changes, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid save changes %q", rest[1])
		}
		cfg.SaveParams = append(cfg.SaveParams, SaveParam{Seconds: secs, Changes: changes})

	case "dir":
		if len(rest) != 1 {
			return fmt.Errorf("dir requires one argument")
		}
		cfg.Dir = rest[0]

	case "loglevel":
		if len(rest) != 1 {
			return fmt.Errorf("loglevel requires one argument")
		}
		lvl, err := log.ParseLevel(rest[0])
		if err != nil {
			return err
		}
		cfg.LogLevel = lvl

	case "logfile":
		if len(rest) != 1 {
			return fmt.Errorf("logfile requires one argument")
		}
		cfg.LogFile = rest[0]

	case "databases":
		if len(rest) != 1 {
			return fmt.Errorf("databases requires one argument")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid databases %q", rest[0])
		}
		cfg.Databases = n

	case "bind":
		if len(rest) != 1 {
			return fmt.Errorf("bind requires one argument")
		}
		cfg.BindAddr = rest[0]

	default:
		// Unknown directives are ignored rather than fatal, matching the
		// teacher's permissive parseLine (an unmatched switch case is a
		// silent no-op there too).
	}
	return nil
}

// OpenLogSink opens the configured log destination as an io.WriteCloser-ish
// *os.File; "stdout" (or empty) maps to os.Stdout, which must not be closed
// by the caller.
func (c *Config) OpenLogSink() (*os.File, bool, error) {
	if c.LogFile == "" || c.LogFile == "stdout" {
		return os.Stdout, false, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}
