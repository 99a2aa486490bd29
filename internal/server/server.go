// Package server wires config, store, the event loop, command dispatch,
// and persistence into the running cutis process: spec §4.8's listening
// socket setup, accept loop, and 1 Hz cron.
//
// The listening socket is built directly from golang.org/x/sys/unix
// syscalls (Socket/Bind/Listen/Accept4/SetsockoptInt) rather than Go's
// net package: net.Listener's fd is owned and polled by the Go runtime's
// own internal netpoller, which would fight internal/ae for control of
// the same file descriptor. Driving the socket by hand keeps every fd
// under the single epoll instance the event loop already owns, matching
// spec §4.4's single-multiplexer-per-process model. This mirrors
// original_source/cutis.c's own raw socket() / bind() / listen() setup.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/deiio/cutis/internal/ae"
	"github.com/deiio/cutis/internal/command"
	"github.com/deiio/cutis/internal/config"
	"github.com/deiio/cutis/internal/log"
	"github.com/deiio/cutis/internal/resp"
	"github.com/deiio/cutis/internal/snapshot"
	"github.com/deiio/cutis/internal/stats"
	"github.com/deiio/cutis/internal/store"
)

// cronIntervalMillis is cutis's classic 1 Hz housekeeping tick (spec
// §4.8).
const cronIntervalMillis = 1000

// Server owns every long-lived collaborator for one cutis process.
type Server struct {
	Config *config.Config
	Store  *store.Store
	Loop   *ae.Loop
	Logger *log.Logger

	listenFd int
	conns    map[int]*resp.Conn

	startUnix    int64
	lastSaveUnix int64
	bgsaving     bool
	cronTicks    int64

	// wakeR/wakeW are a self-pipe: background goroutines (BGSAVE's worker,
	// the signal handler) must never touch Store/Loop state directly, since
	// every other mutation happens on the single event-loop goroutine.
	// They instead post to wakeCh and write one byte to wakeW; the loop
	// wakes on wakeR becoming readable and drains wakeCh from its own
	// goroutine, preserving spec §4.4's single-mutator model.
	wakeR, wakeW int
	wakeCh       chan wakeMsg
}

type bgsaveResult struct {
	ok           bool
	dirtyAtStart int
}

type wakeMsg struct {
	shutdown bool
	bgDone   *bgsaveResult
}

// New builds a Server from cfg, allocating the keyspace and event loop but
// not yet binding a socket (call Listen) or loading a snapshot (call
// LoadSnapshot).
func New(cfg *config.Config, logger *log.Logger, nowUnix int64) (*Server, error) {
	loop, err := ae.New()
	if err != nil {
		return nil, fmt.Errorf("creating event loop: %w", err)
	}
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		return nil, fmt.Errorf("creating wake pipe: %w", err)
	}
	s := &Server{
		Config:    cfg,
		Store:     store.New(cfg.Databases),
		Loop:      loop,
		Logger:    logger,
		conns:     make(map[int]*resp.Conn),
		startUnix: nowUnix,
		listenFd:  -1,
		wakeR:     fds[0],
		wakeW:     fds[1],
		wakeCh:    make(chan wakeMsg, 16),
	}
	if err := loop.CreateFileEvent(s.wakeR, ae.Readable, s.onWake, nil, nil); err != nil {
		return nil, fmt.Errorf("registering wake pipe: %w", err)
	}
	return s, nil
}

func (s *Server) postWake(msg wakeMsg) {
	s.wakeCh <- msg
	unix.Write(s.wakeW, []byte{0})
}

func (s *Server) onWake(loop *ae.Loop, fd int, clientData any, mask int) {
	var buf [64]byte
	unix.Read(fd, buf[:])
	for {
		select {
		case msg := <-s.wakeCh:
			if msg.bgDone != nil {
				s.applyBGSaveResult(*msg.bgDone)
			}
			if msg.shutdown {
				s.Logger.Noticef("received shutdown signal, saving and exiting")
				if err := s.Save(); err != nil {
					s.Logger.Warningf("shutdown save failed: %v", err)
				}
				s.Loop.Stop()
			}
		default:
			return
		}
	}
}

func (s *Server) dumpPath() string {
	return s.Config.Dir + "/dump.cdb"
}

// LoadSnapshot loads the on-disk snapshot, if any, into the keyspace. A
// short/corrupt snapshot is a fatal invariant violation (spec §7): there
// is no safe partial-load behavior, so this calls Logger.Fatalf rather
// than returning an error for the caller to paper over.
func (s *Server) LoadSnapshot() {
	if err := snapshot.LoadFile(s.dumpPath(), s.Store.Databases); err != nil {
		s.Logger.Fatalf("loading snapshot %s: %v", s.dumpPath(), err)
	}
}

// Listen creates the non-blocking listening socket and registers it with
// the event loop.
func (s *Server) Listen() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := parseBindAddr(s.Config.BindAddr, s.Config.Port)
	if err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, 511); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen: %w", err)
	}

	s.listenFd = fd
	return s.Loop.CreateFileEvent(fd, ae.Readable, s.onAcceptable, nil, nil)
}

func parseBindAddr(bind string, port int) (*unix.SockaddrInet4, error) {
	addr := &unix.SockaddrInet4{Port: port}
	if bind == "" {
		return addr, nil
	}
	var a, b, c, d int
	if _, err := fmt.Sscanf(bind, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return nil, fmt.Errorf("invalid bind address %q", bind)
	}
	addr.Addr = [4]byte{byte(a), byte(b), byte(c), byte(d)}
	return addr, nil
}

func (s *Server) onAcceptable(loop *ae.Loop, fd int, clientData any, mask int) {
	for {
		connFd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK)
		if err != nil {
			return
		}
		unix.SetsockoptInt(connFd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		unix.SetsockoptInt(connFd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)

		env := s.envForClients()
		conn, err := resp.Accept(s.Loop, connFd, env, s.Logger, s.onConnClosed)
		if err != nil {
			s.Logger.Warningf("accepting connection: %v", err)
			unix.Close(connFd)
			continue
		}
		s.conns[connFd] = conn
	}
}

func (s *Server) onConnClosed(c *resp.Conn) {
	delete(s.conns, c.Fd)
}

// envForClients builds the command.Env every client connection's command
// dispatch shares. It is cheap to construct and rebuilt per-accept rather
// than cached, since the persistence/stats closures themselves close over
// the single long-lived *Server.
func (s *Server) envForClients() *command.Env {
	return &command.Env{
		Store:         s.Store,
		Save:          s.Save,
		BGSave:        s.BGSave,
		LastSaveUnix:  func() int64 { return s.lastSaveUnix },
		Info:          s.renderInfo,
		StartTimeUnix: s.startUnix,
		Timeout:       s.Config.Timeout,
		StopServer:    s.Loop.Stop,
	}
}

func (s *Server) renderInfo() string {
	snap := stats.Collect(s.Store, s.startUnix, stats.Now())
	return snap.Render()
}

// Save performs a foreground, blocking snapshot write (spec §4.7).
func (s *Server) Save() error {
	if err := snapshot.WriteFile(s.dumpPath(), s.Store.Databases); err != nil {
		return err
	}
	s.Store.Dirty = 0
	s.lastSaveUnix = stats.Now()
	s.Store.LastSave = s.lastSaveUnix
	return nil
}

// BGSave snapshots the keyspace into an independent deep copy (the
// Go-native stand-in for fork()'s copy-on-write, per spec §9 and the
// teacher's own handler_persistence.go BGSave) and writes it from a
// worker goroutine so the event loop is never blocked by disk I/O.
func (s *Server) BGSave() error {
	if s.bgsaving {
		return command.ErrBGSaveInProgress
	}
	dirtyAtStart := s.Store.Dirty
	dbs := make([]*store.Database, len(s.Store.Databases))
	for i, db := range s.Store.Databases {
		dbs[i] = store.FromSnapshot(db.Index, db.Snapshot())
	}
	s.bgsaving = true

	go func() {
		err := snapshot.WriteFile(s.dumpPath(), dbs)
		if err != nil {
			s.Logger.Warningf("background save failed: %v", err)
		} else {
			s.Logger.Noticef("background save finished")
		}
		s.postWake(wakeMsg{bgDone: &bgsaveResult{ok: err == nil, dirtyAtStart: dirtyAtStart}})
	}()
	return nil
}

// applyBGSaveResult runs on the event-loop goroutine, reached only via
// onWake, so it may touch Store/bgsaving without synchronization.
func (s *Server) applyBGSaveResult(r bgsaveResult) {
	s.bgsaving = false
	if r.ok {
		s.lastSaveUnix = stats.Now()
		s.Store.LastSave = s.lastSaveUnix
		s.Store.Dirty -= r.dirtyAtStart
		if s.Store.Dirty < 0 {
			s.Store.Dirty = 0
		}
	}
}

// StartCron registers the 1 Hz housekeeping time event (spec §4.8): hash
// table shrink checks, periodic stats logging, and background-save-policy
// evaluation against Config.SaveParams.
func (s *Server) StartCron() {
	s.Loop.CreateTimeEvent(cronIntervalMillis, s.cron, nil, nil)
}

func (s *Server) cron(loop *ae.Loop, id int64, clientData any) int {
	s.cronTicks++

	for _, db := range s.Store.Databases {
		db.ShrinkIfSparse()
	}

	if s.cronTicks%5 == 0 {
		for _, db := range s.Store.Databases {
			if db.Size() > 0 {
				s.Logger.Debugf("DB %d: %d keys", db.Index, db.Size())
			}
		}
		snap := stats.Collect(s.Store, s.startUnix, stats.Now())
		s.Logger.Noticef("%d clients connected, %d keys, dirty=%d", len(s.conns), snap.TotalKeys, snap.Dirty)
	}

	if s.cronTicks%10 == 0 {
		s.closeIdleClients()
	}

	s.maybeBGSave()

	return cronIntervalMillis
}

// closeIdleClients implements spec §4.8 duty #3: every 10 ticks, scan
// clients and close any whose last interaction is older than the
// configured timeout. No reply is sent to a client closed this way (spec
// Testable Scenario E7).
func (s *Server) closeIdleClients() {
	timeout := s.Config.Timeout
	if timeout <= 0 {
		return
	}
	now := stats.Now()
	for fd, conn := range s.conns {
		if conn.Client.Idle(now, timeout) {
			s.Logger.Debugf("closing idle client fd %d", fd)
			conn.Close()
		}
	}
}

// maybeBGSave evaluates the save-policy: trigger a background save once
// any configured (seconds, changes) pair is satisfied (spec §6/§4.8).
func (s *Server) maybeBGSave() {
	if s.bgsaving || len(s.Config.SaveParams) == 0 || s.Store.Dirty == 0 {
		return
	}
	now := stats.Now()
	elapsed := now - s.lastSaveUnix

	params := append([]config.SaveParam(nil), s.Config.SaveParams...)
	sort.Slice(params, func(i, j int) bool { return params[i].Changes < params[j].Changes })

	for _, p := range params {
		if elapsed >= p.Seconds && s.Store.Dirty >= p.Changes {
			s.Logger.Noticef("%d changes in %ds, starting background save", s.Store.Dirty, elapsed)
			if err := s.BGSave(); err != nil {
				s.Logger.Warningf("auto background save: %v", err)
			}
			return
		}
	}
}

// Run installs SIGINT/SIGTERM handling (graceful stop: a final foreground
// save then loop exit) and SIGPIPE ignoring (a client closing its read
// side must not kill the process, same as the teacher's signal setup),
// then blocks in the event loop until Stop is called.
func (s *Server) Run() {
	signal.Ignore(syscall.SIGPIPE)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		s.postWake(wakeMsg{shutdown: true})
	}()

	s.Loop.Main()
}

// Close releases the listening socket and wake pipe.
func (s *Server) Close() {
	if s.listenFd >= 0 {
		unix.Close(s.listenFd)
	}
	unix.Close(s.wakeR)
	unix.Close(s.wakeW)
}
