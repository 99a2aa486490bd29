// Package ae implements the single-threaded cooperative reactor from
// spec §4.4, grounded on original_source/ae.c and ae.h: file events keyed
// by (fd, mask), time events with monotonically increasing ids, one
// multiplexing call per loop iteration, dispatch from a copy of the ready
// list with each fd's registration looked up again before every callback so
// handlers may safely mutate the registration set, and the max_id capture
// that stops a self-rescheduling time event from looping forever within a
// single pass.
//
// Per spec §9's explicit sanction ("a production reimplementation should
// use epoll/kqueue... without changing the surface contract of §4.4"),
// golang.org/x/sys/unix epoll replaces the original's select() as the
// multiplexing primitive; golang.org/x/sys is promoted here from
// gopsutil's transitive indirect to a direct dependency.
package ae

import (
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

const (
	Readable  = 1
	Writable  = 2
	Exception = 4
)

const (
	FileEvents = 1
	TimeEvents = 2
	AllEvents  = FileEvents | TimeEvents
	DontWait   = 4
)

// NoMore is returned by a TimeProc to ask that its event be deleted rather
// than rescheduled.
const NoMore = -1

type FileProc func(loop *Loop, fd int, clientData any, mask int)
type TimeProc func(loop *Loop, id int64, clientData any) int
type FinalizerProc func(loop *Loop, clientData any)

type fileEvent struct {
	fd         int
	mask       int
	readProc   FileProc
	writeProc  FileProc
	clientData any
	finalizer  FinalizerProc
}

type timeEvent struct {
	id         int64
	whenMillis int64
	proc       TimeProc
	clientData any
	finalizer  FinalizerProc
}

// Loop is a single-threaded epoll-backed event loop.
type Loop struct {
	epfd          int
	files         map[int]*fileEvent
	timeEvents    []*timeEvent
	nextTimeEvent int64
	stop          bool
}

// New creates an empty Loop.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Loop{
		epfd:  epfd,
		files: make(map[int]*fileEvent),
	}, nil
}

func (l *Loop) epollMaskFor(mask int) uint32 {
	var m uint32
	if mask&Readable != 0 {
		m |= unix.EPOLLIN
	}
	if mask&Writable != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

// CreateFileEvent registers proc to run when fd becomes ready for any bit
// set in mask. Re-registering the same (fd, mask) bit replaces the prior
// callback for that bit; the fd's combined epoll interest is the union of
// every mask ever registered for it and still active.
func (l *Loop) CreateFileEvent(fd, mask int, proc FileProc, clientData any, finalizer FinalizerProc) error {
	fe, existed := l.files[fd]
	if !existed {
		fe = &fileEvent{fd: fd, clientData: clientData, finalizer: finalizer}
		l.files[fd] = fe
	}
	if mask&Readable != 0 {
		fe.readProc = proc
	}
	if mask&Writable != 0 {
		fe.writeProc = proc
	}
	fe.clientData = clientData
	fe.finalizer = finalizer
	newMask := fe.mask | mask

	ev := &unix.EpollEvent{Events: l.epollMaskFor(newMask), Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if !existed {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(l.epfd, op, fd, ev); err != nil {
		return err
	}
	fe.mask = newMask
	return nil
}

// DeleteFileEvent removes exactly the bits in mask from fd's registration;
// once no bits remain the fd is dropped from epoll entirely.
func (l *Loop) DeleteFileEvent(fd, mask int) {
	fe, ok := l.files[fd]
	if !ok {
		return
	}
	if mask&Readable != 0 {
		fe.readProc = nil
	}
	if mask&Writable != 0 {
		fe.writeProc = nil
	}
	fe.mask &^= mask
	if fe.mask == 0 {
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(l.files, fd)
		if fe.finalizer != nil {
			fe.finalizer(l, fe.clientData)
		}
		return
	}
	ev := &unix.EpollEvent{Events: l.epollMaskFor(fe.mask), Fd: int32(fd)}
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// CreateTimeEvent registers proc to fire after delayMillis from now,
// returning the new time event's monotonically increasing id.
func (l *Loop) CreateTimeEvent(delayMillis int64, proc TimeProc, clientData any, finalizer FinalizerProc) int64 {
	id := l.nextTimeEvent
	l.nextTimeEvent++
	l.timeEvents = append(l.timeEvents, &timeEvent{
		id:         id,
		whenMillis: nowMillis() + delayMillis,
		proc:       proc,
		clientData: clientData,
		finalizer:  finalizer,
	})
	return id
}

// DeleteTimeEvent removes the time event with the given id, reporting
// whether it was found.
func (l *Loop) DeleteTimeEvent(id int64) bool {
	for i, te := range l.timeEvents {
		if te.id == id {
			if te.finalizer != nil {
				te.finalizer(l, te.clientData)
			}
			l.timeEvents = append(l.timeEvents[:i], l.timeEvents[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Loop) nearestTimer() (int64, bool) {
	if len(l.timeEvents) == 0 {
		return 0, false
	}
	nearest := l.timeEvents[0].whenMillis
	for _, te := range l.timeEvents[1:] {
		if te.whenMillis < nearest {
			nearest = te.whenMillis
		}
	}
	return nearest, true
}

// Stop requests that Main return after the current iteration.
func (l *Loop) Stop() { l.stop = true }

// ProcessEvents runs at most one pass: one epoll_wait call plus dispatch of
// whatever is ready, then (if flags&TimeEvents) one pass over due time
// events. Returns the number of events processed.
func (l *Loop) ProcessEvents(flags int) int {
	processed := 0

	timeoutMillis := -1
	if flags&DontWait != 0 {
		timeoutMillis = 0
	} else if flags&TimeEvents != 0 {
		if nearest, ok := l.nearestTimer(); ok {
			ms := nearest - nowMillis()
			if ms < 0 {
				ms = 0
			}
			timeoutMillis = int(ms)
		}
	}

	if flags&FileEvents != 0 {
		events := make([]unix.EpollEvent, 128)
		n, err := unix.EpollWait(l.epfd, events, timeoutMillis)
		if err == nil {
			ready := make([]unix.EpollEvent, n)
			copy(ready, events[:n])
			for _, ev := range ready {
				fd := int(ev.Fd)
				fe, ok := l.files[fd]
				if !ok {
					continue
				}
				mask := 0
				if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
					mask |= Readable
				}
				if ev.Events&unix.EPOLLOUT != 0 {
					mask |= Writable
				}
				if mask&Readable != 0 && fe.readProc != nil {
					fe.readProc(l, fd, fe.clientData, Readable)
					processed++
				}
				// Re-lookup: the read callback may have deleted fd.
				if fe, ok = l.files[fd]; ok && mask&Writable != 0 && fe.writeProc != nil {
					fe.writeProc(l, fd, fe.clientData, Writable)
					processed++
				}
			}
		}
	}

	if flags&TimeEvents != 0 {
		processed += l.processTimeEvents()
	}

	return processed
}

func (l *Loop) processTimeEvents() int {
	maxID := l.nextTimeEvent - 1
	now := nowMillis()

	due := make([]*timeEvent, 0, len(l.timeEvents))
	for _, te := range l.timeEvents {
		if te.id <= maxID && te.whenMillis <= now {
			due = append(due, te)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].whenMillis < due[j].whenMillis })

	processed := 0
	for _, te := range due {
		stillPresent := false
		for _, e := range l.timeEvents {
			if e == te {
				stillPresent = true
				break
			}
		}
		if !stillPresent {
			continue
		}
		ret := te.proc(l, te.id, te.clientData)
		processed++
		if ret == NoMore {
			l.DeleteTimeEvent(te.id)
		} else {
			te.whenMillis = nowMillis() + int64(ret)
		}
	}
	return processed
}

// Main runs ProcessEvents(AllEvents) until Stop is called.
func (l *Loop) Main() {
	l.stop = false
	for !l.stop {
		l.ProcessEvents(AllEvents)
	}
}

// Wait blocks until fd is ready for mask or timeoutMillis elapses,
// returning the bits that became ready. Equivalent to the original's
// AeWait, used for one-shot readiness checks outside the main loop (e.g.
// during connect()).
func Wait(fd, mask int, timeoutMillis int64) (int, error) {
	pfd := []unix.PollFd{{Fd: int32(fd)}}
	if mask&Readable != 0 {
		pfd[0].Events |= unix.POLLIN
	}
	if mask&Writable != 0 {
		pfd[0].Events |= unix.POLLOUT
	}
	n, err := unix.Poll(pfd, int(timeoutMillis))
	if err != nil || n <= 0 {
		return 0, err
	}
	result := 0
	if pfd[0].Revents&unix.POLLIN != 0 {
		result |= Readable
	}
	if pfd[0].Revents&unix.POLLOUT != 0 {
		result |= Writable
	}
	return result, nil
}
