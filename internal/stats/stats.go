// Package stats renders the process/host metrics backing the supplemented
// INFO command (SPEC_FULL.md DOMAIN STACK). It is grounded on the
// teacher's mem.go, which already shells out to runtime.MemStats for a
// "used_memory" figure; this version goes further and anchors
// github.com/shirou/gopsutil/v4, matching the teacher's actual go.mod
// dependency, to report host-level figures (total/used system memory,
// load) the way a real cutis operator would actually want from INFO.
package stats

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/deiio/cutis/internal/store"
)

// Snapshot captures a point-in-time reading of process and host metrics.
type Snapshot struct {
	UptimeSeconds  int64
	GoVersion      string
	Goroutines     int
	ProcessRSSHint uint64 // runtime.MemStats.Sys, a cheap in-process stand-in
	HostTotalMem   uint64
	HostUsedMem    uint64
	LoadAvg1       float64
	ConnectedDBs   int
	TotalKeys      int
	Dirty          int
	LastSaveUnix   int64
}

// Collect gathers a Snapshot. gopsutil calls degrade gracefully (zero
// value) on platforms where /proc is unavailable, matching its own
// documented behavior; a metrics read must never be allowed to crash the
// single-threaded event loop.
func Collect(st *store.Store, startUnix int64, nowUnix int64) Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := Snapshot{
		UptimeSeconds:  nowUnix - startUnix,
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		ProcessRSSHint: ms.Sys,
		ConnectedDBs:   len(st.Databases),
		Dirty:          st.Dirty,
		LastSaveUnix:   st.LastSave,
	}
	for _, db := range st.Databases {
		s.TotalKeys += db.Size()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.HostTotalMem = vm.Total
		s.HostUsedMem = vm.Used
	}
	if avg, err := load.Avg(); err == nil {
		s.LoadAvg1 = avg.Load1
	}
	return s
}

// Render formats a Snapshot as the newline-delimited "field:value" body
// INFO returns, in the same loose key:value style real Redis-family
// servers use (and the teacher's own info.go emits).
func (s Snapshot) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", s.UptimeSeconds)
	fmt.Fprintf(&b, "go_version:%s\r\n", s.GoVersion)
	fmt.Fprintf(&b, "goroutines:%d\r\n", s.Goroutines)
	fmt.Fprintf(&b, "process_mem_sys_bytes:%d\r\n", s.ProcessRSSHint)
	fmt.Fprintf(&b, "host_total_mem_bytes:%d\r\n", s.HostTotalMem)
	fmt.Fprintf(&b, "host_used_mem_bytes:%d\r\n", s.HostUsedMem)
	fmt.Fprintf(&b, "load_avg_1m:%.2f\r\n", s.LoadAvg1)
	fmt.Fprintf(&b, "db_count:%d\r\n", s.ConnectedDBs)
	fmt.Fprintf(&b, "total_keys:%d\r\n", s.TotalKeys)
	fmt.Fprintf(&b, "dirty_since_save:%d\r\n", s.Dirty)
	fmt.Fprintf(&b, "last_save_time:%d\r\n", s.LastSaveUnix)
	return b.String()
}

// Now is a thin seam so callers can stamp a Snapshot without this package
// importing time at call sites that already track their own clock.
func Now() int64 { return time.Now().Unix() }
