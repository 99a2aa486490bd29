// Package store implements the keyspace data model from spec §3: N
// independent databases, each a hash table from key to Value, plus the
// server-wide dirty-write counter and last-save bookkeeping the
// persistence engine and cron consult.
package store

import (
	"math/rand"

	"github.com/deiio/cutis/internal/dict"
	"github.com/deiio/cutis/internal/value"
)

// Database is one of the N logical keyspaces a client can SELECT into.
type Database struct {
	Index int
	Keys  *dict.Dict[string, *value.Value]
}

func newDatabase(index int) *Database {
	return &Database{
		Index: index,
		Keys:  dict.New[string, *value.Value](dict.StringHash),
	}
}

func (d *Database) Get(key string) (*value.Value, bool) {
	return d.Keys.Find(key)
}

func (d *Database) Set(key string, v *value.Value) {
	d.Keys.Replace(key, v)
}

func (d *Database) Delete(key string) bool {
	return d.Keys.Delete(key)
}

func (d *Database) Exists(key string) bool {
	_, ok := d.Keys.Find(key)
	return ok
}

func (d *Database) Size() int { return d.Keys.Used() }

func (d *Database) RandomKey() (string, bool) {
	k, _, ok := d.Keys.GetRandom(rand.Intn)
	return k, ok
}

// Snapshot returns a deep copy of every key/value in the database, for use
// by BGSAVE's point-in-time worker goroutine (the Go-native stand-in for
// fork()'s copy-on-write address space, per spec §9's sanctioned
// degradation).
func (d *Database) Snapshot() map[string]*value.Value {
	out := make(map[string]*value.Value, d.Keys.Used())
	d.Keys.Each(func(k string, v *value.Value) {
		out[k] = v.Clone()
	})
	return out
}

// ShrinkIfSparse runs the cron-driven hash-table shrink rule (spec §4.2,
// §4.8).
func (d *Database) ShrinkIfSparse() {
	d.Keys.ShrinkIfSparse()
}

// FromSnapshot rebuilds a standalone Database from a Snapshot map, used by
// BGSAVE's worker goroutine to hold its point-in-time copy independently
// of the live keyspace.
func FromSnapshot(index int, snap map[string]*value.Value) *Database {
	d := newDatabase(index)
	for k, v := range snap {
		d.Keys.Add(k, v)
	}
	return d
}

// Store is the server-global array of N databases plus the dirty-write
// counter and last-save timestamp the persistence policy consults.
type Store struct {
	Databases []*Database
	Dirty     int
	LastSave  int64 // unix seconds
}

// New allocates n empty databases, addressed 0..n-1.
func New(n int) *Store {
	dbs := make([]*Database, n)
	for i := range dbs {
		dbs[i] = newDatabase(i)
	}
	return &Store{Databases: dbs}
}

// MarkDirty increments the dirty counter by delta; called by every
// mutating command (spec §4.6's "dirty-counter rule": mutators increment,
// queries never do).
func (s *Store) MarkDirty(delta int) {
	s.Dirty += delta
}

// FlushDB clears a single database.
func (s *Store) FlushDB(i int) {
	s.Databases[i] = newDatabase(i)
}
