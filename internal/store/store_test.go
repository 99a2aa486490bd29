package store

import (
	"testing"

	"github.com/deiio/cutis/internal/value"
)

func TestBasicGetSetDelete(t *testing.T) {
	s := New(4)
	db := s.Databases[0]

	if _, ok := db.Get("foo"); ok {
		t.Fatalf("expected missing key")
	}
	db.Set("foo", value.NewString([]byte("bar")))
	v, ok := db.Get("foo")
	if !ok || string(v.Str) != "bar" {
		t.Fatalf("Get(foo) = %v, %v", v, ok)
	}
	if !db.Delete("foo") {
		t.Fatalf("Delete(foo) should succeed")
	}
	if db.Exists("foo") {
		t.Fatalf("foo should no longer exist")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := New(1)
	db := s.Databases[0]
	db.Set("k", value.NewString([]byte("v1")))

	snap := db.Snapshot()
	db.Set("k", value.NewString([]byte("v2")))

	if string(snap["k"].Str) != "v1" {
		t.Fatalf("snapshot should be unaffected by later mutation, got %q", snap["k"].Str)
	}
}

func TestFlushDB(t *testing.T) {
	s := New(2)
	s.Databases[0].Set("k", value.NewString([]byte("v")))
	s.FlushDB(0)
	if s.Databases[0].Size() != 0 {
		t.Fatalf("expected empty database after FlushDB")
	}
}

func TestMarkDirty(t *testing.T) {
	s := New(1)
	if s.Dirty != 0 {
		t.Fatalf("expected zero dirty counter initially")
	}
	s.MarkDirty(1)
	s.MarkDirty(2)
	if s.Dirty != 3 {
		t.Fatalf("Dirty = %d, want 3", s.Dirty)
	}
}
