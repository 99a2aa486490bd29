package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deiio/cutis/internal/store"
	"github.com/deiio/cutis/internal/value"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	st := store.New(3)
	db0 := st.Databases[0]
	db0.Set("greeting", value.NewString([]byte("hello")))
	db0.Set("empty", value.NewString(nil))

	list := value.NewList()
	list.List.PushBack([]byte("a"))
	list.List.PushBack([]byte("b"))
	db0.Set("mylist", list)

	set := value.NewSet()
	set.Set["x"] = struct{}{}
	set.Set["y"] = struct{}{}
	db0.Set("myset", set)

	db2 := st.Databases[2]
	db2.Set("other", value.NewString([]byte("db2")))

	dir := t.TempDir()
	path := filepath.Join(dir, "dump.cdb")
	if err := WriteFile(path, st.Databases); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded := store.New(3)
	if err := LoadFile(path, loaded.Databases); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	v, ok := loaded.Databases[0].Get("greeting")
	if !ok || string(v.Str) != "hello" {
		t.Fatalf("greeting = %v, %v", v, ok)
	}
	v, ok = loaded.Databases[0].Get("empty")
	if !ok || len(v.Str) != 0 {
		t.Fatalf("empty = %v, %v", v, ok)
	}
	v, ok = loaded.Databases[0].Get("mylist")
	if !ok || v.Kind != value.KindList || v.List.Len() != 2 {
		t.Fatalf("mylist = %v, %v", v, ok)
	}
	v, ok = loaded.Databases[0].Get("myset")
	if !ok || v.Kind != value.KindSet || len(v.Set) != 2 {
		t.Fatalf("myset = %v, %v", v, ok)
	}
	v, ok = loaded.Databases[2].Get("other")
	if !ok || string(v.Str) != "db2" {
		t.Fatalf("db2.other = %v, %v", v, ok)
	}
	if loaded.Databases[1].Size() != 0 {
		t.Fatalf("expected db1 empty")
	}
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	st := store.New(1)
	if err := LoadFile(filepath.Join(t.TempDir(), "nonexistent.cdb"), st.Databases); err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
}

func TestLoadFileBadMagicIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cdb")
	if err := os.WriteFile(path, []byte("NOTCUTIS"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	st := store.New(1)
	if err := LoadFile(path, st.Databases); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestWriteFileIsAtomic(t *testing.T) {
	st := store.New(1)
	st.Databases[0].Set("k", value.NewString([]byte("v")))
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.cdb")

	if err := WriteFile(path, st.Databases); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the final dump file, found %d entries", len(entries))
	}
}
