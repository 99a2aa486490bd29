// Package snapshot implements the binary RDB-style persistence engine from
// spec §4.7: the atomic-rename snapshot writer and the loader. BGSAVE's
// deep copy and worker goroutine live in store and server; they call
// WriteFile on the copied databases.
//
// The wire format (magic, opcodes, big-endian lengths) is bespoke to
// cutis, so it is hand-rolled with encoding/binary rather than reusing the
// teacher's encoding/gob-based rdb.go -- gob cannot produce this exact
// byte layout, and no third-party serialization library in the example
// pack does either (see DESIGN.md). The atomic temp-file-then-rename
// write sequence is adopted from spec §4.7 directly; the teacher's own
// common.SaveRDB opens the destination with O_TRUNC in place, which does
// not give atomicity, so it is not reused for the write path.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/deiio/cutis/internal/store"
	"github.com/deiio/cutis/internal/value"
)

const (
	magic = "CUTIS0000"

	opSelectDB = 0xFE
	opEOF      = 0xFF

	typeString = 0
	typeList   = 1
	typeSet    = 2
)

// WriteFile writes an atomic snapshot of every non-empty database in
// dbs to path, via a temp file in the same directory renamed over path on
// success (spec §4.7: "never see a half-written file").
func WriteFile(path string, dbs []*store.Database) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf("dump-%d.*.cdb", os.Getpid()))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := writeTo(tmp, dbs); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func writeTo(w io.Writer, dbs []*store.Database) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	for _, db := range dbs {
		if db.Size() == 0 {
			continue
		}
		if err := writeSelector(bw, db); err != nil {
			return err
		}
	}
	if err := bw.WriteByte(opEOF); err != nil {
		return err
	}
	return bw.Flush()
}

func writeSelector(w *bufio.Writer, db *store.Database) error {
	if err := w.WriteByte(opSelectDB); err != nil {
		return err
	}
	if err := writeU32(w, uint32(db.Index)); err != nil {
		return err
	}
	var writeErr error
	db.Keys.Each(func(key string, v *value.Value) {
		if writeErr != nil {
			return
		}
		writeErr = writeEntry(w, key, v)
	})
	return writeErr
}

func writeEntry(w *bufio.Writer, key string, v *value.Value) error {
	var typ byte
	switch v.Kind {
	case value.KindString:
		typ = typeString
	case value.KindList:
		typ = typeList
	case value.KindSet:
		typ = typeSet
	default:
		return fmt.Errorf("snapshot: unknown value kind %v", v.Kind)
	}
	if err := w.WriteByte(typ); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(key))); err != nil {
		return err
	}
	if _, err := w.WriteString(key); err != nil {
		return err
	}

	switch v.Kind {
	case value.KindString:
		return writeStringPayload(w, v.Str)
	case value.KindList:
		return writeElements(w, v.ListElements())
	case value.KindSet:
		elems := make([][]byte, 0, len(v.Set))
		for m := range v.Set {
			elems = append(elems, []byte(m))
		}
		return writeElements(w, elems)
	}
	return nil
}

// writeStringPayload reproduces spec §9 Open Question #3's documented
// asymmetry verbatim rather than "fixing" it: a zero-length string value
// omits the value bytes entirely (the u32 length of 0 is still written).
func writeStringPayload(w *bufio.Writer, s []byte) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := w.Write(s)
	return err
}

func writeElements(w *bufio.Writer, elems [][]byte) error {
	if err := writeU32(w, uint32(len(elems))); err != nil {
		return err
	}
	for _, e := range elems {
		if err := writeU32(w, uint32(len(e))); err != nil {
			return err
		}
		if len(e) > 0 {
			if _, err := w.Write(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeU32(w io.Writer, n uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

// LoadFile loads a snapshot written by WriteFile into dbs, which must
// already be allocated with the right number of databases. Any short read
// or structural inconsistency is a fatal abort per spec §4.7/§7 ("short
// read while loading the snapshot" is a fatal invariant violation) --
// callers are expected to treat a non-nil error here as fatal.
func LoadFile(path string, dbs []*store.Database) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return loadFrom(bufio.NewReader(f), dbs)
}

func loadFrom(r *bufio.Reader, dbs []*store.Database) error {
	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(r, hdr); err != nil {
		return fmt.Errorf("snapshot: short read on magic: %w", err)
	}
	if string(hdr) != magic {
		return fmt.Errorf("snapshot: bad magic %q", hdr)
	}

	var cur *store.Database
	for {
		typ, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("snapshot: short read on type byte: %w", err)
		}
		switch typ {
		case opEOF:
			return nil
		case opSelectDB:
			idx, err := readU32(r)
			if err != nil {
				return fmt.Errorf("snapshot: short read on db index: %w", err)
			}
			if int(idx) >= len(dbs) {
				return fmt.Errorf("snapshot: db index %d out of range", idx)
			}
			cur = dbs[idx]
		case typeString, typeList, typeSet:
			if cur == nil {
				return fmt.Errorf("snapshot: entry before any SELECT_DB")
			}
			if err := readEntry(r, cur, typ); err != nil {
				return err
			}
		default:
			return fmt.Errorf("snapshot: unknown opcode 0x%02x", typ)
		}
	}
}

func readEntry(r *bufio.Reader, db *store.Database, typ byte) error {
	keyLen, err := readU32(r)
	if err != nil {
		return fmt.Errorf("snapshot: short read on key length: %w", err)
	}
	keyBuf := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBuf); err != nil {
		return fmt.Errorf("snapshot: short read on key: %w", err)
	}
	key := string(keyBuf)

	var v *value.Value
	switch typ {
	case typeString:
		n, err := readU32(r)
		if err != nil {
			return fmt.Errorf("snapshot: short read on string length: %w", err)
		}
		buf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return fmt.Errorf("snapshot: short read on string payload: %w", err)
			}
		}
		v = value.NewString(buf)
	case typeList:
		elems, err := readElements(r)
		if err != nil {
			return err
		}
		v = value.NewList()
		for _, e := range elems {
			v.List.PushBack(e)
		}
	case typeSet:
		elems, err := readElements(r)
		if err != nil {
			return err
		}
		v = value.NewSet()
		for _, e := range elems {
			v.Set[string(e)] = struct{}{}
		}
	}

	if !db.Keys.Add(key, v) {
		return fmt.Errorf("snapshot: duplicate key %q in db %d", key, db.Index)
	}
	return nil
}

func readElements(r *bufio.Reader) ([][]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: short read on element count: %w", err)
	}
	out := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		elemLen, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("snapshot: short read on element length: %w", err)
		}
		buf := make([]byte, elemLen)
		if elemLen > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("snapshot: short read on element payload: %w", err)
			}
		}
		out = append(out, buf)
	}
	return out, nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
