package dict

import (
	"math/rand"
	"testing"
)

func TestAddFindDelete(t *testing.T) {
	d := New[string, int](StringHash)

	if !d.Add("foo", 1) {
		t.Fatalf("Add on fresh key should succeed")
	}
	if d.Add("foo", 2) {
		t.Fatalf("Add on existing key should fail")
	}
	v, ok := d.Find("foo")
	if !ok || v != 1 {
		t.Fatalf("Find(foo) = %v, %v, want 1, true", v, ok)
	}
	if !d.Delete("foo") {
		t.Fatalf("Delete(foo) should succeed")
	}
	if _, ok := d.Find("foo"); ok {
		t.Fatalf("Find(foo) after delete should fail")
	}
}

func TestReplace(t *testing.T) {
	d := New[string, int](StringHash)
	d.Replace("k", 1)
	d.Replace("k", 2)
	if d.Used() != 1 {
		t.Fatalf("Used() = %d, want 1", d.Used())
	}
	v, _ := d.Find("k")
	if v != 2 {
		t.Fatalf("Find(k) = %d, want 2", v)
	}
}

func TestGrowthInvariant(t *testing.T) {
	d := New[string, int](StringHash)
	for i := 0; i < 1000; i++ {
		d.Add(string(rune('a'))+string(rune(i)), i)
	}
	if d.Used() > d.Size() {
		t.Fatalf("used %d > size %d", d.Used(), d.Size())
	}
	if d.Size()&(d.Size()-1) != 0 {
		t.Fatalf("size %d is not a power of two", d.Size())
	}
	if d.Size() < 16 {
		t.Fatalf("size %d < 16", d.Size())
	}
}

func TestShrinkIfSparse(t *testing.T) {
	d := New[string, int](StringHash)
	for i := 0; i < 20000; i++ {
		d.Add(string(rune(i)), i)
	}
	for i := 0; i < 19900; i++ {
		d.Delete(string(rune(i)))
	}
	sizeBefore := d.Size()
	d.ShrinkIfSparse()
	if d.Size() >= sizeBefore {
		t.Fatalf("expected shrink, size stayed at %d", d.Size())
	}
	if d.Used() > d.Size() {
		t.Fatalf("used %d > size %d after shrink", d.Used(), d.Size())
	}
}

func TestGetRandomEmpty(t *testing.T) {
	d := New[string, int](StringHash)
	if _, _, ok := d.GetRandom(rand.Intn); ok {
		t.Fatalf("GetRandom on empty dict should report not-ok")
	}
}

func TestGetRandomReturnsMember(t *testing.T) {
	d := New[string, int](StringHash)
	d.Add("a", 1)
	d.Add("b", 2)
	d.Add("c", 3)
	k, v, ok := d.GetRandom(rand.Intn)
	if !ok {
		t.Fatalf("expected a random entry")
	}
	want, present := d.Find(k)
	if !present || want != v {
		t.Fatalf("GetRandom returned inconsistent pair %v=%v", k, v)
	}
}
