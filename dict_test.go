package pickle

import (
	"hash/maphash"
	"strings"
	"testing"
)

// TestEqual verifies equal and hash across the numeric tower, strings and
// bytes, sequences, Dict/Set/FrozenSet, and pointer identity.
func TestEqual(t *testing.T) {
	// tAllEqual represents a tested set of values, all mutually equal and
	// (modulo Go pointer/struct identity entries) not equal to any value
	// outside the set.
	type tAllEqual []any
	E := func(v ...any) tAllEqual { return tAllEqual(v) }

	D := NewDictWithData

	i1 := 1
	i1_ := 1
	ref := TypeRef{"a", "b"}
	ref_ := TypeRef{"a", "b"}

	testv := []tAllEqual{
		E(int(0), int64(0), int32(0), int16(0), int8(0),
			uint64(0), uint32(0), uint16(0), uint8(0),
			false, float32(0), float64(0)),
		E(int(1), int64(1), int32(1), int16(1), int8(1),
			uint64(1), uint32(1), uint16(1), uint8(1),
			true, float32(1), float64(1)),
		E(int(-1), int64(-1), int32(-1), int16(-1), int8(-1),
			float32(-1), float64(-1)),
		E(int(0xff), int64(0xff), int32(0xff), int16(0xff),
			uint64(0xff), uint32(0xff), uint16(0xff),
			float32(0xff), float64(0xff)),
		E(int(0xffff), int64(0xffff), int32(0xffff),
			uint64(0xffff), uint32(0xffff), uint16(0xffff),
			float32(0xffff), float64(0xffff)),
		E(float64(1.25), float32(1.25)),

		// strings and bytes never compare equal to each other.
		E(""), E("a"), E("мир"),
		E(Bytes("")), E(Bytes("a")), E(Bytes("мир")),
		E(ByteArray("x"), Bytes("x")),

		// none / empty tuple|list
		E(None{}),
		E(Tuple{}, []any{}),

		// sequences
		E([]int{}, []float32{}, []any{}, Tuple{}, [0]float64{}),
		E([]int{1, 2}, []float32{1, 2}, []any{1, 2}, Tuple{1, 2}, [2]float64{1, 2}),
		E([]any{1, "a"}, Tuple{1, "a"}, [2]any{1, "a"}),

		// Dict
		E(D()),
		E(D(1, 2)),
		E(D(1, "a")),
		E(D("a", 1)),
		E(D("a", 1, None{}, 2)),
		E(D("a", 1, Bytes("a"), 1)),

		// TypeRef
		E(TypeRef{"mod", "cls"}, TypeRef{"mod", "cls"}),

		// pointers, as in builtin ==, are compared only by address
		E(&i1), E(&i1_), E(&ref), E(&ref_),

		E(nil),
	}

	// automatically test equality on Tuples/lists built from pairs above
	testvAddSequences := func() {
		l := len(testv)
		for i := 0; i < l; i++ {
			Ex := testv[i]
			Ey := testv[(i+1)%l]
			x0, x1 := Ex[0], Ex[1%len(Ex)]
			y0, y1 := Ey[0], Ey[1%len(Ey)]
			t1, t2 := Tuple{x0, y0}, Tuple{x1, y1}
			l1, l2 := []any{x0, y0}, []any{x1, y1}
			testv = append(testv, E(t1, t2, l1, l2))
		}
	}
	testvAddSequences()

	tseed := maphash.MakeSeed()
	thash := func(x any) (h uint64, ok bool) {
		defer func() {
			if r := recover(); r != nil {
				if s, ok2 := r.(string); ok2 && strings.HasPrefix(s, "unhashable type: ") {
					h, ok = 0, false
					return
				}
				panic(r)
			}
		}()
		return hash(tseed, x), true
	}

	tequal := func(a, b any) bool {
		if !equal(a, a) {
			t.Errorf("not self-equal  %T %#v", a, a)
		}
		if !equal(b, b) {
			t.Errorf("not self-equal  %T %#v", b, b)
		}
		eq := equal(a, b)
		if qe := equal(b, a); eq != qe {
			t.Errorf("equal not symmetric: %T %#v  %T %#v; a==b:%v b==a:%v", a, a, b, b, eq, qe)
		}
		ah, ahOk := thash(a)
		bh, bhOk := thash(b)
		if eq && ahOk && bhOk && ah != bh {
			t.Errorf("hash different of equal  %T %#v hash:%x  %T %#v hash:%x", a, a, ah, b, b, bh)
		}
		return eq
	}

	EHas := func(E tAllEqual, x any) bool {
		for _, a := range E {
			if tequal(a, x) {
				return true
			}
		}
		return false
	}

	for i, E1 := range testv {
		// ∀ a,b ∈ tAllEqual ⇒ equal(a,b)
		for _, a := range E1 {
			for _, b := range E1 {
				if !tequal(a, b) {
					t.Errorf("not equal  %T %#v  %T %#v", a, a, b, b)
				}
			}
		}

		// ∀ a ∈ E1, ∀ c ∉ E1 ⇒ !equal(a,c). Some sets overlap (e.g. the
		// empty tuple appears both on its own and among the empty
		// sequences), so members of E2 that E1 also contains are skipped.
		for j, E2 := range testv {
			if j == i {
				continue
			}
			for _, a := range E1 {
				for _, c := range E2 {
					if EHas(E1, c) {
						continue
					}
					if tequal(a, c) {
						t.Errorf("equal  %T %#v  %T %#v", a, a, c, c)
					}
				}
			}
		}
	}
}

func TestDictOverwritesOnDuplicateKey(t *testing.T) {
	d := NewDict()
	d.Set("a", 1)
	d.Set("a", 2)
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	if v := d.Get("a"); v != 2 {
		t.Fatalf("Get(a) = %v, want 2", v)
	}
}

func TestDictGetMissingReturnsNil(t *testing.T) {
	d := NewDict()
	if v := d.Get("missing"); v != nil {
		t.Fatalf("Get(missing) = %v, want nil", v)
	}
	if _, ok := d.Get_("missing"); ok {
		t.Fatalf("Get_(missing) ok = true, want false")
	}
}

func TestDictDel(t *testing.T) {
	d := NewDict()
	d.Set("a", 1)
	d.Del("a")
	if d.Len() != 0 {
		t.Fatalf("Len() after Del = %d, want 0", d.Len())
	}
}

func TestSetAddHasDedup(t *testing.T) {
	s := NewSet()
	s.Add(int32(1))
	s.Add(int32(1))
	s.Add(int32(2))
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if !s.Has(int32(1)) || !s.Has(int32(2)) {
		t.Fatalf("Has() missing a member that was added")
	}
	if s.Has(int32(3)) {
		t.Fatalf("Has(3) = true, want false")
	}
}

func TestFrozenSetDedupAndHash(t *testing.T) {
	fs1 := NewFrozenSet([]any{int32(1), int32(2), int32(2)})
	if fs1.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate member not deduplicated)", fs1.Len())
	}

	// order-independent hash: building the same members in a different
	// order must hash identically, per dict.go's documented XOR-fold.
	fs2 := NewFrozenSet([]any{int32(2), int32(1)})
	seed := maphash.MakeSeed()
	if hash(seed, fs1) != hash(seed, fs2) {
		t.Fatalf("FrozenSet hash is order-dependent")
	}
	if !equal(fs1, fs2) {
		t.Fatalf("FrozenSet with same members in different order not equal")
	}
}

func TestListIsUnhashable(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic hashing a List")
		}
	}()
	hash(maphash.MakeSeed(), NewListWithData(int32(1)))
}

func TestTupleIsHashable(t *testing.T) {
	seed := maphash.MakeSeed()
	h1 := hash(seed, Tuple{int32(1), "a"})
	h2 := hash(seed, Tuple{int32(1), "a"})
	if h1 != h2 {
		t.Fatalf("identical tuples hashed differently")
	}
}
