package pickle

// Dict, Set, and FrozenSet implement Python-like equality on access: int
// 1, float64 1.0, and true are all the same key, matching CPython's own
// dict/set semantics. Built on top of github.com/aristanetworks/gomap (a
// generic map keyed by a caller-supplied hash/equal pair).
//
// Numeric precision caps at int64/float64, so there is no big-int or
// complex kind to dispatch on. List is explicitly unhashable (it panics
// the same way a builtin Go slice does as a map key), Tuple is hashable
// (recursively, over its elements), and FrozenSet is hashable via an
// order-independent XOR-fold of its members' hashes.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"math"
	"reflect"
	"sort"

	"github.com/aristanetworks/gomap"
)

// Dict is Python's dict: a mapping from a non-null Value to a Value.
//
// Its zero value is a nil dictionary, empty and invalid to Set on, the
// same as a builtin Go map. Use NewDict.
type Dict struct {
	m *gomap.Map[any, any]
}

// NewDict returns a new empty dictionary.
func NewDict() Dict {
	return NewDictWithSizeHint(0)
}

// NewDictWithSizeHint returns a new empty dictionary with preallocated
// space for size items.
func NewDictWithSizeHint(size int) Dict {
	return Dict{m: gomap.NewHint[any, any](size, equal, hash)}
}

// NewDictWithData returns a new dictionary with preset data.
//
// kv should be key1, value1, key2, value2, ...
func NewDictWithData(kv ...any) Dict {
	l := len(kv)
	if l%2 != 0 {
		panic("odd number of arguments")
	}
	l /= 2
	d := NewDictWithSizeHint(l)
	for i := 0; i < l; i++ {
		d.Set(kv[2*i], kv[2*i+1])
	}
	return d
}

// Get returns the value associated with an equal key, or nil if absent.
func (d Dict) Get(key any) any {
	value, _ := d.Get_(key)
	return value
}

// Get_ is the comma-ok version of Get.
func (d Dict) Get_(key any) (value any, ok bool) {
	return d.m.Get(key)
}

// Set sets key to be associated with value, overwriting any previous
// equal key.
func (d Dict) Set(key, value any) {
	d.m.Set(key, value)
}

// Del removes the equal key from the dictionary, if present.
func (d Dict) Del(key any) {
	d.m.Delete(key)
}

// Len returns the number of items in the dictionary.
func (d Dict) Len() int { return d.m.Len() }

// Iter returns an iterator over all entries, in arbitrary order.
func (d Dict) Iter() func(yield func(any, any) bool) {
	it := d.m.Iter()
	return func(yield func(any, any) bool) {
		for it.Next() {
			if !yield(it.Key(), it.Elem()) {
				break
			}
		}
	}
}

func (d Dict) String() string   { return d.sprintf("%v") }
func (d Dict) GoString() string { return fmt.Sprintf("%T%s", d, d.sprintf("%#v")) }

func (d Dict) sprintf(format string) string {
	type kv struct{ k, v string }
	items := make([]kv, 0, d.Len())
	d.Iter()(func(k, v any) bool {
		items = append(items, kv{fmt.Sprintf(format, k), fmt.Sprintf(format, v)})
		return true
	})
	sort.Slice(items, func(i, j int) bool { return items[i].k < items[j].k })

	s := "{"
	for i, it := range items {
		if i > 0 {
			s += ", "
		}
		s += it.k + ": " + it.v
	}
	return s + "}"
}

// Set is Python's set: a mutable, unordered collection of unique,
// hashable Values.
type Set struct {
	m *gomap.Map[any, struct{}]
}

// NewSet returns a new empty set.
func NewSet() Set { return NewSetWithSizeHint(0) }

// NewSetWithSizeHint returns a new empty set preallocated for size items.
func NewSetWithSizeHint(size int) Set {
	return Set{m: gomap.NewHint[any, struct{}](size, equal, hash)}
}

// NewSetWithData returns a new set containing the given members.
func NewSetWithData(members ...any) Set {
	s := NewSetWithSizeHint(len(members))
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// Add inserts a member, a no-op if an equal member is already present.
func (s Set) Add(v any) { s.m.Set(v, struct{}{}) }

// Has reports whether an equal member is present.
func (s Set) Has(v any) bool {
	_, ok := s.m.Get(v)
	return ok
}

// Len returns the number of members.
func (s Set) Len() int { return s.m.Len() }

// Iter returns an iterator over all members, in arbitrary order.
func (s Set) Iter() func(yield func(any) bool) {
	it := s.m.Iter()
	return func(yield func(any) bool) {
		for it.Next() {
			if !yield(it.Key()) {
				break
			}
		}
	}
}

// FrozenSet is Python's frozenset: an immutable, hashable set. Unlike
// Set, a FrozenSet may itself be used as a Dict or Set key.
type FrozenSet struct {
	members []any
}

// NewFrozenSet builds an immutable set out of members, deduplicating by
// Python-like equality.
func NewFrozenSet(members []any) FrozenSet {
	seen := NewSetWithSizeHint(len(members))
	out := make([]any, 0, len(members))
	for _, m := range members {
		if !seen.Has(m) {
			seen.Add(m)
			out = append(out, m)
		}
	}
	return FrozenSet{members: out}
}

func (f FrozenSet) Len() int { return len(f.members) }

func (f FrozenSet) Iter() func(yield func(any) bool) {
	return func(yield func(any) bool) {
		for _, m := range f.members {
			if !yield(m) {
				break
			}
		}
	}
}

// ---- kind classification ----

type kind uint

const (
	kBool kind = iota
	kInt       // int + intX
	kUint      // uint + uintX
	kFloat     // floatX

	kSlice   // slice + array
	kStruct  // struct
	kPointer // pointer
	kOther   // everything else
)

func kindOf(x any) kind {
	r := reflect.ValueOf(x)

	switch r.Kind() {
	case reflect.Bool:
		return kBool
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return kInt
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		return kUint
	case reflect.Float64, reflect.Float32:
		return kFloat
	case reflect.Slice, reflect.Array:
		return kSlice
	case reflect.Struct:
		return kStruct
	case reflect.Pointer:
		return kPointer
	}
	return kOther
}

// ---- equal ----

// equal implements equality matching what Python would return for a == b:
// int 1, float64 1.0, and bool true all compare equal, matching CPython's
// numeric tower, and Bytes/Text never compare equal to one another even
// when their underlying bytes match, matching Python 3's bytes/str split.
func equal(xa, xb any) bool {
	// strings/bytes are not part of the generic kind dispatch below,
	// since []byte (Bytes/ByteArray) is not a Go-comparable kind.
	switch a := xa.(type) {
	case string:
		b, ok := xb.(string)
		return ok && a == b
	case Bytes:
		switch b := xb.(type) {
		case Bytes:
			return bytes.Equal(a, b)
		case ByteArray:
			return bytes.Equal(a, b)
		}
		return false
	case ByteArray:
		switch b := xb.(type) {
		case Bytes:
			return bytes.Equal(a, b)
		case ByteArray:
			return bytes.Equal(a, b)
		}
		return false
	}
	if _, ok := xb.(string); ok {
		return false
	}
	if _, ok := xb.(Bytes); ok {
		return false
	}
	if _, ok := xb.(ByteArray); ok {
		return false
	}

	a := reflect.ValueOf(xa)
	b := reflect.ValueOf(xb)

	ak := kindOf(xa)
	bk := kindOf(xb)

	// equality is symmetric, so only half the matrix needs to be coded
	if ak > bk {
		a, b = b, a
		ak, bk = bk, ak
		xa, xb = xb, xa
	}

	handled := true
	switch ak {
	default:
		handled = false

	case kBool:
		abint := bint(a.Bool())
		switch bk {
		case kBool:
			return eq_Int_Int(abint, bint(b.Bool()))
		case kInt:
			return eq_Int_Int(abint, b.Int())
		case kUint:
			return eq_Int_Uint(abint, b.Uint())
		case kFloat:
			return eq_Int_Float(abint, b.Float())
		}

	case kInt:
		aint := a.Int()
		switch bk {
		case kInt:
			return eq_Int_Int(aint, b.Int())
		case kUint:
			return eq_Int_Uint(aint, b.Uint())
		case kFloat:
			return eq_Int_Float(aint, b.Float())
		}

	case kUint:
		auint := a.Uint()
		switch bk {
		case kUint:
			return eq_Uint_Uint(auint, b.Uint())
		case kFloat:
			return eq_Uint_Float(auint, b.Float())
		}

	case kFloat:
		afloat := a.Float()
		switch bk {
		case kFloat:
			return eq_Float_Float(afloat, b.Float())
		}

	case kSlice:
		switch bk {
		case kSlice:
			return eq_Slice_Slice(a, b)
		}
	}

	if handled {
		return false
	}

	switch a := xa.(type) {
	case Dict:
		switch b := xb.(type) {
		case Dict:
			return eq_Dict_Dict(a, b)
		default:
			return false
		}
	case Set:
		switch b := xb.(type) {
		case Set:
			return eq_Set_Set(a, b)
		default:
			return false
		}
	case FrozenSet:
		switch b := xb.(type) {
		case FrozenSet:
			return eq_FrozenSet_FrozenSet(a, b)
		default:
			return false
		}
	case List:
		switch b := xb.(type) {
		case List:
			return eq_List_List(a, b)
		default:
			return false
		}
	}

	switch ak {
	case kStruct:
		switch bk {
		case kStruct:
			return eq_Struct_Struct(a, b)
		default:
			return false
		}
	}

	return xa == xb // fallback to builtin equality
}

func eq_Int_Int(a, b int64) bool     { return a == b }
func eq_Int_Uint(a int64, b uint64) bool {
	if a < 0 {
		return false
	}
	return uint64(a) == b
}
func eq_Int_Float(a int64, b float64) bool     { return float64(a) == b }
func eq_Uint_Uint(a, b uint64) bool            { return a == b }
func eq_Uint_Float(a uint64, b float64) bool   { return float64(a) == b }
func eq_Float_Float(a, b float64) bool         { return a == b }

func eq_Slice_Slice(a, b reflect.Value) bool {
	al, bl := a.Len(), b.Len()
	if al != bl {
		return false
	}
	for i := 0; i < al; i++ {
		if !equal(a.Index(i).Interface(), b.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func eq_Struct_Struct(a, b reflect.Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	typ := a.Type()
	for i := 0; i < typ.NumField(); i++ {
		if !equal(a.Field(i).Interface(), b.Field(i).Interface()) {
			return false
		}
	}
	return true
}

func eq_Dict_Dict(a, b Dict) bool {
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.Iter()(func(k, va any) bool {
		vb, ok := b.Get_(k)
		if !ok || !equal(va, vb) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

func eq_Set_Set(a, b Set) bool {
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.Iter()(func(m any) bool {
		if !b.Has(m) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

func eq_FrozenSet_FrozenSet(a, b FrozenSet) bool {
	if a.Len() != b.Len() {
		return false
	}
	bs := NewSetWithData(b.members...)
	eq := true
	a.Iter()(func(m any) bool {
		if !bs.Has(m) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

func eq_List_List(a, b List) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !equal(a.At(i), b.At(i)) {
			return false
		}
	}
	return true
}

// ---- hash ----

// hashable reports whether x can serve as a Dict key or Set member
// without hash panicking: List, Dict, and Set are unhashable, as is a
// Tuple that contains an unhashable element, matching Python.
func hashable(x any) bool {
	switch v := x.(type) {
	case List, Dict, Set:
		return false
	case Tuple:
		for _, item := range v {
			if !hashable(item) {
				return false
			}
		}
	}
	return true
}

// hash returns a hash of x consistent with equal: equal(a,b) implies
// hash(a) == hash(b). Panics with "unhashable type: ..." for List, Dict,
// and Set, matching Python's refusal to hash list/dict/set.
func hash(seed maphash.Seed, x any) uint64 {
	switch v := x.(type) {
	case string:
		return maphash.String(seed, v)
	case Bytes:
		return maphash.Bytes(seed, v)
	case ByteArray:
		return maphash.Bytes(seed, v)
	case List:
		panic(fmt.Sprintf("unhashable type: %T", x))
	case Dict:
		panic(fmt.Sprintf("unhashable type: %T", x))
	case Set:
		panic(fmt.Sprintf("unhashable type: %T", x))
	case Tuple:
		var h maphash.Hash
		h.SetSeed(seed)
		h.WriteString("tuple")
		for _, item := range v {
			writeUint(&h, hash(seed, item))
		}
		return h.Sum64()
	case FrozenSet:
		// order-independent: XOR-fold member hashes so equal sets with
		// members visited in a different order still hash the same.
		var acc uint64
		v.Iter()(func(m any) bool {
			acc ^= hash(seed, m)
			return true
		})
		return acc
	}

	var h maphash.Hash
	h.SetSeed(seed)

	hashFloat := func(f float64) {
		i := int64(f)
		if float64(i) == f {
			writeUint(&h, uint64(i))
		} else {
			writeUint(&h, math.Float64bits(f))
		}
	}

	r := reflect.ValueOf(x)
	k := kindOf(x)

	switch k {
	case kBool:
		writeUint(&h, uint64(bint(r.Bool())))
	case kInt:
		writeUint(&h, uint64(r.Int()))
	case kUint:
		writeUint(&h, r.Uint())
	case kFloat:
		hashFloat(r.Float())
	case kPointer:
		writeUint(&h, uint64(r.Pointer()))
	case kStruct:
		typ := r.Type()
		h.WriteString(typ.Name())
		for i := 0; i < typ.NumField(); i++ {
			writeUint(&h, hash(seed, r.Field(i).Interface()))
		}
		return h.Sum64()
	default:
		panic(fmt.Sprintf("unhashable type: %T", x))
	}
	return h.Sum64()
}

func writeUint(h *maphash.Hash, u uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	h.Write(b[:])
}

// bint returns 1 for true, 0 for false.
func bint(x bool) int64 {
	if x {
		return 1
	}
	return 0
}
