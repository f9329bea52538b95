package pickle

// Value is any of the tagged variants: None, bool, int32, int64, float64,
// string (Text), Bytes, ByteArray, Tuple, List, Dict, Set, FrozenSet, the
// internal mark sentinel, TypeRef, or Object. Handlers pass these around
// as `any`.
type Value = any

// None is the representation of Python's None.
type None struct{}

// Bytes is an immutable byte buffer, as produced by BINSTRING (with no
// encoding configured), BINBYTES and friends, and READONLY_BUFFER.
type Bytes []byte

// ByteArray is a mutable byte buffer, as produced by BYTEARRAY8 and
// NEXT_BUFFER. It is distinct from Bytes so READONLY_BUFFER's conversion
// to immutable Bytes is an observable type change, not a no-op.
type ByteArray []byte

// Tuple is a fixed-length ordered sequence. Its identity as a tuple,
// distinct from List, is significant: Tuple is hashable (and so usable as
// a Dict/Set key or member), List is not.
type Tuple []any

// List is a mutable ordered sequence. Unlike Tuple it is never hashable.
//
// It is reference-backed (mirroring Dict/Set) rather than a bare slice:
// the memo holds aliases to a List that opcodes like APPEND/APPENDS mutate
// in place after the memo entry was captured, and every copy of a List
// value must observe those mutations, the same way every copy of a Dict
// value observes a later SETITEM.
//
// Its zero value is invalid to Append/Extend on. Use NewList.
type List struct {
	items *[]any
}

// NewList returns a new empty list.
func NewList() List { return newListFromSlice(nil) }

// NewListWithData returns a new list containing the given elements.
func NewListWithData(items ...any) List {
	return newListFromSlice(append([]any{}, items...))
}

func newListFromSlice(items []any) List {
	return List{items: &items}
}

// Len returns the number of elements in the list.
func (l List) Len() int { return len(*l.items) }

// At returns the element at index i.
func (l List) At(i int) any { return (*l.items)[i] }

// Append adds v to the end of the list.
func (l List) Append(v any) { *l.items = append(*l.items, v) }

// Extend adds vs, in order, to the end of the list.
func (l List) Extend(vs []any) { *l.items = append(*l.items, vs...) }

// Slice returns the list's elements as a plain slice. The result aliases
// the list's backing storage and must not be retained across a mutation.
func (l List) Slice() []any { return *l.items }

// Iter returns an iterator over the list's elements, in order.
func (l List) Iter() func(yield func(any) bool) {
	return func(yield func(any) bool) {
		for _, v := range *l.items {
			if !yield(v) {
				break
			}
		}
	}
}

// markSentinel is the internal Value pushed by MARK and consumed by every
// mark-discipline aggregate opcode. It must never appear in the value
// returned from Deserialize.
type markSentinel struct{}

// TypeRef is a reference to a host-registered proxy type, the type itself
// rather than an instance of it. Produced by GLOBAL and STACK_GLOBAL, and
// consumed by OBJ, NEWOBJ, and NEWOBJ_EX (INST reads its module and name
// as line operands instead).
type TypeRef struct {
	Module string
	Name   string
}

// Object is an instance of a host-registered proxy type. BUILD delivers
// the pickled state to SetState once the object has been constructed.
type Object interface {
	SetState(state Value) error
}

// Factory constructs an Object from positional arguments supplied by INST,
// OBJ, NEWOBJ, or NEWOBJ_EX. Arguments arrive exactly as they appeared on
// the stack: a NEWOBJ whose args tuple is empty yields an empty slice, but
// a single empty-tuple argument is passed through as one Tuple argument,
// not collapsed to the zero-argument form. Factories that want Python's
// zero-argument construction semantics normalize that case themselves.
type Factory func(args []Value) (Object, error)
