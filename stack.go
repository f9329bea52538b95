package pickle

// valueStack is the VM's LIFO operand stack, plus the slot-level helpers
// (peekAt, truncate, slice) the opcode table uses.
type valueStack struct {
	v []Value
}

func newValueStack() *valueStack {
	return &valueStack{v: make([]Value, 0, 16)}
}

func (s *valueStack) push(v Value) {
	s.v = append(s.v, v)
}

func (s *valueStack) pop() (Value, error) {
	n := len(s.v) - 1
	if n < 0 {
		return nil, newErr(KindStackUnderflow, "pop from empty stack")
	}
	v := s.v[n]
	s.v = s.v[:n]
	return v, nil
}

// peek returns the top value without removing it.
func (s *valueStack) peek() (Value, error) {
	n := len(s.v) - 1
	if n < 0 {
		return nil, newErr(KindStackUnderflow, "peek on empty stack")
	}
	return s.v[n], nil
}

// peekAt returns a mutable pointer to the slot at absolute index i so a
// handler can replace a stack value in place (READONLY_BUFFER does this)
// without a pop/push round trip.
func (s *valueStack) peekAt(i int) *Value {
	return &s.v[i]
}

func (s *valueStack) len() int {
	return len(s.v)
}

// truncate drops every entry at or above index k.
func (s *valueStack) truncate(k int) {
	s.v = s.v[:k]
}

// slice returns the live entries from index k (inclusive) to the top.
// The returned slice aliases the stack's backing array and is only valid
// until the next push/truncate.
func (s *valueStack) slice(k int) []Value {
	return s.v[k:]
}

// snapshot returns a copy of the full stack, bottom-to-top, as required by
// STOP's result contract.
func (s *valueStack) snapshot() []Value {
	out := make([]Value, len(s.v))
	copy(out, s.v)
	return out
}

// findMark scans from the top for the most recent markSentinel and
// returns its index, without popping anything.
func findMark(s *valueStack) (int, error) {
	for k := len(s.v) - 1; k >= 0; k-- {
		if _, ok := s.v[k].(markSentinel); ok {
			return k, nil
		}
	}
	return 0, newErr(KindNoMarker, "no mark on stack")
}

// popSliceAboveMark locates the topmost mark, removes it and everything
// above it from the stack, and returns those popped items in stream
// (bottom-to-top) order.
func popSliceAboveMark(s *valueStack) ([]Value, error) {
	k, err := findMark(s)
	if err != nil {
		return nil, err
	}
	items := make([]Value, len(s.v)-k-1)
	copy(items, s.v[k+1:])
	s.truncate(k)
	return items, nil
}
