package pickle

// bufferIterator is the forward-only iterator NEXT_BUFFER consumes for
// protocol 5 out-of-band buffers. Access is sequential only; running past
// the end or calling Next with no buffers configured is an error, never a
// silent nil.
type bufferIterator struct {
	buffers [][]byte
	next    int
}

func newBufferIterator(buffers [][]byte) *bufferIterator {
	return &bufferIterator{buffers: buffers}
}

// Next advances the iterator and returns the next buffer, or an error if
// none were configured or the sequence is exhausted.
func (b *bufferIterator) Next() ([]byte, error) {
	if b == nil || b.next >= len(b.buffers) {
		return nil, newErr(KindBufferUnavailable, "no out-of-band buffer available")
	}
	buf := b.buffers[b.next]
	b.next++
	return buf, nil
}
