package pickle

import "testing"

func TestBufferIteratorForwardOnly(t *testing.T) {
	it := newBufferIterator([][]byte{[]byte("a"), []byte("b")})
	b1, err := it.Next()
	if err != nil || string(b1) != "a" {
		t.Fatalf("Next() = %q, %v; want a, nil", b1, err)
	}
	b2, err := it.Next()
	if err != nil || string(b2) != "b" {
		t.Fatalf("Next() = %q, %v; want b, nil", b2, err)
	}
	if _, err := it.Next(); errKind(err) != KindBufferUnavailable {
		t.Fatalf("got %v, want BufferUnavailable on exhaustion", err)
	}
}

func TestBufferIteratorUnconfigured(t *testing.T) {
	it := newBufferIterator(nil)
	if _, err := it.Next(); errKind(err) != KindBufferUnavailable {
		t.Fatalf("got %v, want BufferUnavailable", err)
	}
}
