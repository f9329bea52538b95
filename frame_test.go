package pickle

import (
	"bytes"
	"testing"
)

func newTestFrameReader(b []byte) *frameReader {
	src, err := newSeekSource(bytes.NewReader(b))
	if err != nil {
		panic(err)
	}
	return newFrameReader(src)
}

func TestFrameContainment(t *testing.T) {
	fr := newTestFrameReader([]byte("0123456789"))

	if _, err := fr.ReadByte(); err != nil { // consume "0"
		t.Fatal(err)
	}
	if err := fr.EnterFrame(4); err != nil { // frame covers "1234"
		t.Fatal(err)
	}
	if got := fr.Pos(); got != 1 {
		t.Fatalf("Pos() = %d, want 1", got)
	}

	b, err := fr.ReadExact(4)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "1234" {
		t.Fatalf("ReadExact = %q, want 1234", b)
	}
	// the frame is exhausted after exactly 4 bytes: framing must have
	// cleared automatically, so the next read serves "5" from the source.
	c, err := fr.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if c != '5' {
		t.Fatalf("ReadByte() = %q, want '5'", c)
	}
}

func TestFrameOverreadFails(t *testing.T) {
	fr := newTestFrameReader([]byte("0123456789"))
	if err := fr.EnterFrame(3); err != nil {
		t.Fatal(err)
	}
	if _, err := fr.ReadExact(4); errKind(err) != KindFrameViolation {
		t.Fatalf("got %v, want FrameViolation", err)
	}
}

func TestNestedFrameFails(t *testing.T) {
	fr := newTestFrameReader([]byte("0123456789"))
	if err := fr.EnterFrame(3); err != nil {
		t.Fatal(err)
	}
	if err := fr.EnterFrame(3); errKind(err) != KindFrameViolation {
		t.Fatalf("got %v, want FrameViolation", err)
	}
}

func TestFrameSeekFails(t *testing.T) {
	fr := newTestFrameReader([]byte("0123456789"))
	if err := fr.EnterFrame(3); err != nil {
		t.Fatal(err)
	}
	if _, err := fr.Seek(0, 0); errKind(err) != KindFrameViolation {
		t.Fatalf("got %v, want FrameViolation", err)
	}
}

func TestFrameOversized(t *testing.T) {
	fr := newTestFrameReader([]byte("0123456789"))
	if err := fr.EnterFrame(1 << 32); errKind(err) != KindFrameViolation {
		t.Fatalf("got %v, want FrameViolation", err)
	}
}

func TestFrameShortRead(t *testing.T) {
	fr := newTestFrameReader([]byte("012"))
	if err := fr.EnterFrame(10); errKind(err) != KindTruncatedInput {
		t.Fatalf("got %v, want TruncatedInput", err)
	}
}

func TestZeroLengthFrameExitsImmediately(t *testing.T) {
	fr := newTestFrameReader([]byte("0123456789"))
	if err := fr.EnterFrame(0); err != nil {
		t.Fatal(err)
	}
	b, err := fr.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != '0' {
		t.Fatalf("ReadByte() = %q, want '0' (frame of length 0 should not block subsequent reads)", b)
	}
}

func TestReadLineEOFReturnsPartial(t *testing.T) {
	fr := newTestFrameReader([]byte("abc"))
	line, err := fr.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "abc" {
		t.Fatalf("ReadLine() = %q, want %q", line, "abc")
	}
}

func TestReadLineStripsLF(t *testing.T) {
	fr := newTestFrameReader([]byte("abc\ndef"))
	line, err := fr.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "abc" {
		t.Fatalf("ReadLine() = %q, want %q", line, "abc")
	}
}

func TestReadLineCannotCrossFrameBoundary(t *testing.T) {
	fr := newTestFrameReader([]byte("abcdef"))
	if err := fr.EnterFrame(3); err != nil {
		t.Fatal(err)
	}
	// the frame holds "abc" with no LF; the line must not continue into
	// "def" from the underlying source.
	if _, err := fr.ReadLine(); errKind(err) != KindFrameViolation {
		t.Fatalf("got %v, want FrameViolation", err)
	}
}

func TestReadLineEndingExactlyAtFrameEnd(t *testing.T) {
	fr := newTestFrameReader([]byte("ab\ncdef"))
	if err := fr.EnterFrame(3); err != nil {
		t.Fatal(err)
	}
	line, err := fr.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "ab" {
		t.Fatalf("ReadLine() = %q, want %q", line, "ab")
	}
	// the LF consumed the frame's last byte, so the next read serves the
	// source again.
	b, err := fr.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 'c' {
		t.Fatalf("ReadByte() = %q, want 'c'", b)
	}
}
