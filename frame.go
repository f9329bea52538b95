package pickle

import (
	"encoding/binary"
	"io"
	"math"
)

// frameReader wraps a Source, adding the optional single-level "active
// frame" of protocol 4. Opcode handlers in decode.go only ever call
// through frameReader, never touch Source directly, so framing stays
// invisible to them.
//
// Frame state is a two-state machine: either no frame is active, or
// (frameStart, buf, cursor) describes one. Modeling it this way keeps
// Pos/Seek bound checks a single branch instead of several.
type frameReader struct {
	src Source

	framing    bool
	frameStart int64
	buf        []byte
	cursor     int
}

func newFrameReader(src Source) *frameReader {
	return &frameReader{src: src}
}

func (f *frameReader) Len() int64 { return f.src.Len() }

// Pos reports the logical stream position: while a frame is active this
// is frameStart+cursor, not the underlying source's position (which sits
// past the whole frame buffer once EnterFrame has read it).
func (f *frameReader) Pos() int64 {
	if f.framing {
		return f.frameStart + int64(f.cursor)
	}
	return f.src.Pos()
}

// EnterFrame records the current position as frame_start, reads exactly
// n bytes into an owned buffer, and redirects subsequent reads to it
// until exhausted. Fails if a frame is already active, n exceeds
// 2^31-1, or fewer than n bytes remain.
func (f *frameReader) EnterFrame(n int64) error {
	if f.framing {
		return newErr(KindFrameViolation, "FRAME issued while a frame is already active")
	}
	if n < 0 || n > math.MaxInt32 {
		return newErr(KindFrameViolation, "frame length %d out of range", n)
	}
	start := f.src.Pos()
	if remaining := f.src.Len() - start; n > remaining {
		return newErr(KindTruncatedInput, "frame of %d bytes exceeds %d remaining in source", n, remaining)
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(f.src, buf); err != nil {
			return wrapErr(KindTruncatedInput, err, "read %d-byte frame", n)
		}
	}
	f.framing = true
	f.frameStart = start
	f.buf = buf
	f.cursor = 0
	if n == 0 {
		f.exitFrame()
	}
	return nil
}

func (f *frameReader) exitFrame() {
	f.framing = false
	f.buf = nil
	f.cursor = 0
}

// ReadByte reads a single byte, from the frame buffer when a frame is
// active, from the underlying source otherwise.
func (f *frameReader) ReadByte() (byte, error) {
	if f.framing {
		if f.cursor >= len(f.buf) {
			return 0, newErr(KindFrameViolation, "read past end of frame")
		}
		b := f.buf[f.cursor]
		f.cursor++
		if f.cursor == len(f.buf) {
			f.exitFrame()
		}
		return b, nil
	}
	var b [1]byte
	if _, err := io.ReadFull(f.src, b[:]); err != nil {
		return 0, wrapErr(KindTruncatedInput, err, "read byte")
	}
	return b[0], nil
}

// ReadExact reads exactly n bytes, honoring the frame boundary when
// active. Errors if fewer than n bytes are available.
func (f *frameReader) ReadExact(n int64) ([]byte, error) {
	if n < 0 {
		return nil, newErr(KindMalformedOperand, "negative read length %d", n)
	}
	if f.framing {
		avail := int64(len(f.buf) - f.cursor)
		if n > avail {
			return nil, newErr(KindFrameViolation, "read of %d bytes exceeds %d remaining in frame", n, avail)
		}
		out := make([]byte, n)
		copy(out, f.buf[f.cursor:f.cursor+int(n)])
		f.cursor += int(n)
		if f.cursor == len(f.buf) {
			f.exitFrame()
		}
		return out, nil
	}
	if remaining := f.src.Len() - f.src.Pos(); n > remaining {
		return nil, newErr(KindTruncatedInput, "read of %d bytes exceeds %d remaining in source", n, remaining)
	}
	out := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(f.src, out); err != nil {
			return nil, wrapErr(KindTruncatedInput, err, "read %d bytes", n)
		}
	}
	return out, nil
}

// ReadLine reads up to and including a terminating LF, returning the line
// without the LF. EOF before an LF yields whatever was read. A line that
// begins inside a frame must also end inside it: exhausting the frame
// before the LF is a frame violation, not a license to keep reading from
// the underlying source.
func (f *frameReader) ReadLine() ([]byte, error) {
	var line []byte
	for {
		framed := f.framing
		b, err := f.ReadByte()
		if err != nil {
			if len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
		if b == '\n' {
			return line, nil
		}
		line = append(line, b)
		if framed && !f.framing {
			return nil, newErr(KindFrameViolation, "line crosses frame boundary")
		}
	}
}

func (f *frameReader) ReadU8() (uint8, error) {
	b, err := f.ReadByte()
	return uint8(b), err
}

func (f *frameReader) ReadU16LE() (uint16, error) {
	b, err := f.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (f *frameReader) ReadI32LE() (int32, error) {
	b, err := f.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (f *frameReader) ReadU32LE() (uint32, error) {
	b, err := f.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (f *frameReader) ReadI64LE() (int64, error) {
	b, err := f.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// Seek repositions the underlying source. The frame buffer is already
// fully materialized in memory, so any seek attempt while a frame is
// active is refused outright rather than partially supported.
func (f *frameReader) Seek(offset int64, whence int) (int64, error) {
	if f.framing {
		return 0, newErr(KindFrameViolation, "seek while a frame is active")
	}
	return f.src.Seek(offset, whence)
}
