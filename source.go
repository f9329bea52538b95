package pickle

import (
	"bufio"
	"bytes"
	"io"
	"os"
)

// Source is a seekable, readable stream of octets with a known length.
// Frame support needs Seek and a known Len up front, which a bare
// io.Reader cannot offer.
type Source interface {
	io.Reader
	io.Seeker
	Len() int64
	Pos() int64
}

// seekSource is the concrete Source backing Open, NewFromBytes, and any
// caller-supplied io.ReadSeeker. Reads are buffered through a bufio.Reader;
// Seek must throw that buffer away and recreate it so a post-seek read
// never serves stale buffered bytes from before the seek.
type seekSource struct {
	rs  io.ReadSeeker
	br  *bufio.Reader
	pos int64
	len int64
}

func newSeekSource(rs io.ReadSeeker) (*seekSource, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, wrapErr(KindTruncatedInput, err, "determine source position")
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, wrapErr(KindTruncatedInput, err, "determine source length")
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return nil, wrapErr(KindTruncatedInput, err, "rewind source")
	}
	return &seekSource{rs: rs, br: bufio.NewReader(rs), pos: cur, len: end}, nil
}

func newByteSource(b []byte) *seekSource {
	r := bytes.NewReader(b)
	s, _ := newSeekSource(r) // bytes.Reader never fails to seek
	return s
}

// openFile opens path read-only and wraps it as a Source, returning the
// file too so that Open can hand it to the Decoder, which closes it on
// Close.
func openFile(path string) (*os.File, *seekSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, wrapErr(KindTruncatedInput, err, "open %s", path)
	}
	s, err := newSeekSource(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, s, nil
}

func (s *seekSource) Read(p []byte) (int, error) {
	n, err := s.br.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *seekSource) Seek(offset int64, whence int) (int64, error) {
	// The bufio.Reader reads ahead of s.pos, so a relative seek must be
	// resolved against the logical position, not the underlying reader's.
	if whence == io.SeekCurrent {
		offset += s.pos
		whence = io.SeekStart
	}
	n, err := s.rs.Seek(offset, whence)
	if err != nil {
		return n, err
	}
	s.pos = n
	s.br.Reset(s.rs)
	return n, nil
}

func (s *seekSource) Len() int64 { return s.len }
func (s *seekSource) Pos() int64 { return s.pos }
