package pickle

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// opHandler mutates Decoder state for one opcode, reading any operand it
// needs from the frame-aware byte source. Every opcode byte in the
// dispatch table below has a statically known handler, including the
// ones with no supported decoding (they return opUnsupported).
type opHandler func(d *Decoder) error

var dispatch [256]opHandler

func init() {
	dispatch[opMark] = (*Decoder).opMark
	dispatch[opStop] = (*Decoder).opStop
	dispatch[opPop] = (*Decoder).opPop
	dispatch[opPopMark] = (*Decoder).opPopMark
	dispatch[opDup] = (*Decoder).opDup

	dispatch[opFloat] = (*Decoder).opFloat
	dispatch[opInt] = (*Decoder).opInt
	dispatch[opBinint] = (*Decoder).opBinint
	dispatch[opBinint1] = (*Decoder).opBinint1
	dispatch[opBinint2] = (*Decoder).opBinint2
	dispatch[opLong] = (*Decoder).opLong
	dispatch[opLong1] = (*Decoder).opLong1
	dispatch[opLong4] = (*Decoder).opLong4
	dispatch[opBinfloat] = (*Decoder).opBinfloat
	dispatch[opNewtrue] = (*Decoder).opNewtrue
	dispatch[opNewfalse] = (*Decoder).opNewfalse
	dispatch[opNone] = (*Decoder).opNone

	dispatch[opString] = (*Decoder).opString
	dispatch[opBinstring] = (*Decoder).opBinstring
	dispatch[opShortBinstring] = (*Decoder).opShortBinstring
	dispatch[opUnicode] = (*Decoder).opUnicode
	dispatch[opBinunicode] = (*Decoder).opBinunicode
	dispatch[opShortBinUnicode] = (*Decoder).opShortBinUnicode
	dispatch[opBinunicode8] = (*Decoder).opBinunicode8
	dispatch[opBinbytes] = (*Decoder).opBinbytes
	dispatch[opShortBinbytes] = (*Decoder).opShortBinbytes
	dispatch[opBinbytes8] = (*Decoder).opBinbytes8
	dispatch[opBytearray8] = (*Decoder).opBytearray8

	dispatch[opGet] = (*Decoder).opGet
	dispatch[opBinget] = (*Decoder).opBinget
	dispatch[opLongBinget] = (*Decoder).opLongBinget
	dispatch[opPut] = (*Decoder).opPut
	dispatch[opBinput] = (*Decoder).opBinput
	dispatch[opLongBinput] = (*Decoder).opLongBinput
	dispatch[opMemoize] = (*Decoder).opMemoize

	dispatch[opEmptyDict] = (*Decoder).opEmptyDict
	dispatch[opEmptyList] = (*Decoder).opEmptyList
	dispatch[opEmptyTuple] = (*Decoder).opEmptyTuple
	dispatch[opEmptySet] = (*Decoder).opEmptySet
	dispatch[opDict] = (*Decoder).opDict
	dispatch[opList] = (*Decoder).opList
	dispatch[opTuple] = (*Decoder).opTuple
	dispatch[opTuple1] = (*Decoder).opTuple1
	dispatch[opTuple2] = (*Decoder).opTuple2
	dispatch[opTuple3] = (*Decoder).opTuple3
	dispatch[opAppend] = (*Decoder).opAppend
	dispatch[opAppends] = (*Decoder).opAppends
	dispatch[opSetitem] = (*Decoder).opSetitem
	dispatch[opSetitems] = (*Decoder).opSetitems
	dispatch[opAdditems] = (*Decoder).opAdditems
	dispatch[opFrozenset] = (*Decoder).opFrozenset

	dispatch[opGlobal] = (*Decoder).opGlobal
	dispatch[opStackGlobal] = (*Decoder).opStackGlobal
	dispatch[opInst] = (*Decoder).opInst
	dispatch[opObj] = (*Decoder).opObj
	dispatch[opNewobj] = (*Decoder).opNewobj
	dispatch[opNewobjEx] = (*Decoder).opNewobjEx
	dispatch[opBuild] = (*Decoder).opBuild

	dispatch[opProto] = (*Decoder).opProto
	dispatch[opFrame] = (*Decoder).opFrame

	dispatch[opNextBuffer] = (*Decoder).opNextBuffer
	dispatch[opReadonlyBuffer] = (*Decoder).opReadonlyBuffer

	dispatch[opReduce] = (*Decoder).opUnsupported
	dispatch[opPersid] = (*Decoder).opUnsupported
	dispatch[opBinpersid] = (*Decoder).opUnsupported
	dispatch[opExt1] = (*Decoder).opUnsupported
	dispatch[opExt2] = (*Decoder).opUnsupported
	dispatch[opExt4] = (*Decoder).opUnsupported
}

// DecoderConfig tunes a Decoder: a plain struct passed at construction
// time, rather than flags, env vars, or a config file.
type DecoderConfig struct {
	// Registry supplies the proxy lookup table GLOBAL/STACK_GLOBAL/INST/
	// OBJ/NEWOBJ/NEWOBJ_EX consult. A fresh empty registry is used if nil.
	Registry *ProxyRegistry

	// OutOfBandBuffers backs NEXT_BUFFER (protocol 5), consumed forward-only.
	OutOfBandBuffers [][]byte

	// LeaveOpen, when true, makes Close a no-op for a caller-supplied
	// io.ReadSeeker. Open-constructed decoders always own and close their
	// file regardless of this flag.
	LeaveOpen bool
}

// Decoder holds the per-deserialize VM state: a frame-aware byte source,
// the value stack, the memo, the configured string encoding, the
// out-of-band buffer iterator, and a handle to the proxy registry.
type Decoder struct {
	fr     *frameReader
	closer io.Closer

	stack    *valueStack
	memo     *memoTable
	registry *ProxyRegistry
	buffers  *bufferIterator

	encoding string // "latin1" (default), "bytes", or "utf-8"

	protocol  int
	protoSeen bool
	insn      int
	stopped   bool
	curOp     byte // opcode byte currently being dispatched; set by Deserialize's loop
}

// NewDecoder constructs a Decoder reading from rs.
func NewDecoder(rs io.ReadSeeker) (*Decoder, error) {
	return NewDecoderWithConfig(rs, &DecoderConfig{})
}

// NewDecoderWithConfig is like NewDecoder but allows tuning via config. If
// rs also implements io.Closer, Close will close it too, unless
// config.LeaveOpen is set.
func NewDecoderWithConfig(rs io.ReadSeeker, config *DecoderConfig) (*Decoder, error) {
	src, err := newSeekSource(rs)
	if err != nil {
		return nil, err
	}
	d := newDecoder(src, config)
	if c, ok := rs.(io.Closer); ok && !config.LeaveOpen {
		d.closer = c
	}
	return d, nil
}

// Open opens path read-only and decodes from it. The returned Decoder
// owns the file and always closes it on Close, regardless of LeaveOpen.
func Open(path string) (*Decoder, error) {
	f, src, err := openFile(path)
	if err != nil {
		return nil, err
	}
	d := newDecoder(src, &DecoderConfig{})
	d.closer = f
	return d, nil
}

// NewFromBytes constructs a Decoder over an in-memory buffer.
func NewFromBytes(b []byte) *Decoder {
	return newDecoder(newByteSource(b), &DecoderConfig{})
}

func newDecoder(src Source, config *DecoderConfig) *Decoder {
	registry := config.Registry
	if registry == nil {
		registry = NewProxyRegistry()
	}
	return &Decoder{
		fr:       newFrameReader(src),
		stack:    newValueStack(),
		memo:     newMemoTable(),
		registry: registry,
		buffers:  newBufferIterator(config.OutOfBandBuffers),
		encoding: "latin1",
	}
}

// SetEncoding affects STRING/BINSTRING/SHORT_BINSTRING only. "" and
// "latin1" select the default ISO-8859-1 decoding; "bytes" pushes raw
// Bytes instead of decoding; "utf-8" decodes as UTF-8.
func (d *Decoder) SetEncoding(name string) {
	switch name {
	case "":
		d.encoding = "latin1"
	default:
		d.encoding = name
	}
}

// RegisterProxy registers factory under (module, name); see ProxyRegistry.
func (d *Decoder) RegisterProxy(module, name string, factory Factory) error {
	return d.registry.Register(module, name, factory)
}

// Close releases the underlying byte source unless a caller-supplied
// reader was configured with LeaveOpen.
func (d *Decoder) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Deserialize runs the VM to STOP and returns the stack snapshot
// bottom-to-top.
func (d *Decoder) Deserialize() ([]Value, error) {
	for {
		key, err := d.fr.ReadByte()
		if err != nil {
			if ue, ok := err.(*UnpicklingError); ok {
				return nil, ue
			}
			return nil, wrapErr(KindTruncatedInput, err, "read opcode")
		}
		d.insn++

		h := dispatch[key]
		if h == nil {
			return nil, opErr(KindUnknownOpcode, key, "unknown opcode")
		}
		d.curOp = key
		if err := h(d); err != nil {
			return nil, err
		}
		if d.stopped {
			return d.stack.snapshot(), nil
		}
	}
}

// ---- stack control ----

func (d *Decoder) opMark() error {
	d.stack.push(markSentinel{})
	return nil
}

func (d *Decoder) opStop() error {
	// a MARK left behind by a malformed stream must never leak into the
	// returned snapshot.
	if _, err := findMark(d.stack); err == nil {
		return newErr(KindMalformedOperand, "unconsumed MARK on stack at STOP")
	}
	d.stopped = true
	return nil
}

func (d *Decoder) opPop() error {
	_, err := d.stack.pop()
	return err
}

func (d *Decoder) opPopMark() error {
	_, err := popSliceAboveMark(d.stack)
	return err
}

func (d *Decoder) opDup() error {
	v, err := d.stack.peek()
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

// ---- numeric values ----

func (d *Decoder) opFloat() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(string(line), 64)
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "parse FLOAT operand %q", line)
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opInt() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	switch string(line) {
	case "01":
		d.stack.push(true)
		return nil
	case "00":
		d.stack.push(false)
		return nil
	}
	v, err := strconv.ParseInt(string(line), 10, 32)
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "parse INT operand %q", line)
	}
	d.stack.push(int32(v))
	return nil
}

func (d *Decoder) opBinint() error {
	v, err := d.fr.ReadI32LE()
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opBinint1() error {
	v, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	d.stack.push(int32(v))
	return nil
}

func (d *Decoder) opBinint2() error {
	v, err := d.fr.ReadU16LE()
	if err != nil {
		return err
	}
	d.stack.push(int32(v))
	return nil
}

func (d *Decoder) opLong() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	s := string(line)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "L"), "l")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "parse LONG operand %q", line)
	}
	d.stack.push(v)
	return nil
}

// opLong1 reads an n-byte operand as a variable-width signed
// little-endian integer, sign-extended to 64 bits.
func (d *Decoder) opLong1() error {
	n, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	if n > 8 {
		return newErr(KindMalformedOperand, "LONG1 operand too wide: %d bytes", n)
	}
	b, err := d.fr.ReadExact(int64(n))
	if err != nil {
		return err
	}
	d.stack.push(decodeSignedLE(b))
	return nil
}

// opLong4 reads its n-byte operand as the ASCII decimal text of the
// integer, not as CPython's two's-complement binary LONG4 encoding.
func (d *Decoder) opLong4() error {
	n, err := d.fr.ReadI32LE()
	if err != nil {
		return err
	}
	if n < 0 {
		return newErr(KindMalformedOperand, "negative LONG4 length: %d", n)
	}
	b, err := d.fr.ReadExact(int64(n))
	if err != nil {
		return err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "parse LONG4 operand %q", b)
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opBinfloat() error {
	b, err := d.fr.ReadExact(8)
	if err != nil {
		return err
	}
	u := binary.BigEndian.Uint64(b)
	d.stack.push(math.Float64frombits(u))
	return nil
}

func (d *Decoder) opNewtrue() error {
	d.stack.push(true)
	return nil
}

func (d *Decoder) opNewfalse() error {
	d.stack.push(false)
	return nil
}

func (d *Decoder) opNone() error {
	d.stack.push(None{})
	return nil
}

// decodeSignedLE interprets b as a variable-width signed little-endian
// integer, sign-extended to 64 bits based on the high bit of its most
// significant byte. Empty input decodes to 0.
func decodeSignedLE(b []byte) int64 {
	n := len(b)
	if n == 0 {
		return 0
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	if n < 8 && b[n-1]&0x80 != 0 {
		v -= uint64(1) << (8 * uint(n))
	}
	return int64(v)
}

// ---- strings and bytes ----

func (d *Decoder) opString() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	if len(line) < 2 || line[0] != '\'' || line[len(line)-1] != '\'' {
		return newErr(KindMalformedOperand, "STRING operand not single-quoted: %q", line)
	}
	// No escape decoding beyond the quote strip. Python string escapes
	// in the payload pass through verbatim.
	v, err := d.decodeStringOperand(line[1 : len(line)-1])
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) decodeStringOperand(raw []byte) (Value, error) {
	switch d.encoding {
	case "bytes":
		return Bytes(append([]byte{}, raw...)), nil
	case "utf-8", "utf8":
		if !utf8.Valid(raw) {
			return nil, newErr(KindMalformedOperand, "invalid utf-8 in string operand")
		}
		return string(raw), nil
	default: // "latin1"
		return decodeLatin1(raw), nil
	}
}

func decodeLatin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

func (d *Decoder) opBinstring() error {
	n, err := d.fr.ReadI32LE()
	if err != nil {
		return err
	}
	if n < 0 {
		return newErr(KindMalformedOperand, "negative BINSTRING length: %d", n)
	}
	raw, err := d.fr.ReadExact(int64(n))
	if err != nil {
		return err
	}
	v, err := d.decodeStringOperand(raw)
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opShortBinstring() error {
	n, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	raw, err := d.fr.ReadExact(int64(n))
	if err != nil {
		return err
	}
	v, err := d.decodeStringOperand(raw)
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opUnicode() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	s, err := decodeRawUnicodeEscape(line)
	if err != nil {
		return err
	}
	d.stack.push(s)
	return nil
}

func (d *Decoder) readUTF8Text(n int64) (string, error) {
	b, err := d.fr.ReadExact(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", newErr(KindMalformedOperand, "invalid utf-8 in unicode operand")
	}
	return string(b), nil
}

func (d *Decoder) opBinunicode() error {
	n, err := d.fr.ReadI32LE()
	if err != nil {
		return err
	}
	if n < 0 {
		return newErr(KindMalformedOperand, "negative BINUNICODE length: %d", n)
	}
	s, err := d.readUTF8Text(int64(n))
	if err != nil {
		return err
	}
	d.stack.push(s)
	return nil
}

func (d *Decoder) opShortBinUnicode() error {
	n, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	s, err := d.readUTF8Text(int64(n))
	if err != nil {
		return err
	}
	d.stack.push(s)
	return nil
}

func (d *Decoder) opBinunicode8() error {
	n, err := d.fr.ReadI64LE()
	if err != nil {
		return err
	}
	if n < 0 {
		return newErr(KindMalformedOperand, "negative BINUNICODE8 length: %d", n)
	}
	s, err := d.readUTF8Text(n)
	if err != nil {
		return err
	}
	d.stack.push(s)
	return nil
}

// opBinbytes treats its 32-bit length as unsigned, bounded by 2^31-1
// for allocation.
func (d *Decoder) opBinbytes() error {
	u, err := d.fr.ReadU32LE()
	if err != nil {
		return err
	}
	if u > math.MaxInt32 {
		return newErr(KindMalformedOperand, "BINBYTES length too large: %d", u)
	}
	b, err := d.fr.ReadExact(int64(u))
	if err != nil {
		return err
	}
	d.stack.push(Bytes(b))
	return nil
}

func (d *Decoder) opShortBinbytes() error {
	n, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	b, err := d.fr.ReadExact(int64(n))
	if err != nil {
		return err
	}
	d.stack.push(Bytes(b))
	return nil
}

func (d *Decoder) opBinbytes8() error {
	n, err := d.fr.ReadI64LE()
	if err != nil {
		return err
	}
	if n < 0 {
		return newErr(KindMalformedOperand, "negative BINBYTES8 length: %d", n)
	}
	b, err := d.fr.ReadExact(n)
	if err != nil {
		return err
	}
	d.stack.push(Bytes(b))
	return nil
}

// opBytearray8 pushes a mutable buffer, distinct from the immutable
// Bytes that BINBYTES and friends produce.
func (d *Decoder) opBytearray8() error {
	n, err := d.fr.ReadI64LE()
	if err != nil {
		return err
	}
	if n < 0 {
		return newErr(KindMalformedOperand, "negative BYTEARRAY8 length: %d", n)
	}
	b, err := d.fr.ReadExact(n)
	if err != nil {
		return err
	}
	d.stack.push(ByteArray(b))
	return nil
}

// ---- memo ----

func (d *Decoder) opGet() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(string(line))
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "parse GET index %q", line)
	}
	v, err := d.memo.get(idx)
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opBinget() error {
	b, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	v, err := d.memo.get(int(b))
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) opLongBinget() error {
	u, err := d.fr.ReadU32LE()
	if err != nil {
		return err
	}
	if u > math.MaxInt32 {
		return newErr(KindMemoError, "LONG_BINGET index out of range: %d", u)
	}
	v, err := d.memo.get(int(u))
	if err != nil {
		return err
	}
	d.stack.push(v)
	return nil
}

func (d *Decoder) putTopAt(idx int) error {
	v, err := d.stack.peek()
	if err != nil {
		return err
	}
	return d.memo.put(idx, v)
}

func (d *Decoder) opPut() error {
	line, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(string(line))
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "parse PUT index %q", line)
	}
	return d.putTopAt(idx)
}

func (d *Decoder) opBinput() error {
	b, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	return d.putTopAt(int(b))
}

func (d *Decoder) opLongBinput() error {
	u, err := d.fr.ReadU32LE()
	if err != nil {
		return err
	}
	return d.putTopAt(int(u))
}

func (d *Decoder) opMemoize() error {
	return d.putTopAt(d.memo.len())
}

// ---- aggregates ----

func (d *Decoder) opEmptyDict() error {
	d.stack.push(NewDict())
	return nil
}

func (d *Decoder) opEmptyList() error {
	d.stack.push(NewList())
	return nil
}

func (d *Decoder) opEmptyTuple() error {
	d.stack.push(Tuple{})
	return nil
}

func (d *Decoder) opEmptySet() error {
	d.stack.push(NewSet())
	return nil
}

// isNoneKey reports whether v is None, which is not a valid Dict key.
func isNoneKey(v Value) bool {
	_, ok := v.(None)
	return ok
}

// checkKey rejects a dict key the Dict cannot hold: None, or an
// unhashable value that would panic out of the hash dispatch.
func checkKey(op string, k Value) error {
	if isNoneKey(k) {
		return newErr(KindTypeMismatch, "%s: None is not a valid key", op)
	}
	if !hashable(k) {
		return newErr(KindTypeMismatch, "%s: unhashable key type %T", op, k)
	}
	return nil
}

// checkMember is checkKey's set-member counterpart; None is a valid
// member, unhashable values are not.
func checkMember(op string, m Value) error {
	if !hashable(m) {
		return newErr(KindTypeMismatch, "%s: unhashable member type %T", op, m)
	}
	return nil
}

func (d *Decoder) opDict() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	if len(items)%2 != 0 {
		return newErr(KindMalformedOperand, "DICT: odd number of elements")
	}
	dict := NewDictWithSizeHint(len(items) / 2)
	for i := 0; i < len(items); i += 2 {
		if err := checkKey("DICT", items[i]); err != nil {
			return err
		}
		dict.Set(items[i], items[i+1])
	}
	d.stack.push(dict)
	return nil
}

func (d *Decoder) opList() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	d.stack.push(newListFromSlice(items))
	return nil
}

func (d *Decoder) opTuple() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	d.stack.push(Tuple(items))
	return nil
}

func (d *Decoder) popN(n int) ([]Value, error) {
	if d.stack.len() < n {
		return nil, newErr(KindStackUnderflow, "need %d items, have %d", n, d.stack.len())
	}
	k := d.stack.len() - n
	items := append([]Value{}, d.stack.slice(k)...)
	d.stack.truncate(k)
	return items, nil
}

func (d *Decoder) opTuple1() error {
	items, err := d.popN(1)
	if err != nil {
		return err
	}
	d.stack.push(Tuple(items))
	return nil
}

func (d *Decoder) opTuple2() error {
	items, err := d.popN(2)
	if err != nil {
		return err
	}
	d.stack.push(Tuple(items))
	return nil
}

func (d *Decoder) opTuple3() error {
	items, err := d.popN(3)
	if err != nil {
		return err
	}
	d.stack.push(Tuple(items))
	return nil
}

func (d *Decoder) opAppend() error {
	v, err := d.stack.pop()
	if err != nil {
		return err
	}
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	l, ok := top.(List)
	if !ok {
		return newErr(KindTypeMismatch, "APPEND: expected a list, got %T", top)
	}
	l.Append(v)
	return nil
}

func (d *Decoder) opAppends() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	l, ok := top.(List)
	if !ok {
		return newErr(KindTypeMismatch, "APPENDS: expected a list, got %T", top)
	}
	l.Extend(items)
	return nil
}

func (d *Decoder) opSetitem() error {
	v, err := d.stack.pop()
	if err != nil {
		return err
	}
	k, err := d.stack.pop()
	if err != nil {
		return err
	}
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	dict, ok := top.(Dict)
	if !ok {
		return newErr(KindTypeMismatch, "SETITEM: expected a dict, got %T", top)
	}
	if err := checkKey("SETITEM", k); err != nil {
		return err
	}
	dict.Set(k, v)
	return nil
}

func (d *Decoder) opSetitems() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	if len(items)%2 != 0 {
		return newErr(KindMalformedOperand, "SETITEMS: odd number of elements")
	}
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	dict, ok := top.(Dict)
	if !ok {
		return newErr(KindTypeMismatch, "SETITEMS: expected a dict, got %T", top)
	}
	for i := 0; i < len(items); i += 2 {
		if err := checkKey("SETITEMS", items[i]); err != nil {
			return err
		}
		dict.Set(items[i], items[i+1])
	}
	return nil
}

func (d *Decoder) opAdditems() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	set, ok := top.(Set)
	if !ok {
		return newErr(KindTypeMismatch, "ADDITEMS: expected a set, got %T", top)
	}
	for _, m := range items {
		if err := checkMember("ADDITEMS", m); err != nil {
			return err
		}
		set.Add(m)
	}
	return nil
}

func (d *Decoder) opFrozenset() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	for _, m := range items {
		if err := checkMember("FROZENSET", m); err != nil {
			return err
		}
	}
	d.stack.push(NewFrozenSet(items))
	return nil
}

// ---- object construction ----

func (d *Decoder) opGlobal() error {
	module, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	name, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	if _, err := d.registry.Lookup(string(module), string(name)); err != nil {
		return err
	}
	d.stack.push(TypeRef{Module: string(module), Name: string(name)})
	return nil
}

func (d *Decoder) opStackGlobal() error {
	name, err := d.stack.pop()
	if err != nil {
		return err
	}
	module, err := d.stack.pop()
	if err != nil {
		return err
	}
	sname, ok := name.(string)
	if !ok {
		return newErr(KindTypeMismatch, "STACK_GLOBAL: expected text name, got %T", name)
	}
	smodule, ok := module.(string)
	if !ok {
		return newErr(KindTypeMismatch, "STACK_GLOBAL: expected text module, got %T", module)
	}
	if _, err := d.registry.Lookup(smodule, sname); err != nil {
		return err
	}
	d.stack.push(TypeRef{Module: smodule, Name: sname})
	return nil
}

func (d *Decoder) construct(module, name string, args []Value) error {
	factory, err := d.registry.Lookup(module, name)
	if err != nil {
		return err
	}
	obj, err := factory(args)
	if err != nil {
		return wrapErr(KindMalformedOperand, err, "construct %s.%s", module, name)
	}
	d.stack.push(obj)
	return nil
}

func (d *Decoder) opInst() error {
	module, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	name, err := d.fr.ReadLine()
	if err != nil {
		return err
	}
	args, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	return d.construct(string(module), string(name), args)
}

func (d *Decoder) opObj() error {
	items, err := popSliceAboveMark(d.stack)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return newErr(KindStackUnderflow, "OBJ: empty mark-bounded slice")
	}
	ref, ok := items[0].(TypeRef)
	if !ok {
		return newErr(KindTypeMismatch, "OBJ: expected TypeRef, got %T", items[0])
	}
	return d.construct(ref.Module, ref.Name, items[1:])
}

func (d *Decoder) newobjArgs() ([]Value, TypeRef, error) {
	argsVal, err := d.stack.pop()
	if err != nil {
		return nil, TypeRef{}, err
	}
	refVal, err := d.stack.pop()
	if err != nil {
		return nil, TypeRef{}, err
	}
	ref, ok := refVal.(TypeRef)
	if !ok {
		return nil, TypeRef{}, newErr(KindTypeMismatch, "NEWOBJ: expected TypeRef, got %T", refVal)
	}
	if tup, ok := argsVal.(Tuple); ok {
		return []Value(tup), ref, nil
	}
	return []Value{argsVal}, ref, nil
}

func (d *Decoder) opNewobj() error {
	args, ref, err := d.newobjArgs()
	if err != nil {
		return err
	}
	return d.construct(ref.Module, ref.Name, args)
}

func (d *Decoder) opNewobjEx() error {
	if _, err := d.stack.pop(); err != nil { // discard kwargs dict
		return err
	}
	args, ref, err := d.newobjArgs()
	if err != nil {
		return err
	}
	return d.construct(ref.Module, ref.Name, args)
}

func (d *Decoder) opBuild() error {
	state, err := d.stack.pop()
	if err != nil {
		return err
	}
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	obj, ok := top.(Object)
	if !ok {
		return newErr(KindTypeMismatch, "BUILD: expected an Object, got %T", top)
	}
	if err := obj.SetState(state); err != nil {
		return wrapErr(KindMalformedOperand, err, "BUILD: set_state")
	}
	return nil
}

// ---- protocol and framing ----

func (d *Decoder) opProto() error {
	v, err := d.fr.ReadU8()
	if err != nil {
		return err
	}
	if d.protoSeen {
		return newErr(KindMalformedOperand, "PROTO issued more than once")
	}
	if d.insn != 1 {
		return newErr(KindMalformedOperand, "PROTO must be the first opcode")
	}
	if v > 5 {
		return newErr(KindProtocolUnsupported, "unsupported protocol version: %d", v)
	}
	d.protoSeen = true
	d.protocol = int(v)
	return nil
}

func (d *Decoder) opFrame() error {
	n, err := d.fr.ReadI64LE()
	if err != nil {
		return err
	}
	return d.fr.EnterFrame(n)
}

// ---- out-of-band buffers ----

func (d *Decoder) opNextBuffer() error {
	buf, err := d.buffers.Next()
	if err != nil {
		return err
	}
	d.stack.push(ByteArray(buf))
	return nil
}

func (d *Decoder) opReadonlyBuffer() error {
	top, err := d.stack.peek()
	if err != nil {
		return err
	}
	switch v := top.(type) {
	case Bytes:
		return nil
	case ByteArray:
		*d.stack.peekAt(d.stack.len() - 1) = Bytes(v)
		return nil
	default:
		return newErr(KindTypeMismatch, "READONLY_BUFFER: expected a buffer, got %T", top)
	}
}

// ---- explicitly unsupported ----

// opUnsupported backs REDUCE, PERSID, BINPERSID, EXT1, EXT2, and EXT4:
// all six are recognized but deliberately unimplemented (there is no
// persistent-id or extension-registry machinery), and fail
// deterministically naming the opcode that triggered them.
func (d *Decoder) opUnsupported() error {
	return opErr(KindUnsupportedOpcode, d.curOp, "unsupported opcode: %s", opcodeName(d.curOp))
}
