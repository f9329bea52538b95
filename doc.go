// Package pickle decodes byte streams written in Python's pickle binary
// object-serialization format (protocols 1 through 5).
//
// Use Decoder to deserialize a pickle from an input stream:
//
//	d, err := pickle.NewDecoder(r)
//	...
//	objs, err := d.Deserialize() // objs is []pickle.Value, the final stack
//
// The following table summarizes the mapping of pickle value kinds to Go
// types:
//
//	Pickle        Go
//	------        --
//	None          pickle.None
//	bool          bool
//	int           int32, int64
//	float         float64
//	str           string
//	bytes         pickle.Bytes
//	bytearray     pickle.ByteArray
//	list          pickle.List
//	tuple         pickle.Tuple
//	dict          pickle.Dict
//	set           pickle.Set
//	frozenset     pickle.FrozenSet
//
// Pickle classes and instances only ever enter the result graph through a
// host-registered proxy. Call RegisterProxy before Deserialize to teach a
// Decoder about a (module, name) pair; a pickle stream that references an
// unregistered type fails the deserialize with an UnregisteredProxy error
// rather than attempting to resolve or construct anything on its own.
// Unlike the reference Python implementation, this package never imports or
// calls an arbitrary callable named inside the stream, so deserializing a
// pickle from an untrusted source is safe from that class of attack by
// construction.
//
// # Pickle protocol versions
//
// Over time the pickle stream format evolved. Protocol 0 is the original
// human-readable wire format. Protocols 1 and 2 extend it in a
// backward-compatible way with binary operand encodings. Protocol 3 added a
// way to represent Python 3 bytes objects. Protocol 4 switched to a
// binary-only encoding and introduced frame-bounded reads for I/O batching.
// Protocol 5 added support for out-of-band buffers. Decoder detects which
// protocol a stream uses from its leading PROTO opcode (or its absence, for
// protocol 0/1) and handles the differences automatically; the caller never
// has to specify a protocol version up front.
//
// # What this package does not do
//
// There is no encoder: this package only reads pickles, it never writes
// them. PERSID, BINPERSID, and REDUCE are recognized opcodes that always
// fail the deserialize rather than invoke a host callback or reconstruct an
// arbitrary object; see RegisterProxy for the one supported extension
// point. Numeric precision is capped at a 64-bit integer and an IEEE-754
// double; there is no arbitrary-precision integer or complex type.
package pickle
