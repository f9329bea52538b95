package pickle

// conversion helpers for Factory/Object implementations to use when
// pulling positional arguments or state values out of the loosely typed
// Value universe. Numeric precision caps at int64, so AsInt64 only ever
// sees int32/int64.

// AsInt64 widens an Int32 or Int64 Value to int64. Registered factories
// should use this instead of a raw type assertion so either integer
// variant the decoder might have produced is accepted uniformly.
func AsInt64(x Value) (int64, error) {
	switch x := x.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	}
	return 0, newErr(KindTypeMismatch, "expect int32|int64; got %T", x)
}

// AsBytes tries to represent a Value as Bytes. It succeeds for Bytes and
// ByteArray (the mutable buffer variant introduced by BYTEARRAY8 and
// NEXT_BUFFER); it does not succeed for Text or any other type.
func AsBytes(x Value) (Bytes, error) {
	switch x := x.(type) {
	case Bytes:
		return x, nil
	case ByteArray:
		return Bytes(x), nil
	}
	return nil, newErr(KindTypeMismatch, "expect bytes; got %T", x)
}

// AsText tries to represent a Value as a string. It succeeds only for
// Text; it does not succeed for Bytes or ByteArray.
func AsText(x Value) (string, error) {
	s, ok := x.(string)
	if !ok {
		return "", newErr(KindTypeMismatch, "expect text; got %T", x)
	}
	return s, nil
}
