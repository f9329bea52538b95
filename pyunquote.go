package pickle

import (
	"io"
	"strconv"
	"unicode/utf8"
)

// unquoteChar is like strconv.UnquoteChar, but returns io.ErrUnexpectedEOF
// instead of strconv.ErrSyntax when the input is truncated mid-escape.
func unquoteChar(s string, quote byte) (value rune, multibyte bool, tail string, err error) {
	if s == "" {
		return 0, false, "", io.ErrUnexpectedEOF
	}

	value, multibyte, tail, err = strconv.UnquoteChar(s, quote)
	if err == nil {
		return
	}

	if len(s) > 10 { // \U12345678
		return
	}

	_, _, _, err2 := strconv.UnquoteChar(s+"000000000", quote)
	if err2 == nil {
		err = io.ErrUnexpectedEOF
	}
	return
}

// decodeRawUnicodeEscape decodes the UNICODE opcode's operand as raw
// unicode escape: \uXXXX and \UXXXXXXXX sequences are unescaped via
// unquoteChar, and every other byte (quotes and other backslashes
// included) becomes the code point of the same value, as in Latin-1.
func decodeRawUnicodeEscape(line []byte) (string, error) {
	s := string(line)
	var out []byte
	for len(s) > 0 {
		if len(s) >= 2 && s[0] == '\\' && (s[1] == 'u' || s[1] == 'U') {
			r, _, tail, err := unquoteChar(s, '\'')
			if err != nil {
				return "", wrapErr(KindMalformedOperand, err, "decode UNICODE operand")
			}
			out = utf8.AppendRune(out, r)
			s = tail
			continue
		}
		out = utf8.AppendRune(out, rune(s[0]))
		s = s[1:]
	}
	return string(out), nil
}
