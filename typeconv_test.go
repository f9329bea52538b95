package pickle

import "testing"

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in      Value
		want    int64
		wantErr bool
	}{
		{int32(0), 0, false},
		{int32(-1), -1, false},
		{int64(1234567890123), 1234567890123, false},
		{"not an int", 0, true},
	}
	for _, tt := range tests {
		got, err := AsInt64(tt.in)
		if tt.wantErr {
			if errKind(err) != KindTypeMismatch {
				t.Errorf("AsInt64(%#v): got err %v, want TypeMismatch", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("AsInt64(%#v): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AsInt64(%#v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAsBytes(t *testing.T) {
	if b, err := AsBytes(Bytes("abc")); err != nil || string(b) != "abc" {
		t.Errorf("AsBytes(Bytes) = %v, %v; want abc, nil", b, err)
	}
	if b, err := AsBytes(ByteArray("abc")); err != nil || string(b) != "abc" {
		t.Errorf("AsBytes(ByteArray) = %v, %v; want abc, nil", b, err)
	}
	if _, err := AsBytes("abc"); errKind(err) != KindTypeMismatch {
		t.Errorf("AsBytes(string): got %v, want TypeMismatch", err)
	}
}

func TestAsText(t *testing.T) {
	if s, err := AsText("hello"); err != nil || s != "hello" {
		t.Errorf("AsText(string) = %v, %v; want hello, nil", s, err)
	}
	if _, err := AsText(Bytes("hello")); errKind(err) != KindTypeMismatch {
		t.Errorf("AsText(Bytes): got %v, want TypeMismatch", err)
	}
}
