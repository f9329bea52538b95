package pickle

import "testing"

func TestStackPushPopPeek(t *testing.T) {
	s := newValueStack()
	if _, err := s.pop(); errKind(err) != KindStackUnderflow {
		t.Fatalf("pop on empty stack: got %v, want StackUnderflow", err)
	}

	s.push(int32(1))
	s.push(int32(2))
	if v, err := s.peek(); err != nil || v != int32(2) {
		t.Fatalf("peek = %v, %v; want 2, nil", v, err)
	}
	if s.len() != 2 {
		t.Fatalf("len = %d, want 2", s.len())
	}
	v, err := s.pop()
	if err != nil || v != int32(2) {
		t.Fatalf("pop = %v, %v; want 2, nil", v, err)
	}
	if s.len() != 1 {
		t.Fatalf("len after pop = %d, want 1", s.len())
	}
}

func TestStackSnapshotIsBottomToTopCopy(t *testing.T) {
	s := newValueStack()
	s.push(int32(1))
	s.push(int32(2))
	s.push(int32(3))
	snap := s.snapshot()
	if len(snap) != 3 || snap[0] != int32(1) || snap[2] != int32(3) {
		t.Fatalf("snapshot = %v, want [1 2 3]", snap)
	}
	s.push(int32(4)) // must not alias into the snapshot already taken
	if len(snap) != 3 {
		t.Fatalf("snapshot mutated after later push: %v", snap)
	}
}

func TestFindMarkAndPopSliceAboveMark(t *testing.T) {
	s := newValueStack()
	if _, err := findMark(s); errKind(err) != KindNoMarker {
		t.Fatalf("findMark on markless stack: got %v, want NoMarker", err)
	}

	s.push(int32(0))
	s.push(markSentinel{})
	s.push(int32(1))
	s.push(int32(2))

	items, err := popSliceAboveMark(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0] != int32(1) || items[1] != int32(2) {
		t.Fatalf("popSliceAboveMark = %v, want [1 2] in stream order", items)
	}
	if s.len() != 1 {
		t.Fatalf("stack len after pop = %d, want 1 (mark and items both removed)", s.len())
	}
}

func TestMemoTable(t *testing.T) {
	m := newMemoTable()
	if _, err := m.get(0); errKind(err) != KindMemoError {
		t.Fatalf("get on empty memo: got %v, want MemoError", err)
	}
	if err := m.put(-1, int32(1)); errKind(err) != KindMemoError {
		t.Fatalf("put at negative index: got %v, want MemoError", err)
	}

	if err := m.put(0, int32(7)); err != nil {
		t.Fatal(err)
	}
	if m.len() != 1 {
		t.Fatalf("len = %d, want 1", m.len())
	}
	v, err := m.get(0)
	if err != nil || v != int32(7) {
		t.Fatalf("get(0) = %v, %v; want 7, nil", v, err)
	}

	// PUT semantics: overwriting an existing index doesn't grow the table.
	if err := m.put(0, int32(9)); err != nil {
		t.Fatal(err)
	}
	if m.len() != 1 {
		t.Fatalf("len after overwrite = %d, want 1", m.len())
	}
}
