package domain

import "testing"

func TestBitsetBasics(t *testing.T) {
	b := NewBitset(130)
	if !b.Empty() || b.Len() != 0 {
		t.Fatalf("expected empty set")
	}
	for _, v := range []int{0, 63, 64, 129} {
		b.Add(v)
	}
	b.Add(130) // ignored
	b.Add(-1)  // ignored
	if b.Len() != 4 {
		t.Fatalf("expected 4 members, got %d", b.Len())
	}
	if !b.Has(64) || b.Has(65) || b.Has(130) {
		t.Fatalf("membership mismatch")
	}
	b.Remove(63)
	got := b.Values()
	want := []int{0, 64, 129}
	if len(got) != len(want) {
		t.Fatalf("Values = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values = %v, want %v", got, want)
		}
	}
}

func TestFullBitsetAndClone(t *testing.T) {
	b := FullBitset(70)
	if b.Len() != 70 || b.Has(70) {
		t.Fatalf("expected exactly 70 members, got %d", b.Len())
	}
	cp := b.Clone()
	cp.Remove(5)
	if !b.Has(5) {
		t.Fatalf("clone shares storage with original")
	}
	if cp.Len() != 69 {
		t.Fatalf("expected 69 members in clone, got %d", cp.Len())
	}
}
