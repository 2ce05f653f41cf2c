package domain

import "math/bits"

// Bitset is a dense set of small non-negative integers. It backs both the
// per-player live line sets and the set of remaining cells.
type Bitset struct {
	words []uint64
	size  int
}

// NewBitset returns an empty set able to hold 0..size-1.
func NewBitset(size int) Bitset {
	return Bitset{words: make([]uint64, (size+63)/64), size: size}
}

// FullBitset returns a set holding every value in 0..size-1.
func FullBitset(size int) Bitset {
	b := NewBitset(size)
	b.Fill()
	return b
}

// Cap is the exclusive upper bound of values the set can hold.
func (b Bitset) Cap() int { return b.size }

func (b Bitset) Has(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

func (b Bitset) Add(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i>>6] |= 1 << (uint(i) & 63)
}

func (b Bitset) Remove(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i>>6] &^= 1 << (uint(i) & 63)
}

// Fill adds every value in range.
func (b Bitset) Fill() {
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	if r := b.size & 63; r != 0 {
		b.words[len(b.words)-1] = (1 << uint(r)) - 1
	}
}

// Len is the number of values in the set.
func (b Bitset) Len() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b Bitset) Empty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (b Bitset) Clone() Bitset {
	cp := Bitset{words: make([]uint64, len(b.words)), size: b.size}
	copy(cp.words, b.words)
	return cp
}

// Values returns the members in ascending order.
func (b Bitset) Values() []int {
	out := make([]int, 0, b.Len())
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, wi*64+tz)
			w &= w - 1
		}
	}
	return out
}
