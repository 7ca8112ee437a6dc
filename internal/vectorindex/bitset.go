package vectorindex

// bitset tracks visited slots during one layer search.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, n/64+1)
}

// testAndSet marks i and reports whether it was already marked.
func (b bitset) testAndSet(i uint32) bool {
	w, m := i>>6, uint64(1)<<(i&63)
	if int(w) >= len(b) {
		return true
	}
	seen := b[w]&m != 0
	b[w] |= m
	return seen
}
