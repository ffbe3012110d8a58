package iforest

import "time"

// fallbackState replaces a zero xorshift state, which would only ever yield zeros.
const fallbackState uint32 = 2463534242

// xorshift32 is the forest's random source. The same seed always yields the
// same sequence, so every split and bootstrap draw is reproducible.
type xorshift32 struct {
	state uint32
}

func newXorshift32(seed int64) *xorshift32 {
	s := uint32(seed) ^ uint32(seed>>32)
	if s == 0 {
		s = fallbackState
	}
	return &xorshift32{state: s}
}

func newClockSeeded() *xorshift32 {
	return newXorshift32(time.Now().UnixNano())
}

// Float64 returns the next value in [0, 1).
func (r *xorshift32) Float64() float64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return float64(x) / (1 << 32)
}

// Intn returns a value in [0, n).
func (r *xorshift32) Intn(n int) int {
	i := int(r.Float64() * float64(n))
	if i >= n {
		// float rounding guard
		i = n - 1
	}
	return i
}
