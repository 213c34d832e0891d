// Package ntt holds the sequential reference transform and root-table helpers
// used to drive and check the tiled grid.
package ntt

import (
	"fmt"
	"math/bits"
	"os"
)

// Stages runs the butterfly stages from (inclusive) to to (exclusive) of the
// length-len(a) transform in place. Stage s pairs elements at stride 2^s and
// group i of that stage uses roots[len(a)/2^(s+1) + i]:
//
//	(x, y) -> (x + y, (x - y) * root)  mod p
func Stages(a, roots []uint32, p uint32, from, to int) {
	n := len(a)
	q := uint64(p)
	for s := from; s < to; s++ {
		t := 1 << s
		h := n >> (s + 1)
		for i := 0; i < h; i++ {
			w := uint64(roots[h+i])
			base := 2 * t * i
			for j := base; j < base+t; j++ {
				x, y := uint64(a[j]), uint64(a[j+t])
				a[j] = uint32((x + y) % q)
				a[j+t] = uint32((x + q - y) % q * w % q)
			}
		}
	}
}

// Transform runs every stage of the butterfly network in place.
func Transform(a, roots []uint32, p uint32) {
	dbg(os.Stderr, "[NTT] Transform N=%d p=%d\n", len(a), p)
	Stages(a, roots, p, 0, bits.Len(uint(len(a)))-1)
}

// Forward returns the natural-order cyclic NTT of x.
func Forward(x []uint32, p uint32) ([]uint32, error) {
	if err := checkLength(len(x)); err != nil {
		return nil, err
	}
	roots, err := Roots(len(x), p)
	if err != nil {
		return nil, err
	}
	out := append([]uint32(nil), x...)
	BitReverse(out)
	Transform(out, roots, p)
	return out, nil
}

// Inverse undoes Forward.
func Inverse(x []uint32, p uint32) ([]uint32, error) {
	if err := checkLength(len(x)); err != nil {
		return nil, err
	}
	roots, err := InverseRoots(len(x), p)
	if err != nil {
		return nil, err
	}
	out := append([]uint32(nil), x...)
	BitReverse(out)
	Transform(out, roots, p)
	Scale(out, Inv(uint32(len(x)%int(p)), p), p)
	return out, nil
}

// Scale multiplies every element by s mod p.
func Scale(a []uint32, s, p uint32) {
	for i := range a {
		a[i] = uint32(uint64(a[i]) * uint64(s) % uint64(p))
	}
}

// DFT evaluates the cyclic transform X_k = sum x_j omega^(jk) directly.
func DFT(x []uint32, omega, p uint32) []uint32 {
	q := uint64(p)
	out := make([]uint32, len(x))
	wk := uint64(1)
	for k := range out {
		var acc, pow uint64 = 0, 1
		for _, v := range x {
			acc = (acc + uint64(v)*pow) % q
			pow = pow * wk % q
		}
		out[k] = uint32(acc)
		wk = wk * uint64(omega) % q
	}
	return out
}

// Equal reports the index of the first mismatch, or -1.
func Equal(a, b []uint32) int {
	if len(a) != len(b) {
		return min(len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}

// Check reports the first element of a that is not reduced mod p.
func Check(a []uint32, p uint32) error {
	for i, v := range a {
		if v >= p {
			return fmt.Errorf("ntt: element %d = %d not reduced mod %d", i, v, p)
		}
	}
	return nil
}
