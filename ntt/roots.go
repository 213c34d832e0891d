package ntt

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// ErrNoRoot is returned when Z_p has no root of unity of the requested order.
var ErrNoRoot = errors.New("ntt: no root of unity of requested order")

func checkLength(n int) error {
	if n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("ntt: length %d is not a power of two >= 2", n)
	}
	return nil
}

// primeFactors lists the distinct prime factors of x.
func primeFactors(x uint64) []uint64 {
	var fs []uint64
	for f := uint64(2); f*f <= x; f++ {
		if x%f == 0 {
			fs = append(fs, f)
			for x%f == 0 {
				x /= f
			}
		}
	}
	if x > 1 {
		fs = append(fs, x)
	}
	return fs
}

// PrimitiveRoot returns the smallest generator of the multiplicative group mod p.
func PrimitiveRoot(p uint32) (uint32, error) {
	q := uint64(p)
	if q < 3 || !ring.IsPrime(q) {
		return 0, fmt.Errorf("ntt: modulus %d is not an odd prime", p)
	}
	fs := primeFactors(q - 1)
	for g := uint64(2); g < q; g++ {
		ok := true
		for _, f := range fs {
			if ring.ModExp(g, (q-1)/f, q) == 1 {
				ok = false
				break
			}
		}
		if ok {
			return uint32(g), nil
		}
	}
	return 0, fmt.Errorf("ntt: no generator for %d", p)
}

// RootOfUnity returns a primitive n-th root of unity mod p.
func RootOfUnity(n int, p uint32) (uint32, error) {
	if err := checkLength(n); err != nil {
		return 0, err
	}
	if (uint64(p)-1)%uint64(n) != 0 {
		return 0, fmt.Errorf("%w: n=%d p=%d", ErrNoRoot, n, p)
	}
	g, err := PrimitiveRoot(p)
	if err != nil {
		return 0, err
	}
	return uint32(ring.ModExp(uint64(g), (uint64(p)-1)/uint64(n), uint64(p))), nil
}

// RootsFrom builds the twiddle table for Transform from a primitive n-th root
// of unity omega. Entry 2^r + i holds omega^(n/2^(r+1) * rev_r(i)), so that
// Transform applied to a bit-reversed vector yields the cyclic DFT in natural
// order. Entry 0 is unused and set to 1.
func RootsFrom(n int, omega, p uint32) []uint32 {
	q := uint64(p)
	out := make([]uint32, n)
	out[0] = 1
	for r := 0; 1<<r < n; r++ {
		psi := ring.ModExp(uint64(omega), uint64(n>>(r+1)), q)
		for i := 0; i < 1<<r; i++ {
			e := uint64(reverse(i, r))
			out[1<<r+i] = uint32(ring.ModExp(psi, e, q))
		}
	}
	return out
}

// Roots returns the forward twiddle table for length n.
func Roots(n int, p uint32) ([]uint32, error) {
	omega, err := RootOfUnity(n, p)
	if err != nil {
		return nil, err
	}
	return RootsFrom(n, omega, p), nil
}

// InverseRoots returns the twiddle table built from omega^-1.
func InverseRoots(n int, p uint32) ([]uint32, error) {
	omega, err := RootOfUnity(n, p)
	if err != nil {
		return nil, err
	}
	return RootsFrom(n, Inv(omega, p), p), nil
}

// NaturalRoots returns the table g^(k*(p-1)/n) for k < n, the layout the
// hardware test harness feeds to the grid.
func NaturalRoots(n int, p, g uint32) []uint32 {
	q := uint64(p)
	w := ring.ModExp(uint64(g), (q-1)/uint64(n), q)
	out := make([]uint32, n)
	acc := uint64(1)
	for k := range out {
		out[k] = uint32(acc)
		acc = acc * w % q
	}
	return out
}

// Inv returns x^-1 mod prime p.
func Inv(x, p uint32) uint32 {
	return uint32(ring.ModExp(uint64(x), uint64(p)-2, uint64(p)))
}

// reverse reverses the low width bits of x.
func reverse(x, width int) int {
	if width == 0 {
		return 0
	}
	return int(bits.Reverse64(uint64(x)) >> (64 - width))
}

// BitReverse permutes a in place into bit-reversed index order.
func BitReverse(a []uint32) {
	width := bits.Len(uint(len(a))) - 1
	for i := range a {
		j := reverse(i, width)
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
}
