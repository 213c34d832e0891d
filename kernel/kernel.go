// Package kernel defines the butterfly arithmetic a tile runs on its owned
// buffers, with interchangeable modular-reduction backends.
package kernel

import (
	"fmt"
	"math/bits"
)

// Modulus is the prime p together with its Barrett constants
// W = ceil(log2 p) and U = floor(2^(2W) / p).
type Modulus struct {
	P uint32
	W uint
	U uint64
}

// NewModulus validates p and derives its reduction constants.
func NewModulus(p uint32) (Modulus, error) {
	if p < 3 || p&1 == 0 {
		return Modulus{}, fmt.Errorf("kernel: modulus %d must be an odd prime", p)
	}
	if p >= 1<<30 {
		return Modulus{}, fmt.Errorf("kernel: modulus %d exceeds 30 bits", p)
	}
	w := uint(bits.Len32(p))
	return Modulus{P: p, W: w, U: (uint64(1) << (2 * w)) / uint64(p)}, nil
}

// Geometry places one tile's chunk inside the full transform.
type Geometry struct {
	N     int // full transform length
	Chunk int // elements owned by the tile
	Core  int // linear tile index, column-major
}

// LocalStages is the number of butterfly stages whose stride stays inside a chunk.
func (g Geometry) LocalStages() int { return bits.Len(uint(g.Chunk)) - 1 }

// Kernel is the arithmetic capability a tile program calls. Implementations
// only write to the slices passed in and are deterministic.
type Kernel interface {
	// Stages copies in into the half buffers a and b and runs every local
	// stage of the chunk described by g. The last local stage pairs a with b.
	Stages(in, roots, a, b []uint32, g Geometry)
	// Butterfly runs one stage in place on paired halves with a single root.
	Butterfly(x, y []uint32, root uint32)
	// WriteBack joins a and b into out.
	WriteBack(out, a, b []uint32)
	Name() string
}

// New returns the kernel registered under name.
func New(name string, m Modulus) (Kernel, error) {
	switch name {
	case "", "barrett":
		return NewBarrett(m), nil
	case "lattigo":
		return NewLattigo(m), nil
	}
	return nil, fmt.Errorf("kernel: unknown kernel %q", name)
}

// butterflies carries the stage loops shared by every backend; only the
// modular multiplication differs.
type butterflies struct {
	p   uint32
	mul func(a, b uint32) uint32
}

func (k butterflies) pair(x, y, w uint32) (uint32, uint32) {
	s := x + y
	if s >= k.p {
		s -= k.p
	}
	d := x + k.p - y
	if d >= k.p {
		d -= k.p
	}
	return s, k.mul(d, w)
}

func (k butterflies) Stages(in, roots, a, b []uint32, g Geometry) {
	half := g.Chunk / 2
	copy(a, in[:half])
	copy(b, in[half:g.Chunk])
	last := g.LocalStages() - 1
	for s := 0; s < last; s++ {
		t := 1 << s
		h := g.N >> (s + 1)
		blocks := half / (2 * t)
		first := g.Core * (g.Chunk / (2 * t))
		for hi, buf := range [2][]uint32{a, b} {
			for blk := 0; blk < blocks; blk++ {
				w := roots[h+first+hi*blocks+blk]
				base := 2 * t * blk
				for j := base; j < base+t; j++ {
					buf[j], buf[j+t] = k.pair(buf[j], buf[j+t], w)
				}
			}
		}
	}
	// stride half: group index equals the core index
	k.Butterfly(a, b, roots[g.N/g.Chunk+g.Core])
}

func (k butterflies) Butterfly(x, y []uint32, root uint32) {
	for j := range x {
		x[j], y[j] = k.pair(x[j], y[j], root)
	}
}

func (k butterflies) WriteBack(out, a, b []uint32) {
	copy(out, a)
	copy(out[len(a):], b)
}
