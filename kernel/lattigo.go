package kernel

import "github.com/tuneinsight/lattigo/v4/ring"

// Lattigo multiplies with lattigo's 128-bit Barrett reduction.
type Lattigo struct {
	butterflies
	q     uint64
	bredC []uint64
}

func NewLattigo(m Modulus) *Lattigo {
	k := &Lattigo{q: uint64(m.P), bredC: ring.BRedParams(uint64(m.P))}
	k.butterflies = butterflies{p: m.P, mul: k.Mul}
	return k
}

func (k *Lattigo) Name() string { return "lattigo" }

func (k *Lattigo) Mul(a, b uint32) uint32 {
	return uint32(ring.BRed(uint64(a), uint64(b), k.q, k.bredC))
}
