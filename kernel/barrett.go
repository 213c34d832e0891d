package kernel

// Barrett reduces products with the shift-based Barrett scheme of the
// vector tile kernel: x1 = t >> (W-2), s = (x1*U) >> (W+2), c = t - s*p.
type Barrett struct {
	butterflies
	mod Modulus
}

func NewBarrett(m Modulus) *Barrett {
	k := &Barrett{mod: m}
	k.butterflies = butterflies{p: m.P, mul: k.Mul}
	return k
}

func (k *Barrett) Name() string { return "barrett" }

// Mul returns a*b mod p for a, b < p.
func (k *Barrett) Mul(a, b uint32) uint32 {
	t := uint64(a) * uint64(b)
	x1 := t >> (k.mod.W - 2)
	s := (x1 * k.mod.U) >> (k.mod.W + 2)
	c := t - s*uint64(k.mod.P)
	for c >= uint64(k.mod.P) {
		c -= uint64(k.mod.P)
	}
	return uint32(c)
}
