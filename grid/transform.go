package grid

import (
	"context"

	"tileNTT/ntt"
)

func (g *Grid) roots() ([]uint32, []uint32, error) {
	g.rootsOnce.Do(func() {
		cfg := g.topo.Config
		g.fwd, g.rootsErr = ntt.Roots(cfg.N, cfg.P)
		if g.rootsErr == nil {
			g.inv, g.rootsErr = ntt.InverseRoots(cfg.N, cfg.P)
		}
	})
	return g.fwd, g.inv, g.rootsErr
}

// Forward returns the natural-order cyclic NTT of x computed on the grid.
func (g *Grid) Forward(ctx context.Context, x []uint32) ([]uint32, error) {
	fwd, _, err := g.roots()
	if err != nil {
		return nil, err
	}
	in := append([]uint32(nil), x...)
	ntt.BitReverse(in)
	return g.Transform(ctx, in, fwd)
}

// Inverse undoes Forward on the grid; the final scaling by N^-1 runs on the host.
func (g *Grid) Inverse(ctx context.Context, x []uint32) ([]uint32, error) {
	_, inv, err := g.roots()
	if err != nil {
		return nil, err
	}
	in := append([]uint32(nil), x...)
	ntt.BitReverse(in)
	out, err := g.Transform(ctx, in, inv)
	if err != nil {
		return nil, err
	}
	p := g.topo.Config.P
	ntt.Scale(out, ntt.Inv(uint32(len(out))%p, p), p)
	return out, nil
}
