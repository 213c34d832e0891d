package bench

import (
	"context"
	"fmt"
	"testing"

	"tileNTT/grid"
	"tileNTT/kernel"
	"tileNTT/ntt"
	"tileNTT/topology"
	"tileNTT/vector"
)

func BenchmarkReferenceTransform(b *testing.B) {
	const n, p = 4096, 998244353
	roots, _ := ntt.Roots(n, p)
	x := vector.Ramp(n, p)
	a := make([]uint32, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(a, x)
		ntt.Transform(a, roots, p)
	}
}

func BenchmarkGridTransform(b *testing.B) {
	const n, p = 4096, 998244353
	roots, _ := ntt.Roots(n, p)
	x, _ := vector.Uniform([]byte("bench"), n, p)
	m, _ := kernel.NewModulus(p)
	for _, kern := range []kernel.Kernel{kernel.NewBarrett(m), kernel.NewLattigo(m)} {
		for _, s := range []struct{ cols, rows int }{{1, 1}, {1, 4}, {2, 4}, {4, 4}} {
			b.Run(fmt.Sprintf("%s/%dx%d", kern.Name(), s.cols, s.rows), func(b *testing.B) {
				g, err := grid.New(topology.Config{Columns: s.cols, Rows: s.rows, N: n, P: p}, grid.Options{Kernel: kern})
				if err != nil {
					b.Fatal(err)
				}
				if err := g.Start(context.Background()); err != nil {
					b.Fatal(err)
				}
				defer g.Close()
				xs := make([][]uint32, 8)
				for i := range xs {
					xs[i] = x
				}
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := g.TransformBatch(context.Background(), xs, roots); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
