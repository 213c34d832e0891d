package main

import (
	"flag"
	"fmt"
	"math"

	"tileNTT/kernel"
	"tileNTT/ntt"
	"tileNTT/params"
	"tileNTT/topology"
)

// gridFlags are shared by every subcommand that builds a grid. Explicit
// flags override values loaded from -config.
type gridFlags struct {
	config *string
	cols   *int
	rows   *int
	logN   *int
	p      *uint
	depth  *int
	kernel *string
	roots  *string
	gen    *uint
	fs     *flag.FlagSet
}

func addGridFlags(fs *flag.FlagSet) *gridFlags {
	return &gridFlags{
		config: fs.String("config", "", "JSON grid configuration (columns, rows, N/logN, p, depth)"),
		cols:   fs.Int("cols", 1, "tile columns (1, 2 or 4)"),
		rows:   fs.Int("rows", 4, "tile rows (1, 2 or 4)"),
		logN:   fs.Int("logn", 12, "log2 of the transform length"),
		p:      fs.Uint("p", 998244353, "prime modulus below 2^30"),
		depth:  fs.Int("depth", topology.DefaultDepth, "data channel depth"),
		kernel: fs.String("kernel", "barrett", "butterfly kernel: barrett|lattigo"),
		roots:  fs.String("roots", "dft", "root table: dft (bit-reversed twiddles) | natural (powers of g)"),
		gen:    fs.Uint("g", 0, "generator for -roots natural (0 = smallest primitive root)"),
		fs:     fs,
	}
}

func (f *gridFlags) set() map[string]bool {
	seen := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { seen[fl.Name] = true })
	return seen
}

func (f *gridFlags) resolve() (topology.Config, error) {
	if *f.p > math.MaxUint32 {
		return topology.Config{}, fmt.Errorf("%w: p=%d does not fit in 32 bits", topology.ErrConfig, *f.p)
	}
	if *f.logN < 1 || *f.logN > 30 {
		return topology.Config{}, fmt.Errorf("%w: logn=%d", topology.ErrConfig, *f.logN)
	}
	if *f.gen > math.MaxUint32 {
		return topology.Config{}, fmt.Errorf("%w: g=%d does not fit in 32 bits", topology.ErrConfig, *f.gen)
	}
	cfg := topology.Config{Columns: *f.cols, Rows: *f.rows, N: 1 << *f.logN, P: uint32(*f.p), Depth: *f.depth}
	if *f.config == "" {
		return cfg, cfg.Validate()
	}
	fileCfg, err := params.LoadConfig(*f.config)
	if err != nil {
		return cfg, err
	}
	seen := f.set()
	if !seen["cols"] {
		cfg.Columns = fileCfg.Columns
	}
	if !seen["rows"] {
		cfg.Rows = fileCfg.Rows
	}
	if !seen["logn"] {
		cfg.N = fileCfg.N
	}
	if !seen["p"] {
		cfg.P = fileCfg.P
	}
	if !seen["depth"] {
		cfg.Depth = fileCfg.Depth
	}
	return cfg, cfg.Validate()
}

func (f *gridFlags) newKernel(cfg topology.Config) (kernel.Kernel, error) {
	m, err := kernel.NewModulus(cfg.P)
	if err != nil {
		return nil, err
	}
	return kernel.New(*f.kernel, m)
}

func (f *gridFlags) rootTable(cfg topology.Config) ([]uint32, error) {
	switch *f.roots {
	case "dft":
		return ntt.Roots(cfg.N, cfg.P)
	case "natural":
		if (cfg.P-1)%uint32(cfg.N) != 0 {
			return nil, fmt.Errorf("%w: n=%d p=%d", ntt.ErrNoRoot, cfg.N, cfg.P)
		}
		g := uint32(*f.gen)
		if g == 0 {
			var err error
			if g, err = ntt.PrimitiveRoot(cfg.P); err != nil {
				return nil, err
			}
		}
		return ntt.NaturalRoots(cfg.N, cfg.P, g), nil
	}
	return nil, fmt.Errorf("unknown root table %q", *f.roots)
}
