package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"tileNTT/grid"
	"tileNTT/ntt"
	"tileNTT/prof"
	"tileNTT/topology"
	"tileNTT/vector"
)

func usage() {
	fmt.Println(`usage: nttgrid <run|roundtrip|sim|describe> [options]

Subcommands:
  run        Stream vectors through the tile grid and time each invocation
             Flags:
               -items  <int>     vectors per invocation (default: 1)
               -runs   <int>     timed invocations (default: 10)
               -seed   <string>  PRNG key for input vectors (default: "tilentt")
               -verify           compare against the sequential reference (default: true)
               -prof             print per-tile kernel and wait times
  roundtrip  Forward then inverse NTT on the grid, check the input comes back
  sim        Build the topology and simulate its schedule for deadlocks
             Flags:
               -items  <int>     work items to simulate (default: 4)
  describe   Print channels and per-tile routing tables
             Flags:
               -ops              also list every program's op sequence

Grid flags (all subcommands):
  -config <file>  JSON configuration, explicit flags override it
  -cols -rows -logn -p -depth -kernel -roots -g`)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "roundtrip":
		runRoundTrip(os.Args[2:])
	case "sim":
		runSim(os.Args[2:])
	case "describe":
		runDescribe(os.Args[2:])
	default:
		usage()
	}
}

func startGrid(gf *gridFlags, cfg topology.Config, rec *prof.Recorder) (*grid.Grid, context.Context, context.CancelFunc) {
	k, err := gf.newKernel(cfg)
	if err != nil {
		log.Fatalf("kernel: %v", err)
	}
	g, err := grid.New(cfg, grid.Options{Kernel: k, Recorder: rec})
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	if err := g.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	return g, ctx, cancel
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	gf := addGridFlags(fs)
	items := fs.Int("items", 1, "vectors per invocation")
	runs := fs.Int("runs", 10, "timed invocations")
	seed := fs.String("seed", "tilentt", "PRNG key for input vectors")
	verify := fs.Bool("verify", true, "compare against the sequential reference")
	profile := fs.Bool("prof", false, "print per-tile kernel and wait times")
	fs.Parse(args)
	if *items < 1 || *runs < 1 {
		log.Fatal("run: -items and -runs must be positive")
	}

	cfg, err := gf.resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	roots, err := gf.rootTable(cfg)
	if err != nil {
		log.Fatalf("roots: %v", err)
	}
	xs := make([][]uint32, *items)
	for i := range xs {
		if xs[i], err = vector.Uniform([]byte(fmt.Sprintf("%s/%d", *seed, i)), cfg.N, cfg.P); err != nil {
			log.Fatalf("input: %v", err)
		}
	}

	var rec *prof.Recorder
	if *profile {
		rec = prof.Default()
	}
	g, ctx, cancel := startGrid(gf, cfg, rec)
	defer cancel()

	fmt.Printf("grid %v kernel=%s roots=%s items=%d\n", cfg, g.Kernel().Name(), *gf.roots, *items)
	var out [][]uint32
	var total time.Duration
	for r := 0; r < *runs; r++ {
		start := time.Now()
		if out, err = g.TransformBatch(ctx, xs, roots); err != nil {
			log.Fatalf("run %d: %v", r, err)
		}
		d := time.Since(start)
		if rec != nil {
			prof.Track(start, "host/batch")
		}
		total += d
		per := d / time.Duration(*items)
		fmt.Printf("run %2d: %8.1f us/ntt  %6.3f GOPS\n", r, float64(per.Nanoseconds())/1e3, prof.GOPS(cfg.N, per))
	}
	per := total / time.Duration(*runs**items)
	fmt.Printf("avg:    %8.1f us/ntt  %6.3f GOPS  digest=%s\n", float64(per.Nanoseconds())/1e3, prof.GOPS(cfg.N, per), vector.DigestHex(out[0]))

	if *verify {
		for i, x := range xs {
			want := append([]uint32(nil), x...)
			ntt.Transform(want, roots, cfg.P)
			if j := ntt.Equal(out[i], want); j >= 0 {
				log.Fatalf("verify: item %d differs from reference at %d (got %d want %d)", i, j, out[i][j], want[j])
			}
		}
		fmt.Println("verify: PASS")
	}
	if err := g.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}
	if rec != nil {
		printProfile(prof.SnapshotAndReset())
	}
}

func printProfile(entries []prof.Entry) {
	fmt.Printf("%-28s %8s %12s %12s\n", "label", "count", "mean(us)", "max(us)")
	for _, s := range prof.Summarize(entries) {
		fmt.Printf("%-28s %8d %12.2f %12.2f\n", s.Label, s.Count,
			float64(s.Mean().Nanoseconds())/1e3, float64(s.Max.Nanoseconds())/1e3)
	}
}

func runRoundTrip(args []string) {
	fs := flag.NewFlagSet("roundtrip", flag.ExitOnError)
	gf := addGridFlags(fs)
	seed := fs.String("seed", "tilentt", "PRNG key for the input vector")
	fs.Parse(args)

	cfg, err := gf.resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	x, err := vector.Uniform([]byte(*seed), cfg.N, cfg.P)
	if err != nil {
		log.Fatalf("input: %v", err)
	}
	g, ctx, cancel := startGrid(gf, cfg, nil)
	defer cancel()
	defer g.Close()

	X, err := g.Forward(ctx, x)
	if err != nil {
		log.Fatalf("forward: %v", err)
	}
	y, err := g.Inverse(ctx, X)
	if err != nil {
		log.Fatalf("inverse: %v", err)
	}
	if i := ntt.Equal(x, y); i >= 0 {
		log.Fatalf("roundtrip: mismatch at %d", i)
	}
	fmt.Printf("roundtrip %v: PASS forward=%s\n", cfg, vector.DigestHex(X))
}

func runSim(args []string) {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	gf := addGridFlags(fs)
	items := fs.Int("items", 4, "work items to simulate")
	fs.Parse(args)

	cfg, err := gf.resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	topo, err := topology.Build(cfg)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	st, err := topology.Simulate(topo, *items)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}
	fmt.Printf("sim %v: %d channels, %d programs, %d items in %d steps over %d rounds\n",
		cfg, len(topo.Channels), len(topo.Programs()), st.Items, st.Steps, st.Rounds)
}

func runDescribe(args []string) {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	gf := addGridFlags(fs)
	ops := fs.Bool("ops", false, "list every program's op sequence")
	fs.Parse(args)

	cfg, err := gf.resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	topo, err := topology.Build(cfg)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	topo.Describe(os.Stdout, *ops)
}
