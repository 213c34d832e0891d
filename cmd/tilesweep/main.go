package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tileNTT/grid"
	"tileNTT/kernel"
	"tileNTT/ntt"
	"tileNTT/prof"
	"tileNTT/topology"
	"tileNTT/vector"
)

const (
	defaultJSONLPath = "tilesweep.jsonl"
	defaultHTMLPath  = "tilesweep.html"
	defaultGrids     = "1x1,1x2,1x4,2x4,4x4"
	defaultLogN      = "8,10,12"
)

// sweepRow is one JSONL record: a grid shape and transform size with its timings.
type sweepRow struct {
	Columns   int                `json:"Columns"`
	Rows      int                `json:"Rows"`
	Tiles     int                `json:"Tiles"`
	N         int                `json:"N"`
	P         uint32             `json:"P"`
	Kernel    string             `json:"Kernel"`
	Items     int                `json:"Items"`
	Runs      int                `json:"Runs"`
	MicrosNTT float64            `json:"MicrosPerNTT"`
	GOPS      float64            `json:"GOPS"`
	Speedup   float64            `json:"Speedup"`
	KernelUS  map[string]float64 `json:"TileKernelUS"`
	WaitUS    map[string]float64 `json:"TileWaitUS"`
	Digest    string             `json:"Digest"`
}

func parseGrids(spec string) ([][2]int, error) {
	var out [][2]int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, r, ok := strings.Cut(part, "x")
		if !ok {
			return nil, fmt.Errorf("grid %q: want COLSxROWS", part)
		}
		cols, err1 := strconv.Atoi(c)
		rows, err2 := strconv.Atoi(r)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("grid %q: want COLSxROWS", part)
		}
		out = append(out, [2]int{cols, rows})
	}
	return out, nil
}

func parseInts(spec string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid list entry %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// measure runs one configuration and returns its row.
func measure(cfg topology.Config, kname string, items, runs int) (sweepRow, error) {
	row := sweepRow{Columns: cfg.Columns, Rows: cfg.Rows, Tiles: cfg.Tiles(), N: cfg.N, P: cfg.P, Kernel: kname, Items: items, Runs: runs}
	m, err := kernel.NewModulus(cfg.P)
	if err != nil {
		return row, err
	}
	k, err := kernel.New(kname, m)
	if err != nil {
		return row, err
	}
	roots, err := ntt.Roots(cfg.N, cfg.P)
	if err != nil {
		return row, err
	}
	xs := make([][]uint32, items)
	for i := range xs {
		if xs[i], err = vector.Uniform([]byte{byte(i), byte(cfg.Tiles())}, cfg.N, cfg.P); err != nil {
			return row, err
		}
	}

	rec := &prof.Recorder{}
	g, err := grid.New(cfg, grid.Options{Kernel: k, Recorder: rec})
	if err != nil {
		return row, err
	}
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		return row, err
	}
	defer g.Close()

	// warm-up, also checked against the reference
	out, err := g.TransformBatch(ctx, xs[:1], roots)
	if err != nil {
		return row, err
	}
	want := append([]uint32(nil), xs[0]...)
	ntt.Transform(want, roots, cfg.P)
	if i := ntt.Equal(out[0], want); i >= 0 {
		return row, fmt.Errorf("%v: output differs from reference at %d", cfg, i)
	}
	row.Digest = vector.DigestHex(out[0])
	rec.SnapshotAndReset()

	start := time.Now()
	for r := 0; r < runs; r++ {
		if _, err := g.TransformBatch(ctx, xs, roots); err != nil {
			return row, err
		}
	}
	per := time.Since(start) / time.Duration(runs*items)
	row.MicrosNTT = float64(per.Nanoseconds()) / 1e3
	row.GOPS = prof.GOPS(cfg.N, per)

	row.KernelUS = make(map[string]float64)
	row.WaitUS = make(map[string]float64)
	perItem := float64(runs*items) * 1e3
	for _, s := range prof.Summarize(rec.SnapshotAndReset()) {
		tile, what, ok := strings.Cut(s.Label, "/")
		if !ok || !strings.HasPrefix(tile, "tile(") {
			continue
		}
		if what == "wait" {
			row.WaitUS[tile] += float64(s.Total.Nanoseconds()) / perItem
		} else {
			row.KernelUS[tile] += float64(s.Total.Nanoseconds()) / perItem
		}
	}
	return row, nil
}

func main() {
	jsonPath := flag.String("jsonl", defaultJSONLPath, "JSONL output path")
	htmlPath := flag.String("html", defaultHTMLPath, "HTML chart output path (empty disables)")
	plotOnly := flag.Bool("plot-only", false, "skip measuring, plot an existing -jsonl file")
	gridSpec := flag.String("grids", defaultGrids, "grid shapes, comma list of COLSxROWS")
	logNSpec := flag.String("logn", defaultLogN, "transform sizes as log2 N, comma list")
	p := flag.Uint("p", 998244353, "prime modulus")
	kname := flag.String("kernel", "barrett", "butterfly kernel: barrett|lattigo")
	items := flag.Int("items", 8, "vectors per invocation")
	runs := flag.Int("runs", 5, "timed invocations per configuration")
	depth := flag.Int("depth", topology.DefaultDepth, "data channel depth")
	flag.Parse()

	if *plotOnly {
		rows, err := readRows(*jsonPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			os.Exit(1)
		}
		if err := writeHTML(*htmlPath, rows); err != nil {
			fmt.Fprintf(os.Stderr, "render error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	grids, err := parseGrids(*gridSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grids: %v\n", err)
		os.Exit(1)
	}
	logNs, err := parseInts(*logNSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logn: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*jsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create error: %v\n", err)
		os.Exit(1)
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)

	var rows []sweepRow
	for _, logN := range logNs {
		base := 0.0
		for _, gshape := range grids {
			cfg := topology.Config{Columns: gshape[0], Rows: gshape[1], N: 1 << logN, P: uint32(*p), Depth: *depth}
			row, err := measure(cfg, *kname, *items, *runs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[skip] %v: %v\n", cfg, err)
				continue
			}
			if base == 0 {
				base = row.MicrosNTT
			}
			row.Speedup = base / row.MicrosNTT
			fmt.Printf("%dx%d N=%-6d %10.1f us/ntt %7.3f GOPS speedup %5.2f\n",
				row.Columns, row.Rows, row.N, row.MicrosNTT, row.GOPS, row.Speedup)
			if err := enc.Encode(row); err != nil {
				fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
				os.Exit(1)
			}
			rows = append(rows, row)
		}
	}
	if err := buf.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "write error: %v\n", err)
		os.Exit(1)
	}
	f.Close()
	fmt.Printf("Wrote %s (%d rows)\n", *jsonPath, len(rows))

	if *htmlPath != "" {
		if err := writeHTML(*htmlPath, rows); err != nil {
			fmt.Fprintf(os.Stderr, "render error: %v\n", err)
			os.Exit(1)
		}
	}
}
