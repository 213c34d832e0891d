package main

import (
	"errors"
	"flag"
	"testing"

	"tileNTT/ntt"
	"tileNTT/topology"
)

func parseGrid(t *testing.T, args ...string) *gridFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	gf := addGridFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return gf
}

func TestDefaultsBuildRootTables(t *testing.T) {
	for _, roots := range []string{"dft", "natural"} {
		gf := parseGrid(t, "-roots", roots)
		cfg, err := gf.resolve()
		if err != nil {
			t.Fatalf("%s: %v", roots, err)
		}
		table, err := gf.rootTable(cfg)
		if err != nil {
			t.Fatalf("%s: %v", roots, err)
		}
		if len(table) != cfg.N {
			t.Fatalf("%s: %d roots for N=%d", roots, len(table), cfg.N)
		}
	}
}

func TestNaturalRootsNeedOrderN(t *testing.T) {
	// 3328 = 2^8 * 13 has no element of order 4096
	gf := parseGrid(t, "-p", "3329", "-logn", "12", "-roots", "natural")
	cfg, err := gf.resolve()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gf.rootTable(cfg); !errors.Is(err, ntt.ErrNoRoot) {
		t.Fatalf("got %v", err)
	}
	gf = parseGrid(t, "-p", "3329", "-logn", "8", "-roots", "natural")
	if cfg, err = gf.resolve(); err != nil {
		t.Fatal(err)
	}
	if _, err := gf.rootTable(cfg); err != nil {
		t.Fatal(err)
	}
}

func TestResolveRejects(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"p wraps to 17", []string{"-p", "4294967313"}},
		{"p above 2^30", []string{"-p", "2147483659"}},
		{"logn out of range", []string{"-logn", "40"}},
		{"three columns", []string{"-cols", "3"}},
	}
	for _, c := range cases {
		if _, err := parseGrid(t, c.args...).resolve(); !errors.Is(err, topology.ErrConfig) {
			t.Errorf("%s: got %v", c.name, err)
		}
	}
}
