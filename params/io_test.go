package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tileNTT/topology"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigSpellings(t *testing.T) {
	cases := []struct {
		body string
		want topology.Config
	}{
		{`{"columns":4,"rows":4,"N":256,"p":3329}`, topology.Config{Columns: 4, Rows: 4, N: 256, P: 3329, Depth: 2}},
		{`{"n_column":2,"n_row":4,"logN":11,"p":3329,"buffer_depth":3}`, topology.Config{Columns: 2, Rows: 4, N: 2048, P: 3329, Depth: 3}},
		{`{"Columns":1,"Rows":1,"n":16,"Q":"998244353"}`, topology.Config{Columns: 1, Rows: 1, N: 16, P: 998244353, Depth: 2}},
		{`{"columns":1,"rows":2,"n":64,"q":"0xd01"}`, topology.Config{Columns: 1, Rows: 2, N: 64, P: 3329, Depth: 2}},
	}
	for _, c := range cases {
		got, err := LoadConfig(writeFile(t, c.body))
		if err != nil {
			t.Fatalf("%s: %v", c.body, err)
		}
		if got != c.want {
			t.Errorf("%s: got %+v want %+v", c.body, got, c.want)
		}
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(writeFile(t, `{"columns":1,"rows":1}`)); err == nil {
		t.Fatal("missing N/p accepted")
	}
	if _, err := LoadConfig(writeFile(t, `{"columns":3,"rows":1,"N":64,"p":17}`)); !errors.Is(err, topology.ErrConfig) {
		t.Fatalf("got %v", err)
	}
	if _, err := LoadConfig(writeFile(t, `{"columns":1,"rows":1,"N":64,"p":"zz"}`)); err == nil {
		t.Fatal("bad p string accepted")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := topology.Config{Columns: 2, Rows: 2, N: 128, P: 3329, Depth: 2}
	path := filepath.Join(t.TempDir(), "out.json")
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil || got != cfg {
		t.Fatalf("got %+v %v", got, err)
	}
}
