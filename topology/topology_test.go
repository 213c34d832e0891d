package topology

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tileNTT/channel"
)

var shapes = []struct{ cols, rows int }{
	{1, 1}, {1, 2}, {2, 1}, {1, 4}, {2, 2}, {4, 1}, {2, 4}, {4, 2}, {4, 4},
}

func TestValidateConfig(t *testing.T) {
	good := Config{Columns: 2, Rows: 2, N: 64, P: 3329}
	if err := good.WithDefaults().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := []Config{
		{Columns: 3, Rows: 1, N: 64, P: 3329, Depth: 2},
		{Columns: 8, Rows: 1, N: 64, P: 3329, Depth: 2},
		{Columns: 1, Rows: 0, N: 64, P: 3329, Depth: 2},
		{Columns: 1, Rows: 1, N: 48, P: 3329, Depth: 2},
		{Columns: 4, Rows: 4, N: 16, P: 3329, Depth: 2},
		{Columns: 1, Rows: 1, N: 16, P: 3328, Depth: 2},
		{Columns: 1, Rows: 1, N: 16, P: 2, Depth: 2},
		{Columns: 1, Rows: 1, N: 16, P: 3329, Depth: -1},
	}
	for _, c := range bad {
		if err := c.Validate(); !errors.Is(err, ErrConfig) {
			t.Errorf("%v: expected config error, got %v", c, err)
		}
		if _, err := Build(c); !errors.Is(err, ErrConfig) {
			t.Errorf("Build %v: expected config error, got %v", c, err)
		}
	}
}

func TestBuildShapes(t *testing.T) {
	for _, s := range shapes {
		cfg := Config{Columns: s.cols, Rows: s.rows, N: 256, P: 3329}
		topo, err := Build(cfg)
		if err != nil {
			t.Fatalf("%dx%d: %v", s.cols, s.rows, err)
		}
		k := cfg.Tiles()
		bits := log2(k)
		// 3 column + 3 per tile + 4 per exchange pair
		want := 3*s.cols + 3*k + 4*bits*k/2
		if len(topo.Channels) != want {
			t.Errorf("%dx%d: %d channels, want %d", s.cols, s.rows, len(topo.Channels), want)
		}
		for core, tp := range topo.Tiles {
			if tp.Core != core || tp.Owner.Column*s.rows+tp.Owner.Row != core {
				t.Fatalf("%dx%d: tile %s has core %d at %d", s.cols, s.rows, tp.Name, tp.Core, core)
			}
			if len(tp.Exchanges) != bits {
				t.Fatalf("%s: %d exchanges", tp.Name, len(tp.Exchanges))
			}
			for _, ex := range tp.Exchanges {
				mate := topo.Tiles[ex.PartnerCore]
				back := mate.Exchanges[ex.Bit]
				if back.PartnerCore != core || back.Lower == ex.Lower {
					t.Fatalf("%s bit %d: asymmetric partner", tp.Name, ex.Bit)
				}
				if ex.Send != back.Recv || ex.OwnLock != back.PartnerLock || ex.Root != back.Root {
					t.Fatalf("%s bit %d: channels not mirrored", tp.Name, ex.Bit)
				}
				wantDir := Vertical
				if ex.Partner.Column != tp.Owner.Column {
					wantDir = Horizontal
				}
				if ex.Dir != wantDir {
					t.Fatalf("%s bit %d: direction %v", tp.Name, ex.Bit, ex.Dir)
				}
			}
		}
	}
}

func TestExchangeRoots(t *testing.T) {
	topo, err := Build(Config{Columns: 4, Rows: 4, N: 256, P: 3329})
	if err != nil {
		t.Fatal(err)
	}
	// stride-16 stage on core 5 is global group 2 of 8, root R[8+2]
	ex := topo.Tiles[5].Exchanges[0]
	if ex.Stage != 4 || ex.Root != 10 || ex.PartnerCore != 4 || ex.Lower {
		t.Fatalf("got %+v", ex)
	}
	last := topo.Tiles[5].Exchanges[3]
	if last.Stage != 7 || last.Root != 1 || last.PartnerCore != 13 || last.Dir != Horizontal {
		t.Fatalf("got %+v", last)
	}
}

func build4(t *testing.T) *Topology {
	t.Helper()
	topo, err := Build(Config{Columns: 1, Rows: 4, N: 64, P: 3329})
	if err != nil {
		t.Fatal(err)
	}
	return topo
}

// swapTransferHalves moves the receive half of tp's first lock hand-off in
// front of its send half, keeping every acquire matched by its release.
func swapTransferHalves(t *testing.T, tp *TileProgram) {
	t.Helper()
	own := tp.Exchanges[0].OwnLock
	ops := tp.Ops
	for i, op := range ops {
		if op.Kind != Acquire || op.Chan != own {
			continue
		}
		if i+10 > len(ops) {
			break
		}
		send := append([]Op(nil), ops[i:i+5]...)
		copy(ops[i:], ops[i+5:i+10])
		copy(ops[i+5:], send)
		return
	}
	t.Fatalf("%s: no hand-off on lock %d", tp.Name, own)
}

func TestVerifyRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Topology)
		want   string
	}{
		{"size mismatch", func(tp *Topology) {
			tp.Channels[tp.Tiles[0].Exchanges[0].Send].Size++
		}, "half buffer"},
		{"unpaired lock", func(tp *Topology) {
			tp.Channels = append(tp.Channels, ChannelSpec{Name: "stray", Src: tp.Tiles[0].Owner, Dst: tp.Tiles[1].Owner, Depth: 1, Lock: true})
			tp.Tiles[0].Ops = append(tp.Tiles[0].Ops, acquire(len(tp.Channels)-1, channel.Produce), release(len(tp.Channels)-1, channel.Produce))
			tp.Tiles[1].Ops = append(tp.Tiles[1].Ops, acquire(len(tp.Channels)-1, channel.Consume), release(len(tp.Channels)-1, channel.Consume))
		}, "in reverse"},
		{"second producer", func(tp *Topology) {
			tp.Host[1].Ops = append(tp.Host[1].Ops, acquire(tp.Tiles[0].In, channel.Produce), release(tp.Tiles[0].In, channel.Produce))
		}, "2 producers"},
		{"missing release", func(tp *Topology) {
			ops := tp.Tiles[2].Ops
			tp.Tiles[2].Ops = ops[:len(ops)-1]
		}, "unbalanced"},
		{"over depth", func(tp *Topology) {
			in := tp.Tiles[0].In
			tp.Tiles[0].Ops = append([]Op{{Kind: Acquire, Chan: in, Role: channel.Consume, Count: 3}, {Kind: Release, Chan: in, Role: channel.Consume, Count: 3}}, tp.Tiles[0].Ops...)
		}, "exceeds depth"},
		{"partner lock first", func(tp *Topology) {
			swapTransferHalves(t, &tp.Tiles[1])
		}, "before its own lock"},
		{"consumes own lock", func(tp *Topology) {
			swapTransferHalves(t, &tp.Tiles[1])
			ex := &tp.Tiles[1].Exchanges[0]
			ex.OwnLock, ex.PartnerLock = ex.PartnerLock, ex.OwnLock
		}, "consumes its own lock"},
		{"produces on partner lock", func(tp *Topology) {
			ex := &tp.Tiles[1].Exchanges[0]
			ex.OwnLock, ex.PartnerLock = ex.PartnerLock, ex.OwnLock
		}, "produces on partner lock"},
		{"exchanges out of order", func(tp *Topology) {
			xs := tp.Tiles[0].Exchanges
			xs[0], xs[1] = xs[1], xs[0]
		}, "out of order"},
	}
	for _, c := range cases {
		topo := build4(t)
		c.mutate(topo)
		err := Verify(topo)
		if !errors.Is(err, ErrTopology) {
			t.Errorf("%s: expected topology error, got %v", c.name, err)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: error %q lacks %q", c.name, err, c.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	topo := build4(t)
	var buf bytes.Buffer
	topo.Describe(&buf, true)
	out := buf.String()
	for _, want := range []string{"lock0_up00_01", "xchg1_down03_01", "program scatter0", "butterfly stage=4 root=R[2]"} {
		if !strings.Contains(out, want) {
			t.Errorf("describe output lacks %q", want)
		}
	}
	if _, ok := topo.Lookup("inroots_core0_3"); !ok {
		t.Error("lookup failed")
	}
}
