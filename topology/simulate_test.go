package topology

import (
	"errors"
	"strings"
	"testing"

	"tileNTT/channel"
)

func totalOps(t *Topology) int {
	n := 0
	for _, p := range t.Programs() {
		n += len(p.Ops)
	}
	return n
}

func TestSimulateAllShapes(t *testing.T) {
	for _, s := range shapes {
		for _, depth := range []int{1, 2, 3} {
			topo, err := Build(Config{Columns: s.cols, Rows: s.rows, N: 128, P: 998244353, Depth: depth})
			if err != nil {
				t.Fatalf("%dx%d depth %d: %v", s.cols, s.rows, depth, err)
			}
			st, err := Simulate(topo, 5)
			if err != nil {
				t.Fatalf("%dx%d depth %d: %v", s.cols, s.rows, depth, err)
			}
			if st.Steps != 5*totalOps(topo) {
				t.Fatalf("%dx%d: %d steps, want %d", s.cols, s.rows, st.Steps, 5*totalOps(topo))
			}
		}
	}
}

func TestFourTileCycleBounded(t *testing.T) {
	topo, err := Build(Config{Columns: 2, Rows: 2, N: 256, P: 3329})
	if err != nil {
		t.Fatal(err)
	}
	st, err := Simulate(topo, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Steps != totalOps(topo) {
		t.Fatalf("%d steps for one item, want %d", st.Steps, totalOps(topo))
	}
	// each round either finishes a program's item or unblocks one rendezvous
	if st.Rounds > totalOps(topo) {
		t.Fatalf("%d rounds", st.Rounds)
	}
}

func TestSimulateDetectsDeadlock(t *testing.T) {
	x := Endpoint{Kind: Compute, Column: 0, Row: 0}
	y := Endpoint{Kind: Compute, Column: 0, Row: 1}
	topo := &Topology{
		Channels: []ChannelSpec{
			{Name: "lx", Src: x, Dst: y, Depth: 1, Lock: true},
			{Name: "ly", Src: y, Dst: x, Depth: 1, Lock: true},
		},
		// both wait on the partner lock before releasing their own
		Links: []Program{
			{Name: "x", Owner: x, Ops: []Op{
				acquire(1, channel.Consume), acquire(0, channel.Produce),
				release(0, channel.Produce), release(1, channel.Consume),
			}},
			{Name: "y", Owner: y, Ops: []Op{
				acquire(0, channel.Consume), acquire(1, channel.Produce),
				release(1, channel.Produce), release(0, channel.Consume),
			}},
		},
	}
	_, err := Simulate(topo, 1)
	if !errors.Is(err, ErrTopology) || !strings.Contains(err.Error(), "deadlock") {
		t.Fatalf("expected deadlock, got %v", err)
	}
	if !strings.Contains(err.Error(), `x item 0 waits consume on "ly"`) {
		t.Fatalf("blocked ops not reported: %v", err)
	}
}
