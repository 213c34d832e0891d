// Package topology builds the static channel graph of a tiled NTT grid and
// the per-program op lists that tiles, column links and host streams execute.
// Every topology is verified and its schedule simulated before it is returned.
package topology

import (
	"fmt"
	"os"

	"tileNTT/channel"
)

// Kind distinguishes the owners of channel endpoints.
type Kind int

const (
	Host Kind = iota
	Mem
	Compute
)

// Endpoint names the program at one end of a channel. Row is unused for
// Host and Mem endpoints.
type Endpoint struct {
	Kind   Kind
	Column int
	Row    int
}

func (e Endpoint) String() string {
	switch e.Kind {
	case Host:
		return fmt.Sprintf("host(%d)", e.Column)
	case Mem:
		return fmt.Sprintf("mem(%d)", e.Column)
	}
	return fmt.Sprintf("tile(%d,%d)", e.Column, e.Row)
}

// ChannelSpec describes one channel of the grid.
type ChannelSpec struct {
	Name  string
	Src   Endpoint
	Dst   Endpoint
	Size  int // elements per slot, 0 for locks
	Depth int
	Lock  bool
}

// New allocates the runtime channel for s.
func (s ChannelSpec) New() *channel.Channel {
	if s.Lock {
		return channel.NewLock(s.Name)
	}
	return channel.New(s.Name, s.Depth, s.Size)
}

// OpKind enumerates the steps of a program.
type OpKind int

const (
	Acquire OpKind = iota
	Release
	Copy      // held slot of Chan -> held slot of Aux (links)
	Stages    // held slot of Chan -> halves A, B using the root slot of Aux
	Send      // half -> held slot of Chan
	Recv      // held slot of Chan -> half
	Butterfly // cross-tile stage on A, B with root Root from the slot of Aux
	WriteBack // A || B -> held slot of Chan
)

var opNames = [...]string{"acquire", "release", "copy", "stages", "send", "recv", "butterfly", "writeback"}

func (k OpKind) String() string {
	if int(k) < len(opNames) {
		return opNames[k]
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Half selects one of a tile's two owned buffers.
type Half int

const (
	A Half = iota
	B
)

func (h Half) String() string { return string("AB"[h]) }

// Op is one step of a program. Fields beyond Kind and Chan are read only by
// the kinds that need them.
type Op struct {
	Kind   OpKind
	Chan   int
	Role   channel.Role
	Count  int
	Aux    int
	SrcOff int
	DstOff int
	Len    int
	Half   Half
	Root   int
	Stage  int
}

// ProgramKind tells the runtime which executor owns a program.
type ProgramKind int

const (
	TileProgramKind ProgramKind = iota
	ScatterLink
	BroadcastLink
	GatherLink
	HostStream
)

// Program is the op list one endpoint runs for every work item.
type Program struct {
	Name  string
	Kind  ProgramKind
	Owner Endpoint
	Ops   []Op
}

// Direction of an exchange partner on the grid.
type Direction int

const (
	Vertical Direction = iota
	Horizontal
)

func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Exchange is one entry of a tile's routing table: the cross-tile stage
// that flips bit Bit of the core index.
type Exchange struct {
	Bit         int
	Stage       int
	Partner     Endpoint
	PartnerCore int
	Dir         Direction
	Lower       bool
	Root        int
	Send        int
	Recv        int
	OwnLock     int
	PartnerLock int
}

// TileProgram is a compute tile's program together with its routing table.
type TileProgram struct {
	Program
	Core      int
	In        int
	Root      int
	Out       int
	Exchanges []Exchange
}

// Topology is the immutable result of Build.
type Topology struct {
	Config     Config
	Channels   []ChannelSpec
	Tiles      []TileProgram // indexed by core
	Links      []Program
	Host       []Program
	ColumnIn   []int
	ColumnRoot []int
	ColumnOut  []int
}

// Programs returns every program of the grid, tiles first.
func (t *Topology) Programs() []*Program {
	out := make([]*Program, 0, len(t.Tiles)+len(t.Links)+len(t.Host))
	for i := range t.Tiles {
		out = append(out, &t.Tiles[i].Program)
	}
	for i := range t.Links {
		out = append(out, &t.Links[i])
	}
	for i := range t.Host {
		out = append(out, &t.Host[i])
	}
	return out
}

// Lookup returns the index of the channel with the given name.
func (t *Topology) Lookup(name string) (int, bool) {
	for i, c := range t.Channels {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// NewChannels allocates one runtime channel per spec, in index order.
func (t *Topology) NewChannels() []*channel.Channel {
	out := make([]*channel.Channel, len(t.Channels))
	for i, s := range t.Channels {
		out[i] = s.New()
	}
	return out
}

// Build creates, verifies and simulates the grid described by cfg.
func Build(cfg Config) (*Topology, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &builder{cfg: cfg, t: &Topology{Config: cfg}}
	b.columns()
	b.route()
	b.tilePrograms()
	dbg(os.Stderr, "[Topology] built %v: %d channels %d programs\n", cfg, len(b.t.Channels), len(b.t.Programs()))

	if err := Verify(b.t); err != nil {
		return nil, err
	}
	st, err := Simulate(b.t, cfg.Depth+1)
	if err != nil {
		return nil, err
	}
	dbg(os.Stderr, "[Topology] schedule ok: %d steps over %d items\n", st.Steps, st.Items)
	return b.t, nil
}

type builder struct {
	cfg Config
	t   *Topology
}

func (b *builder) add(c ChannelSpec) int {
	b.t.Channels = append(b.t.Channels, c)
	return len(b.t.Channels) - 1
}

func (b *builder) data(name string, src, dst Endpoint, size int) int {
	return b.add(ChannelSpec{Name: name, Src: src, Dst: dst, Size: size, Depth: b.cfg.Depth})
}

func (b *builder) lock(name string, src, dst Endpoint) int {
	return b.add(ChannelSpec{Name: name, Src: src, Dst: dst, Depth: 1, Lock: true})
}

func acquire(ch int, r channel.Role) Op { return Op{Kind: Acquire, Chan: ch, Role: r, Count: 1} }
func release(ch int, r channel.Role) Op { return Op{Kind: Release, Chan: ch, Role: r, Count: 1} }

// columns creates the per-column host and memory channels, the per-tile
// input, root and output channels, and the link and host programs.
func (b *builder) columns() {
	cfg := b.cfg
	n := cfg.Chunk()
	colLen := cfg.N / cfg.Columns
	b.t.Tiles = make([]TileProgram, cfg.Tiles())

	for c := 0; c < cfg.Columns; c++ {
		host := Endpoint{Kind: Host, Column: c}
		mem := Endpoint{Kind: Mem, Column: c}
		in := b.data(fmt.Sprintf("in%d", c), host, mem, colLen)
		roots := b.data(fmt.Sprintf("inroots%d", c), host, mem, cfg.N)
		out := b.data(fmt.Sprintf("out%d", c), mem, host, colLen)
		b.t.ColumnIn = append(b.t.ColumnIn, in)
		b.t.ColumnRoot = append(b.t.ColumnRoot, roots)
		b.t.ColumnOut = append(b.t.ColumnOut, out)

		scatter := Program{Name: fmt.Sprintf("scatter%d", c), Kind: ScatterLink, Owner: mem}
		bcast := Program{Name: fmt.Sprintf("broadcast%d", c), Kind: BroadcastLink, Owner: mem}
		gather := Program{Name: fmt.Sprintf("gather%d", c), Kind: GatherLink, Owner: mem}
		scatter.Ops = append(scatter.Ops, acquire(in, channel.Consume))
		bcast.Ops = append(bcast.Ops, acquire(roots, channel.Consume))
		gather.Ops = append(gather.Ops, acquire(out, channel.Produce))

		for r := 0; r < cfg.Rows; r++ {
			tile := Endpoint{Kind: Compute, Column: c, Row: r}
			core := c*cfg.Rows + r
			tin := b.data(fmt.Sprintf("in%d_%d", c, r), mem, tile, n)
			troot := b.data(fmt.Sprintf("inroots_core%d_%d", c, r), mem, tile, cfg.N)
			tout := b.data(fmt.Sprintf("out%d_%d", c, r), tile, mem, n)

			scatter.Ops = append(scatter.Ops,
				acquire(tin, channel.Produce),
				Op{Kind: Copy, Chan: in, Aux: tin, SrcOff: r * n, Len: n},
				release(tin, channel.Produce))
			bcast.Ops = append(bcast.Ops,
				acquire(troot, channel.Produce),
				Op{Kind: Copy, Chan: roots, Aux: troot, Len: cfg.N},
				release(troot, channel.Produce))
			gather.Ops = append(gather.Ops,
				acquire(tout, channel.Consume),
				Op{Kind: Copy, Chan: tout, Aux: out, DstOff: r * n, Len: n},
				release(tout, channel.Consume))

			b.t.Tiles[core] = TileProgram{
				Program: Program{Name: tile.String(), Kind: TileProgramKind, Owner: tile},
				Core:    core,
				In:      tin,
				Root:    troot,
				Out:     tout,
			}
		}
		scatter.Ops = append(scatter.Ops, release(in, channel.Consume))
		bcast.Ops = append(bcast.Ops, release(roots, channel.Consume))
		gather.Ops = append(gather.Ops, release(out, channel.Produce))
		b.t.Links = append(b.t.Links, scatter, bcast, gather)

		b.t.Host = append(b.t.Host,
			hostStream(fmt.Sprintf("host_out%d", c), host, out, channel.Consume),
			hostStream(fmt.Sprintf("host_in%d", c), host, in, channel.Produce),
			hostStream(fmt.Sprintf("host_roots%d", c), host, roots, channel.Produce))
	}
}

func hostStream(name string, owner Endpoint, ch int, r channel.Role) Program {
	return Program{Name: name, Kind: HostStream, Owner: owner, Ops: []Op{acquire(ch, r), release(ch, r)}}
}
