package grid

import (
	"context"
	"fmt"
	"os"
	"time"

	"tileNTT/channel"
	"tileNTT/kernel"
	"tileNTT/prof"
	"tileNTT/topology"
)

// machine interprets one program. Tiles own two half buffers and a kernel;
// links only copy between held slots.
type machine struct {
	name  string
	ops   []topology.Op
	chans []*channel.Channel
	held  map[int][][]uint32
	half  [2][]uint32
	kern  kernel.Kernel
	geo   kernel.Geometry
	rec   *prof.Recorder
}

func newLink(p *topology.Program, chans []*channel.Channel, rec *prof.Recorder) *machine {
	return &machine{name: p.Name, ops: p.Ops, chans: chans, held: make(map[int][][]uint32), rec: rec}
}

func newTile(tp *topology.TileProgram, cfg topology.Config, chans []*channel.Channel, k kernel.Kernel, rec *prof.Recorder) *machine {
	m := newLink(&tp.Program, chans, rec)
	n := cfg.Chunk()
	m.half = [2][]uint32{make([]uint32, n/2), make([]uint32, n/2)}
	m.kern = k
	m.geo = kernel.Geometry{N: cfg.N, Chunk: n, Core: tp.Core}
	return m
}

// run executes work items until iterations are done (0 means unbounded) or
// ctx is cancelled. Cancellation is a clean shutdown and returns nil.
func (m *machine) run(ctx context.Context, iterations int) error {
	for item := 0; iterations == 0 || item < iterations; item++ {
		if ctx.Err() != nil {
			return nil
		}
		for _, op := range m.ops {
			if err := m.exec(ctx, op); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s item %d: %w", m.name, item, err)
			}
		}
	}
	dbg(os.Stderr, "[Grid] %s finished %d items\n", m.name, iterations)
	return nil
}

func (m *machine) track(start time.Time, what string) {
	if m.rec != nil {
		m.rec.Track(start, m.name+"/"+what)
	}
}

func (m *machine) slot(ch int) []uint32 { return m.held[ch][0] }

func (m *machine) exec(ctx context.Context, op topology.Op) error {
	var start time.Time
	if m.rec != nil {
		start = time.Now()
	}
	switch op.Kind {
	case topology.Acquire:
		slots, err := m.chans[op.Chan].Acquire(ctx, op.Role, op.Count)
		if err != nil {
			return err
		}
		m.held[op.Chan] = append(m.held[op.Chan], slots...)
		m.track(start, "wait")
	case topology.Release:
		m.chans[op.Chan].Release(op.Role, op.Count)
		m.held[op.Chan] = m.held[op.Chan][op.Count:]
	case topology.Copy:
		copy(m.slot(op.Aux)[op.DstOff:op.DstOff+op.Len], m.slot(op.Chan)[op.SrcOff:op.SrcOff+op.Len])
	case topology.Stages:
		m.kern.Stages(m.slot(op.Chan), m.slot(op.Aux), m.half[0], m.half[1], m.geo)
		m.track(start, "stages")
	case topology.Send:
		copy(m.slot(op.Chan), m.half[op.Half])
	case topology.Recv:
		copy(m.half[op.Half], m.slot(op.Chan))
	case topology.Butterfly:
		m.kern.Butterfly(m.half[0], m.half[1], m.slot(op.Aux)[op.Root])
		m.track(start, "butterfly")
	case topology.WriteBack:
		m.kern.WriteBack(m.slot(op.Chan), m.half[0], m.half[1])
		m.track(start, "writeback")
	default:
		return fmt.Errorf("grid: unknown op %v", op.Kind)
	}
	return nil
}
