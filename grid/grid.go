// Package grid runs a built topology: one goroutine per tile, per column link
// and, during each invocation, per host copy stream.
package grid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"tileNTT/channel"
	"tileNTT/host"
	"tileNTT/kernel"
	"tileNTT/prof"
	"tileNTT/topology"
)

var (
	ErrStarted    = errors.New("grid: already started")
	ErrNotStarted = errors.New("grid: not started")
)

// Options tune a grid. The zero value runs the Barrett kernel without
// profiling until Close.
type Options struct {
	Kernel     kernel.Kernel
	Iterations int // work items each program runs before exiting, 0 for unbounded
	Recorder   *prof.Recorder
}

// Grid owns the channels and programs of one topology.
type Grid struct {
	topo  *topology.Topology
	desc  *host.Descriptor
	kern  kernel.Kernel
	chans []*channel.Channel
	opts  Options

	mu     sync.Mutex // serialises host invocations
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	rootsOnce sync.Once
	fwd, inv  []uint32
	rootsErr  error
}

// New builds and verifies the topology for cfg and allocates its channels.
func New(cfg topology.Config, opts Options) (*Grid, error) {
	topo, err := topology.Build(cfg)
	if err != nil {
		return nil, err
	}
	desc := host.NewDescriptor(topo)
	if err := desc.Validate(topo); err != nil {
		return nil, fmt.Errorf("%w: %v", topology.ErrTopology, err)
	}
	k := opts.Kernel
	if k == nil {
		m, err := kernel.NewModulus(topo.Config.P)
		if err != nil {
			return nil, err
		}
		k = kernel.NewBarrett(m)
	}
	return &Grid{topo: topo, desc: desc, kern: k, chans: topo.NewChannels(), opts: opts}, nil
}

func (g *Grid) Topology() *topology.Topology { return g.topo }
func (g *Grid) Config() topology.Config      { return g.topo.Config }
func (g *Grid) Kernel() kernel.Kernel        { return g.kern }

// Start launches every tile and link program. They run until ctx is
// cancelled, Close is called or the iteration bound is reached.
func (g *Grid) Start(ctx context.Context) error {
	if g.group != nil {
		return ErrStarted
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.group, g.ctx = errgroup.WithContext(ctx)
	iters := g.opts.Iterations
	for i := range g.topo.Tiles {
		m := newTile(&g.topo.Tiles[i], g.topo.Config, g.chans, g.kern, g.opts.Recorder)
		g.group.Go(func() error { return m.run(g.ctx, iters) })
	}
	for i := range g.topo.Links {
		m := newLink(&g.topo.Links[i], g.chans, g.opts.Recorder)
		g.group.Go(func() error { return m.run(g.ctx, iters) })
	}
	dbg(os.Stderr, "[Grid] started %v with kernel %s\n", g.topo.Config, g.kern.Name())
	return nil
}

// Wait blocks until every program exits and returns the first failure.
func (g *Grid) Wait() error {
	if g.group == nil {
		return ErrNotStarted
	}
	return g.group.Wait()
}

// Close stops all programs and waits for them.
func (g *Grid) Close() error {
	if g.group == nil {
		return ErrNotStarted
	}
	g.cancel()
	err := g.group.Wait()
	dbg(os.Stderr, "[Grid] closed: %v\n", err)
	return err
}

// Run streams a batch through the grid. Host copies stop when either ctx or
// the grid is cancelled.
func (g *Grid) Run(ctx context.Context, b host.Batch) error {
	if g.group == nil {
		return ErrNotStarted
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(g.ctx, cancel)
	defer stop()
	return g.desc.Execute(ctx, g.chans, b)
}

// TransformBatch applies the butterfly network to every input with one
// shared root table.
func (g *Grid) TransformBatch(ctx context.Context, inputs [][]uint32, roots []uint32) ([][]uint32, error) {
	out := make([][]uint32, len(inputs))
	for i := range out {
		out[i] = make([]uint32, g.topo.Config.N)
	}
	if err := g.Run(ctx, host.Batch{Inputs: inputs, Roots: [][]uint32{roots}, Outputs: out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Transform applies the butterfly network to a single vector.
func (g *Grid) Transform(ctx context.Context, x, roots []uint32) ([]uint32, error) {
	out, err := g.TransformBatch(ctx, [][]uint32{x}, roots)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
