// Package host moves work items between host memory and the grid's column
// channels, one concurrent copy stream per channel.
package host

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"tileNTT/channel"
	"tileNTT/ntt"
	"tileNTT/topology"
)

// ErrShape is returned for batches whose vectors do not match the grid or
// hold values outside [0, p).
var ErrShape = errors.New("host: batch shape mismatch")

// Buffer names the host vector a copy reads or writes.
type Buffer int

const (
	Input Buffer = iota
	Roots
	Output
)

func (b Buffer) String() string {
	return [...]string{"input", "roots", "output"}[b]
}

// Copy is one bulk transfer: Size elements at Offset of Buffer, to or from
// channel Chan.
type Copy struct {
	Column int
	Buffer Buffer
	Chan   int
	Offset int
	Size   int
}

// ToGrid reports whether the copy feeds the grid.
func (c Copy) ToGrid() bool { return c.Buffer != Output }

// Descriptor lists the copies of one invocation, per column in the order
// output, input, roots.
type Descriptor struct {
	N      int
	P      uint32
	Copies []Copy
}

// NewDescriptor derives the transfer plan for t: column c moves N/columns
// elements at offset c*N/columns and receives the whole root table.
func NewDescriptor(t *topology.Topology) *Descriptor {
	cfg := t.Config
	colLen := cfg.N / cfg.Columns
	d := &Descriptor{N: cfg.N, P: cfg.P}
	for c := 0; c < cfg.Columns; c++ {
		d.Copies = append(d.Copies,
			Copy{Column: c, Buffer: Output, Chan: t.ColumnOut[c], Offset: c * colLen, Size: colLen},
			Copy{Column: c, Buffer: Input, Chan: t.ColumnIn[c], Offset: c * colLen, Size: colLen},
			Copy{Column: c, Buffer: Roots, Chan: t.ColumnRoot[c], Size: cfg.N})
	}
	return d
}

// Validate checks that input and output copies tile [0, N) exactly, that
// every root copy carries the full table, and that sizes match the channels.
func (d *Descriptor) Validate(t *topology.Topology) error {
	cover := map[Buffer][]int{Input: make([]int, d.N), Output: make([]int, d.N)}
	for _, c := range d.Copies {
		if c.Chan < 0 || c.Chan >= len(t.Channels) {
			return fmt.Errorf("host: %v copy of column %d names channel %d", c.Buffer, c.Column, c.Chan)
		}
		if spec := t.Channels[c.Chan]; spec.Size != c.Size {
			return fmt.Errorf("host: %v copy of column %d has %d elements, channel %q carries %d",
				c.Buffer, c.Column, c.Size, spec.Name, spec.Size)
		}
		if c.Offset < 0 || c.Offset+c.Size > d.N {
			return fmt.Errorf("host: %v copy [%d:+%d] outside vector of %d", c.Buffer, c.Offset, c.Size, d.N)
		}
		if c.Buffer == Roots {
			if c.Offset != 0 || c.Size != d.N {
				return fmt.Errorf("host: roots copy of column %d is partial", c.Column)
			}
			continue
		}
		for i := c.Offset; i < c.Offset+c.Size; i++ {
			cover[c.Buffer][i]++
		}
	}
	for b, cnt := range cover {
		for i, n := range cnt {
			if n != 1 {
				return fmt.Errorf("host: %v element %d covered %d times", b, i, n)
			}
		}
	}
	return nil
}

// Batch holds the vectors of several work items. Roots holds either one table
// per item or a single table reused for every item.
type Batch struct {
	Inputs  [][]uint32
	Roots   [][]uint32
	Outputs [][]uint32
}

func (b Batch) roots(i int) []uint32 {
	if len(b.Roots) == 1 {
		return b.Roots[0]
	}
	return b.Roots[i]
}

func (d *Descriptor) check(b Batch) error {
	items := len(b.Inputs)
	if len(b.Outputs) != items {
		return fmt.Errorf("%w: %d inputs, %d outputs", ErrShape, items, len(b.Outputs))
	}
	if len(b.Roots) != 1 && len(b.Roots) != items {
		return fmt.Errorf("%w: %d root tables for %d items", ErrShape, len(b.Roots), items)
	}
	for i := 0; i < items; i++ {
		if len(b.Inputs[i]) != d.N || len(b.Outputs[i]) != d.N || len(b.roots(i)) != d.N {
			return fmt.Errorf("%w: item %d vectors must have %d elements", ErrShape, i, d.N)
		}
		if err := ntt.Check(b.Inputs[i], d.P); err != nil {
			return fmt.Errorf("%w: item %d input: %v", ErrShape, i, err)
		}
	}
	for i, r := range b.Roots {
		if err := ntt.Check(r, d.P); err != nil {
			return fmt.Errorf("%w: root table %d: %v", ErrShape, i, err)
		}
	}
	return nil
}

// Execute runs every copy of the descriptor as its own stream over all items
// of the batch and returns once all streams finish.
func (d *Descriptor) Execute(ctx context.Context, chans []*channel.Channel, b Batch) error {
	if err := d.check(b); err != nil {
		return err
	}
	dbg(os.Stderr, "[Host] execute %d items over %d copies\n", len(b.Inputs), len(d.Copies))
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range d.Copies {
		c := c
		ch := chans[c.Chan]
		g.Go(func() error {
			role := channel.Produce
			if !c.ToGrid() {
				role = channel.Consume
			}
			for i := range b.Inputs {
				slots, err := ch.Acquire(ctx, role, 1)
				if err != nil {
					return fmt.Errorf("host: %v column %d item %d: %w", c.Buffer, c.Column, i, err)
				}
				switch c.Buffer {
				case Input:
					copy(slots[0], b.Inputs[i][c.Offset:c.Offset+c.Size])
				case Roots:
					copy(slots[0], b.roots(i))
				case Output:
					copy(b.Outputs[i][c.Offset:c.Offset+c.Size], slots[0])
				}
				ch.Release(role, 1)
			}
			return nil
		})
	}
	return g.Wait()
}
