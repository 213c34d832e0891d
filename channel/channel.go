// Package channel implements the bounded single-producer/single-consumer slot
// queues that connect tiles, links and host streams.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrProtocol marks a misuse of the acquire/release protocol. Violations are
// programming errors and are raised by panic.
var ErrProtocol = errors.New("channel: protocol violation")

// Role selects the side of a channel a caller acts on.
type Role int

const (
	Produce Role = iota
	Consume
)

func (r Role) String() string {
	switch r {
	case Produce:
		return "produce"
	case Consume:
		return "consume"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Channel is a ring of depth fixed-size slots. In ring order the slots are
// laid out as [consumer-held][filled][producer-held][free], starting at rd.
type Channel struct {
	name  string
	depth int
	size  int
	slots [][]uint32

	mu     sync.Mutex
	rd     int
	filled int
	held   [2]int
	wake   chan struct{}
}

// New returns a channel of depth slots, each carrying size elements.
func New(name string, depth, size int) *Channel {
	if depth < 1 || size < 0 {
		panic(fmt.Errorf("%w: channel %q depth=%d size=%d", ErrProtocol, name, depth, size))
	}
	c := &Channel{name: name, depth: depth, size: size, wake: make(chan struct{})}
	c.slots = make([][]uint32, depth)
	for i := range c.slots {
		c.slots[i] = make([]uint32, size)
	}
	return c
}

// NewLock returns a depth-1 channel without payload.
func NewLock(name string) *Channel { return New(name, 1, 0) }

func (c *Channel) Name() string { return c.name }
func (c *Channel) Depth() int   { return c.depth }
func (c *Channel) Size() int    { return c.size }
func (c *Channel) IsLock() bool { return c.depth == 1 && c.size == 0 }

// Held reports how many slots the given role has acquired but not released.
func (c *Channel) Held(r Role) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held[r]
}

// Filled reports how many slots wait for the consumer.
func (c *Channel) Filled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filled
}

func (c *Channel) available(r Role) int {
	if r == Produce {
		return c.depth - c.held[Consume] - c.filled - c.held[Produce]
	}
	return c.filled
}

// Acquire blocks until count slots are available to role and takes them all
// at once. Producers get free slots to fill, consumers get the oldest filled
// slots. On cancellation nothing is taken and ctx.Err() is returned.
func (c *Channel) Acquire(ctx context.Context, r Role, count int) ([][]uint32, error) {
	if count < 1 || count > c.depth {
		panic(fmt.Errorf("%w: acquire %d on %q (depth %d)", ErrProtocol, count, c.name, c.depth))
	}
	c.mu.Lock()
	for c.available(r) < count {
		wake := c.wake
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
		c.mu.Lock()
	}
	var first int
	if r == Produce {
		first = c.rd + c.held[Consume] + c.filled + c.held[Produce]
	} else {
		first = c.rd + c.held[Consume]
		c.filled -= count
	}
	c.held[r] += count
	out := make([][]uint32, count)
	for i := range out {
		out[i] = c.slots[(first+i)%c.depth]
	}
	c.mu.Unlock()
	return out, nil
}

// Release hands the oldest count slots held by role to the other side.
func (c *Channel) Release(r Role, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if count < 1 || count > c.held[r] {
		panic(fmt.Errorf("%w: release %d on %q as %v with %d held", ErrProtocol, count, c.name, r, c.held[r]))
	}
	c.held[r] -= count
	if r == Produce {
		c.filled += count
	} else {
		c.rd = (c.rd + count) % c.depth
	}
	close(c.wake)
	c.wake = make(chan struct{})
}

func (c *Channel) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%s[depth=%d size=%d filled=%d held=%d/%d]",
		c.name, c.depth, c.size, c.filled, c.held[Produce], c.held[Consume])
}
