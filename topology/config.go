package topology

import (
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
)

var (
	// ErrConfig marks grid parameters that cannot be built.
	ErrConfig = errors.New("topology: invalid configuration")
	// ErrTopology marks a channel graph or schedule that fails verification.
	ErrTopology = errors.New("topology: invalid topology")
)

const (
	MaxColumns   = 4
	MaxRows      = 4
	DefaultDepth = 2
)

// Config fixes the grid shape and transform parameters at build time.
type Config struct {
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
	N       int    `json:"n"`
	P       uint32 `json:"p"`
	Depth   int    `json:"depth,omitempty"`
}

// WithDefaults fills unset optional fields.
func (c Config) WithDefaults() Config {
	if c.Depth == 0 {
		c.Depth = DefaultDepth
	}
	return c
}

func (c Config) Tiles() int { return c.Columns * c.Rows }

// Chunk is the number of elements each tile owns.
func (c Config) Chunk() int { return c.N / c.Tiles() }

func isPow2(x int) bool { return x > 0 && x&(x-1) == 0 }

func log2(x int) int {
	l := 0
	for x > 1 {
		x >>= 1
		l++
	}
	return l
}

// Validate checks the configuration before any channel is created.
func (c Config) Validate() error {
	if !isPow2(c.Columns) || c.Columns > MaxColumns {
		return fmt.Errorf("%w: columns=%d must be a power of two <= %d", ErrConfig, c.Columns, MaxColumns)
	}
	if !isPow2(c.Rows) || c.Rows > MaxRows {
		return fmt.Errorf("%w: rows=%d must be a power of two <= %d", ErrConfig, c.Rows, MaxRows)
	}
	if !isPow2(c.N) {
		return fmt.Errorf("%w: N=%d is not a power of two", ErrConfig, c.N)
	}
	if c.N/c.Tiles() < 2 {
		return fmt.Errorf("%w: N=%d too small for %d tiles", ErrConfig, c.N, c.Tiles())
	}
	if c.P < 3 || c.P >= 1<<30 || !ring.IsPrime(uint64(c.P)) {
		return fmt.Errorf("%w: p=%d must be an odd prime below 2^30", ErrConfig, c.P)
	}
	if c.Depth < 1 {
		return fmt.Errorf("%w: depth=%d", ErrConfig, c.Depth)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%dx%d N=%d p=%d depth=%d", c.Columns, c.Rows, c.N, c.P, c.Depth)
}
