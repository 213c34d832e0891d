package topology

import (
	"fmt"
	"os"

	"tileNTT/channel"
)

// Verify statically checks a topology: channel shapes, single producer and
// consumer per channel, balanced acquire/release per program, payload sizes
// of every data op, lock pairing and the own-before-partner lock order.
func Verify(t *Topology) error {
	if err := verifyChannels(t); err != nil {
		return err
	}
	if err := verifyEndpoints(t); err != nil {
		return err
	}
	for _, p := range t.Programs() {
		if err := verifyProgram(t, p); err != nil {
			return err
		}
	}
	if err := verifyLockPairs(t); err != nil {
		return err
	}
	for i := range t.Tiles {
		if err := verifyOrder(t, &t.Tiles[i]); err != nil {
			return err
		}
	}
	dbg(os.Stderr, "[Topology] verified %d channels\n", len(t.Channels))
	return nil
}

func verifyChannels(t *Topology) error {
	seen := make(map[string]bool, len(t.Channels))
	for _, c := range t.Channels {
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate channel %q", ErrTopology, c.Name)
		}
		seen[c.Name] = true
		if c.Depth < 1 {
			return fmt.Errorf("%w: channel %q depth %d", ErrTopology, c.Name, c.Depth)
		}
		if c.Lock && (c.Depth != 1 || c.Size != 0) {
			return fmt.Errorf("%w: lock %q must have depth 1 and no payload", ErrTopology, c.Name)
		}
		if !c.Lock && c.Size < 1 {
			return fmt.Errorf("%w: data channel %q has no payload", ErrTopology, c.Name)
		}
	}
	return nil
}

// verifyEndpoints enforces exactly one producing and one consuming program per
// channel, owned by the channel's declared source and destination.
func verifyEndpoints(t *Topology) error {
	type ends struct{ prod, cons []*Program }
	use := make([]ends, len(t.Channels))
	for _, p := range t.Programs() {
		var marked [2]map[int]bool
		marked[channel.Produce], marked[channel.Consume] = map[int]bool{}, map[int]bool{}
		for _, op := range p.Ops {
			if op.Kind != Acquire {
				continue
			}
			if op.Chan < 0 || op.Chan >= len(t.Channels) {
				return fmt.Errorf("%w: %s acquires unknown channel %d", ErrTopology, p.Name, op.Chan)
			}
			if marked[op.Role][op.Chan] {
				continue
			}
			marked[op.Role][op.Chan] = true
			if op.Role == channel.Produce {
				use[op.Chan].prod = append(use[op.Chan].prod, p)
			} else {
				use[op.Chan].cons = append(use[op.Chan].cons, p)
			}
		}
	}
	for i, c := range t.Channels {
		u := use[i]
		if len(u.prod) != 1 || len(u.cons) != 1 {
			return fmt.Errorf("%w: channel %q has %d producers and %d consumers", ErrTopology, c.Name, len(u.prod), len(u.cons))
		}
		if u.prod[0].Owner != c.Src {
			return fmt.Errorf("%w: channel %q produced by %v, declared source %v", ErrTopology, c.Name, u.prod[0].Owner, c.Src)
		}
		if u.cons[0].Owner != c.Dst {
			return fmt.Errorf("%w: channel %q consumed by %v, declared destination %v", ErrTopology, c.Name, u.cons[0].Owner, c.Dst)
		}
	}
	return nil
}

// verifyProgram walks one work item of p tracking held slots per channel and
// role, and checks each data op against the slot it touches.
func verifyProgram(t *Topology, p *Program) error {
	held := make(map[int]*[2]int)
	count := func(ch int) *[2]int {
		if held[ch] == nil {
			held[ch] = new([2]int)
		}
		return held[ch]
	}
	holds := func(ch int, r channel.Role) bool {
		return ch >= 0 && ch < len(t.Channels) && count(ch)[r] > 0
	}
	cfg := t.Config
	half := cfg.Chunk() / 2

	for i, op := range p.Ops {
		fail := func(f string, a ...any) error {
			return fmt.Errorf("%w: %s op %d (%v): %s", ErrTopology, p.Name, i, op.Kind, fmt.Sprintf(f, a...))
		}
		switch op.Kind {
		case Acquire:
			c := t.Channels[op.Chan]
			h := count(op.Chan)
			if op.Count < 1 || h[op.Role]+op.Count > c.Depth {
				return fail("%q holds %d, acquiring %d exceeds depth %d", c.Name, h[op.Role], op.Count, c.Depth)
			}
			h[op.Role] += op.Count
		case Release:
			if op.Chan < 0 || op.Chan >= len(t.Channels) {
				return fail("unknown channel %d", op.Chan)
			}
			h := count(op.Chan)
			if op.Count < 1 || op.Count > h[op.Role] {
				return fail("%q releases %d with %d held", t.Channels[op.Chan].Name, op.Count, h[op.Role])
			}
			h[op.Role] -= op.Count
		case Copy:
			if !holds(op.Chan, channel.Consume) || !holds(op.Aux, channel.Produce) {
				return fail("copy between unheld slots")
			}
			src, dst := t.Channels[op.Chan], t.Channels[op.Aux]
			if src.Lock || dst.Lock || op.Len < 1 || op.SrcOff+op.Len > src.Size || op.DstOff+op.Len > dst.Size {
				return fail("copy [%d:+%d] %q(%d) -> [%d] %q(%d) out of range",
					op.SrcOff, op.Len, src.Name, src.Size, op.DstOff, dst.Name, dst.Size)
			}
		case Stages:
			if !holds(op.Chan, channel.Consume) || !holds(op.Aux, channel.Consume) {
				return fail("stages without input and root slots")
			}
			if t.Channels[op.Chan].Size != cfg.Chunk() || t.Channels[op.Aux].Size != cfg.N {
				return fail("input size %d, root size %d", t.Channels[op.Chan].Size, t.Channels[op.Aux].Size)
			}
		case Send, Recv:
			role := channel.Produce
			if op.Kind == Recv {
				role = channel.Consume
			}
			if !holds(op.Chan, role) {
				return fail("slot not held")
			}
			if c := t.Channels[op.Chan]; c.Lock || c.Size != half {
				return fail("%q carries %d elements, half buffer is %d", c.Name, c.Size, half)
			}
		case Butterfly:
			if !holds(op.Aux, channel.Consume) {
				return fail("root slot not held")
			}
			if op.Root < 1 || op.Root >= cfg.N {
				return fail("root index %d", op.Root)
			}
		case WriteBack:
			if !holds(op.Chan, channel.Produce) {
				return fail("output slot not held")
			}
			if c := t.Channels[op.Chan]; c.Size != cfg.Chunk() {
				return fail("%q carries %d elements, chunk is %d", c.Name, c.Size, cfg.Chunk())
			}
		default:
			return fail("unknown op")
		}
	}
	for ch, h := range held {
		if h[channel.Produce] != 0 || h[channel.Consume] != 0 {
			return fmt.Errorf("%w: %s leaves %q unbalanced (%d produce, %d consume held)",
				ErrTopology, p.Name, t.Channels[ch].Name, h[channel.Produce], h[channel.Consume])
		}
	}
	return nil
}

func verifyLockPairs(t *Topology) error {
	type dir struct{ src, dst Endpoint }
	locks := make(map[dir]int)
	for _, c := range t.Channels {
		if c.Lock {
			locks[dir{c.Src, c.Dst}]++
		}
	}
	for d, n := range locks {
		if locks[dir{d.dst, d.src}] != n {
			return fmt.Errorf("%w: %d locks %v->%v but %d in reverse", ErrTopology, n, d.src, d.dst, locks[dir{d.dst, d.src}])
		}
	}
	return nil
}

// verifyOrder checks that exchanges run in increasing bit order and that
// every lock acquisition takes the own lock before the partner lock.
func verifyOrder(t *Topology, tp *TileProgram) error {
	for i, ex := range tp.Exchanges {
		if i > 0 && ex.Bit <= tp.Exchanges[i-1].Bit {
			return fmt.Errorf("%w: %s exchanges out of order at bit %d", ErrTopology, tp.Name, ex.Bit)
		}
		ownHeld := false
		for _, op := range tp.Ops {
			if op.Kind != Acquire {
				continue
			}
			switch op.Chan {
			case ex.OwnLock:
				if op.Role != channel.Produce {
					return fmt.Errorf("%w: %s consumes its own lock %q", ErrTopology, tp.Name, t.Channels[op.Chan].Name)
				}
				ownHeld = true
			case ex.PartnerLock:
				if op.Role != channel.Consume {
					return fmt.Errorf("%w: %s produces on partner lock %q", ErrTopology, tp.Name, t.Channels[op.Chan].Name)
				}
				if !ownHeld {
					return fmt.Errorf("%w: %s takes partner lock %q before its own lock", ErrTopology, tp.Name, t.Channels[op.Chan].Name)
				}
				ownHeld = false
			}
		}
	}
	return nil
}
