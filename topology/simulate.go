package topology

import (
	"fmt"
	"strings"

	"tileNTT/channel"
)

// SimStats summarises a schedule simulation.
type SimStats struct {
	Items  int
	Steps  int
	Rounds int
}

type simChan struct {
	depth  int
	filled int
	held   [2]int
}

func (c *simChan) available(r channel.Role) int {
	if r == channel.Produce {
		return c.depth - c.held[channel.Consume] - c.filled - c.held[channel.Produce]
	}
	return c.filled
}

// Simulate executes items work items of every program against counting
// models of the channels, round-robin, with each program running until it
// blocks. It fails if a round makes no progress before all programs finish.
// A deadlock-free schedule finishes in exactly items * sum(len(Ops)) steps.
func Simulate(t *Topology, items int) (SimStats, error) {
	progs := t.Programs()
	chans := make([]simChan, len(t.Channels))
	for i, c := range t.Channels {
		chans[i].depth = c.Depth
	}
	pc := make([]int, len(progs))
	done := make([]int, len(progs))
	budget := 0
	for _, p := range progs {
		budget += items * len(p.Ops)
	}

	st := SimStats{Items: items}
	for {
		progressed, finished := false, true
		for i, p := range progs {
			for len(p.Ops) > 0 && done[i] < items {
				op := p.Ops[pc[i]]
				if !step(chans, op) {
					finished = false
					break
				}
				st.Steps++
				progressed = true
				if pc[i]++; pc[i] == len(p.Ops) {
					pc[i] = 0
					done[i]++
				}
			}
		}
		st.Rounds++
		if finished {
			return st, nil
		}
		if !progressed || st.Steps > budget {
			return st, fmt.Errorf("%w: deadlock after %d steps: %s", ErrTopology, st.Steps, blockedOps(t, progs, pc, done, items))
		}
	}
}

// step applies op to the channel model and reports false if it would block.
func step(chans []simChan, op Op) bool {
	switch op.Kind {
	case Acquire:
		ch := &chans[op.Chan]
		if ch.available(op.Role) < op.Count {
			return false
		}
		if op.Role == channel.Consume {
			ch.filled -= op.Count
		}
		ch.held[op.Role] += op.Count
	case Release:
		ch := &chans[op.Chan]
		ch.held[op.Role] -= op.Count
		if op.Role == channel.Produce {
			ch.filled += op.Count
		}
	}
	return true
}

func blockedOps(t *Topology, progs []*Program, pc, done []int, items int) string {
	var parts []string
	for i, p := range progs {
		if len(p.Ops) == 0 || done[i] >= items {
			continue
		}
		op := p.Ops[pc[i]]
		parts = append(parts, fmt.Sprintf("%s item %d waits %v on %q", p.Name, done[i], op.Role, t.Channels[op.Chan].Name))
	}
	return strings.Join(parts, "; ")
}
