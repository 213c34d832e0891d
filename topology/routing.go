package topology

import (
	"fmt"

	"tileNTT/channel"
)

// pairKey identifies the exchange between lower core and its partner at bit.
type pairKey struct{ lower, bit int }

type pairChans struct {
	up, down         int // data lower->upper, upper->lower
	lockUp, lockDown int // lower's own lock, upper's own lock
}

func (b *builder) endpoint(core int) Endpoint {
	return Endpoint{Kind: Compute, Column: core / b.cfg.Rows, Row: core % b.cfg.Rows}
}

// route fills every tile's routing table. Cross-tile bit b pairs core T with
// T ^ (1<<b); bits below log2(rows) flip the row, the rest flip the column.
// The stage merges chunks at stride Chunk*2^b and uses root
// R[tiles/2^(b+1) + (T >> (b+1))].
func (b *builder) route() {
	cfg := b.cfg
	tiles := cfg.Tiles()
	bits := log2(tiles)
	rowBits := log2(cfg.Rows)
	local := log2(cfg.Chunk())
	half := cfg.Chunk() / 2

	pairs := make(map[pairKey]pairChans)
	for bit := 0; bit < bits; bit++ {
		for lo := 0; lo < tiles; lo++ {
			hi := lo ^ 1<<bit
			if hi < lo {
				continue
			}
			el, eh := b.endpoint(lo), b.endpoint(hi)
			up, down := "up", "down"
			if bit >= rowBits {
				up, down = "right", "left"
			}
			tag := func(x, y Endpoint) string {
				return fmt.Sprintf("%d%d_%d%d", x.Column, x.Row, y.Column, y.Row)
			}
			pairs[pairKey{lo, bit}] = pairChans{
				up:       b.data(fmt.Sprintf("xchg%d_%s%s", bit, up, tag(el, eh)), el, eh, half),
				down:     b.data(fmt.Sprintf("xchg%d_%s%s", bit, down, tag(eh, el)), eh, el, half),
				lockUp:   b.lock(fmt.Sprintf("lock%d_%s%s", bit, up, tag(el, eh)), el, eh),
				lockDown: b.lock(fmt.Sprintf("lock%d_%s%s", bit, down, tag(eh, el)), eh, el),
			}
		}
	}

	for core := range b.t.Tiles {
		tp := &b.t.Tiles[core]
		for bit := 0; bit < bits; bit++ {
			partner := core ^ 1<<bit
			lower := core < partner
			key := pairKey{min(core, partner), bit}
			pc := pairs[key]
			ex := Exchange{
				Bit:         bit,
				Stage:       local + bit,
				Partner:     b.endpoint(partner),
				PartnerCore: partner,
				Dir:         Vertical,
				Lower:       lower,
				Root:        tiles>>(bit+1) + core>>(bit+1),
			}
			if bit >= rowBits {
				ex.Dir = Horizontal
			}
			if lower {
				ex.Send, ex.Recv, ex.OwnLock, ex.PartnerLock = pc.up, pc.down, pc.lockUp, pc.lockDown
			} else {
				ex.Send, ex.Recv, ex.OwnLock, ex.PartnerLock = pc.down, pc.up, pc.lockDown, pc.lockUp
			}
			tp.Exchanges = append(tp.Exchanges, ex)
		}
	}
}

// tilePrograms emits the per-item op list of every tile from its routing
// table. In each exchange the lower tile keeps A and trades B, the upper tile
// keeps B and trades A; after the butterfly the traded half is handed back so
// both tiles again hold their own chunk.
func (b *builder) tilePrograms() {
	for core := range b.t.Tiles {
		tp := &b.t.Tiles[core]
		ops := []Op{
			acquire(tp.In, channel.Consume),
			acquire(tp.Root, channel.Consume),
			{Kind: Stages, Chan: tp.In, Aux: tp.Root},
			release(tp.In, channel.Consume),
		}
		for _, ex := range tp.Exchanges {
			give := A
			if ex.Lower {
				give = B
			}
			ops = append(ops, transfer(ex, give)...)
			ops = append(ops, Op{Kind: Butterfly, Aux: tp.Root, Root: ex.Root, Stage: ex.Stage})
			ops = append(ops, transfer(ex, give)...)
		}
		ops = append(ops,
			acquire(tp.Out, channel.Produce),
			Op{Kind: WriteBack, Chan: tp.Out},
			release(tp.Out, channel.Produce),
			release(tp.Root, channel.Consume))
		tp.Ops = ops
	}
}

// transfer sends half h to the partner and overwrites h with the partner's
// half. The own lock is taken before the partner lock.
func transfer(ex Exchange, h Half) []Op {
	return []Op{
		acquire(ex.OwnLock, channel.Produce),
		acquire(ex.Send, channel.Produce),
		{Kind: Send, Chan: ex.Send, Half: h, Stage: ex.Stage},
		release(ex.Send, channel.Produce),
		release(ex.OwnLock, channel.Produce),
		acquire(ex.PartnerLock, channel.Consume),
		acquire(ex.Recv, channel.Consume),
		{Kind: Recv, Chan: ex.Recv, Half: h, Stage: ex.Stage},
		release(ex.Recv, channel.Consume),
		release(ex.PartnerLock, channel.Consume),
	}
}
