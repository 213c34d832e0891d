package topology

import (
	"fmt"
	"io"
)

// FormatOp renders op with channel names resolved.
func (t *Topology) FormatOp(op Op) string {
	name := func(i int) string {
		if i < 0 || i >= len(t.Channels) {
			return fmt.Sprintf("#%d", i)
		}
		return t.Channels[i].Name
	}
	switch op.Kind {
	case Acquire, Release:
		return fmt.Sprintf("%v %s %v x%d", op.Kind, name(op.Chan), op.Role, op.Count)
	case Copy:
		return fmt.Sprintf("copy %s[%d:%d] -> %s[%d:]", name(op.Chan), op.SrcOff, op.SrcOff+op.Len, name(op.Aux), op.DstOff)
	case Stages:
		return fmt.Sprintf("stages %s roots=%s", name(op.Chan), name(op.Aux))
	case Send:
		return fmt.Sprintf("send %v -> %s", op.Half, name(op.Chan))
	case Recv:
		return fmt.Sprintf("recv %s -> %v", name(op.Chan), op.Half)
	case Butterfly:
		return fmt.Sprintf("butterfly stage=%d root=R[%d]", op.Stage, op.Root)
	case WriteBack:
		return fmt.Sprintf("writeback A|B -> %s", name(op.Chan))
	}
	return op.Kind.String()
}

// Describe writes the channel table and each tile's routing table to w.
// With ops set it also lists every program's op sequence.
func (t *Topology) Describe(w io.Writer, ops bool) {
	fmt.Fprintf(w, "grid %v: %d tiles, chunk %d\n", t.Config, t.Config.Tiles(), t.Config.Chunk())
	fmt.Fprintf(w, "channels (%d):\n", len(t.Channels))
	for i, c := range t.Channels {
		kind := "data"
		if c.Lock {
			kind = "lock"
		}
		fmt.Fprintf(w, "  %3d %-28s %-4s %v -> %v size=%d depth=%d\n", i, c.Name, kind, c.Src, c.Dst, c.Size, c.Depth)
	}
	for _, tp := range t.Tiles {
		fmt.Fprintf(w, "%s core=%d in=%s roots=%s out=%s\n", tp.Name, tp.Core,
			t.Channels[tp.In].Name, t.Channels[tp.Root].Name, t.Channels[tp.Out].Name)
		for _, ex := range tp.Exchanges {
			role := "upper"
			if ex.Lower {
				role = "lower"
			}
			fmt.Fprintf(w, "  stage %d bit %d: %v partner %v (%s) root=R[%d] send=%s recv=%s\n",
				ex.Stage, ex.Bit, ex.Dir, ex.Partner, role, ex.Root,
				t.Channels[ex.Send].Name, t.Channels[ex.Recv].Name)
		}
	}
	if !ops {
		return
	}
	for _, p := range t.Programs() {
		fmt.Fprintf(w, "program %s (%d ops)\n", p.Name, len(p.Ops))
		for i, op := range p.Ops {
			fmt.Fprintf(w, "  %3d %s\n", i, t.FormatOp(op))
		}
	}
}
