package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	c := New("fifo", 2, 1)
	ctx := context.Background()
	const items = 50

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < items; i++ {
			s, err := c.Acquire(ctx, Produce, 1)
			if err != nil {
				t.Errorf("produce %d: %v", i, err)
				return
			}
			s[0][0] = uint32(i)
			c.Release(Produce, 1)
		}
	}()

	for i := 0; i < items; i++ {
		s, err := c.Acquire(ctx, Consume, 1)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if got := s[0][0]; got != uint32(i) {
			t.Fatalf("item %d: got %d", i, got)
		}
		c.Release(Consume, 1)
	}
	wg.Wait()
}

func TestMultiSlotAcquire(t *testing.T) {
	c := New("multi", 4, 2)
	ctx := context.Background()

	p, err := c.Acquire(ctx, Produce, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range p {
		s[0], s[1] = uint32(i), uint32(10*i)
	}
	c.Release(Produce, 2)
	if c.Filled() != 2 || c.Held(Produce) != 1 {
		t.Fatalf("after partial release: %v", c)
	}
	c.Release(Produce, 1)

	q, err := c.Acquire(ctx, Consume, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range q {
		if s[0] != uint32(i) || s[1] != uint32(10*i) {
			t.Fatalf("slot %d: got %v", i, s)
		}
	}
	c.Release(Consume, 3)

	// wraps around the ring
	p, _ = c.Acquire(ctx, Produce, 4)
	for i, s := range p {
		s[0] = uint32(100 + i)
	}
	c.Release(Produce, 4)
	for i := 0; i < 4; i++ {
		s, _ := c.Acquire(ctx, Consume, 1)
		if s[0][0] != uint32(100+i) {
			t.Fatalf("wrapped slot %d: got %d", i, s[0][0])
		}
		c.Release(Consume, 1)
	}
}

func TestOverDepthBlocks(t *testing.T) {
	c := New("full", 2, 1)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		s, err := c.Acquire(ctx, Produce, 1)
		if err != nil {
			t.Fatal(err)
		}
		s[0][0] = uint32(7 + i)
	}

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := c.Acquire(tctx, Produce, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if c.Held(Produce) != 2 {
		t.Fatalf("cancelled acquire changed state: %v", c)
	}

	c.Release(Produce, 2)
	for i := 0; i < 2; i++ {
		s, _ := c.Acquire(ctx, Consume, 1)
		if s[0][0] != uint32(7+i) {
			t.Fatalf("slot %d corrupted: %d", i, s[0][0])
		}
		c.Release(Consume, 1)
	}
}

func TestConsumerBlocksUntilRelease(t *testing.T) {
	c := New("wait", 1, 1)
	got := make(chan uint32)
	go func() {
		s, err := c.Acquire(context.Background(), Consume, 1)
		if err != nil {
			close(got)
			return
		}
		got <- s[0][0]
		c.Release(Consume, 1)
	}()

	s, _ := c.Acquire(context.Background(), Produce, 1)
	s[0][0] = 42
	select {
	case <-got:
		t.Fatal("consumer ran before release")
	case <-time.After(10 * time.Millisecond):
	}
	c.Release(Produce, 1)
	if v := <-got; v != 42 {
		t.Fatalf("got %d", v)
	}
}

func expectProtocolPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrProtocol) {
			t.Fatalf("expected protocol panic, got %v", r)
		}
	}()
	f()
}

func TestProtocolViolations(t *testing.T) {
	c := New("bad", 2, 1)
	expectProtocolPanic(t, func() { _, _ = c.Acquire(context.Background(), Produce, 3) })
	expectProtocolPanic(t, func() { _, _ = c.Acquire(context.Background(), Consume, 0) })
	expectProtocolPanic(t, func() { c.Release(Consume, 1) })
	expectProtocolPanic(t, func() { New("zero", 0, 1) })
}

func TestLockRendezvous(t *testing.T) {
	l := NewLock("lock_up00_01")
	if !l.IsLock() || l.Size() != 0 {
		t.Fatalf("not a lock: %v", l)
	}
	ctx := context.Background()
	if _, err := l.Acquire(ctx, Produce, 1); err != nil {
		t.Fatal(err)
	}
	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(tctx, Consume, 1); err == nil {
		t.Fatal("consumer passed an unreleased lock")
	}
	l.Release(Produce, 1)
	if _, err := l.Acquire(ctx, Consume, 1); err != nil {
		t.Fatal(err)
	}
	l.Release(Consume, 1)
}
