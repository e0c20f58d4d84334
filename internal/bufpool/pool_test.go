package bufpool

import "testing"

func TestAcquireFromPool(t *testing.T) {
	p := New(64, 2)
	b1 := p.Acquire(32)
	if !b1.FromPool() {
		t.Fatal("expected slot-backed buffer")
	}
	b2 := p.Acquire(32)
	if !b2.FromPool() {
		t.Fatal("expected second slot-backed buffer")
	}
	b3 := p.Acquire(32)
	if b3.FromPool() {
		t.Fatal("expected fallback heap allocation once slots are exhausted")
	}
	b1.Release()
	b4 := p.Acquire(32)
	if !b4.FromPool() {
		t.Fatal("expected slot reuse after release")
	}
}

func TestGrowReleasesSlot(t *testing.T) {
	p := New(16, 1)
	b := p.Acquire(8)
	if !b.FromPool() {
		t.Fatal("expected slot-backed buffer")
	}
	b.Grow(1024)
	if b.FromPool() {
		t.Fatal("growth beyond capacity must fall back to heap and release the slot")
	}
	b2 := p.Acquire(8)
	if !b2.FromPool() {
		t.Fatal("slot should have been released by Grow and be reusable")
	}
}

func TestOversizeSkipsPool(t *testing.T) {
	p := New(16, 4)
	b := p.Acquire(1024)
	if b.FromPool() {
		t.Fatal("request larger than slot size must bypass the pool")
	}
	if len(b.Bytes()) != 1024 {
		t.Fatalf("expected 1024 byte buffer, got %d", len(b.Bytes()))
	}
}
