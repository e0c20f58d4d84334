package queue

import (
	"runtime"
	"sync"
	"testing"
)

func TestSPSC_CapacityOneBoundary(t *testing.T) {
	q := NewSPSC[int](1)
	if !q.TryPush(1) {
		t.Fatal("first push into capacity-1 queue should succeed")
	}
	if q.TryPush(2) {
		t.Fatal("second push without an intervening pop should fail")
	}
	v, ok := q.TryPop()
	if !ok || v != 1 {
		t.Fatalf("expected (1,true), got (%d,%v)", v, ok)
	}
	if !q.TryPush(3) {
		t.Fatal("push after pop should succeed")
	}
	v, ok = q.TryPop()
	if !ok || v != 3 {
		t.Fatalf("expected (3,true), got (%d,%v)", v, ok)
	}
}

func TestSPSC_OrderPreserved(t *testing.T) {
	q := NewSPSC[int](1024)
	var wg sync.WaitGroup
	const n = 1_000_000
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.TryPush(i) {
				runtime.Gosched()
			}
		}
	}()

	var sum int64
	go func() {
		defer wg.Done()
		received := 0
		next := 0
		for received < n {
			v, ok := q.TryPop()
			if !ok {
				runtime.Gosched()
				continue
			}
			if v != next {
				t.Errorf("out of order: expected %d got %d", next, v)
			}
			next++
			sum += int64(v)
			received++
		}
	}()

	wg.Wait()
	const want = int64(n-1) * int64(n) / 2
	if sum != want {
		t.Fatalf("sum mismatch: got %d want %d", sum, want)
	}
}

func TestMPMC_CapacityOneBoundary(t *testing.T) {
	q := NewMPMC[int](1)
	if !q.TryPush(7) {
		t.Fatal("first push should succeed")
	}
	if q.TryPush(8) {
		t.Fatal("second push without pop should fail")
	}
	if v, ok := q.TryPop(); !ok || v != 7 {
		t.Fatalf("unexpected pop result: %d %v", v, ok)
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("pop from empty queue should fail")
	}
}

func TestMPMC_NoDoubleDelivery(t *testing.T) {
	q := NewMPMC[int](1024)
	producers, consumers := 8, 8
	perProducer := 20000
	total := producers * perProducer

	var wg sync.WaitGroup
	seen := make([]int32, total)
	var mu sync.Mutex
	var popped int

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.TryPush(base*perProducer + i) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	var cwg sync.WaitGroup
	cwg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer cwg.Done()
			for {
				mu.Lock()
				if popped >= total {
					mu.Unlock()
					return
				}
				mu.Unlock()
				v, ok := q.TryPop()
				if !ok {
					runtime.Gosched()
					continue
				}
				if seen[v] != 0 {
					t.Errorf("value %d popped twice", v)
				}
				seen[v] = 1
				mu.Lock()
				popped++
				done := popped >= total
				mu.Unlock()
				if done {
					return
				}
			}
		}()
	}

	wg.Wait()
	cwg.Wait()
	for i, s := range seen {
		if s == 0 {
			t.Fatalf("value %d never popped", i)
		}
	}
}
