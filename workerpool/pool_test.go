// File: workerpool/pool_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"testing"
	"time"
)

func TestPendingTableRegisterResolve(t *testing.T) {
	pt := newPendingTable()
	fut := pt.register(1)
	if pt.len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", pt.len())
	}
	if !pt.resolve(&Response{ID: 1, Success: true}) {
		t.Fatal("expected resolve to find the pending entry")
	}
	resp, err := fut.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success response")
	}
	if pt.len() != 0 {
		t.Fatalf("expected 0 pending entries after resolve, got %d", pt.len())
	}
}

func TestPendingTableResolveUnknownIDIsNoop(t *testing.T) {
	pt := newPendingTable()
	if pt.resolve(&Response{ID: 999}) {
		t.Fatal("expected resolve of unknown id to report false")
	}
}

func TestPendingTableDrainRejectsAll(t *testing.T) {
	pt := newPendingTable()
	f1 := pt.register(1)
	f2 := pt.register(2)
	n := pt.drainWithError(errShutdownForTest)
	if n != 2 {
		t.Fatalf("expected 2 drained, got %d", n)
	}
	if _, err := f1.Get(); err != errShutdownForTest {
		t.Fatalf("expected drain error on f1, got %v", err)
	}
	if _, err := f2.Get(); err != errShutdownForTest {
		t.Fatalf("expected drain error on f2, got %v", err)
	}
}

var errShutdownForTest = &testErr{"shutdown"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func TestShmRingPairReadWrite(t *testing.T) {
	a, b := NewShmRingPair(4)
	if _, err := a.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("unexpected read: %q", buf[:n])
	}
}

func TestShmRingRejectsOversizePayload(t *testing.T) {
	a, _ := NewShmRingPair(2)
	big := make([]byte, maxShmSlotPayload+1)
	if _, err := a.Write(big); err == nil {
		t.Fatal("expected error for oversize payload")
	}
}

func TestPoolDispatchAndRespond(t *testing.T) {
	serverSide, clientSide := NewShmRingPair(8)
	pool := NewPool([]Transport{clientSide})

	// Fake worker: read the request, echo a success response.
	go func() {
		req, err := ReadRequest(serverSide)
		if err != nil {
			return
		}
		serverSide.Write(EncodeResponse(&Response{ID: req.ID, Success: true, Body: []byte("ok")}))
	}()

	fut, err := pool.Call(&Request{Module: "m", Function: "f", Args: map[string]any{"x": int64(1)}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	select {
	case <-fut.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker response")
	}
	resp, err := fut.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || string(resp.Body) != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPoolShutdownRejectsPending(t *testing.T) {
	_, clientSide := NewShmRingPair(8)
	pool := NewPool([]Transport{clientSide})

	fut, err := pool.Call(&Request{Module: "m", Function: "f"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	rejected := pool.Shutdown()
	if rejected != 1 {
		t.Fatalf("expected 1 rejected call, got %d", rejected)
	}
	if _, err := fut.Get(); err == nil {
		t.Fatal("expected shutdown error on pending future")
	}
	if _, err := pool.Call(&Request{Module: "m", Function: "f"}); err == nil {
		t.Fatal("expected Call to fail after shutdown")
	}
}
