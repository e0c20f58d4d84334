// File: coro/coro_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package coro

import (
	"errors"
	"testing"
	"time"
)

type fakeWaker struct{ woken chan struct{} }

func newFakeWaker() *fakeWaker { return &fakeWaker{woken: make(chan struct{}, 64)} }

func (f *fakeWaker) Wake() {
	select {
	case f.woken <- struct{}{}:
	default:
	}
}

func TestFutureResolve(t *testing.T) {
	f, p := NewFuture[int]()
	if f.Available() {
		t.Fatal("expected pending future to be unavailable")
	}
	p.Resolve(42)
	if !f.Available() {
		t.Fatal("expected future to be available after Resolve")
	}
	v, err := f.Get()
	if err != nil || v != 42 {
		t.Fatalf("Get() = (%d, %v), want (42, nil)", v, err)
	}
}

func TestFutureReject(t *testing.T) {
	f, p := NewFuture[string]()
	wantErr := errors.New("boom")
	p.Reject(wantErr)
	if !f.Failed() {
		t.Fatal("expected failed state")
	}
	_, err := f.Get()
	if err != wantErr {
		t.Fatalf("Get() err = %v, want %v", err, wantErr)
	}
}

func TestPromiseSettlesOnce(t *testing.T) {
	f, p := NewFuture[int]()
	p.Resolve(1)
	p.Resolve(2) // no-op, already settled
	v, _ := f.Get()
	if v != 1 {
		t.Fatalf("expected first Resolve to win, got %d", v)
	}
}

func TestReadyAndFailedConstructors(t *testing.T) {
	rf := Ready(7)
	if !rf.Available() {
		t.Fatal("Ready future should be immediately available")
	}
	ff := Failed[int](errors.New("x"))
	if !ff.Failed() {
		t.Fatal("Failed future should report failed")
	}
}

func TestResumerQueueAndProcess(t *testing.T) {
	w := newFakeWaker()
	r := NewResumer(w)

	resumed := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		r.Queue(HandleFunc(func() { resumed <- i }))
	}

	select {
	case <-w.woken:
	case <-time.After(time.Second):
		t.Fatal("expected wake to have been called")
	}

	n := r.ProcessQueue()
	if n != 3 {
		t.Fatalf("ProcessQueue drained %d, want 3", n)
	}
	if len(resumed) != 3 {
		t.Fatalf("expected 3 resumptions, got %d", len(resumed))
	}
}

func TestResumerPostDrainCallback(t *testing.T) {
	r := NewResumer(nil)
	fired := false
	r.SetPostWakeCallback(func() { fired = true })
	r.Queue(HandleFunc(func() {}))
	r.ProcessQueue()
	if !fired {
		t.Fatal("expected post-drain callback to fire")
	}
}

func TestGlobalResumer(t *testing.T) {
	r := NewResumer(nil)
	SetGlobal(r)
	if GetGlobal() != r {
		t.Fatal("expected GetGlobal to return the installed Resumer")
	}
}

func TestTaskSuspendResume(t *testing.T) {
	r := NewResumer(nil)
	task := NewTask[int](r, func(t *Task[int]) (int, error) {
		t.Suspend()
		return 99, nil
	})

	// Drain until the suspended handle shows up and resumes the task.
	deadline := time.After(2 * time.Second)
	for !task.Done() {
		r.ProcessQueue()
		select {
		case <-deadline:
			t.Fatal("task never completed")
		case <-time.After(time.Millisecond):
		}
	}

	v, err := task.Wait()
	if err != nil || v != 99 {
		t.Fatalf("Wait() = (%d, %v), want (99, nil)", v, err)
	}
}
