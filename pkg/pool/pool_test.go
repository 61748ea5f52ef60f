package pool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fractalforge/coordplane/pkg/core"
)

func TestNew_ClampsWorkerCount(t *testing.T) {
	p := New(0, WithLogger(core.NopLogger{}))
	defer p.StopAndWait()

	if p.Size() != 1 {
		t.Errorf("Size() = %d, want 1", p.Size())
	}
}

func TestPool_CountingBarrier(t *testing.T) {
	sizes := []int{1, 2, runtime.NumCPU() + 3}

	for _, size := range sizes {
		p := New(size, WithLogger(core.NopLogger{}))

		const n = 100
		var counter int64
		for i := 0; i < n; i++ {
			err := p.Submit(TaskFunc(func(ctx context.Context) error {
				atomic.AddInt64(&counter, 1)
				return nil
			}))
			if err != nil {
				t.Fatalf("size %d: Submit() error = %v", size, err)
			}
		}

		p.Wait()

		if got := atomic.LoadInt64(&counter); got != n {
			t.Errorf("size %d: counter = %d after Wait(), want %d", size, got, n)
		}

		p.StopAndWait()
	}
}

func TestPool_WaitWithNothingQueued(t *testing.T) {
	p := New(2, WithLogger(core.NopLogger{}))
	defer p.StopAndWait()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait() blocked with an empty queue and no running tasks")
	}
}

func TestPool_StopDiscardsQueuedTasks(t *testing.T) {
	p := New(1, WithLogger(core.NopLogger{}))

	started := make(chan struct{})
	release := make(chan struct{})
	var inFlightDone int64
	err := p.Submit(TaskFunc(func(ctx context.Context) error {
		close(started)
		<-release
		atomic.AddInt64(&inFlightDone, 1)
		return nil
	}))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	// These sit in the queue behind the blocked task and must never run.
	var discarded int64
	for i := 0; i < 4; i++ {
		if err := p.Submit(TaskFunc(func(ctx context.Context) error {
			atomic.AddInt64(&discarded, 1)
			return nil
		})); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	p.StopAndWait()

	if got := atomic.LoadInt64(&inFlightDone); got != 1 {
		t.Errorf("in-flight task completions = %d, want 1", got)
	}
	if got := atomic.LoadInt64(&discarded); got != 0 {
		t.Errorf("queued tasks ran %d times after stop, want 0", got)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := New(1, WithLogger(core.NopLogger{}))
	p.StopAndWait()

	err := p.Submit(TaskFunc(func(ctx context.Context) error { return nil }))
	if !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit() after stop = %v, want ErrPoolStopped", err)
	}
}

func TestPool_StopIsIdempotent(t *testing.T) {
	p := New(2, WithLogger(core.NopLogger{}))
	p.StopAndWait()
	p.StopAndWait()
}

func TestPool_TaskErrorDoesNotKillWorker(t *testing.T) {
	p := New(1, WithLogger(core.NopLogger{}))
	defer p.StopAndWait()

	if err := p.Submit(NewNamedTask("boom", func(ctx context.Context) error {
		return errors.New("boom")
	})); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var ran int64
	if err := p.Submit(TaskFunc(func(ctx context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	p.Wait()

	if atomic.LoadInt64(&ran) != 1 {
		t.Error("task after a failing task never ran")
	}
}
