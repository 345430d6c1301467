package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/lidx/internal/shared"
)

// startBlocked runs n callers of key against op and returns once the first call is running.
// Followers are given a short window to join before the caller releases op.
func startBlocked(t *testing.T, c *Coordinator, key string, n int, op Operation, started <-chan struct{}) ([]any, []error, func()) {
	t.Helper()

	vals := make([]any, n)
	errs := make([]error, n)
	var wg sync.WaitGroup

	run := func(i int) {
		defer wg.Done()
		vals[i], errs[i] = c.Run(context.Background(), key, op)
	}

	wg.Add(1)
	go run(0)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("operation never started")
	}

	for i := 1; i < n; i++ {
		wg.Add(1)
		go run(i)
	}
	time.Sleep(50 * time.Millisecond)

	return vals, errs, wg.Wait
}

func TestCoordinator(t *testing.T) {
	t.Run("Concurrent Callers Share One Call", func(t *testing.T) {
		c := NewCoordinator(nil)
		var invoked atomic.Int32
		started := make(chan struct{}, 1)
		release := make(chan struct{})
		result := &struct{ Status string }{Status: "ok"}

		op := func(ctx context.Context) (any, error) {
			invoked.Add(1)
			started <- struct{}{}
			<-release
			return result, nil
		}

		vals, errs, wait := startBlocked(t, c, "dashboard", 8, op, started)
		close(release)
		wait()

		if got := invoked.Load(); got != 1 {
			t.Fatalf("expected operation to run once, ran %d times", got)
		}
		for i := range vals {
			if errs[i] != nil {
				t.Errorf("caller %d: unexpected error %v", i, errs[i])
			}
			if vals[i] != result {
				t.Errorf("caller %d: expected shared result pointer", i)
			}
		}
		if c.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", c.Calls())
		}
		if c.Shared() != 8 {
			t.Errorf("expected 8 shared deliveries, got %d", c.Shared())
		}
	})

	t.Run("Errors Reach Every Waiter", func(t *testing.T) {
		c := NewCoordinator(nil)
		boom := errors.New("network down")
		started := make(chan struct{}, 1)
		release := make(chan struct{})

		op := func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-release
			return nil, boom
		}

		_, errs, wait := startBlocked(t, c, "status", 4, op, started)
		close(release)
		wait()

		for i, err := range errs {
			if err != boom {
				t.Errorf("caller %d: expected identical error, got %v", i, err)
			}
		}
	})

	t.Run("Key Is Released After Settling", func(t *testing.T) {
		tt := []struct {
			name string
			op   Operation
		}{
			{"success", func(context.Context) (any, error) { return 1, nil }},
			{"failure", func(context.Context) (any, error) { return nil, errors.New("failed") }},
			{"panic", func(context.Context) (any, error) { panic("kaboom") }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				c := NewCoordinator(nil)
				c.Run(context.Background(), "k", tc.op)

				called := false
				v, err := c.Run(context.Background(), "k", func(context.Context) (any, error) {
					called = true
					return "fresh", nil
				})
				if !called {
					t.Fatal("expected second operation to be invoked")
				}
				if err != nil || v != "fresh" {
					t.Errorf("expected fresh result, got %v, %v", v, err)
				}
			})
		}
	})

	t.Run("Panics Become Errors", func(t *testing.T) {
		c := NewCoordinator(nil)
		_, err := c.Run(context.Background(), "k", func(context.Context) (any, error) {
			panic("kaboom")
		})
		if !errors.Is(err, shared.ErrOperationPanicked) {
			t.Errorf("expected ErrOperationPanicked, got %v", err)
		}
	})

	t.Run("Waiter Cancellation Leaves The Shared Call Running", func(t *testing.T) {
		c := NewCoordinator(nil)
		started := make(chan struct{})
		release := make(chan struct{})
		var opCtxErr atomic.Value
		var once sync.Once

		op := func(ctx context.Context) (any, error) {
			once.Do(func() { close(started) })
			<-release
			opCtxErr.Store(ctx.Err() == nil)
			return "done", nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		first := make(chan error, 1)
		go func() {
			_, err := c.Run(ctx, "k", op)
			first <- err
		}()
		<-started

		second := make(chan any, 1)
		go func() {
			v, _ := c.Run(context.Background(), "k", op)
			second <- v
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		if err := <-first; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled for cancelled waiter, got %v", err)
		}

		close(release)
		if v := <-second; v != "done" {
			t.Errorf("expected remaining waiter to get result, got %v", v)
		}
		if ok, _ := opCtxErr.Load().(bool); !ok {
			t.Error("expected operation context to survive waiter cancellation")
		}
	})

	t.Run("Do", func(t *testing.T) {
		c := NewCoordinator(nil)

		n, err := Do(context.Background(), c, "n", func(context.Context) (int, error) { return 42, nil })
		if err != nil || n != 42 {
			t.Errorf("expected 42, got %d, %v", n, err)
		}

		_, err = Do(context.Background(), c, "e", func(context.Context) (int, error) { return 0, shared.ErrTimeout })
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("Different Keys Do Not Share", func(t *testing.T) {
		c := NewCoordinator(nil)
		var invoked atomic.Int32
		op := func(context.Context) (any, error) {
			invoked.Add(1)
			return nil, nil
		}
		c.Run(context.Background(), "a", op)
		c.Run(context.Background(), "b", op)
		if invoked.Load() != 2 {
			t.Errorf("expected 2 invocations, got %d", invoked.Load())
		}
	})
}
