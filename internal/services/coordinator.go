package services

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/shared"
	"golang.org/x/sync/singleflight"
)

// Operation is the unit of work shared by every caller of one key.
type Operation func(ctx context.Context) (any, error)

// Coordinator guarantees at most one in-flight call per key.
//
// Callers that arrive while a call for their key is running join it and receive the same value or error.
// The entry is forgotten once the call settles, so the next call for the key starts fresh.
// A Coordinator is owned by the client that issues the calls; there is no package-level instance.
type Coordinator struct {
	group  singleflight.Group
	logger *log.Logger
	calls  atomic.Int64
	shared atomic.Int64
}

// NewCoordinator creates a Coordinator. A nil logger discards coordinator debug output.
func NewCoordinator(logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Coordinator{logger: logger}
}

// Run executes op for key unless a call for key is already in flight, in which case it waits for that call.
//
// op runs on a context detached from the caller's cancellation so that one waiter giving up does not fail the rest.
// If ctx ends first, Run returns ctx.Err() and the shared call keeps running for the remaining waiters.
func (c *Coordinator) Run(ctx context.Context, key string, op Operation) (any, error) {
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (v any, err error) {
		c.calls.Add(1)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("operation panicked", "key", key, "panic", r, "stack", string(debug.Stack()))
				v, err = nil, fmt.Errorf("%w: %s: %v", shared.ErrOperationPanicked, key, r)
			}
		}()
		return op(detached)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
			c.logger.Debug("joined in-flight call", "key", key)
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops the in-flight entry for key so the next Run starts a new call.
// Waiters already joined still receive the original result.
func (c *Coordinator) Forget(key string) {
	c.group.Forget(key)
}

// Calls reports how many operations have actually been started.
func (c *Coordinator) Calls() int64 { return c.calls.Load() }

// Shared reports how many callers received a result that was also delivered to another caller.
func (c *Coordinator) Shared() int64 { return c.shared.Load() }

// Do is the typed form of [Coordinator.Run].
func Do[T any](ctx context.Context, c *Coordinator, key string, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Run(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("coordinator: key %s returned %T", key, v)
	}
	return out, nil
}
