package listquery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// Fetcher loads the page described by s
type Fetcher[T any] func(ctx context.Context, s State) (*domain.Page[T], error)

// Snapshot is a consistent view of a controller
type Snapshot[T any] struct {
	State State
	Items []T
}

// Controller owns a list State, issues fetches when the query changes and
// drops responses from superseded fetches. A failed fetch keeps the last good
// items and is not retried.
type Controller[T any] struct {
	fetch  Fetcher[T]
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	items  []T
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[chan Snapshot[T]]struct{}
}

// NewController creates a controller starting from initial. Nothing is
// fetched until Refresh or a query-changing Dispatch.
func NewController[T any](fetch Fetcher[T], initial State, logger *slog.Logger) *Controller[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if initial.Status == "" {
		initial.Status = StatusIdle
	}
	done := make(chan struct{})
	close(done)
	return &Controller[T]{
		fetch:  fetch,
		logger: logger.With("component", "listquery"),
		state:  initial,
		done:   done,
		subs:   make(map[chan Snapshot[T]]struct{}),
	}
}

// Dispatch applies a and starts a new fetch when the query changed. Fetches
// run under ctx, so ctx should live as long as the list does.
func (c *Controller[T]) Dispatch(ctx context.Context, a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.state.queryKey()
	c.state = Reduce(c.state, a)
	if c.state.queryKey() != before {
		c.startLocked(ctx)
		return
	}
	c.publishLocked()
}

// Refresh re-fetches the current state
func (c *Controller[T]) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked(ctx)
}

// Snapshot returns the current state and items
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change, and a
// function that ends the subscription. A slow reader only sees the newest
// snapshot.
func (c *Controller[T]) Subscribe() (<-chan Snapshot[T], func()) {
	ch := make(chan Snapshot[T], 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// Wait blocks until no fetch is in flight or ctx ends
func (c *Controller[T]) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		done := c.done
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}

		c.mu.Lock()
		settled := c.done == done
		c.mu.Unlock()
		if settled {
			return nil
		}
	}
}

// Close cancels any fetch in flight and ends every subscription
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.subs = make(map[chan Snapshot[T]]struct{})
}

func (c *Controller[T]) startLocked(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen

	fctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	c.state = Reduce(c.state, FetchStarted{})
	state := c.state
	c.publishLocked()

	go func() {
		defer close(done)
		defer cancel()

		page, err := c.fetch(fctx, state)
		if err == nil && page == nil {
			page = &domain.Page[T]{}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			c.logger.Debug("discarding stale list response", "generation", gen, "current", c.gen)
			return
		}
		c.cancel = nil

		if err != nil {
			c.logger.Warn("list fetch failed", "error", err, "page", state.Page)
			c.state = Reduce(c.state, FetchFailed{Err: err})
		} else {
			if page.Items != nil {
				c.items = page.Items
			} else {
				c.items = []T{}
			}
			c.state = Reduce(c.state, FetchSucceeded{Total: page.Total})
		}
		c.publishLocked()
	}()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{State: c.state, Items: items}
}

func (c *Controller[T]) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
