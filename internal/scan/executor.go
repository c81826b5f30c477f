// Package scan runs independent per-entry tasks (usually "parse one class and
// record what it declares") on a bounded worker pool with a single join barrier.
package scan

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is one independent unit of work. Tasks must not wait on other tasks;
// they only append to thread-safe collections.
type Task func(ctx context.Context) error

// Executor is a bounded worker pool. Submit queues work, Complete joins.
// The first failing task cancels everything still pending and its error is
// returned from Complete.
type Executor struct {
	group  *errgroup.Group
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	completed atomic.Bool
	submitted atomic.Int64
	skipped   atomic.Int64
}

// DefaultWorkers returns the pool size used when none is configured
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// NewExecutor creates an executor with at most workers concurrent tasks.
// workers <= 0 selects DefaultWorkers.
func NewExecutor(ctx context.Context, workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	return &Executor{
		group:  group,
		parent: parent,
		ctx:    gctx,
		cancel: cancel,
	}
}

// Submit queues a task. It blocks while all workers are busy.
// Submitting after Complete is a programming error and panics.
func (e *Executor) Submit(task Task) {
	if e.completed.Load() {
		panic("scan: Submit called after Complete")
	}
	e.submitted.Add(1)
	e.group.Go(func() (err error) {
		// Pending tasks are dropped once a sibling has failed
		if e.ctx.Err() != nil {
			e.skipped.Add(1)
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("scan task panicked: %v", r)
			}
		}()
		return task(e.ctx)
	})
}

// Complete blocks until every submitted task has finished or the first error
// has cancelled the rest, and returns that error. When the parent context was
// cancelled and tasks were dropped, the context error is returned: a partial
// scan never reports success.
func (e *Executor) Complete() error {
	e.completed.Store(true)
	err := e.group.Wait()
	e.cancel()
	if err != nil {
		return err
	}
	if e.skipped.Load() > 0 {
		if perr := e.parent.Err(); perr != nil {
			return perr
		}
		return context.Canceled
	}
	return nil
}

// Submitted returns how many tasks were queued
func (e *Executor) Submitted() int64 {
	return e.submitted.Load()
}

// Skipped returns how many queued tasks were dropped after a failure or
// cancellation
func (e *Executor) Skipped() int64 {
	return e.skipped.Load()
}

// ForEach runs fn over items on a fresh executor and joins.
func ForEach[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) error) error {
	exec := NewExecutor(ctx, workers)
	for _, item := range items {
		item := item
		exec.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		})
	}
	return exec.Complete()
}

// Collector is an append-only bag safe for concurrent producers.
// Callers read it only after Complete returns.
type Collector[T any] struct {
	mu    sync.Mutex
	items []T
}

// Add appends items
func (c *Collector[T]) Add(items ...T) {
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// Items returns a copy of the collected items
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Len returns the number of collected items
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Map is a concurrent map written by tasks and read after the join barrier.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMap creates an empty concurrent map
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Store sets key to value
func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	m.m[key] = value
	m.mu.Unlock()
}

// Load returns the value for key
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok
}

// Len returns the number of entries
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Snapshot returns a plain map copy for single-threaded post-processing
func (m *Map[K, V]) Snapshot() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[K]V, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
