// Package workpool provides a bounded fork-join pool that is safe to use
// from tasks already running on the pool.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of helper goroutines shared by all groups.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New creates a pool with size helper slots. size <= 0 uses GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of helper slots.
func (p *Pool) Size() int {
	return p.size
}

// Group is one fork-join scope on a pool.
type Group struct {
	p   *Pool
	eg  *errgroup.Group
	ctx context.Context
}

// Group starts a scope. The returned context is canceled when a task fails
// or Wait returns.
func (p *Pool) Group(ctx context.Context) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{p: p, eg: eg, ctx: gctx}, gctx
}

// Go runs fn on a free helper slot, or on the calling goroutine when every
// slot is busy. Running inline keeps nested groups from waiting on slots
// held by their own ancestors.
func (g *Group) Go(fn func(ctx context.Context) error) {
	if g.p.sem.TryAcquire(1) {
		g.eg.Go(func() error {
			defer g.p.sem.Release(1)
			return fn(g.ctx)
		})
		return
	}
	if err := fn(g.ctx); err != nil {
		g.eg.Go(func() error { return err })
	}
}

// Wait blocks until every task finished and returns the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// ForEach runs fn for every item on p and returns the first error.
func ForEach[T any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) error) error {
	g, _ := p.Group(ctx)
	for _, item := range items {
		g.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
