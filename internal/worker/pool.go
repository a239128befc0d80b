// Package worker bounds how much blocking disk and image work runs at once.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool runs functions with at most size of them in flight.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewPool returns a pool that admits size concurrent tasks.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

func (p *Pool) Size() int {
	return int(p.size)
}

// Do waits for a free slot and runs fn in the caller's goroutine. It returns
// ctx.Err() if the context ends while waiting. Once fn starts it runs to
// completion; fn is expected to observe ctx itself.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for worker: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Run is Do for functions that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
