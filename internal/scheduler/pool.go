// Package scheduler runs many project pipelines on a bounded worker pool.
package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool is a fixed number of worker slots. Waiters are admitted in the order
// they called Acquire.
type Pool struct {
	sem   *semaphore.Weighted
	size  int
	inUse atomic.Int64
}

// NewPool creates a pool of n slots. n < 1 is treated as 1.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inUse.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	p.inUse.Add(-1)
	p.sem.Release(1)
}

// InUse returns the number of occupied slots.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}
