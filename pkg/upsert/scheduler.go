package upsert

import "context"

// Scheduler bounds how many shards execute concurrently on a node's
// shared worker pool (spec.md §5 "many shards run in parallel on a
// shared worker pool"), generalized from the teacher's wal/pool.go
// sync.Pool buffer-reuse idiom to a goroutine-slot semaphore: instead
// of pooling buffers, it pools execution slots.
type Scheduler struct {
	slots chan struct{}
}

// NewScheduler builds a Scheduler admitting at most capacity
// concurrent Run calls.
func NewScheduler(capacity int) *Scheduler {
	if capacity < 1 {
		capacity = 1
	}
	return &Scheduler{slots: make(chan struct{}, capacity)}
}

// Run blocks until a slot is free (or ctx is done), then runs fn
// holding that slot. A shard's UpsertExecutor.Execute is the typical
// fn: one shard's request is processed per slot.
func (s *Scheduler) Run(ctx context.Context, fn func() error) error {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slots }()

	return fn()
}
