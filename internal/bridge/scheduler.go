package bridge

import (
	"context"
	"errors"
)

var (
	ErrSchedulerStopped = errors.New("scheduler stopped")
	ErrSchedulerBusy    = errors.New("scheduler queue full")
)

// Scheduler serializes session-registry mutation onto a single goroutine.
// Transport goroutines hand work across with Submit (await a result, bounded
// by the caller's context) or Post (fire and forget).
type Scheduler struct {
	tasks chan func()
	done  chan struct{}
}

func NewScheduler(buffer int) *Scheduler {
	if buffer <= 0 {
		buffer = 128
	}
	return &Scheduler{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes queued work until ctx is cancelled, then drains whatever was
// already accepted so no Submit waits forever.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case fn := <-s.tasks:
					fn()
				default:
					return
				}
			}
		case fn := <-s.tasks:
			fn()
		}
	}
}

// Submit runs fn on the scheduler goroutine and waits for its result. The
// wait is bounded by ctx.
func (s *Scheduler) Submit(ctx context.Context, fn func() (any, error)) (any, error) {
	type outcome struct {
		v   any
		err error
	}
	ch := make(chan outcome, 1)

	select {
	case s.tasks <- func() {
		v, err := fn()
		ch <- outcome{v: v, err: err}
	}:
	case <-s.done:
		return nil, ErrSchedulerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-ch:
		return out.v, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post enqueues fire-and-forget work without blocking.
func (s *Scheduler) Post(fn func()) error {
	select {
	case <-s.done:
		return ErrSchedulerStopped
	default:
	}
	select {
	case s.tasks <- fn:
		return nil
	default:
		return ErrSchedulerBusy
	}
}
