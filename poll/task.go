package poll

import (
	"context"
	"sync"
	"time"
)

// Task runs a function on a fixed period after an initial delay. Start is
// idempotent while running, Stop cancels any pending invocation without
// blocking; an invocation already in flight runs to completion but does not
// reschedule itself afterwards. Trigger requests an immediate run.
type Task struct {
	initialDelay time.Duration
	interval     time.Duration
	fn           func(context.Context)

	lock      sync.Mutex
	stopCh    chan struct{}
	triggerCh chan struct{}
}

func NewTask(initialDelay time.Duration, interval time.Duration, fn func(context.Context)) *Task {
	return &Task{
		initialDelay: initialDelay,
		interval:     interval,
		fn:           fn,
		triggerCh:    make(chan struct{}, 1),
	}
}

func (t *Task) Start() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.stopCh != nil {
		return
	}

	t.stopCh = make(chan struct{})
	go t.run(t.stopCh)
}

func (t *Task) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.stopCh == nil {
		return
	}

	close(t.stopCh)
	t.stopCh = nil
}

func (t *Task) Running() bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stopCh != nil
}

// Trigger requests an invocation ahead of the next scheduled one. A no-op
// when a trigger is already pending or the task is stopped.
func (t *Task) Trigger() {
	select {
	case t.triggerCh <- struct{}{}:
	default:
	}
}

func (t *Task) run(stopCh chan struct{}) {
	timer := time.NewTimer(t.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-t.triggerCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		t.fn(context.Background())

		select {
		case <-stopCh:
			return
		default:
		}

		timer.Reset(t.interval)
	}
}
