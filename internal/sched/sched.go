// Package sched runs the playback engine on a single cooperative goroutine.
// Controllers, sync engines and media backends never touch shared state from
// other goroutines; they post closures into a Scheduler instead.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FrameInterval is the repaint cadence used for Frame callbacks.
const FrameInterval = time.Second / 60

// Task is a handle on a scheduled callback. Cancel is idempotent.
type Task interface {
	Cancel()
}

// Scheduler is the engine's view of time and of its owning goroutine.
type Scheduler interface {
	Now() time.Time
	// Post queues fn to run on the scheduler goroutine.
	Post(fn func())
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Task
	// Every runs fn every d until cancelled.
	Every(d time.Duration, fn func()) Task
	// Frame runs fn on the next repaint tick.
	Frame(fn func()) Task
}

// Loop is the production Scheduler backed by wall-clock timers.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		queue: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

// Run executes posted callbacks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop ends Run. Later posts are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine itself.
func (l *Loop) Do(fn func()) {
	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
	case <-l.done:
	}
}

type loopTask struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *loopTask) Cancel() {
	t.cancelled.Store(true)
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
}

func (t *loopTask) arm(d time.Duration, f func()) {
	t.mu.Lock()
	t.timer = time.AfterFunc(d, f)
	t.mu.Unlock()
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.arm(d, func() {
		l.Post(func() {
			if !t.cancelled.Load() {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) Every(d time.Duration, fn func()) Task {
	t := &loopTask{}
	var tick func()
	tick = func() {
		l.Post(func() {
			if t.cancelled.Load() {
				return
			}
			fn()
			if !t.cancelled.Load() {
				t.arm(d, tick)
			}
		})
	}
	t.arm(d, tick)
	return t
}

func (l *Loop) Frame(fn func()) Task {
	return l.AfterFunc(FrameInterval, fn)
}
