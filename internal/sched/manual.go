package sched

import (
	"sort"
	"time"
)

// Manual is a virtual-time Scheduler for tests and dry runs. Posted callbacks
// run on Flush; timers fire only when Advance moves the clock past them.
type Manual struct {
	now    time.Time
	seq    int
	timers []*manualTask
	posted []func()
}

// NewManual creates a scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

type manualTask struct {
	m         *Manual
	at        time.Time
	seq       int
	every     time.Duration
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() {
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.m.remove(t)
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) Post(fn func()) {
	m.posted = append(m.posted, fn)
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Task {
	return m.add(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Task {
	return m.add(d, d, fn)
}

func (m *Manual) Frame(fn func()) Task {
	return m.add(FrameInterval, 0, fn)
}

func (m *Manual) add(d, every time.Duration, fn func()) *manualTask {
	m.seq++
	t := &manualTask{m: m, at: m.now.Add(d), seq: m.seq, every: every, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) remove(t *manualTask) {
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Flush runs posted callbacks, including ones posted while flushing.
func (m *Manual) Flush() {
	for len(m.posted) > 0 {
		fn := m.posted[0]
		m.posted = m.posted[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in time order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Flush()
	for {
		t := m.next(target)
		if t == nil {
			break
		}
		m.now = t.at
		m.remove(t)
		if t.every > 0 {
			m.seq++
			t.at = t.at.Add(t.every)
			t.seq = m.seq
			m.timers = append(m.timers, t)
		} else {
			t.cancelled = true
		}
		t.fn()
		m.Flush()
	}
	m.now = target
}

// Frames advances by n repaint ticks.
func (m *Manual) Frames(n int) {
	for i := 0; i < n; i++ {
		m.Advance(FrameInterval)
	}
}

// Pending reports the number of live timers and frame callbacks.
func (m *Manual) Pending() int {
	return len(m.timers)
}

func (m *Manual) next(limit time.Time) *manualTask {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	if m.timers[0].at.After(limit) {
		return nil
	}
	return m.timers[0]
}
