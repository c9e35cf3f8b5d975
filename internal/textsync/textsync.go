// Package textsync keeps on-screen text in step with playback.
//
// A Track scrolls continuously, mapping the media position onto the scrollable
// distance once per frame. A Stepper highlights one segment at a time on a
// fixed interval and recenters it. Both follow the bus and only animate while
// their own phase is the one playing.
package textsync

import (
	"math"
	"time"

	"vigil/internal/bus"
	"vigil/internal/media"
	"vigil/internal/sched"
)

// DefaultInterval is the Stepper's highlight cadence.
const DefaultInterval = 10 * time.Second

// Position reports where playback is, in seconds.
type Position interface {
	CurrentTime() float64
	Duration() float64
}

// View is the scrolled surface of a continuous track.
type View interface {
	ContentHeight() float64
	ViewportHeight() float64
	SetOffset(px float64)
}

// StepView is the surface of a discrete track.
type StepView interface {
	SegmentCount() int
	SegmentTop(i int) float64
	SegmentHeight(i int) float64
	ScrollHeight() float64
	ViewportHeight() float64
	ScrollTo(top float64)
	Highlight(i int)
}

// SyncState is the observable state of an engine.
type SyncState struct {
	ActiveIndex int
	OffsetPx    float64
	Running     bool
}

// Offset maps a playback position to a vertical offset. The result is zero at
// the start and -max(0, content-viewport) at the end.
func Offset(current, duration, contentHeight, viewportHeight float64) float64 {
	maxScroll := math.Max(0, contentHeight-viewportHeight)
	progress := current / duration
	if math.IsNaN(progress) {
		progress = 0
	}
	progress = math.Min(1, math.Max(0, progress))
	if maxScroll == 0 || progress == 0 {
		return 0
	}
	return -maxScroll * progress
}

// CenterOffset returns the scroll position that vertically centers a segment,
// clamped to the scrollable range.
func CenterOffset(top, height, viewportHeight, scrollHeight float64) float64 {
	target := top - (viewportHeight-height)/2
	maxTop := math.Max(0, scrollHeight-viewportHeight)
	return math.Min(maxTop, math.Max(0, target))
}

func durationKnown(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

// Track is the continuous engine.
type Track struct {
	phase media.Phase
	view  View
	pos   Position
	sched sched.Scheduler

	unsubs []func()
	frame  sched.Task
	state  SyncState
}

// NewTrack subscribes a continuous engine for phase to b.
func NewTrack(b *bus.Bus, s sched.Scheduler, phase media.Phase, view View, pos Position) *Track {
	t := &Track{phase: phase, view: view, pos: pos, sched: s}
	t.unsubs = []func(){
		b.Subscribe(bus.AudioState, t.onState),
		b.Subscribe(bus.AudioPhase, t.onPhase),
	}
	return t
}

func (t *Track) onState(ev bus.Event) {
	if ev.Phase != t.phase {
		return
	}
	if ev.State == media.Playing {
		t.start()
		return
	}
	t.stop(false)
}

func (t *Track) onPhase(bus.Event) {
	t.stop(true)
}

func (t *Track) start() {
	if t.state.Running {
		return
	}
	t.state.Running = true
	t.frame = t.sched.Frame(t.tick)
}

func (t *Track) tick() {
	t.frame = nil
	if !t.state.Running {
		return
	}
	if t.pos != nil {
		if d := t.pos.Duration(); durationKnown(d) {
			off := Offset(t.pos.CurrentTime(), d, t.view.ContentHeight(), t.view.ViewportHeight())
			t.state.OffsetPx = off
			t.view.SetOffset(off)
		}
	}
	t.frame = t.sched.Frame(t.tick)
}

func (t *Track) stop(reset bool) {
	t.state.Running = false
	if t.frame != nil {
		t.frame.Cancel()
		t.frame = nil
	}
	if reset {
		t.state.OffsetPx = 0
		t.view.SetOffset(0)
	}
}

// SetPosition replaces the playback position source.
func (t *Track) SetPosition(pos Position) { t.pos = pos }

// SetView replaces the scrolled surface.
func (t *Track) SetView(v View) { t.view = v }

func (t *Track) Phase() media.Phase { return t.phase }

func (t *Track) State() SyncState { return t.state }

// Close stops the frame loop and leaves the bus.
func (t *Track) Close() {
	t.stop(false)
	for _, off := range t.unsubs {
		off()
	}
	t.unsubs = nil
}

// Stepper is the discrete engine.
type Stepper struct {
	phase    media.Phase
	view     StepView
	sched    sched.Scheduler
	interval time.Duration

	unsubs []func()
	task   sched.Task
	state  SyncState
}

// NewStepper subscribes a discrete engine for phase to b. A non-positive
// interval means DefaultInterval.
func NewStepper(b *bus.Bus, s sched.Scheduler, phase media.Phase, view StepView, interval time.Duration) *Stepper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	st := &Stepper{phase: phase, view: view, sched: s, interval: interval}
	st.setActive(0)
	st.unsubs = []func(){
		b.Subscribe(bus.AudioState, st.onState),
		b.Subscribe(bus.AudioPhase, st.onPhase),
	}
	return st
}

func (s *Stepper) onState(ev bus.Event) {
	if ev.Phase != s.phase {
		return
	}
	switch ev.State {
	case media.Playing:
		s.start()
	case media.Ended:
		s.stop()
		s.setActive(s.view.SegmentCount() - 1)
	default:
		s.stop()
	}
}

func (s *Stepper) onPhase(ev bus.Event) {
	s.stop()
	if ev.Phase == s.phase {
		s.setActive(0)
	}
}

func (s *Stepper) start() {
	if s.state.Running || s.state.ActiveIndex >= s.view.SegmentCount()-1 {
		return
	}
	s.state.Running = true
	s.task = s.sched.Every(s.interval, s.step)
}

func (s *Stepper) step() {
	s.setActive(s.state.ActiveIndex + 1)
	if s.state.ActiveIndex >= s.view.SegmentCount()-1 {
		s.stop()
	}
}

func (s *Stepper) stop() {
	s.state.Running = false
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
}

func (s *Stepper) setActive(i int) {
	n := s.view.SegmentCount()
	if n == 0 {
		s.state.ActiveIndex = 0
		return
	}
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	s.state.ActiveIndex = i
	s.view.Highlight(i)

	top := CenterOffset(s.view.SegmentTop(i), s.view.SegmentHeight(i), s.view.ViewportHeight(), s.view.ScrollHeight())
	s.state.OffsetPx = top
	s.view.ScrollTo(top)
}

// SetView replaces the surface and reapplies the current highlight.
func (s *Stepper) SetView(v StepView) {
	s.view = v
	s.setActive(s.state.ActiveIndex)
}

func (s *Stepper) Phase() media.Phase { return s.phase }

func (s *Stepper) State() SyncState { return s.state }

// Close stops the timer and leaves the bus.
func (s *Stepper) Close() {
	s.stop()
	for _, off := range s.unsubs {
		off()
	}
	s.unsubs = nil
}
