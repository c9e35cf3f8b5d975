// Package player drives audio for guided sessions. A Media is one audio
// rendering element (an mpv process, or a simulated clock in dry runs and
// tests); Controller and PlaylistController own the session state machines on
// top of it. Everything here runs on the sched goroutine.
package player

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os/exec"
	"time"

	"vigil/internal/sched"
)

// Event is a low-level media notification.
type Event int

const (
	EventPlay Event = iota
	EventPause
	EventEnded
	EventError
)

func (e Event) String() string {
	switch e {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Events lists every media event, in the order listeners are attached.
var Events = []Event{EventPlay, EventPause, EventEnded, EventError}

// ParseEvent maps a DOM event type back to an Event.
func ParseEvent(s string) (Event, bool) {
	for _, e := range Events {
		if e.String() == s {
			return e, true
		}
	}
	return 0, false
}

var (
	// ErrNoSource is returned by Play when nothing is loaded.
	ErrNoSource = errors.New("no media source loaded")
	// ErrPlayBlocked is returned when the backend refuses to start playback.
	ErrPlayBlocked = errors.New("playback start was blocked")
)

// EmitFunc receives media events. Backends call it on the sched goroutine.
type EmitFunc func(ev Event, err error)

// Media is the interface for audio rendering backends.
type Media interface {
	// Load replaces the current source and rewinds. An empty src releases the resource.
	Load(src string) error

	// Source returns the loaded URL.
	Source() string

	// Play starts or resumes playback. After a natural end it starts the
	// source again from the beginning. Failure leaves the media paused.
	Play() error

	// Pause stops playback; it is a no-op when already paused.
	Pause()

	Paused() bool

	// Seek moves the playback position, in seconds.
	Seek(seconds float64)

	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64

	// Duration returns the length in seconds, or NaN while unknown.
	Duration() float64

	// Close stops the backend for good.
	Close() error
}

// Factory creates a Media bound to emit.
type Factory func(emit EmitFunc) (Media, error)

// NewFactory creates a media factory by backend name.
func NewFactory(name string, s sched.Scheduler, simulatedDuration time.Duration) Factory {
	switch name {
	case "simulated":
		return func(emit EmitFunc) (Media, error) {
			return NewSimulated(s, emit, func(string) time.Duration { return simulatedDuration }), nil
		}
	default:
		return func(emit EmitFunc) (Media, error) {
			return StartMPV(s, emit)
		}
	}
}

// Available checks if the backend can run here.
func Available(name string) bool {
	if name == "simulated" {
		return true
	}
	_, err := exec.LookPath("mpv")
	return err == nil
}

// release stops m and drops its source so no audio keeps playing after teardown.
func release(m Media) {
	if m == nil {
		return
	}
	m.Pause()
	if err := m.Load(""); err != nil {
		log.Printf("player: releasing media: %v", err)
	}
}

func knownDuration(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

// FormatDuration formats seconds as H:MM:SS or M:SS; unknown durations print as --:--.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "--:--"
	}
	s := int(seconds)
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
