package player

import (
	"math"
	"time"

	"vigil/internal/sched"
)

// Simulated is a Media that plays nothing: position advances with the
// scheduler clock and events are posted like a real backend would.
type Simulated struct {
	// BlockPlay makes Play fail, as a browser does with unsolicited autoplay.
	BlockPlay bool

	sched       sched.Scheduler
	emit        EmitFunc
	durationFor func(src string) time.Duration

	src     string
	pos     time.Duration
	dur     time.Duration
	playing bool
	last    time.Time
	ticker  sched.Task
	closed  bool

	// ended mirrors mpv dropping the file at EOF: seeks are ignored until Play.
	ended bool
}

// NewSimulated creates a simulated backend. durationFor reports the length of
// each source; zero means the duration never becomes known.
func NewSimulated(s sched.Scheduler, emit EmitFunc, durationFor func(src string) time.Duration) *Simulated {
	return &Simulated{sched: s, emit: emit, durationFor: durationFor}
}

func (m *Simulated) post(ev Event, err error) {
	if m.emit == nil {
		return
	}
	m.sched.Post(func() { m.emit(ev, err) })
}

func (m *Simulated) Load(src string) error {
	if m.playing {
		m.stop()
		m.post(EventPause, nil)
	}
	m.src = src
	m.pos = 0
	m.dur = 0
	m.ended = false
	if src != "" && m.durationFor != nil {
		m.dur = m.durationFor(src)
	}
	return nil
}

func (m *Simulated) Source() string { return m.src }

func (m *Simulated) Play() error {
	if m.closed || m.src == "" {
		return ErrNoSource
	}
	if m.BlockPlay {
		return ErrPlayBlocked
	}
	if m.playing {
		return nil
	}
	if m.ended {
		m.ended = false
		m.pos = 0
	}
	m.playing = true
	m.last = m.sched.Now()
	m.ticker = m.sched.Every(sched.FrameInterval, m.tick)
	m.post(EventPlay, nil)
	return nil
}

func (m *Simulated) tick() {
	m.advance()
	if m.dur > 0 && m.pos >= m.dur {
		m.pos = m.dur
		m.stop()
		m.ended = true
		m.post(EventEnded, nil)
	}
}

func (m *Simulated) advance() {
	if !m.playing {
		return
	}
	now := m.sched.Now()
	m.pos += now.Sub(m.last)
	m.last = now
}

func (m *Simulated) stop() {
	m.advance()
	m.playing = false
	if m.ticker != nil {
		m.ticker.Cancel()
		m.ticker = nil
	}
}

func (m *Simulated) Pause() {
	if !m.playing {
		return
	}
	m.stop()
	m.post(EventPause, nil)
}

func (m *Simulated) Paused() bool { return !m.playing }

func (m *Simulated) Seek(seconds float64) {
	if m.ended {
		return
	}
	m.advance()
	m.pos = time.Duration(seconds * float64(time.Second))
	if m.pos < 0 {
		m.pos = 0
	}
	if m.dur > 0 && m.pos > m.dur {
		m.pos = m.dur
	}
}

func (m *Simulated) CurrentTime() float64 {
	m.advance()
	return m.pos.Seconds()
}

func (m *Simulated) Duration() float64 {
	if m.src == "" || m.dur <= 0 {
		return math.NaN()
	}
	return m.dur.Seconds()
}

// Finish jumps to the end of the current source and reports a natural end.
func (m *Simulated) Finish() {
	if m.src == "" {
		return
	}
	m.stop()
	m.pos = m.dur
	m.ended = true
	m.post(EventEnded, nil)
}

// Fail reports a decoding error and stops playback.
func (m *Simulated) Fail(err error) {
	m.stop()
	m.post(EventError, err)
}

func (m *Simulated) Close() error {
	m.stop()
	m.closed = true
	m.src = ""
	return nil
}
