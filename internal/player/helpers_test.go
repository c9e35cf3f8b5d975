package player

import (
	"time"

	"vigil/internal/bus"
	"vigil/internal/media"
	"vigil/internal/sched"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// countingMedia records Load calls on top of a simulated backend.
type countingMedia struct {
	*Simulated
	loads []string
}

func (m *countingMedia) Load(src string) error {
	m.loads = append(m.loads, src)
	return m.Simulated.Load(src)
}

type recorder struct {
	phases  []media.Phase
	states  []media.State
	visual  []media.State
	ended   int
	onPhase func(media.Phase)
}

func (r *recorder) subscribe(b *bus.Bus) {
	b.Subscribe(bus.AudioPhase, func(ev bus.Event) {
		r.phases = append(r.phases, ev.Phase)
		if r.onPhase != nil {
			r.onPhase(ev.Phase)
		}
	})
	b.Subscribe(bus.AudioState, func(ev bus.Event) { r.states = append(r.states, ev.State) })
}

func (r *recorder) count(s media.State) int {
	n := 0
	for _, x := range r.states {
		if x == s {
			n++
		}
	}
	return n
}

func newMedia(s *sched.Manual, emit EmitFunc) *countingMedia {
	sim := NewSimulated(s, emit, func(string) time.Duration { return 30 * time.Second })
	return &countingMedia{Simulated: sim}
}
