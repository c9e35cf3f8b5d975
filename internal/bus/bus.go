// Package bus provides the page-scoped notification bus that carries playback
// state and phase changes between controllers and text tracks.
// Each page constructs its own Bus; nothing is global.
package bus

import (
	"sync"

	"vigil/internal/media"
)

// Topic names a notification kind.
type Topic string

const (
	AudioState Topic = "audio-state"
	AudioPhase Topic = "audio-phase"
)

// Event is a fire-and-forget notification. State is only meaningful for AudioState.
type Event struct {
	Topic Topic
	State media.State
	Phase media.Phase
}

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id int
	fn Handler
}

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Topic][]subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]subscriber)}
}

// Subscribe registers fn for topic and returns a function removing it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every current subscriber of its topic before returning.
// Handlers may subscribe or unsubscribe while being called.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	list := append([]subscriber(nil), b.subs[ev.Topic]...)
	b.mu.Unlock()

	for _, s := range list {
		s.fn(ev)
	}
}

// PublishState is shorthand for an AudioState event.
func (b *Bus) PublishState(state media.State, phase media.Phase) {
	b.Publish(Event{Topic: AudioState, State: state, Phase: phase})
}

// PublishPhase is shorthand for an AudioPhase event.
func (b *Bus) PublishPhase(phase media.Phase) {
	b.Publish(Event{Topic: AudioPhase, Phase: phase})
}

// Subscribers reports how many handlers are registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
