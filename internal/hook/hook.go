// Package hook binds engine components to server-rendered elements. A page
// element carrying phx-hook="Name" gets a Hook of that name: Mounted when it
// first appears, Updated after every re-render that keeps it, Destroyed when
// it goes away.
package hook

import (
	"encoding/json"
	"io"
	"log"
	"sync"

	"vigil/internal/dom"
)

// Outbound event names.
const (
	EventSetTimezone     = "set_timezone"
	EventRestoreProgress = "restore_progress"
	EventAudioEnded      = "audio_ended"
)

// Pusher delivers a named event to the server collaborator.
type Pusher interface {
	PushEvent(name string, payload map[string]any)
}

// PusherFunc adapts a function to Pusher.
type PusherFunc func(name string, payload map[string]any)

func (f PusherFunc) PushEvent(name string, payload map[string]any) { f(name, payload) }

// JSONLines writes each event as one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) PushEvent(name string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(PushedEvent{Name: name, Payload: payload}); err != nil {
		log.Printf("hook: writing %s event: %v", name, err)
	}
}

// PushedEvent is one outbound event.
type PushedEvent struct {
	Name    string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Recorder keeps pushed events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []PushedEvent
}

func (r *Recorder) PushEvent(name string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, PushedEvent{Name: name, Payload: payload})
}

// Events returns a copy of everything pushed so far.
func (r *Recorder) Events() []PushedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PushedEvent(nil), r.events...)
}

// Named returns the pushed events called name.
func (r *Recorder) Named(name string) []PushedEvent {
	var out []PushedEvent
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Hook is the per-element lifecycle.
type Hook interface {
	Mounted(ctx *Context)
	Updated(ctx *Context)
	Destroyed(ctx *Context)
}

// Context is handed to every lifecycle call.
type Context struct {
	// El is the host element as of the latest render.
	El   *dom.Element
	Page *Page
}

// PushEvent sends a named event to the server.
func (c *Context) PushEvent(name string, payload map[string]any) {
	c.Page.svc.Pusher.PushEvent(name, payload)
}

// Factory creates a fresh Hook for one element.
type Factory func() Hook

// Registry maps phx-hook names to factories.
type Registry map[string]Factory

// DefaultRegistry returns the built-in hooks.
func DefaultRegistry() Registry {
	return Registry{
		"AudioPlayer":    func() Hook { return &AudioPlayer{} },
		"SegmentPlayer":  func() Hook { return &SegmentPlayer{} },
		"TextSync":       func() Hook { return &TextSync{} },
		"RosaryProgress": func() Hook { return &RosaryProgress{} },
		"UserTimezone":   func() Hook { return &UserTimezone{} },
	}
}
