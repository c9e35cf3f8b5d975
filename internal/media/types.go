// Package media defines shared types for the vigil playback engine.
package media

import (
	"encoding/json"
	"strings"
)

// Phase identifies a named part of a guided session. Text tracks carry the
// same identifier in their data-phase attribute.
type Phase string

const (
	PhaseNone  Phase = ""
	PhaseIntro Phase = "intro"
	PhaseMain  Phase = "main"
)

// ParsePhase normalizes a data-phase attribute value. Empty means main.
func ParsePhase(s string) Phase {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PhaseMain
	}
	return Phase(s)
}

// State is the playback sub-state reported on the bus.
type State int

const (
	Idle State = iota
	Playing
	Paused
	Ended
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Segment is one playable unit of a playlist.
type Segment struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// ParsePlaylist decodes the serialized data-playlist attribute.
// Malformed input and entries without a URL are dropped; the result is never an error.
func ParsePlaylist(raw string) []Segment {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var decoded []Segment
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}

	segments := make([]Segment, 0, len(decoded))
	for _, s := range decoded {
		if s.URL == "" {
			continue
		}
		segments = append(segments, s)
	}
	return segments
}

// Session is the mutable state of one mounted playback controller.
type Session struct {
	Phase             Phase
	ActiveSourceURL   string // empty when nothing is loaded
	AutoPlay          bool
	HasAutoPlayedOnce bool
}

// ProgressRecord is the persisted resume point for one content set.
type ProgressRecord struct {
	SetID   string `json:"setId"`
	Index   int    `json:"index"`
	SavedAt int64  `json:"timestamp"` // epoch milliseconds
}
