package ui

import (
	"math"

	"vigil/internal/hook"
)

// PlayerView is what the terminal shows for one player hook.
type PlayerView struct {
	ID       string
	State    string
	Phase    string
	Position float64
	Duration float64

	Segmented bool
	Label     string
	Index     int
	Count     int
}

// TextView is what the terminal shows for one text sync hook.
type TextView struct {
	ID       string
	Segments []string
	Active   int
	Offset   float64 // rows scrolled
	Discrete bool
	Running  bool
}

// Snapshot is a copy of page state taken on the engine goroutine.
type Snapshot struct {
	Players []PlayerView
	Texts   []TextView
}

// Capture reads the page. It must run on the engine goroutine.
func Capture(p *hook.Page) Snapshot {
	var s Snapshot
	for _, id := range p.Mounted() {
		switch h := p.Hook(id).(type) {
		case *hook.AudioPlayer:
			c := h.Controller()
			pv := PlayerView{ID: id, State: c.State().String(), Phase: string(c.Session().Phase), Duration: math.NaN()}
			if m := c.Media(); m != nil {
				pv.Position, pv.Duration = m.CurrentTime(), m.Duration()
			}
			s.Players = append(s.Players, pv)

		case *hook.SegmentPlayer:
			c := h.Controller()
			pv := PlayerView{ID: id, Phase: string(c.Phase()), Segmented: true, Index: c.Index(), Count: len(c.Segments()), Duration: math.NaN()}
			pv.State = "paused"
			if c.Playing() {
				pv.State = "playing"
			}
			if seg, ok := c.Current(); ok {
				pv.Label = seg.Label
			}
			if m := c.Media(); m != nil {
				pv.Position, pv.Duration = m.CurrentTime(), m.Duration()
			}
			s.Players = append(s.Players, pv)

		case *hook.TextSync:
			el := p.Document().ByID(id)
			if el == nil {
				continue
			}
			st := h.State()
			tv := TextView{
				ID:       id,
				Active:   st.ActiveIndex,
				Offset:   math.Abs(st.OffsetPx),
				Discrete: el.Data("sync-mode") == "discrete",
				Running:  st.Running,
			}
			for _, seg := range el.QueryAll("[data-segment]") {
				tv.Segments = append(tv.Segments, seg.Text())
			}
			if len(tv.Segments) == 0 {
				tv.Segments = []string{el.Text()}
			}
			s.Texts = append(s.Texts, tv)
		}
	}
	return s
}

// TogglePlayback plays or pauses the first player on the page.
func TogglePlayback(p *hook.Page) {
	for _, id := range p.Mounted() {
		switch h := p.Hook(id).(type) {
		case *hook.AudioPlayer:
			h.Controller().Toggle()
			return
		case *hook.SegmentPlayer:
			h.Controller().Toggle()
			return
		}
	}
}
