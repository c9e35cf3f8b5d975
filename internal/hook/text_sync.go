package hook

import (
	"fmt"
	"strconv"
	"time"

	"vigil/internal/dom"
	"vigil/internal/media"
	"vigil/internal/textsync"
)

// TextSync keeps a text block in step with a player on the page.
//
// data-sync-mode="discrete" highlights the [data-segment] children one at a
// time every data-sync-interval milliseconds; anything else scrolls
// [data-sync-content] inside [data-sync-viewport] with the playback position
// of the player named by data-player (the first player when absent).
type TextSync struct {
	ctx *Context

	mode   string
	phase  media.Phase
	player string

	view    *elementView
	track   *textsync.Track
	stepper *textsync.Stepper
}

func (h *TextSync) Mounted(ctx *Context) {
	h.ctx = ctx
	h.start()
}

func (h *TextSync) Updated(ctx *Context) {
	el := ctx.El
	if el.Data("sync-mode") != h.mode || media.ParsePhase(el.Data("phase")) != h.phase || el.Data("player") != h.player {
		h.stop()
		h.start()
		return
	}
	switch {
	case h.stepper != nil:
		h.stepper.SetView(h.view)
	case h.track != nil:
		h.view.SetOffset(h.track.State().OffsetPx)
	}
}

func (h *TextSync) Destroyed(*Context) { h.stop() }

func (h *TextSync) start() {
	el := h.ctx.El
	svc := h.ctx.Page.svc
	h.mode = el.Data("sync-mode")
	h.phase = media.ParsePhase(el.Data("phase"))
	h.player = el.Data("player")
	h.view = &elementView{ctx: h.ctx, layout: svc.Layout}

	if h.mode == "discrete" {
		interval := svc.SyncInterval
		if ms, ok := dataInt(el, "sync-interval"); ok && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
		h.stepper = textsync.NewStepper(svc.Bus, svc.Scheduler, h.phase, h.view, interval)
		return
	}
	h.track = textsync.NewTrack(svc.Bus, svc.Scheduler, h.phase, h.view, playerPosition{page: h.ctx.Page, id: h.player})
}

func (h *TextSync) stop() {
	if h.track != nil {
		h.track.Close()
		h.track = nil
	}
	if h.stepper != nil {
		h.stepper.Close()
		h.stepper = nil
	}
}

// State returns the running engine's state.
func (h *TextSync) State() textsync.SyncState {
	switch {
	case h.stepper != nil:
		return h.stepper.State()
	case h.track != nil:
		return h.track.State()
	}
	return textsync.SyncState{}
}

// elementView measures and moves the host's markup. Elements are resolved
// on every call so re-rendered children are picked up.
type elementView struct {
	ctx    *Context
	layout Layout
}

func (v *elementView) host() *dom.Element { return v.ctx.El }

func (v *elementView) viewport() *dom.Element {
	if el := v.host().Query("[data-sync-viewport]"); el != nil {
		return el
	}
	return v.host()
}

func (v *elementView) content() *dom.Element {
	if el := v.host().Query("[data-sync-content]"); el != nil {
		return el
	}
	return v.viewport()
}

func (v *elementView) segments() []*dom.Element {
	return v.host().QueryAll("[data-segment]")
}

func (v *elementView) ContentHeight() float64 {
	segs := v.segments()
	if len(segs) == 0 {
		return v.layout.Height(v.content())
	}
	var h float64
	for _, s := range segs {
		h += v.layout.Height(s)
	}
	return h
}

func (v *elementView) ViewportHeight() float64 {
	vp := v.viewport()
	if rows, ok := dataInt(vp, "viewport-rows"); ok && rows > 0 {
		return float64(rows)
	}
	return v.layout.ViewportHeight(vp)
}

func (v *elementView) SetOffset(px float64) {
	v.content().SetAttr("style", fmt.Sprintf("transform: translateY(%spx)", formatPx(px)))
	v.host().SetAttr("data-offset", formatPx(px))
}

func (v *elementView) SegmentCount() int { return len(v.segments()) }

func (v *elementView) SegmentTop(i int) float64 {
	var top float64
	for j, s := range v.segments() {
		if j >= i {
			break
		}
		top += v.layout.Height(s)
	}
	return top
}

func (v *elementView) SegmentHeight(i int) float64 {
	segs := v.segments()
	if i < 0 || i >= len(segs) {
		return 0
	}
	return v.layout.Height(segs[i])
}

func (v *elementView) ScrollHeight() float64 { return v.ContentHeight() }

func (v *elementView) ScrollTo(top float64) {
	v.viewport().SetAttr("data-scroll-top", formatPx(top))
}

func (v *elementView) Highlight(i int) {
	for j, s := range v.segments() {
		s.SetClass("active", j == i)
	}
	v.host().SetAttr("data-active-index", strconv.Itoa(i))
}

func formatPx(px float64) string {
	if px == 0 {
		px = 0 // no "-0"
	}
	return strconv.FormatFloat(px, 'f', -1, 64)
}
