package hook

import (
	"strconv"

	"vigil/internal/dom"
	"vigil/internal/media"
	"vigil/internal/player"
)

// SegmentPlayer plays a JSON playlist from data-playlist with
// [data-segment-prev], [data-segment-next] and [data-segment-toggle] controls
// and an optional [data-segment-label].
type SegmentPlayer struct {
	ctx  *Context
	id   string
	ctrl *player.PlaylistController

	binding *mediaBinding
	audio   *Attachment
	prev    *Attachment
	next    *Attachment
	toggle  *Attachment
}

func (h *SegmentPlayer) Mounted(ctx *Context) {
	h.ctx = ctx
	h.id = ctx.El.ID()
	svc := ctx.Page.svc

	h.ctrl = player.NewPlaylistController(nil, player.Options{
		Bus:           svc.Bus,
		Scheduler:     svc.Scheduler,
		AutoPlayDelay: svc.AutoPlayDelay,
		OnState:       func(media.State) { h.render() },
		OnEnded: func() {
			ctx.PushEvent(EventAudioEnded, map[string]any{})
		},
	})
	h.ctrl.OnSegment = func(int, media.Segment) { h.render() }

	h.binding = &mediaBinding{
		page: ctx.Page,
		host: h.id,
		handle: func(ev player.Event, err error) {
			h.ctrl.HandleEvent(ev, err)
		},
		swap: func(m player.Media) {
			if m == nil && h.ctrl.Playing() {
				h.ctrl.HandleEvent(player.EventPause, nil)
			}
			h.ctrl.SetMedia(m)
		},
	}
	h.audio = NewAttachment("audio", h.binding.attach, h.binding.detach)
	h.prev = h.button("[data-segment-prev]", func() { h.ctrl.Advance(-1) })
	h.next = h.button("[data-segment-next]", func() { h.ctrl.Advance(1) })
	h.toggle = h.button("[data-segment-toggle]", h.ctrl.Toggle)

	ctx.Page.registerPlayer(h.id, h.ctrl)
	h.bind()
}

func (h *SegmentPlayer) button(selector string, fn func()) *Attachment {
	return NewAttachment(selector, func(_ *dom.Element, on On) {
		on("click", func(dom.Event) {
			fn()
			h.render()
		})
	}, nil)
}

func (h *SegmentPlayer) Updated(*Context) { h.bind() }

func (h *SegmentPlayer) Destroyed(*Context) {
	h.ctx.Page.unregisterPlayer(h.id)
	h.ctrl.Close()
	h.audio.Unbind()
	h.prev.Unbind()
	h.next.Unbind()
	h.toggle.Unbind()
}

func (h *SegmentPlayer) bind() {
	el := h.ctx.El
	h.audio.Bind(el)
	h.prev.Bind(el)
	h.next.Bind(el)
	h.toggle.Bind(el)

	start, ok := dataInt(el, "current-index")
	if !ok {
		start = -1
	}
	h.ctrl.Apply(player.PlaylistConfig{
		Raw:        el.Data("playlist"),
		Trigger:    el.Data("trigger"),
		Phase:      media.ParsePhase(el.Data("phase")),
		StartIndex: start,
		AutoPlay:   dataBool(el, "auto-play"),
	})
	h.render()
}

// render reflects the cursor and control enablement onto the markup.
func (h *SegmentPlayer) render() {
	c := h.ctrl.Controls()
	setDisabled(h.prev.Element(), !c.Prev)
	setDisabled(h.next.Element(), !c.Next)
	setDisabled(h.toggle.Element(), !c.Toggle)
	if t := h.toggle.Element(); t != nil {
		t.SetAttr("aria-pressed", strconv.FormatBool(h.ctrl.Playing()))
	}

	if label := h.ctx.El.Query("[data-segment-label]"); label != nil {
		if seg, ok := h.ctrl.Current(); ok {
			label.SetText(seg.Label)
		}
	}
	h.ctx.El.SetAttr("data-index", strconv.Itoa(h.ctrl.Index()))
}

func setDisabled(el *dom.Element, off bool) {
	if el == nil {
		return
	}
	if off {
		el.SetAttr("disabled", "")
	} else {
		el.RemoveAttr("disabled")
	}
}

// Controller returns the playlist controller.
func (h *SegmentPlayer) Controller() *player.PlaylistController { return h.ctrl }
