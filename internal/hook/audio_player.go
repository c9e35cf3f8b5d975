package hook

import (
	"log"

	"vigil/internal/dom"
	"vigil/internal/media"
	"vigil/internal/player"
)

// resolvingMedia resolves relative sources against the page URL before loading.
type resolvingMedia struct {
	player.Media
	page *Page
}

func (m resolvingMedia) Load(src string) error {
	return m.Media.Load(m.page.resolve(src))
}

// newMedia creates a media backend whose events are dispatched on el.
func (p *Page) newMedia(el *dom.Element) (player.Media, error) {
	m, err := p.svc.Media(func(ev player.Event, err error) {
		el.Dispatch(ev.String(), err)
	})
	if err != nil {
		return nil, err
	}
	if p.svc.BaseURL == "" {
		return m, nil
	}
	return resolvingMedia{Media: m, page: p}, nil
}

// mediaBinding owns the backend behind one <audio> child and forwards its
// events to a controller.
type mediaBinding struct {
	page   *Page
	host   string
	media  player.Media
	handle func(ev player.Event, err error)
	swap   func(m player.Media)
}

func (b *mediaBinding) attach(el *dom.Element, on On) {
	m, err := b.page.newMedia(el)
	if err != nil {
		log.Printf("hook: creating media for #%s: %v", b.host, err)
		return
	}
	for _, ev := range player.Events {
		on(ev.String(), func(e dom.Event) {
			if pev, ok := player.ParseEvent(e.Type); ok {
				b.handle(pev, e.Err)
			}
		})
	}
	b.media = m
	b.swap(m)
}

func (b *mediaBinding) detach(*dom.Element) {
	b.swap(nil)
	if b.media == nil {
		return
	}
	if err := b.media.Close(); err != nil {
		log.Printf("hook: closing media for #%s: %v", b.host, err)
	}
	b.media = nil
}

// AudioPlayer plays an optional intro followed by the main recording.
// The host carries data-session-id, data-intro-src, data-main-src and
// data-auto-play, and contains an <audio> element plus optional
// [data-audio-play] and [data-audio-pause] buttons.
type AudioPlayer struct {
	ctx  *Context
	id   string
	ctrl *player.Controller

	binding *mediaBinding
	audio   *Attachment
	play    *Attachment
	pause   *Attachment
}

func (h *AudioPlayer) Mounted(ctx *Context) {
	h.ctx = ctx
	h.id = ctx.El.ID()
	svc := ctx.Page.svc

	h.ctrl = player.NewController(nil, player.Options{
		Bus:           svc.Bus,
		Scheduler:     svc.Scheduler,
		AutoPlayDelay: svc.AutoPlayDelay,
		OnState:       h.showState,
		OnEnded: func() {
			ctx.PushEvent(EventAudioEnded, map[string]any{})
		},
	})

	h.binding = &mediaBinding{
		page: ctx.Page,
		host: h.id,
		handle: func(ev player.Event, err error) {
			h.ctrl.HandleEvent(ev, err)
		},
		swap: func(m player.Media) {
			if m == nil && h.ctrl.State() == media.Playing {
				h.ctrl.HandleEvent(player.EventPause, nil)
			}
			h.ctrl.SetMedia(m)
		},
	}
	h.audio = NewAttachment("audio", h.binding.attach, h.binding.detach)
	h.play = NewAttachment("[data-audio-play]", func(_ *dom.Element, on On) {
		on("click", func(dom.Event) { h.ctrl.Play() })
	}, nil)
	h.pause = NewAttachment("[data-audio-pause]", func(_ *dom.Element, on On) {
		on("click", func(dom.Event) { h.ctrl.Pause() })
	}, nil)

	ctx.Page.registerPlayer(h.id, h.ctrl)
	h.bind()
}

func (h *AudioPlayer) Updated(*Context) { h.bind() }

func (h *AudioPlayer) Destroyed(*Context) {
	h.ctx.Page.unregisterPlayer(h.id)
	h.ctrl.Close()
	h.audio.Unbind()
	h.play.Unbind()
	h.pause.Unbind()
}

func (h *AudioPlayer) bind() {
	el := h.ctx.El
	h.audio.Bind(el)
	h.play.Bind(el)
	h.pause.Bind(el)
	h.ctrl.Apply(h.config())
	h.showState(h.ctrl.State())
}

func (h *AudioPlayer) config() player.Config {
	el := h.ctx.El
	mainSrc := el.Data("main-src")
	if a := h.audio.Element(); mainSrc == "" && a != nil {
		if s := a.Query("source[src]"); s != nil {
			mainSrc, _ = s.Attr("src")
		} else {
			mainSrc, _ = a.Attr("src")
		}
	}
	return player.Config{
		SessionID: el.Data("session-id"),
		IntroSrc:  el.Data("intro-src"),
		MainSrc:   mainSrc,
		AutoPlay:  dataBool(el, "auto-play"),
	}
}

// showState swaps the play and pause buttons.
func (h *AudioPlayer) showState(s media.State) {
	playing := s == media.Playing
	if b := h.play.Element(); b != nil {
		b.SetClass("hidden", playing)
	}
	if b := h.pause.Element(); b != nil {
		b.SetClass("hidden", !playing)
	}
	h.ctx.El.SetAttr("data-state", s.String())
}

// Controller returns the playback controller.
func (h *AudioPlayer) Controller() *player.Controller { return h.ctrl }
