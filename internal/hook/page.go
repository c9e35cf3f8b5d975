package hook

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"vigil/internal/bus"
	"vigil/internal/dom"
	"vigil/internal/httputil"
	"vigil/internal/player"
	"vigil/internal/progress"
	"vigil/internal/sched"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("page closed")

// Layout measures rendered elements in rows.
type Layout interface {
	Height(el *dom.Element) float64
	ViewportHeight(el *dom.Element) float64
}

// LineLayout counts text lines without wrapping.
type LineLayout struct {
	Rows int
}

func (l LineLayout) Height(el *dom.Element) float64 {
	text := el.Text()
	if text == "" {
		return 0
	}
	return float64(strings.Count(text, "\n") + 1)
}

func (l LineLayout) ViewportHeight(*dom.Element) float64 {
	if l.Rows <= 0 {
		return 10
	}
	return float64(l.Rows)
}

// Services are shared by every hook on a page.
type Services struct {
	Bus           *bus.Bus
	Scheduler     sched.Scheduler
	Pusher        Pusher
	Media         player.Factory
	Progress      *progress.Store
	Layout        Layout
	AutoPlayDelay time.Duration
	SyncInterval  time.Duration

	// BaseURL resolves relative audio sources. Empty leaves them as written.
	BaseURL string
}

type mount struct {
	name string
	hook Hook
	ctx  *Context
}

// mediaSource is a player hook's controller as seen by text tracks.
type mediaSource interface {
	Media() player.Media
}

// Page owns one document and the hooks mounted on it. All methods must run
// on the scheduler goroutine.
type Page struct {
	svc      Services
	registry Registry
	doc      *dom.Document

	mounts map[string]*mount
	order  []string

	players     map[string]mediaSource
	playerOrder []string

	closed    bool
	unloading bool
}

// NewPage creates an empty page. A nil registry means DefaultRegistry.
func NewPage(svc Services, registry Registry) *Page {
	if svc.Bus == nil {
		svc.Bus = bus.New()
	}
	if svc.Pusher == nil {
		svc.Pusher = PusherFunc(func(string, map[string]any) {})
	}
	if svc.Media == nil {
		svc.Media = player.NewFactory("simulated", svc.Scheduler, 0)
	}
	if svc.Progress == nil {
		svc.Progress = progress.New(progress.NewMemory())
	}
	if svc.Layout == nil {
		svc.Layout = LineLayout{}
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Page{
		svc:      svc,
		registry: registry,
		mounts:   make(map[string]*mount),
		players:  make(map[string]mediaSource),
	}
}

// Render applies markup to the page and runs the hook lifecycle: new hook
// elements are mounted, surviving ones updated, removed ones destroyed.
func (p *Page) Render(markup string) error {
	if p.closed {
		return ErrClosed
	}
	if p.doc == nil {
		doc, err := dom.Parse(markup)
		if err != nil {
			return fmt.Errorf("rendering page: %w", err)
		}
		p.doc = doc
	} else if err := p.doc.Render(markup); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	p.reconcile()
	return nil
}

func (p *Page) reconcile() {
	seen := make(map[string]bool)
	var order []string

	for _, el := range p.doc.QueryAll("[phx-hook]") {
		name, _ := el.Attr("phx-hook")
		id := el.ID()
		if id == "" {
			log.Printf("hook: %s element has no id, skipping", name)
			continue
		}
		if seen[id] {
			log.Printf("hook: duplicate element id %q, skipping", id)
			continue
		}
		seen[id] = true

		if m, ok := p.mounts[id]; ok {
			if m.name == name {
				m.ctx.El = el
				order = append(order, id)
				m.hook.Updated(m.ctx)
				continue
			}
			p.destroy(id)
		}

		factory, ok := p.registry[name]
		if !ok {
			log.Printf("hook: unknown hook %q on #%s", name, id)
			continue
		}
		m := &mount{name: name, hook: factory(), ctx: &Context{El: el, Page: p}}
		p.mounts[id] = m
		order = append(order, id)
		m.hook.Mounted(m.ctx)
	}

	for i := len(p.order) - 1; i >= 0; i-- {
		if id := p.order[i]; !seen[id] {
			p.destroy(id)
		}
	}
	p.order = order
}

func (p *Page) destroy(id string) {
	m, ok := p.mounts[id]
	if !ok {
		return
	}
	delete(p.mounts, id)
	m.hook.Destroyed(m.ctx)
}

// Close destroys every mounted hook, last mounted first.
func (p *Page) Close() {
	if p.closed {
		return
	}
	for i := len(p.order) - 1; i >= 0; i-- {
		p.destroy(p.order[i])
	}
	p.order = nil
	p.closed = true
}

// Shutdown tears the page down like Close, but as the host going away rather
// than the user leaving: hooks keep state meant to outlive the process.
func (p *Page) Shutdown() {
	if p.closed {
		return
	}
	p.unloading = true
	p.Close()
}

// Unloading reports whether the page is being torn down by Shutdown.
func (p *Page) Unloading() bool { return p.unloading }

// Click dispatches a click to the first element matching selector unless it
// is disabled. It reports whether the click was delivered.
func (p *Page) Click(selector string) bool {
	if p.doc == nil {
		return false
	}
	el := p.doc.Query(selector)
	if el == nil {
		return false
	}
	if _, disabled := el.Attr("disabled"); disabled {
		return false
	}
	el.Dispatch("click", nil)
	return true
}

// Document returns the rendered document, nil before the first Render.
func (p *Page) Document() *dom.Document { return p.doc }

// Bus returns the page's event bus.
func (p *Page) Bus() *bus.Bus { return p.svc.Bus }

// Hook returns the hook mounted on the element with the given id.
func (p *Page) Hook(id string) Hook {
	if m, ok := p.mounts[id]; ok {
		return m.hook
	}
	return nil
}

// Mounted lists the ids of mounted hook elements in document order.
func (p *Page) Mounted() []string {
	return append([]string(nil), p.order...)
}

func (p *Page) registerPlayer(id string, src mediaSource) {
	if _, ok := p.players[id]; !ok {
		p.playerOrder = append(p.playerOrder, id)
	}
	p.players[id] = src
}

func (p *Page) unregisterPlayer(id string) {
	delete(p.players, id)
	for i, pid := range p.playerOrder {
		if pid == id {
			p.playerOrder = append(p.playerOrder[:i:i], p.playerOrder[i+1:]...)
			break
		}
	}
}

// mediaFor returns the media of the player hook on element id. An empty id
// means the first player on the page.
func (p *Page) mediaFor(id string) player.Media {
	if id == "" {
		if len(p.playerOrder) == 0 {
			return nil
		}
		id = p.playerOrder[0]
	}
	src, ok := p.players[id]
	if !ok {
		return nil
	}
	return src.Media()
}

func (p *Page) resolve(src string) string {
	if src == "" || p.svc.BaseURL == "" {
		return src
	}
	u, err := httputil.ResolveURL(p.svc.BaseURL, src)
	if err != nil {
		log.Printf("hook: resolving %q: %v", src, err)
		return src
	}
	return u
}

// playerPosition reads playback position from a player hook looked up on
// every call, so it follows media swaps.
type playerPosition struct {
	page *Page
	id   string
}

func (pp playerPosition) CurrentTime() float64 {
	if m := pp.page.mediaFor(pp.id); m != nil {
		return m.CurrentTime()
	}
	return 0
}

func (pp playerPosition) Duration() float64 {
	if m := pp.page.mediaFor(pp.id); m != nil {
		return m.Duration()
	}
	return math.NaN()
}

func dataBool(el *dom.Element, name string) bool {
	return el.Data(name) == "true"
}

// dataInt parses data-<name>; ok is false when absent or not a number.
func dataInt(el *dom.Element, name string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(el.Data(name)))
	if err != nil {
		return 0, false
	}
	return v, true
}

func (p *Page) now() time.Time {
	if p.svc.Scheduler != nil {
		return p.svc.Scheduler.Now()
	}
	return time.Now()
}

// TimezoneOffset returns minutes to add to t's local time to reach UTC.
func TimezoneOffset(t time.Time) int {
	_, offset := t.Zone()
	return -offset / 60
}
