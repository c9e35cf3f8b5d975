package page

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"vigil/internal/hook"
	"vigil/internal/httputil"
)

const (
	// queueSize bounds events waiting to be posted.
	queueSize = 64
	// drainTimeout bounds delivery of events still queued when Run stops.
	drainTimeout = 3 * time.Second
)

// Poster sends hook events to an HTTP endpoint in the order they were pushed.
// PushEvent never blocks; a full queue drops the event.
type Poster struct {
	url    string
	client *http.Client
	queue  chan hook.PushedEvent

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func NewPoster(url string, client *http.Client) *Poster {
	return &Poster{
		url:    url,
		client: client,
		queue:  make(chan hook.PushedEvent, queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (p *Poster) PushEvent(name string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	select {
	case p.queue <- hook.PushedEvent{Name: name, Payload: payload}:
	default:
		log.Printf("page: event queue full, dropping %s", name)
	}
}

// Run posts queued events until ctx is done or Close is called, then delivers
// whatever is still queued within drainTimeout.
func (p *Poster) Run(ctx context.Context) {
	defer close(p.done)
	// an event being posted when ctx ends is still delivered
	postCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case <-p.quit:
			p.drain()
			return
		case ev := <-p.queue:
			p.post(postCtx, ev)
		}
	}
}

// Close stops Run after the queue is flushed and waits for it to return.
// Run must have been started.
func (p *Poster) Close() {
	p.once.Do(func() { close(p.quit) })
	<-p.done
}

func (p *Poster) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.queue:
			p.post(ctx, ev)
		default:
			return
		}
	}
}

func (p *Poster) post(ctx context.Context, ev hook.PushedEvent) {
	if err := httputil.PostJSON(ctx, p.client, p.url, ev); err != nil {
		log.Printf("page: posting %s: %v", ev.Name, err)
	}
}
