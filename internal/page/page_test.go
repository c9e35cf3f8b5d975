package page

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `<!DOCTYPE html>
<html><head><title>Rosary</title></head>
<body>
<nav>menu</nav>
<main data-phx-main><div id="player" phx-hook="AudioPlayer"></div></main>
</body></html>`

func TestFileSourceUsesMainContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	src, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "", src.BaseURL())

	markup, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, `id="player"`)
	assert.NotContains(t, markup, "menu")
}

func TestFileSourceFallsBackToBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<p id="x">hi</p>`), 0644))

	markup, err := (&File{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, `<p id="x">hi</p>`)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.html"))
	assert.Error(t, err)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open("https://")
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(doc))
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL+"/rosary", srv.Client())
	markup, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, `phx-hook="AudioPlayer"`)
	assert.Equal(t, srv.URL+"/rosary", src.BaseURL())
	assert.Equal(t, srv.URL+"/rosary/events", src.EventsURL())
}

func TestPosterSendsInOrder(t *testing.T) {
	var mu sync.Mutex
	var names []string
	got := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev struct {
			Name string `json:"event"`
		}
		json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		names = append(names, ev.Name)
		mu.Unlock()
		got <- struct{}{}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPoster(srv.URL+"/events", srv.Client())
	go p.Run(ctx)

	p.PushEvent("set_timezone", map[string]any{"offset": 0})
	p.PushEvent("audio_ended", nil)
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("event was not posted")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"set_timezone", "audio_ended"}, names)
}

// countingServer records the names of posted events.
type countingServer struct {
	*httptest.Server
	mu    sync.Mutex
	names []string
}

func newCountingServer(t *testing.T) *countingServer {
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev struct {
			Name string `json:"event"`
		}
		json.NewDecoder(r.Body).Decode(&ev)
		cs.mu.Lock()
		cs.names = append(cs.names, ev.Name)
		cs.mu.Unlock()
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) received() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]string(nil), cs.names...)
}

func TestPosterDeliversAfterCancel(t *testing.T) {
	for i := 0; i < 3; i++ {
		srv := newCountingServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		p := NewPoster(srv.URL+"/events", srv.Client())
		done := make(chan struct{})
		go func() {
			p.Run(ctx)
			close(done)
		}()

		p.PushEvent("audio_ended", nil)
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
		assert.Equal(t, []string{"audio_ended"}, srv.received())
	}
}

func TestPosterCloseFlushesQueue(t *testing.T) {
	srv := newCountingServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPoster(srv.URL+"/events", srv.Client())
	go p.Run(ctx)

	p.PushEvent("set_timezone", map[string]any{"offset": 0})
	p.PushEvent("restore_progress", map[string]any{"index": 2})
	p.PushEvent("audio_ended", nil)
	p.Close()
	p.Close()

	assert.Equal(t, []string{"set_timezone", "restore_progress", "audio_ended"}, srv.received())
}

func TestWatchReportsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>1</p>"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("<p>2</p>"), 0644))
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
