// Package page loads the server-rendered markup vigil binds to, from a local
// file or an HTTP endpoint, and carries hook events back to where it came from.
package page

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"vigil/internal/httputil"
)

// mainSelector marks the container a server renders into. When present only
// its subtree is bound.
const mainSelector = "[data-phx-main]"

// Source yields page markup.
type Source interface {
	// Fetch returns the current markup.
	Fetch(ctx context.Context) (string, error)
	// BaseURL is the address relative URLs resolve against, or "".
	BaseURL() string
	// String names the source in logs.
	String() string
}

// Open picks a source for target: http(s) URLs are fetched, anything else is
// read as a file path.
func Open(target string) (Source, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if err := httputil.ValidateURL(target); err != nil {
			return nil, fmt.Errorf("invalid page URL: %w", err)
		}
		return NewHTTP(target, httputil.NewClient()), nil
	}
	if _, err := os.Stat(target); err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &File{Path: target}, nil
}

// File reads markup from disk.
type File struct {
	Path string
}

func (f *File) Fetch(ctx context.Context) (string, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	defer fh.Close()

	doc, err := goquery.NewDocumentFromReader(fh)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", f.Path, err)
	}
	return Markup(doc)
}

func (f *File) BaseURL() string { return "" }

func (f *File) String() string { return f.Path }

// HTTP fetches markup from a URL.
type HTTP struct {
	URL    string
	client *http.Client
}

func NewHTTP(url string, client *http.Client) *HTTP {
	return &HTTP{URL: url, client: client}
}

func (h *HTTP) Fetch(ctx context.Context) (string, error) {
	doc, err := h.fetchDocument(ctx)
	if err != nil {
		return "", err
	}
	return Markup(doc)
}

func (h *HTTP) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	body, err := httputil.Get(ctx, h.client, h.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", h.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

func (h *HTTP) BaseURL() string { return h.URL }

func (h *HTTP) String() string { return h.URL }

// EventsURL is where hook events for this page are posted.
func (h *HTTP) EventsURL() string {
	return httputil.JoinPath(h.URL, "events")
}

// Markup returns the HTML to bind: the server's main container when the
// document has one, otherwise the whole body.
func Markup(doc *goquery.Document) (string, error) {
	sel := doc.Find(mainSelector).First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	if sel.Length() == 0 {
		return doc.Html()
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("rendering markup: %w", err)
	}
	return html, nil
}
