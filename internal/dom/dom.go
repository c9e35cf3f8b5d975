// Package dom holds the server-rendered markup the engine binds to.
// Markup is parsed with goquery; element identity is the underlying
// *html.Node, so a re-render that keeps a node keeps its listeners and a
// re-render that replaces a subtree hands out fresh nodes.
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ListenerID identifies one registered listener.
type ListenerID int

// Event is dispatched to element listeners.
type Event struct {
	Type   string
	Target *Element
	Err    error
}

// Listener handles a dispatched event.
type Listener func(Event)

type listener struct {
	id  ListenerID
	typ string
	fn  Listener
}

// Document is a mutable element tree plus its listener registry.
type Document struct {
	root      *html.Node
	listeners map[*html.Node][]listener
	owners    map[ListenerID]*html.Node
	nextID    ListenerID
}

// Parse builds a document from markup.
func Parse(markup string) (*Document, error) {
	root, err := parse(markup)
	if err != nil {
		return nil, err
	}
	return &Document{
		root:      root,
		listeners: make(map[*html.Node][]listener),
		owners:    make(map[ListenerID]*html.Node),
	}, nil
}

func parse(markup string) (*html.Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc.Nodes[0], nil
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

func (d *Document) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Selection
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *Element {
	s := d.selection().Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return d.wrap(s.Nodes[0])
}

// QueryAll returns every element matching selector in document order.
func (d *Document) QueryAll(selector string) []*Element {
	var out []*Element
	d.selection().Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.wrap(s.Nodes[0]))
	})
	return out
}

// ByID returns the element whose id attribute equals id.
func (d *Document) ByID(id string) *Element {
	if id == "" {
		return nil
	}
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && attr(c, "id") == id {
				found = c
				return
			}
			walk(c)
		}
	}
	walk(d.root)
	return d.wrap(found)
}

// Render morphs the document into markup. Elements whose tag and id line up
// with the new markup are updated in place; anything else is replaced by the
// new nodes. Listeners stay with their node, including detached ones.
func (d *Document) Render(markup string) error {
	next, err := parse(markup)
	if err != nil {
		return err
	}
	morph(d.root, next)
	return nil
}

// ListenerTotal reports listeners registered across all nodes, attached or not.
func (d *Document) ListenerTotal() int {
	return len(d.owners)
}

func morph(old, next *html.Node) {
	if old.Type == html.TextNode || old.Type == html.CommentNode {
		old.Data = next.Data
		return
	}
	old.Attr = append([]html.Attribute(nil), next.Attr...)

	var oc, nc []*html.Node
	for c := old.FirstChild; c != nil; c = c.NextSibling {
		oc = append(oc, c)
	}
	for c := next.FirstChild; c != nil; c = c.NextSibling {
		nc = append(nc, c)
	}

	for i, n := range nc {
		switch {
		case i < len(oc) && compatible(oc[i], n):
			morph(oc[i], n)
		case i < len(oc):
			next.RemoveChild(n)
			old.InsertBefore(n, oc[i])
			old.RemoveChild(oc[i])
		default:
			next.RemoveChild(n)
			old.AppendChild(n)
		}
	}
	for i := len(nc); i < len(oc); i++ {
		old.RemoveChild(oc[i])
	}
}

func compatible(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type != html.ElementNode {
		return true
	}
	return a.Data == b.Data && attr(a, "id") == attr(b, "id")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func (d *Document) addListener(n *html.Node, typ string, fn Listener) ListenerID {
	d.nextID++
	id := d.nextID
	d.listeners[n] = append(d.listeners[n], listener{id: id, typ: typ, fn: fn})
	d.owners[id] = n
	return id
}

func (d *Document) removeListener(id ListenerID) {
	n, ok := d.owners[id]
	if !ok {
		return
	}
	delete(d.owners, id)
	list := d.listeners[n]
	for i, l := range list {
		if l.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(d.listeners, n)
		return
	}
	d.listeners[n] = list
}
