package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a handle on one node of a Document. Handles are cheap; compare
// them with Same, not ==.
type Element struct {
	doc  *Document
	node *html.Node
}

// Same reports whether e and o refer to the same node. Two nil handles are the same.
func (e *Element) Same(o *Element) bool {
	if e == nil || o == nil {
		return e == nil && o == nil
	}
	return e.node == o.node
}

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

func (e *Element) ID() string { return attr(e.node, "id") }

// Tag returns the lower-case element name.
func (e *Element) Tag() string { return e.node.Data }

// Attr returns the named attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Data returns the data-<name> attribute, or "" if absent.
func (e *Element) Data(name string) string {
	v, _ := e.Attr("data-" + name)
	return v
}

// HasData reports whether data-<name> is present.
func (e *Element) HasData(name string) bool {
	_, ok := e.Attr("data-" + name)
	return ok
}

func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) RemoveAttr(name string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			return
		}
	}
}

func (e *Element) classes() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

func (e *Element) HasClass(class string) bool {
	for _, c := range e.classes() {
		if c == class {
			return true
		}
	}
	return false
}

func (e *Element) AddClass(class string) {
	if e.HasClass(class) {
		return
	}
	e.SetAttr("class", strings.TrimSpace(strings.Join(append(e.classes(), class), " ")))
}

func (e *Element) RemoveClass(class string) {
	var kept []string
	for _, c := range e.classes() {
		if c != class {
			kept = append(kept, c)
		}
	}
	e.SetAttr("class", strings.Join(kept, " "))
}

// SetClass adds or removes class depending on on.
func (e *Element) SetClass(class string, on bool) {
	if on {
		e.AddClass(class)
	} else {
		e.RemoveClass(class)
	}
}

func (e *Element) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

// Query returns the first descendant matching selector, or nil.
func (e *Element) Query(selector string) *Element {
	s := e.selection().Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return e.doc.wrap(s.Nodes[0])
}

// QueryAll returns every descendant matching selector in document order.
func (e *Element) QueryAll(selector string) []*Element {
	var out []*Element
	e.selection().Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, e.doc.wrap(s.Nodes[0]))
	})
	return out
}

// Contains reports whether o is a strict descendant of e.
func (e *Element) Contains(o *Element) bool {
	if e == nil || o == nil {
		return false
	}
	for p := o.node.Parent; p != nil; p = p.Parent {
		if p == e.node {
			return true
		}
	}
	return false
}

// Attached reports whether e is still part of its document.
func (e *Element) Attached() bool {
	for p := e.node; p != nil; p = p.Parent {
		if p == e.doc.root {
			return true
		}
	}
	return false
}

// Text returns the combined text content.
func (e *Element) Text() string {
	return strings.TrimSpace(e.selection().Text())
}

// OuterHTML renders the element back to markup.
func (e *Element) OuterHTML() string {
	s, err := goquery.OuterHtml(e.selection())
	if err != nil {
		return ""
	}
	return s
}

// AddEventListener registers fn for events of type typ on this node.
func (e *Element) AddEventListener(typ string, fn Listener) ListenerID {
	return e.doc.addListener(e.node, typ, fn)
}

// RemoveEventListener unregisters a listener. Unknown ids are ignored.
func (e *Element) RemoveEventListener(id ListenerID) {
	e.doc.removeListener(id)
}

// Dispatch delivers an event of type typ to this node's listeners.
func (e *Element) Dispatch(typ string, err error) {
	ev := Event{Type: typ, Target: e, Err: err}
	list := append([]listener(nil), e.doc.listeners[e.node]...)
	for _, l := range list {
		if l.typ == typ {
			l.fn(ev)
		}
	}
}

// ListenerCount reports listeners of type typ on this node; "" counts all.
func (e *Element) ListenerCount(typ string) int {
	n := 0
	for _, l := range e.doc.listeners[e.node] {
		if typ == "" || l.typ == typ {
			n++
		}
	}
	return n
}

// SetText replaces the element's children with a single text node.
func (e *Element) SetText(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
