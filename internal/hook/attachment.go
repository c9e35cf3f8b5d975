package hook

import "vigil/internal/dom"

// On registers a listener on the element being attached.
type On func(typ string, fn dom.Listener)

// Attachment keeps listeners on one child of a host element in step with
// re-renders. Listeners are only ever attached to a newly resolved element, and
// a stale element always has its listeners removed before anything else
// happens, so repeated binds never stack duplicates.
type Attachment struct {
	Selector string

	attach func(el *dom.Element, on On)
	detach func(el *dom.Element)

	el  *dom.Element
	ids []dom.ListenerID
}

// NewAttachment creates an attachment for the first descendant matching
// selector. attach registers listeners through on; detach, if set, runs after
// the listeners of a stale element are removed.
func NewAttachment(selector string, attach func(el *dom.Element, on On), detach func(el *dom.Element)) *Attachment {
	return &Attachment{Selector: selector, attach: attach, detach: detach}
}

// Bind re-resolves the child under host and reports whether the bound
// element changed. An unchanged subtree makes Bind a no-op.
func (a *Attachment) Bind(host *dom.Element) bool {
	var fresh *dom.Element
	if host != nil {
		fresh = host.Query(a.Selector)
	}

	changed := false
	if a.el != nil && (!host.Contains(a.el) || !a.el.Same(fresh)) {
		a.release()
		changed = true
	}
	if a.el == nil && fresh != nil {
		a.el = fresh
		if a.attach != nil {
			a.attach(fresh, func(typ string, fn dom.Listener) {
				a.ids = append(a.ids, fresh.AddEventListener(typ, fn))
			})
		}
		changed = true
	}
	return changed
}

// Unbind removes every listener and forgets the element.
func (a *Attachment) Unbind() {
	if a.el != nil {
		a.release()
	}
}

func (a *Attachment) release() {
	el := a.el
	for _, id := range a.ids {
		el.RemoveEventListener(id)
	}
	a.ids = nil
	a.el = nil
	if a.detach != nil {
		a.detach(el)
	}
}

// Element returns the bound element, or nil.
func (a *Attachment) Element() *dom.Element { return a.el }
