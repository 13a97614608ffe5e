// Package livewatch follows the insertion points where search providers add
// result batches after the first render. It is built on dom observers: a
// fire-once wait for an element to appear, and a persistent watcher that
// arms one such wait per inserted batch.
//
// Like dom.Document, nothing here is safe for concurrent use. Callbacks run
// from Document.Deliver on the goroutine that owns the document.
package livewatch

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/dom"
)

// Spec locates a provider's live-update area.
type Spec struct {
	// Anchor is queried from the document root.
	Anchor string `json:"anchor" yaml:"anchor"`
	// Container is awaited under Anchor; batches are added as its children.
	Container string `json:"container" yaml:"container"`
	// Content is awaited under each added batch before it is handed over.
	Content string `json:"content" yaml:"content"`
}

// AwaitElement calls fn with the first element under parent matching sel.
// When none exists yet it observes the direct children of parent until one
// matching sel is added, then disconnects and calls fn once. The returned
// cancel func disconnects a wait that has not fired; it is safe to call at
// any time.
func AwaitElement(doc *dom.Document, parent *html.Node, sel string, fn func(*html.Node)) (cancel func()) {
	if n := dom.Query(parent, sel); n != nil {
		fn(n)
		return func() {}
	}
	o := doc.Observe(parent, dom.ObserveOptions{ChildList: true}, func(_ []dom.Record, o *dom.Observer) {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if dom.Matches(c, sel) {
				o.Disconnect()
				fn(c)
				return
			}
		}
	})
	return o.Disconnect
}

// Watcher is a persistent subscription to a live-update container.
type Watcher struct {
	doc       *dom.Document
	spec      Spec
	onSubtree func(*html.Node)

	armed     bool
	stopped   bool
	observer  *dom.Observer
	nextWait  int
	waits     map[int]func()
	delivered int
}

// Watch arms a watcher on doc. onSubtree receives every populated batch.
// When the anchor is missing the watcher is inert; Armed reports false.
func Watch(doc *dom.Document, spec Spec, onSubtree func(*html.Node)) *Watcher {
	w := &Watcher{
		doc:       doc,
		spec:      spec,
		onSubtree: onSubtree,
		waits:     make(map[int]func()),
	}
	anchor := dom.Query(doc.Root(), spec.Anchor)
	if anchor == nil {
		return w
	}
	w.armed = true
	w.await(anchor, spec.Container, w.follow)
	return w
}

// await wraps AwaitElement so pending waits can be counted and cancelled.
func (w *Watcher) await(parent *html.Node, sel string, fn func(*html.Node)) {
	id := w.nextWait
	w.nextWait++
	fired := false
	cancel := AwaitElement(w.doc, parent, sel, func(n *html.Node) {
		fired = true
		delete(w.waits, id)
		if !w.stopped {
			fn(n)
		}
	})
	if !fired {
		w.waits[id] = cancel
	}
}

// follow subscribes to batches added under the container.
func (w *Watcher) follow(container *html.Node) {
	w.observer = w.doc.Observe(container, dom.ObserveOptions{ChildList: true}, func(records []dom.Record, _ *dom.Observer) {
		for _, rec := range records {
			for _, added := range rec.Added {
				if added.Type != html.ElementNode || added.Parent == nil {
					continue
				}
				w.await(added, w.spec.Content, w.deliver)
			}
		}
	})
}

func (w *Watcher) deliver(n *html.Node) {
	w.delivered++
	w.onSubtree(n)
}

// Armed reports whether the anchor was found.
func (w *Watcher) Armed() bool { return w.armed }

// Following reports whether the container was found and is observed.
func (w *Watcher) Following() bool { return w.observer != nil && w.observer.Connected() }

// Pending counts waits that have not fired.
func (w *Watcher) Pending() int { return len(w.waits) }

// Delivered counts subtrees handed to the callback.
func (w *Watcher) Delivered() int { return w.delivered }

// Stop disconnects every observer. It is idempotent.
func (w *Watcher) Stop() {
	if w.stopped {
		return
	}
	w.stopped = true
	if w.observer != nil {
		w.observer.Disconnect()
	}
	for id, cancel := range w.waits {
		cancel()
		delete(w.waits, id)
	}
}
