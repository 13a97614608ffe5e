package livewatch

import (
	"testing"

	"go.uber.org/goleak"
	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/dom"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func parse(t *testing.T, s string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func element(tag, id string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag}
	if id != "" {
		n.Attr = []html.Attribute{{Key: "id", Val: id}}
	}
	return n
}

func TestAwaitElement_Immediate(t *testing.T) {
	d := parse(t, `<div id="p"><section><span class="x"></span></section></div>`)
	var got *html.Node
	AwaitElement(d, dom.Query(d.Root(), "#p"), ".x", func(n *html.Node) { got = n })
	if got == nil {
		t.Fatal("callback not called for existing element")
	}
	if d.ObserverCount() != 0 {
		t.Errorf("ObserverCount: got %d, want 0", d.ObserverCount())
	}
}

func TestAwaitElement_FiresOnceThenDisconnects(t *testing.T) {
	d := parse(t, `<div id="p"></div>`)
	p := dom.Query(d.Root(), "#p")

	calls := 0
	AwaitElement(d, p, "section", func(*html.Node) { calls++ })

	d.AppendChild(p, element("span", ""))
	d.Deliver()
	if calls != 0 {
		t.Fatalf("calls after non-matching insert: got %d, want 0", calls)
	}

	d.AppendChild(p, element("section", ""))
	d.Deliver()
	d.AppendChild(p, element("section", ""))
	d.Deliver()

	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if d.ObserverCount() != 0 {
		t.Errorf("ObserverCount: got %d, want 0", d.ObserverCount())
	}
}

func TestAwaitElement_Cancel(t *testing.T) {
	d := parse(t, `<div id="p"></div>`)
	p := dom.Query(d.Root(), "#p")

	calls := 0
	cancel := AwaitElement(d, p, "section", func(*html.Node) { calls++ })
	cancel()
	d.AppendChild(p, element("section", ""))
	d.Deliver()

	if calls != 0 {
		t.Errorf("calls after cancel: got %d, want 0", calls)
	}
}

var spec = Spec{Anchor: "#botstuff > div", Container: ".more", Content: "div"}

func TestWatch_DeliversPopulatedBatches(t *testing.T) {
	d := parse(t, `<div id="botstuff"><div id="anchor"></div></div>`)
	anchor := dom.Query(d.Root(), "#anchor")

	var got []*html.Node
	w := Watch(d, spec, func(n *html.Node) { got = append(got, n) })
	defer w.Stop()

	if !w.Armed() || w.Following() {
		t.Fatalf("Armed=%v Following=%v, want armed and not following", w.Armed(), w.Following())
	}

	more := element("div", "")
	more.Attr = []html.Attribute{{Key: "class", Val: "more"}}
	d.AppendChild(anchor, more)
	d.Deliver()
	if !w.Following() {
		t.Fatal("container not followed")
	}

	// The provider inserts an empty batch, then fills it.
	batch := element("section", "batch")
	d.AppendChild(more, batch)
	d.Deliver()
	if len(got) != 0 {
		t.Fatalf("empty batch delivered")
	}
	if w.Pending() != 1 {
		t.Fatalf("Pending: got %d, want 1", w.Pending())
	}

	results := element("div", "results")
	d.AppendChild(batch, results)
	d.Deliver()

	if len(got) != 1 || got[0] != results {
		t.Fatalf("delivered: got %d subtrees", len(got))
	}
	if w.Pending() != 0 {
		t.Errorf("Pending: got %d, want 0", w.Pending())
	}

	// A second, already populated batch is delivered immediately.
	second := element("section", "")
	second.AppendChild(element("div", "more-results"))
	d.AppendChild(more, second)
	d.Deliver()
	if w.Delivered() != 2 {
		t.Errorf("Delivered: got %d, want 2", w.Delivered())
	}
}

func TestWatch_MissingAnchor(t *testing.T) {
	d := parse(t, `<div></div>`)
	w := Watch(d, spec, func(*html.Node) { t.Error("unexpected delivery") })
	if w.Armed() {
		t.Error("Armed: got true, want false")
	}
	w.Stop()
}

func TestWatch_StopReleasesObservers(t *testing.T) {
	d := parse(t, `<div id="botstuff"><div><div class="more"></div></div></div>`)
	more := dom.Query(d.Root(), ".more")

	w := Watch(d, spec, func(*html.Node) {})
	d.AppendChild(more, element("section", ""))
	d.Deliver()
	if d.ObserverCount() != 2 {
		t.Fatalf("ObserverCount: got %d, want 2", d.ObserverCount())
	}

	w.Stop()
	w.Stop()
	if d.ObserverCount() != 0 {
		t.Errorf("ObserverCount after Stop: got %d, want 0", d.ObserverCount())
	}
	if w.Pending() != 0 {
		t.Errorf("Pending after Stop: got %d, want 0", w.Pending())
	}
}
