package ddg

import (
	"context"
	"testing"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/search"
)

const htmlPage = `<html><body><div id="links" class="results">
<div class="result results_links" id="res">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facme-old.fandom.com%2Fwiki%2FRocket&amp;rut=x">Rocket | Acme Wiki | Fandom</a></h2>
  <a class="result__url" href="https://acme-old.fandom.com/wiki/Rocket">acme-old.fandom.com/wiki/Rocket</a>
</div>
</div></body></html>`

func TestReplace_HTMLLayout(t *testing.T) {
	doc, err := dom.ParseString(htmlPage)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.New([]*catalog.Site{{ID: "acme", OldID: "acme-old", Name: "Acme"}}, catalog.Origins{})
	rep, err := search.NewEngine(Provider, cat).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rep.Total() != 1 {
		t.Fatalf("transformed: got %d, want 1 (%+v)", rep.Total(), rep)
	}

	res := dom.Query(doc.Root(), "#res")
	if got := dom.AttrOr(dom.Query(res, "a.result__a"), "href", ""); got != "https://acme.wiki.gg/wiki/Rocket" {
		t.Errorf("title href: got %q", got)
	}
	if got := dom.TextContent(dom.Query(res, "a.result__a")); got != "Rocket | Acme Wiki" {
		t.Errorf("title: got %q", got)
	}
	if got := dom.TextContent(dom.Query(res, "a.result__url")); got != "acme.wiki.gg/wiki/Rocket" {
		t.Errorf("url text: got %q", got)
	}
	if dom.Query(res, "."+search.BadgeClass) == nil {
		t.Error("badge missing")
	}
}

func TestIsSupported(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><form id="search_form_homepage"></form></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if New().IsSupported(doc) {
		t.Error("landing page reported as supported")
	}
}
