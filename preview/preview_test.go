package preview

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/search/google"
	"github.com/hazyhaar/farmshift/settings"
)

func TestResults_OnlyMarkedContainers(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
<div data-ggr-checked="true"><a href="https://acme.wiki.gg/wiki/Rocket"><h3>Rocket | Acme Wiki</h3></a></div>
<div><a href="https://other.example.com/">Other</a></div>
</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	md, err := New().Results(doc, "")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if !strings.Contains(md, "https://acme.wiki.gg/wiki/Rocket") {
		t.Errorf("rewritten link missing:\n%s", md)
	}
	if strings.Contains(md, "other.example.com") {
		t.Errorf("unmarked result included:\n%s", md)
	}
}

func TestPage_ResolvesRelativeLinks(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><p><a href="/search?q=site:wiki.gg">More</a></p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	md, err := New().Page(doc, "https://www.google.com")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !strings.Contains(md, "www.google.com/search") {
		t.Errorf("link not resolved:\n%s", md)
	}
}

func filtered(t *testing.T, page string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.New([]*catalog.Site{{ID: "acme", OldID: "acme-old", Name: "Acme"}}, catalog.Origins{})
	src := settings.Static{View: &settings.View{Providers: map[string]settings.ProviderSettings{google.ID: {Mode: settings.ModeFilter}}}}
	rep, err := search.NewEngine(google.Provider, cat, search.WithSettings(src)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rep.Total() != 1 {
		t.Fatalf("transformed: got %d, want 1", rep.Total())
	}
	return doc
}

func TestResults_FilterPromotesCanonical(t *testing.T) {
	doc := filtered(t, `<html><body><div id="rso">
<div class="MjjYud"><div class="g"><span><a href="https://acme-old.fandom.com/wiki/Rocket" data-ved="a"><h3>Rocket | Acme Wiki | Fandom</h3></a></span></div></div>
<div class="MjjYud"><div class="g"><span><a href="https://example.org/" data-ved="b"><h3>Elsewhere</h3></a></span></div></div>
<div class="MjjYud"><div class="g"><span><a href="https://acme.wiki.gg/wiki/Rocket" data-ved="c"><h3>Rocket - Acme Wiki</h3></a></span></div></div>
</div></body></html>`)

	md, err := New().Results(doc, "")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if !strings.Contains(md, "https://acme.wiki.gg/wiki/Rocket") {
		t.Errorf("promoted result missing:\n%s", md)
	}
	if strings.Contains(md, "example.org") {
		t.Errorf("unrelated result included:\n%s", md)
	}
}

func TestResults_FilterPlaceholder(t *testing.T) {
	doc := filtered(t, `<html><body><div id="rso">
<div class="MjjYud"><div class="g"><span><a href="https://acme-old.fandom.com/wiki/Rocket" data-ved="a"><h3>Rocket | Acme Wiki | Fandom</h3></a></span></div></div>
</div></body></html>`)

	md, err := New().Results(doc, "")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if !strings.Contains(md, "https://acme.wiki.gg/") {
		t.Errorf("placeholder missing:\n%s", md)
	}
}
