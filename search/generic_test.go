package search

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/settings"
)

func TestResolveContainer_PrefersGroup(t *testing.T) {
	doc := mustParse(t, `<div class="group" id="g"><div><div class="r" id="r"><span><a id="a" href="#">x</a></span></div></div></div>`)
	g := newTestModule()

	if got := g.ResolveContainer(dom.Query(doc.Root(), "#a")); dom.AttrOr(got, "id", "") != "g" {
		t.Errorf("container: got %q, want g", dom.AttrOr(got, "id", ""))
	}
}

func TestResolveContainer_GroupOutOfReach(t *testing.T) {
	doc := mustParse(t, `<div class="group"><div><div><div><div><div><div class="r" id="r"><a id="a" href="#">x</a></div></div></div></div></div></div></div>`)
	g := newTestModule()
	g.GroupClimb = 2

	if got := g.ResolveContainer(dom.Query(doc.Root(), "#a")); dom.AttrOr(got, "id", "") != "r" {
		t.Errorf("container: got %q, want r", dom.AttrOr(got, "id", ""))
	}
}

func TestResolveContainer_None(t *testing.T) {
	doc := mustParse(t, `<p><a id="a" href="#">x</a></p>`)
	if got := newTestModule().ResolveContainer(dom.Query(doc.Root(), "#a")); got != nil {
		t.Errorf("container: got %v, want nil", got)
	}
}

const hidePage = `<div id="list">
<div class="group" id="g1"><div class="r"><a href="https://acme-old.example.com/x">Acme Wiki</a></div></div>
<div class="group" id="g2"><div class="r"><a href="https://acme.wiki.gg/x">Acme Wiki</a></div></div>
</div>`

func TestHide_PromotesCanonicalResult(t *testing.T) {
	doc := mustParse(t, hidePage)
	rep, err := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeFilter)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Transformed[settings.ModeFilter] != 1 {
		t.Fatalf("filtered: got %d, want 1", rep.Transformed[settings.ModeFilter])
	}

	groups := dom.QueryAll(doc.Root(), "div.group")
	if len(groups) != 1 || dom.AttrOr(groups[0], "id", "") != "g2" {
		t.Fatalf("groups after hide: got %d", len(groups))
	}
	if strings.Contains(doc.String(), "acme-old") {
		t.Error("legacy result still present")
	}
	if dom.Query(doc.Root(), "."+PlaceholderClass) != nil {
		t.Error("placeholder inserted although a canonical result exists")
	}
	if got := dom.AttrOr(groups[0], MarkerAttr, ""); got != "true" {
		t.Errorf("promoted marker: got %q, want %q", got, "true")
	}
	if got := dom.AttrOr(groups[0], SiteAttr, ""); got != "acme" {
		t.Errorf("promoted site: got %q, want %q", got, "acme")
	}
}

func TestHide_CanonicalBeforeIsIgnored(t *testing.T) {
	doc := mustParse(t, `<div id="list">
<div class="group" id="g0"><div class="r"><a href="https://acme.wiki.gg/x">Acme Wiki</a></div></div>
<div class="group" id="g1"><div class="r"><a href="https://acme-old.example.com/x">Acme Wiki</a></div></div>
</div>`)
	if _, err := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeFilter)).Invoke(context.Background(), doc, nil); err != nil {
		t.Fatal(err)
	}
	marker := dom.Query(doc.Root(), "."+PlaceholderClass)
	if marker == nil {
		t.Fatal("placeholder missing")
	}
	if dom.Query(doc.Root(), "#g0") == nil {
		t.Error("earlier canonical result was moved")
	}
}

func TestHide_Placeholder(t *testing.T) {
	doc := mustParse(t, `<div id="list"><div class="group" id="g1"><div class="r"><a href="https://acme-old.example.com/x">Acme</a></div></div></div>`)
	if _, err := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeFilter)).Invoke(context.Background(), doc, nil); err != nil {
		t.Fatal(err)
	}
	if dom.Query(doc.Root(), "#g1") != nil {
		t.Error("legacy container still attached")
	}
	marker := dom.Query(doc.Root(), "."+PlaceholderClass)
	if marker == nil {
		t.Fatal("placeholder missing")
	}
	if got := dom.AttrOr(marker, SiteAttr, ""); got != "acme" {
		t.Errorf("placeholder site: got %q", got)
	}
	if got := dom.AttrOr(marker, MarkerAttr, ""); got != "true" {
		t.Errorf("placeholder marker: got %q, want %q", got, "true")
	}
	if !strings.Contains(dom.TextContent(marker), "Acme") {
		t.Errorf("placeholder text: got %q", dom.TextContent(marker))
	}
	if got := dom.AttrOr(dom.Query(marker, "a"), "href", ""); got != "https://acme.wiki.gg/" {
		t.Errorf("placeholder link: got %q", got)
	}
}

func TestDisarm(t *testing.T) {
	doc := mustParse(t, acmeResult)
	if _, err := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeDisarm)).Invoke(context.Background(), doc, nil); err != nil {
		t.Fatal(err)
	}
	c := dom.Query(doc.Root(), "#c")
	if !dom.HasClass(c, DisarmedClass) {
		t.Error("disarmed class missing")
	}
	ctl := c.FirstChild
	if !dom.HasClass(ctl, ControlClass) {
		t.Errorf("first child: got %q, want the control", dom.OuterHTML(ctl))
	}
	if got := dom.AttrOr(dom.Query(c, `a[href*="acme-old"]`), "href", ""); got != "https://acme-old.example.com/page" {
		t.Errorf("link changed: %q", got)
	}
}

func rewriteTarget(t *testing.T, markup string) (Target, *Rewriter) {
	t.Helper()
	doc := mustParse(t, markup)
	cat := acmeCatalog(false)
	tg := Target{
		Doc:        doc,
		Site:       cat.Site("acme"),
		Origins:    cat.Origins,
		RootDomain: "example.com",
		Container:  dom.Query(doc.Root(), "#c"),
	}
	return tg, NewRewriter(tg)
}

func TestRewriter_LinkLeavesUnrelatedHosts(t *testing.T) {
	tg, rw := rewriteTarget(t, `<div id="c"><a id="x" href="https://other.example.com/page?a=1&amp;b=2" ping="/p" data-ved="1">x</a></div>`)
	a := dom.Query(tg.Container, "#x")
	before := dom.OuterHTML(a)

	if rw.Link(a) {
		t.Error("Link: got true for an unrelated host")
	}
	if got := dom.OuterHTML(a); got != before {
		t.Errorf("anchor changed:\n got %s\nwant %s", got, before)
	}
}

func TestRewriter_LinkUnwrapsRedirect(t *testing.T) {
	tg, rw := rewriteTarget(t, `<div id="c"><a id="x" href="/url?q=https://acme-old.example.com/wiki/Page&amp;sa=U" data-jsarwt="1" data-hveid="h" data-ctpacw="c" data-ved="v" ping="/ping">x</a></div>`)
	a := dom.Query(tg.Container, "#x")

	if !rw.Link(a) {
		t.Fatal("Link: got false")
	}
	if got := dom.AttrOr(a, "href", ""); got != "https://acme.wiki.gg/wiki/Page" {
		t.Errorf("href: got %q", got)
	}
	if got := dom.AttrOr(a, "data-jsarwt", ""); got != "0" {
		t.Errorf("data-jsarwt: got %q, want 0", got)
	}
	for _, k := range []string{"data-hveid", "data-ctpacw", "data-ved", "ping"} {
		if _, ok := dom.Attr(a, k); ok {
			t.Errorf("%s not removed", k)
		}
	}
}

func TestRewriter_HeadingNested(t *testing.T) {
	tg, rw := rewriteTarget(t, `<div id="c"><h3><span><b>Acme Wiki | Fandom</b></span></h3></div>`)
	h := dom.Query(tg.Container, "h3")
	if n := rw.Heading(h); n != 1 {
		t.Fatalf("Heading: changed %d nodes, want 1", n)
	}
	if got := dom.TextContent(h); got != "Acme Wiki" {
		t.Errorf("heading: got %q, want %q", got, "Acme Wiki")
	}
}

func TestRewriter_CitationAndMoreFrom(t *testing.T) {
	tg, rw := rewriteTarget(t, `<div id="c"><cite>https://<span>acme-old.example.com</span> › wiki</cite>`+
		`<a id="more" class="fl" href="/search?q=site:example.com+acme">More results from example.com</a></div>`)

	rw.Citation(dom.Query(tg.Container, "cite"))
	if got := dom.TextContent(dom.Query(tg.Container, "cite")); got != "https://acme.wiki.gg › wiki" {
		t.Errorf("cite: got %q", got)
	}

	more := dom.Query(tg.Container, "#more")
	if !rw.MoreFrom(more) {
		t.Error("MoreFrom: got false")
	}
	if got := dom.AttrOr(more, "href", ""); got != "/search?q=site:wiki.gg+acme" {
		t.Errorf("more href: got %q", got)
	}
	if got := dom.TextContent(more); got != "More results from wiki.gg" {
		t.Errorf("more text: got %q", got)
	}
}

func TestRewriter_DefuseClicks(t *testing.T) {
	tg, rw := rewriteTarget(t, `<div id="c" onclick="track()"><a href="#" onmousedown="rwt()">x</a></div>`)
	rw.DefuseClicks(tg.Container)

	if got := dom.AttrOr(tg.Container, DefusedAttr, ""); got != "true" {
		t.Errorf("defused: got %q", got)
	}
	if strings.Contains(dom.OuterHTML(tg.Container), "onclick") || strings.Contains(dom.OuterHTML(tg.Container), "onmousedown") {
		t.Errorf("handlers left: %s", dom.OuterHTML(tg.Container))
	}
}
