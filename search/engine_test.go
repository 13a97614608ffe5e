package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/settings"
)

// testModule is a minimal adapter: results are div.r, groups div.group.
type testModule struct {
	Generic
	replaced  int
	noReplace bool
}

func (m *testModule) ID() string { return "test" }

func (m *testModule) Replace(t Target) error {
	m.replaced++
	if m.noReplace {
		return m.Generic.Replace(t)
	}
	rw := NewRewriter(t)
	for _, a := range dom.QueryAll(t.Container, "a") {
		rw.Link(a)
	}
	t.Doc.Prepend(t.Container, RedirectBadge(BadgeOptions{}))
	return nil
}

func newTestModule() *testModule {
	return &testModule{Generic: Generic{Specifics: Specifics{FirstResult: "div.r", ResultGroup: "div.group"}}}
}

func acmeCatalog(bannerOnly bool) *catalog.Catalog {
	return catalog.New([]*catalog.Site{
		{ID: "acme", OldID: "acme-old", Name: "Acme", BannerOnly: bannerOnly},
	}, catalog.Origins{DefaultRootDomain: "example.com"})
}

func withMode(m settings.Mode) Option {
	return WithSettings(settings.Static{View: &settings.View{
		Providers: map[string]settings.ProviderSettings{"test": {Mode: m}},
	}})
}

func newEngine(mod *testModule, cat *catalog.Catalog, opts ...Option) *Engine {
	return NewEngine(Provider{ID: "test", New: func() Module { return mod }}, cat, opts...)
}

func mustParse(t *testing.T, s string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

const acmeResult = `<div class="r" id="c"><a href="https://acme-old.example.com/page">Acme Wiki | Fandom</a></div>`

func TestInvoke_RewriteScenario(t *testing.T) {
	doc := mustParse(t, acmeResult)
	mod := newTestModule()
	rep, err := newEngine(mod, acmeCatalog(false), withMode(settings.ModeRewrite)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	c := dom.Query(doc.Root(), "#c")
	if got := dom.AttrOr(dom.Query(c, "a"), "href", ""); got != "https://acme.wiki.gg/page" {
		t.Errorf("href: got %q, want %q", got, "https://acme.wiki.gg/page")
	}
	if got := dom.AttrOr(c, MarkerAttr, ""); got != "true" {
		t.Errorf("marker: got %q, want true", got)
	}
	if dom.Query(c, "."+BadgeClass) == nil {
		t.Error("badge missing")
	}
	if rep.Transformed[settings.ModeRewrite] != 1 || rep.Path != PathIndexed {
		t.Errorf("report: got %+v", rep)
	}
	if len(rep.Sites) != 1 || rep.Sites[0] != "acme" {
		t.Errorf("sites: got %v", rep.Sites)
	}
}

func TestInvoke_ModeNoneLeavesDocument(t *testing.T) {
	doc := mustParse(t, acmeResult)
	before := doc.String()
	mod := newTestModule()
	rep, err := newEngine(mod, acmeCatalog(false), withMode(settings.ModeNone)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := doc.String(); got != before {
		t.Errorf("document changed:\n got %s\nwant %s", got, before)
	}
	if rep.Total() != 0 || mod.replaced != 0 {
		t.Errorf("transformed: got %d (replace calls %d), want 0", rep.Total(), mod.replaced)
	}
}

func TestInvoke_UnknownModeIsNoop(t *testing.T) {
	doc := mustParse(t, acmeResult)
	before := doc.String()
	if _, err := newEngine(newTestModule(), acmeCatalog(false), withMode("explode")).Invoke(context.Background(), doc, nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if doc.String() != before {
		t.Error("document changed under an unknown mode")
	}
}

func TestInvoke_BannerOnlyNeverMatches(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		doc := mustParse(t, acmeResult)
		before := doc.String()
		src := settings.Static{View: &settings.View{
			Providers:      map[string]settings.ProviderSettings{"test": {Mode: settings.ModeRewrite}},
			UseIndexedScan: &indexed,
		}}
		rep, err := newEngine(newTestModule(), acmeCatalog(true), WithSettings(src)).Invoke(context.Background(), doc, nil)
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		if rep.Hits != 0 || doc.String() != before {
			t.Errorf("indexed=%v: banner-only site matched (%d hits)", indexed, rep.Hits)
		}
	}
}

func TestInvoke_DisabledSiteSkipped(t *testing.T) {
	doc := mustParse(t, acmeResult)
	src := settings.Static{View: &settings.View{
		Providers:     map[string]settings.ProviderSettings{"test": {Mode: settings.ModeRewrite}},
		DisabledSites: []string{"acme"},
	}}
	rep, err := newEngine(newTestModule(), acmeCatalog(false), WithSettings(src)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rep.Hits != 0 {
		t.Errorf("hits: got %d, want 0", rep.Hits)
	}
}

func TestInvoke_Idempotent(t *testing.T) {
	doc := mustParse(t, acmeResult+`<div class="r"><a href="https://acme-old.example.com/other">Other</a></div>`)
	mod := newTestModule()
	e := newEngine(mod, acmeCatalog(false), withMode(settings.ModeRewrite))

	if _, err := e.Invoke(context.Background(), doc, nil); err != nil {
		t.Fatal(err)
	}
	after := doc.String()
	rep, err := e.Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mod.replaced != 2 {
		t.Errorf("replace calls: got %d, want 2", mod.replaced)
	}
	if doc.String() != after {
		t.Error("second run changed the document")
	}
	if rep.Total() != 0 {
		t.Errorf("second run transformed %d", rep.Total())
	}
}

func TestInvoke_MarkedContainerIsSkipped(t *testing.T) {
	doc := mustParse(t, `<div class="r" data-ggr-checked="true">
		<a href="https://acme-old.example.com/a">A</a>
		<a href="https://acme-old.example.com/b">B</a>
	</div>`)
	mod := newTestModule()
	rep, err := newEngine(mod, acmeCatalog(false), withMode(settings.ModeRewrite)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mod.replaced != 0 {
		t.Errorf("replace calls: got %d, want 0", mod.replaced)
	}
	if rep.Skipped[SkipMarked] != 2 {
		t.Errorf("skipped marked: got %d, want 2", rep.Skipped[SkipMarked])
	}
}

func TestInvoke_OneTransformationPerContainer(t *testing.T) {
	doc := mustParse(t, `<div class="r">
		<a href="https://acme-old.example.com/a">A</a>
		<a href="https://acme-old.example.com/b">B</a>
	</div>`)
	mod := newTestModule()
	if _, err := newEngine(mod, acmeCatalog(false), withMode(settings.ModeRewrite)).Invoke(context.Background(), doc, nil); err != nil {
		t.Fatal(err)
	}
	if mod.replaced != 1 {
		t.Errorf("replace calls: got %d, want 1", mod.replaced)
	}
}

func TestInvoke_SubtreeRescanMatchesCombinedRun(t *testing.T) {
	second := `<div class="r"><a href="https://acme-old.example.com/two">Two</a></div>`
	ctx := context.Background()

	combined := mustParse(t, `<div id="list">`+acmeResult+second+`</div>`)
	if _, err := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeRewrite)).Invoke(ctx, combined, nil); err != nil {
		t.Fatal(err)
	}

	inc := mustParse(t, `<div id="list">`+acmeResult+`</div>`)
	e := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeRewrite))
	if _, err := e.Invoke(ctx, inc, nil); err != nil {
		t.Fatal(err)
	}
	list := dom.Query(inc.Root(), "#list")
	nodes, err := inc.ParseFragment(list, second)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range nodes {
		inc.AppendChild(list, n)
	}
	rep, err := e.Invoke(ctx, inc, nodes[0])
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total() != 1 {
		t.Errorf("subtree run transformed %d, want 1", rep.Total())
	}

	if got, want := inc.String(), combined.String(); got != want {
		t.Errorf("incremental run differs:\n got %s\nwant %s", got, want)
	}
}

func TestInvoke_NotImplementedAborts(t *testing.T) {
	doc := mustParse(t, acmeResult+acmeResult)
	mod := newTestModule()
	mod.noReplace = true
	_, err := newEngine(mod, acmeCatalog(false), withMode(settings.ModeRewrite)).Invoke(context.Background(), doc, nil)
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("err: got %v, want ErrNotImplemented", err)
	}
	if !strings.Contains(err.Error(), "test") {
		t.Errorf("err should name the module: %v", err)
	}
	if mod.replaced != 1 {
		t.Errorf("replace calls after abort: got %d, want 1", mod.replaced)
	}
	if dom.Query(doc.Root(), "["+MarkerAttr+"]") != nil {
		t.Error("failed container was marked")
	}
}

func TestInvoke_SiteModeOverride(t *testing.T) {
	doc := mustParse(t, acmeResult)
	src := settings.Static{View: &settings.View{
		Providers: map[string]settings.ProviderSettings{"test": {Mode: settings.ModeNone}},
		SiteModes: map[string]settings.Mode{"acme": settings.ModeDisarm},
	}}
	rep, err := newEngine(newTestModule(), acmeCatalog(false), WithSettings(src)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Transformed[settings.ModeDisarm] != 1 {
		t.Errorf("disarmed: got %d, want 1", rep.Transformed[settings.ModeDisarm])
	}
}

func TestInvoke_FallbackPath(t *testing.T) {
	doc := mustParse(t, acmeResult)
	off := false
	src := settings.Static{View: &settings.View{
		Providers:      map[string]settings.ProviderSettings{"test": {Mode: settings.ModeRewrite}},
		UseIndexedScan: &off,
	}}
	rep, err := newEngine(newTestModule(), acmeCatalog(false), WithSettings(src)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Path != PathFallback || rep.Total() != 1 {
		t.Errorf("report: got path %q, %d transformed", rep.Path, rep.Total())
	}
	if got := dom.AttrOr(dom.Query(doc.Root(), "a"), "href", ""); got != "https://acme.wiki.gg/page" {
		t.Errorf("href: got %q", got)
	}
}

func TestInvoke_NoContainer(t *testing.T) {
	doc := mustParse(t, `<p><a href="https://acme-old.example.com/page">loose</a></p>`)
	rep, err := newEngine(newTestModule(), acmeCatalog(false), withMode(settings.ModeRewrite)).Invoke(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped[SkipNoContainer] != 1 {
		t.Errorf("skipped: got %v", rep.Skipped)
	}
}

func TestEngine_IndexMemoized(t *testing.T) {
	cat := acmeCatalog(false)
	e := newEngine(newTestModule(), cat)

	a := e.Index(cat, []string{"x", "y"})
	b := e.Index(cat, []string{"y", "x"})
	if a != b || e.idxBuilt != 1 {
		t.Errorf("index rebuilt for the same inputs (builds=%d)", e.idxBuilt)
	}

	next := acmeCatalog(false)
	e.SetCatalog(next)
	if e.Index(next, nil) == a {
		t.Error("index reused across catalogs")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Provider{ID: "b"}, Provider{ID: "a"})
	if got := r.IDs(); len(got) != 2 || got[0] != "a" {
		t.Errorf("IDs: got %v", got)
	}
	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get: got %v, want ErrUnknownProvider", err)
	}
}
