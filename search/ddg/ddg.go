// Package ddg adapts the engine to DuckDuckGo result pages, both the
// script layout and the plain HTML one.
package ddg

import (
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/livewatch"
	"github.com/hazyhaar/farmshift/search"
)

// ID is the provider id used in settings.
const ID = "ddg"

// Selectors cover the script layout and the plain HTML one.
var Selectors = search.Specifics{
	FirstResult:  `article[data-testid="result"], div.result`,
	ResultGroup:  `li[data-layout="organic"], div.results_links`,
	GroupClimb:   2,
	ExternalLink: `a[data-testid="result-title-a"], a[data-testid="result-extras-url-link"], a.result__a, a.result__url, a.result__snippet`,
	Heading:      `h2, a.result__a`,
	Breadcrumb:   `a[data-testid="result-extras-url-link"], a.result__url`,
	Sitelinks:    `div[data-testid="result-sitelinks"] a, a.result__sitelink`,
}

// Live is the list the "more results" button appends to.
var Live = livewatch.Spec{
	Anchor:    "#react-layout",
	Container: "ol.react-results--main",
	Content:   "article",
}

// Provider registers the adapter.
var Provider = search.Provider{ID: ID, New: New}

// Module is the DuckDuckGo adapter.
type Module struct {
	search.Generic
}

// New returns a fresh adapter.
func New() search.Module {
	return &Module{Generic: search.Generic{Specifics: Selectors}}
}

// ID implements search.Module.
func (m *Module) ID() string { return ID }

// IsSupported rejects pages without a result list, such as the landing
// page.
func (m *Module) IsSupported(doc *dom.Document) bool {
	return dom.Query(doc.Root(), `#react-layout, #links, .results`) != nil
}

// LiveSpec reports where appended results land.
func (m *Module) LiveSpec() livewatch.Spec { return Live }

// Replace rewrites the result links, title and displayed URL, then adds
// the badge after the title.
func (m *Module) Replace(t search.Target) error {
	d, c := t.Doc, t.Container
	rw := search.NewRewriter(t)
	badge := search.RedirectBadge(search.BadgeOptions{AllMoved: true})

	for _, a := range dom.QueryAll(c, m.ExternalLink) {
		rw.Link(a)
	}
	for _, h := range dom.QueryAll(c, m.Heading) {
		rw.Heading(h)
		if badge.Parent == nil && h.Parent != nil {
			d.InsertBefore(h.Parent, badge, h.NextSibling)
		}
	}
	for _, crumb := range dom.QueryAll(c, m.Breadcrumb) {
		rw.Citation(crumb)
	}
	for _, a := range dom.QueryAll(c, m.Sitelinks) {
		rw.Link(a)
	}
	rw.DefuseClicks(c)

	if badge.Parent == nil {
		d.Prepend(c, badge)
	}
	return nil
}
