// Package google adapts the engine to Google result pages, desktop and
// mobile.
package google

import (
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/livewatch"
	"github.com/hazyhaar/farmshift/search"
)

// ID is the provider id used in settings.
const ID = "google"

// Selectors of the Google result markup. Desktop and mobile variants are
// joined in one group.
var Selectors = search.Specifics{
	FirstResult:  "div.MjjYud, div.g, .xpd",
	ResultGroup:  "div.MjjYud, div.g",
	GroupClimb:   5,
	NetworkTitle: "span.VuuXrf, div.GkAmnd.ZaCDgb.RES9jf.q8U8x.OSrXXb.wHYlTd",
	ExternalLink: "h3 > a.l, span > a[data-ved], .OhZyZc > a[data-ved], div.DkX4ue.Va3FIb.EE3Upf.lVm3ye > a[data-hveid]",
	Heading:      "h3, div.F0FGWb.v7jaNc.ynAwRc.MBeuO.q8U8x > div > span",
	Translate:    ".LAWljd + .fl[ping], .fl.iUh30",
	Breadcrumb:   "div.kb0PBd.cvP2Ce > span.nC62wb, .sCuL3 > div",
	SidePanel:    `div[jsslot] > div[jsname="I3kE2c"]`,
	Sitelinks:    "li.KTAFWb > a.dM1Yyd",
}

// Live is where Google appends results loaded by continuous scrolling.
var Live = livewatch.Spec{
	Anchor:    "#botstuff > div",
	Container: `[jscontroller="ogmBcd"] > [data-async-rclass="search"] + div`,
	Content:   "div",
}

// mobileMarker is only present on the mobile layout.
const mobileMarker = "#navd"

// Provider registers the adapter.
var Provider = search.Provider{ID: ID, New: New}

// Module is the Google adapter.
type Module struct {
	search.Generic
	mobile       bool
	defuseClicks bool
}

// New returns a fresh adapter.
func New() search.Module {
	return &Module{
		Generic:      search.Generic{Specifics: Selectors},
		defuseClicks: true,
	}
}

func (m *Module) ID() string { return ID }

// Initialise detects the mobile layout.
func (m *Module) Initialise(doc *dom.Document) {
	m.mobile = dom.Query(doc.Root(), mobileMarker) != nil
}

// Mobile reports whether the page uses the mobile layout.
func (m *Module) Mobile() bool { return m.mobile }

// LiveSpec implements search.LiveUpdater.
func (m *Module) LiveSpec() livewatch.Spec { return Live }

// Replace rewrites a legacy result in place so that it points at the
// canonical wiki. Each step is skipped when its element is missing.
func (m *Module) Replace(t search.Target) error {
	d, c := t.Doc, t.Container
	rw := search.NewRewriter(t)
	badge := search.RedirectBadge(search.BadgeOptions{Mobile: m.mobile, AllMoved: true})

	if header := dom.Query(c, m.NetworkTitle); header != nil {
		d.SetTextContent(header, t.Origins.CanonicalDomain)
		d.AppendChild(header, badge)
	}

	for _, a := range dom.QueryAll(c, m.ExternalLink) {
		rw.Link(a)
	}

	for _, h := range dom.QueryAll(c, m.Heading) {
		rw.Heading(h)
		if badge.Parent == nil {
			if p := h.Parent; p != nil && p.Parent != nil {
				d.InsertBefore(p.Parent, badge, p.NextSibling)
			}
		}
	}

	for _, a := range dom.QueryAll(c, m.Translate) {
		rw.Link(a)
	}

	if !m.mobile {
		for _, cite := range dom.QueryAll(c, "cite") {
			rw.Citation(cite)
		}
	} else if crumb := dom.Query(c, m.Breadcrumb); crumb != nil {
		rw.Citation(crumb)
	}

	for _, a := range dom.QueryAll(c, moreFromSelector(t.RootDomain)) {
		rw.MoreFrom(a)
	}

	for _, a := range dom.QueryAll(c, m.Sitelinks) {
		rw.Link(a)
	}

	if btn := dom.Query(c, m.SidePanel); btn != nil {
		d.Hide(btn)
	}

	if m.defuseClicks {
		rw.DefuseClicks(c)
	}

	if badge.Parent == nil {
		d.Prepend(c, badge)
	}
	return nil
}

// moreFromSelector matches "more results from" links restricted to root.
func moreFromSelector(root string) string {
	return `a.fl[href*="site:` + root + `"], a.fl[href*="site%3A` + root + `"]`
}

var _ interface {
	search.Module
	search.LiveUpdater
} = (*Module)(nil)
