package search

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
)

// Generic implements the provider-independent parts of Module in terms of
// Specifics. Adapters embed it and supply ID and Replace.
type Generic struct {
	Specifics
}

// Initialise does nothing.
func (g *Generic) Initialise(*dom.Document) {}

// IsSupported accepts every page.
func (g *Generic) IsSupported(*dom.Document) bool { return true }

// ResolveContainer climbs to the closest FirstResult ancestor, then prefers
// a ResultGroup found within GroupClimb further hops so that a grouped hit
// is handled as a whole.
func (g *Generic) ResolveContainer(el *html.Node) *html.Node {
	result := dom.ClimbTo(el, g.FirstResult, -1)
	if result == nil {
		return nil
	}
	climb := g.GroupClimb
	if climb == 0 {
		climb = DefaultGroupClimb
	}
	if g.ResultGroup != "" {
		if group := dom.ClimbTo(result, g.ResultGroup, climb); group != nil {
			return group
		}
	}
	return result
}

// FindNearestCanonical returns the result group of the first link to the
// site's canonical domain that comes after boundary in document order,
// outside of it.
func (g *Generic) FindNearestCanonical(doc *dom.Document, s *catalog.Site, boundary *html.Node) *html.Node {
	for _, n := range dom.QueryAll(doc.Root(), s.Search.GoodSelector) {
		if dom.Follows(n, boundary) {
			return dom.ClimbTo(n, g.ResultGroup, -1)
		}
	}
	return nil
}

// Hide promotes the nearest canonical result into the container's place,
// or replaces the container with a placeholder when there is none. The
// inserted node carries the marker and the site id, since the container
// itself leaves the document.
func (g *Generic) Hide(t Target) error {
	d := t.Doc
	if found := g.FindNearestCanonical(d, t.Site, t.Container); found != nil {
		if d.Replace(t.Container, found) {
			d.SetAttr(found, MarkerAttr, "true")
			d.SetAttr(found, SiteAttr, t.Site.ID)
			return nil
		}
	}
	marker := ReplacementMarker(t.Site, t.Origins)
	if d.Replace(t.Container, marker) {
		d.SetAttr(marker, MarkerAttr, "true")
	}
	return nil
}

// Disarm leaves the result in place behind a notice and a marker class.
func (g *Generic) Disarm(t Target) error {
	t.Doc.Prepend(t.Container, DisabledResultControl(t.Site, t.Origins))
	t.Doc.AddClass(t.Container, DisarmedClass)
	return nil
}

// Replace has no provider-independent form.
func (g *Generic) Replace(Target) error {
	return ErrNotImplemented
}
