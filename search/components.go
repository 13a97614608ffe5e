package search

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/farmshift/catalog"
)

// Attributes and classes placed on the page.
const (
	MarkerAttr       = "data-ggr-checked"
	DefusedAttr      = "data-ggr-defused"
	SiteAttr         = "data-ggr-site"
	DisarmedClass    = "ggr-disarmed"
	BadgeClass       = "ggr-redirect-badge"
	MobileBadgeClass = "ggr-redirect-badge-mobile"
	PlaceholderClass = "ggr-replacement"
	ControlClass     = "ggr-disarm-control"
)

// BadgeOptions tune RedirectBadge.
type BadgeOptions struct {
	Mobile   bool
	AllMoved bool
}

// RedirectBadge builds the note appended to a rewritten result.
func RedirectBadge(o BadgeOptions) *html.Node {
	class := BadgeClass
	if o.Mobile {
		class += " " + MobileBadgeClass
	}
	title := "This result was redirected from a Fandom wiki"
	if o.AllMoved {
		title = "This wiki has moved: the result now points to its new home"
	}
	return el(atom.Span, []html.Attribute{
		{Key: "class", Val: class},
		{Key: "title", Val: title},
	}, text("Redirected"))
}

// ReplacementMarker builds the placeholder that stands in for a hidden
// result when no canonical result exists on the page.
func ReplacementMarker(s *catalog.Site, o catalog.Origins) *html.Node {
	return el(atom.Div, []html.Attribute{
		{Key: "class", Val: PlaceholderClass},
		{Key: SiteAttr, Val: s.ID},
	},
		el(atom.Span, nil, text("A result from "+s.Search.PlaceholderTitle+" was hidden. ")),
		el(atom.A, []html.Attribute{{Key: "href", Val: s.CanonicalURL(o)}},
			text("Visit the "+s.Search.NewTitle+" instead")),
	)
}

// DisabledResultControl builds the notice prepended to a disarmed result.
func DisabledResultControl(s *catalog.Site, o catalog.Origins) *html.Node {
	return el(atom.Div, []html.Attribute{
		{Key: "class", Val: ControlClass},
		{Key: SiteAttr, Val: s.ID},
	},
		el(atom.Span, nil, text(s.Name+" has moved. ")),
		el(atom.A, []html.Attribute{{Key: "href", Val: s.CanonicalURL(o)}},
			text("Open the "+s.Search.NewTitle)),
	)
}

func el(a atom.Atom, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
