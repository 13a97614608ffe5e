package search

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/dom"
)

// trackingAttrs are stripped from rewritten links.
var trackingAttrs = []string{"data-hveid", "data-ctpacw", "data-ved", "ping"}

// redirectPrefixes start provider redirect links; redirectKeys hold their
// destination.
var (
	redirectPrefixes = []string{"/url?", "/l/?", "//duckduckgo.com/l/?", "https://duckduckgo.com/l/?"}
	redirectKeys     = []string{"url", "q", "uddg"}
)

// inlineHandlers are removed from containers whose clicks are defused.
var inlineHandlers = []string{"onclick", "onmousedown"}

// Rewriter carries the host substitution for one Target.
type Rewriter struct {
	t        Target
	root     string
	oldHosts []string
	newHost  string
}

// NewRewriter prepares the legacy hosts of t.Site under t.RootDomain.
func NewRewriter(t Target) *Rewriter {
	root := t.RootDomain
	if root == "" {
		root = t.Origins.RootFor(t.Site)
	}
	ids := t.Site.LegacyIDs()
	r := &Rewriter{
		oldHosts: make([]string, len(ids)),
		newHost:  t.Site.CanonicalHost(t.Origins),
		root:     root,
		t:        t,
	}
	for i, id := range ids {
		r.oldHosts[i] = id + "." + root
	}
	return r
}

// OldHost is the host of the primary legacy id.
func (r *Rewriter) OldHost() string { return r.oldHosts[0] }

// NewHost is the canonical host.
func (r *Rewriter) NewHost() string { return r.newHost }

// Host substitutes the first legacy host found in s. Hosts match
// case-insensitively, as the domain index does.
func (r *Rewriter) Host(s string) string {
	for _, h := range r.oldHosts {
		if i := indexFold(s, h); i >= 0 {
			return s[:i] + r.newHost + s[i+len(h):]
		}
	}
	return s
}

// indexFold is strings.Index under ASCII case folding.
func indexFold(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

// Link points an anchor at the canonical host. A provider redirect
// ("/url?q=", "/l/?uddg=") is unwrapped first. Anchors whose target does
// not mention a legacy id are left untouched. It reports whether the link
// was rewritten.
func (r *Rewriter) Link(a *html.Node) bool {
	if !dom.IsTag(a, "a") {
		return false
	}
	href, ok := dom.Attr(a, "href")
	if !ok {
		return false
	}
	href = unwrapRedirect(href)
	if !r.mentionsLegacyID(href) {
		return false
	}

	d := r.t.Doc
	d.SetAttr(a, "href", r.Host(href))
	if v, ok := dom.Attr(a, "data-jsarwt"); ok && v != "" {
		d.SetAttr(a, "data-jsarwt", "0")
	}
	for _, k := range trackingAttrs {
		d.RemoveAttr(a, k)
	}
	return true
}

func (r *Rewriter) mentionsLegacyID(href string) bool {
	for _, id := range r.t.Site.LegacyIDs() {
		if indexFold(href, id) >= 0 {
			return true
		}
	}
	return false
}

// unwrapRedirect returns the destination of a provider redirect, or href
// when it is not one.
func unwrapRedirect(href string) string {
	redirect := false
	for _, p := range redirectPrefixes {
		if strings.HasPrefix(href, p) {
			redirect = true
			break
		}
	}
	if !redirect {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	q := u.Query()
	for _, k := range redirectKeys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return href
}

// Heading rewrites the legacy title in every text node under n.
func (r *Rewriter) Heading(n *html.Node) int {
	m := r.t.Site.Search
	if m.TitlePattern == nil {
		return 0
	}
	return r.t.Doc.ReplaceText(n, func(s string) string {
		return m.TitlePattern.ReplaceAllLiteralString(s, m.NewTitle)
	})
}

// Citation substitutes the legacy host in every text node under n.
func (r *Rewriter) Citation(n *html.Node) int {
	return r.t.Doc.ReplaceText(n, r.Host)
}

// MoreFrom moves a "more results from" link onto the canonical domain:
// site: operators in its target and the root domain in its text.
func (r *Rewriter) MoreFrom(a *html.Node) bool {
	href, ok := dom.Attr(a, "href")
	if !ok {
		return false
	}
	canonical := r.t.Origins.CanonicalDomain
	root := r.root
	out := href
	for _, op := range []string{"site:", "site%3A", "site%3a"} {
		for _, h := range r.oldHosts {
			out = strings.ReplaceAll(out, op+h, op+r.newHost)
		}
		out = strings.ReplaceAll(out, op+root, op+canonical)
	}
	d := r.t.Doc
	d.SetAttr(a, "href", out)
	d.ReplaceText(a, func(s string) string {
		return strings.Replace(s, root, canonical, 1)
	})
	return out != href
}

// DefuseClicks marks the container and strips inline click handlers from
// it and its links.
func (r *Rewriter) DefuseClicks(container *html.Node) {
	d := r.t.Doc
	d.SetAttr(container, DefusedAttr, "true")
	nodes := append([]*html.Node{container}, dom.QueryAll(container, "a")...)
	for _, n := range nodes {
		for _, k := range inlineHandlers {
			d.RemoveAttr(n, k)
		}
	}
}
