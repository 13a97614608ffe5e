// Package scan finds links into legacy domains under a root node and pairs
// each with the site it belongs to. Scanning never mutates the tree; the
// match list is taken once, so callers may transform results while they
// iterate.
package scan

import (
	"iter"
	"regexp"

	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/index"
)

// hostPattern captures the subdomain and a two-label root domain of an
// absolute URL.
var hostPattern = regexp.MustCompile(`https?://([a-zA-Z0-9.\-]+)\.(\w+\.\w+)(?:/|$)`)

// Hit is one link attributed to a site.
type Hit struct {
	Site    *catalog.Site
	Element *html.Node
	// RootDomain is the root domain as it appears in the link, before
	// alias resolution.
	RootDomain string
}

// SplitHost extracts (subdomain, root domain) from an href.
func SplitHost(href string) (sub, root string, ok bool) {
	m := hostPattern.FindStringSubmatch(href)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Indexed runs the combined selector of idx once and resolves each link
// through the index. Links that do not parse or do not resolve are skipped.
func Indexed(root *html.Node, idx *index.Index) iter.Seq[Hit] {
	links := dom.QueryAll(root, idx.Selector())
	return func(yield func(Hit) bool) {
		for _, a := range links {
			sub, rootDomain, ok := SplitHost(dom.AttrOr(a, "href", ""))
			if !ok {
				continue
			}
			site := idx.Lookup(rootDomain, sub)
			if site == nil {
				continue
			}
			if !yield(Hit{Site: site, Element: a, RootDomain: rootDomain}) {
				return
			}
		}
	}
}

// Fallback walks sites in catalog order and runs each site's own legacy
// selector. Banner-only sites and sites for which disabled reports true are
// skipped. It needs no index and costs one query per site.
func Fallback(root *html.Node, cat *catalog.Catalog, disabled func(id string) bool) iter.Seq[Hit] {
	return func(yield func(Hit) bool) {
		for _, s := range cat.Sites {
			if s.BannerOnly || (disabled != nil && disabled(s.ID)) {
				continue
			}
			for _, a := range dom.QueryAll(root, s.Search.BadSelector) {
				rootDomain := cat.Origins.RootFor(s)
				if _, d, ok := SplitHost(dom.AttrOr(a, "href", "")); ok {
					rootDomain = d
				}
				if !yield(Hit{Site: s, Element: a, RootDomain: rootDomain}) {
					return
				}
			}
		}
	}
}
