// Package index turns a site catalog into the two-level lookup the scanner
// uses: root domain, then legacy subdomain, then site. It also builds the
// single selector that matches every link into any domain of interest.
package index

import (
	"strings"

	"github.com/hazyhaar/farmshift/catalog"
)

// Index maps (root domain, legacy id) to a site.
type Index struct {
	origins  catalog.Origins
	byRoot   map[string]map[string]*catalog.Site
	roots    []string
	selector string
}

// Build indexes every site that is neither banner-only nor disabled. When
// two sites claim the same (root, legacy id) pair the later one in catalog
// order wins; catalog.Validate reports such collisions.
func Build(cat *catalog.Catalog, disabled []string) *Index {
	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[id] = true
	}

	idx := &Index{
		origins: cat.Origins,
		byRoot:  make(map[string]map[string]*catalog.Site),
		roots:   cat.Origins.RootDomains(),
	}
	for _, s := range cat.Sites {
		if s.BannerOnly || off[s.ID] {
			continue
		}
		root := cat.Origins.RootFor(s)
		m := idx.byRoot[root]
		if m == nil {
			m = make(map[string]*catalog.Site)
			idx.byRoot[root] = m
		}
		for _, id := range s.LegacyIDs() {
			m[strings.ToLower(id)] = s
		}
	}

	domains := cat.Origins.Domains()
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = `a[href*=".` + d + `"]`
	}
	idx.selector = strings.Join(parts, ", ")
	return idx
}

// Lookup resolves a raw root domain through the alias table and returns the
// site registered for subdomain under it, or nil.
func (idx *Index) Lookup(rawDomain, subdomain string) *catalog.Site {
	root := idx.origins.Canonicalize(strings.ToLower(rawDomain))
	return idx.byRoot[root][strings.ToLower(subdomain)]
}

// Selector matches links into any root domain or alias.
func (idx *Index) Selector() string { return idx.selector }

// Roots lists the root domains sites can be registered under.
func (idx *Index) Roots() []string { return idx.roots }

// Origins returns the origins the index was built from.
func (idx *Index) Origins() catalog.Origins { return idx.origins }

// Len counts the registered (root, legacy id) pairs.
func (idx *Index) Len() int {
	n := 0
	for _, m := range idx.byRoot {
		n += len(m)
	}
	return n
}
