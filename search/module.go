// Package search is the rewrite engine: it scans a search results page for
// links into legacy wiki domains, resolves each to the result container the
// provider groups it in, and transforms that container according to the
// mode set for the site.
//
// Provider adapters implement Module, usually by embedding Generic and
// adding Replace. They are registered as Providers and instantiated once
// per Engine.Invoke.
package search

import (
	"fmt"
	"sort"

	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/livewatch"
)

// Target is one resolved match handed to a transformation.
type Target struct {
	Doc     *dom.Document
	Site    *catalog.Site
	Origins catalog.Origins
	// RootDomain is the legacy root domain as it appears in the link.
	RootDomain string
	Container  *html.Node
	Link       *html.Node
}

// Module is a provider adapter.
type Module interface {
	ID() string
	// Initialise inspects the page once before scanning.
	Initialise(doc *dom.Document)
	IsSupported(doc *dom.Document) bool
	// ResolveContainer returns the result container of a matched link, or
	// nil.
	ResolveContainer(el *html.Node) *html.Node
	Replace(t Target) error
	Hide(t Target) error
	Disarm(t Target) error
}

// LiveUpdater is implemented by modules whose provider loads more results
// after the first render.
type LiveUpdater interface {
	LiveSpec() livewatch.Spec
}

// Specifics are the provider selectors the shared behaviour relies on.
type Specifics struct {
	// FirstResult matches the innermost container of one hit.
	FirstResult string
	// ResultGroup matches the container grouping a hit with its sub-results.
	ResultGroup string
	// GroupClimb bounds the ascent from FirstResult to ResultGroup.
	GroupClimb int

	NetworkTitle string
	ExternalLink string
	Heading      string
	Translate    string
	Breadcrumb   string
	SidePanel    string
	Sitelinks    string
}

// DefaultGroupClimb is used when Specifics.GroupClimb is zero.
const DefaultGroupClimb = 5

// Provider registers an adapter under its id.
type Provider struct {
	ID  string
	New func() Module
}

// Registry indexes providers by id.
type Registry struct {
	byID map[string]Provider
}

// NewRegistry builds a registry. A later provider replaces an earlier one
// with the same id.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{byID: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.byID[p.ID] = p
	}
	return r
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// IDs lists registered provider ids in order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
