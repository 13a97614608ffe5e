package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// ErrNoSites is returned when a catalog file lists no site.
var ErrNoSites = errors.New("catalog: no sites")

var generation atomic.Uint64

// namePolicy strips markup from display names. Names end up in text nodes
// and attribute values of the rewritten page.
var namePolicy = bluemonday.StrictPolicy()

// Catalog is the ordered list of sites plus their origins.
type Catalog struct {
	Sites   []*Site
	Origins Origins

	generation uint64
	byID       map[string]*Site
}

// file is the on-disk layout. JSON files parse through the same path.
type file struct {
	Sites   []*Site `yaml:"sites"`
	Origins Origins `yaml:"origins"`
}

// New builds a catalog, sanitising names and deriving search metadata.
func New(sites []*Site, origins Origins) *Catalog {
	origins.applyDefaults()
	c := &Catalog{
		Sites:      sites,
		Origins:    origins,
		generation: generation.Add(1),
		byID:       make(map[string]*Site, len(sites)),
	}
	for _, s := range sites {
		s.Name = sanitizeName(s.Name)
		s.Search.OldName = sanitizeName(s.Search.OldName)
		s.prepare(c.Origins)
		c.byID[s.ID] = s
	}
	return c
}

// Parse decodes a YAML (or JSON) catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, ErrNoSites
	}
	return New(f.Sites, f.Origins), nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// Generation identifies this catalog instance. Two catalogs built
// separately never share a generation.
func (c *Catalog) Generation() uint64 { return c.generation }

// Site returns the site with the given canonical id.
func (c *Catalog) Site(id string) *Site { return c.byID[id] }

// Prepare derives any missing search metadata again. It is idempotent and
// only needed after sites were edited in place.
func (c *Catalog) Prepare() {
	for _, s := range c.Sites {
		s.prepare(c.Origins)
	}
}

func sanitizeName(s string) string {
	if s == "" {
		return s
	}
	return html.UnescapeString(namePolicy.Sanitize(s))
}
