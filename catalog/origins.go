package catalog

import "sort"

const (
	// DefaultRootDomain is the legacy farm every site lives under unless it
	// declares another farm.
	DefaultRootDomain = "fandom.com"
	// DefaultCanonicalDomain is where migrated sites now live.
	DefaultCanonicalDomain = "wiki.gg"
)

// Origins describes the legacy domains in play.
type Origins struct {
	DefaultRootDomain string `yaml:"defaultRootDomain,omitempty" json:"defaultRootDomain,omitempty"`
	CanonicalDomain   string `yaml:"canonicalDomain,omitempty" json:"canonicalDomain,omitempty"`
	// Farms maps a farm designator to its root domain.
	Farms map[string]string `yaml:"farms,omitempty" json:"farms,omitempty"`
	// DomainAliases maps a raw root domain, as providers sometimes print
	// it, to the root domain it stands for.
	DomainAliases map[string]string `yaml:"domainAliasMapping,omitempty" json:"domainAliasMapping,omitempty"`
}

func (o *Origins) applyDefaults() {
	if o.DefaultRootDomain == "" {
		o.DefaultRootDomain = DefaultRootDomain
	}
	if o.CanonicalDomain == "" {
		o.CanonicalDomain = DefaultCanonicalDomain
	}
}

// RootFor returns the root domain of a site's legacy farm. An unknown farm
// falls back to the default root domain.
func (o Origins) RootFor(s *Site) string {
	if s.Farm != "" {
		if root, ok := o.Farms[s.Farm]; ok && root != "" {
			return root
		}
	}
	return o.DefaultRootDomain
}

// Canonicalize resolves a raw root domain through the alias table.
func (o Origins) Canonicalize(raw string) string {
	if root, ok := o.DomainAliases[raw]; ok && root != "" {
		return root
	}
	return raw
}

// LegacyRootsFor lists the root domains a site may be linked under: its
// farm root, the default root, and every alias of either.
func (o Origins) LegacyRootsFor(s *Site) []string {
	roots := []string{o.RootFor(s)}
	if roots[0] != o.DefaultRootDomain {
		roots = append(roots, o.DefaultRootDomain)
	}
	base := append([]string(nil), roots...)
	for _, raw := range sortedKeys(o.DomainAliases) {
		for _, r := range base {
			if o.DomainAliases[raw] == r && raw != r {
				roots = append(roots, raw)
			}
		}
	}
	return roots
}

// RootDomains lists every distinct root domain sites can be registered
// under: the default root and each farm root.
func (o Origins) RootDomains() []string {
	seen := map[string]bool{o.DefaultRootDomain: true}
	out := []string{o.DefaultRootDomain}
	for _, farm := range sortedKeys(o.Farms) {
		root := o.Farms[farm]
		if root != "" && !seen[root] {
			seen[root] = true
			out = append(out, root)
		}
	}
	return out
}

// Domains lists every domain worth querying for: the root domains plus
// the raw domains of the alias table.
func (o Origins) Domains() []string {
	out := o.RootDomains()
	seen := make(map[string]bool, len(out))
	for _, d := range out {
		seen[d] = true
	}
	for _, raw := range sortedKeys(o.DomainAliases) {
		if !seen[raw] {
			seen[raw] = true
			out = append(out, raw)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
