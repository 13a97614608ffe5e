// Package catalog holds the list of migrated sites and the table of legacy
// domains they are reached through. A Catalog is built once (from a YAML or
// JSON file, or in code) and is read-only afterwards: every scan shares it.
package catalog

import (
	"regexp"
	"strings"
)

// Site is one migrated wiki.
type Site struct {
	ID         string     `yaml:"id" json:"id"`
	OldID      string     `yaml:"oldId,omitempty" json:"oldId,omitempty"`
	OldIDs     []string   `yaml:"oldIds,omitempty" json:"oldIds,omitempty"`
	Farm       string     `yaml:"farm,omitempty" json:"farm,omitempty"`
	BannerOnly bool       `yaml:"bannerOnly,omitempty" json:"bannerOnly,omitempty"`
	Name       string     `yaml:"name" json:"name"`
	Search     SearchMeta `yaml:"search,omitempty" json:"search,omitempty"`
}

// SearchMeta carries the hints from the catalog file and the values derived
// from them by Prepare.
type SearchMeta struct {
	OldName         string `yaml:"oldName,omitempty" json:"oldName,omitempty"`
	Official        bool   `yaml:"official,omitempty" json:"official,omitempty"`
	NewIncludesWiki bool   `yaml:"newIncludesWiki,omitempty" json:"newIncludesWiki,omitempty"`

	TitlePattern     *regexp.Regexp `yaml:"-" json:"-"`
	PlaceholderTitle string         `yaml:"-" json:"placeholderTitle,omitempty"`
	NewTitle         string         `yaml:"-" json:"newTitle,omitempty"`
	GoodSelector     string         `yaml:"-" json:"goodSelector,omitempty"`
	BadSelector      string         `yaml:"-" json:"badSelector,omitempty"`
}

// LegacyIDs returns the subdomains the site used on its legacy farm: the
// declared old ids, else the single old id, else the id itself.
func (s *Site) LegacyIDs() []string {
	if len(s.OldIDs) > 0 {
		return s.OldIDs
	}
	if s.OldID != "" {
		return []string{s.OldID}
	}
	return []string{s.ID}
}

// PrimaryLegacyID is the first legacy id.
func (s *Site) PrimaryLegacyID() string {
	return s.LegacyIDs()[0]
}

// DisplayName is the name the site was known under on the legacy farm.
func (s *Site) DisplayName() string {
	if s.Search.OldName != "" {
		return s.Search.OldName
	}
	return s.Name
}

// CanonicalHost is the host of the site on the canonical domain.
func (s *Site) CanonicalHost(o Origins) string {
	return s.ID + "." + o.CanonicalDomain
}

// CanonicalURL is the landing page of the site on the canonical domain.
func (s *Site) CanonicalURL(o Origins) string {
	return "https://" + s.CanonicalHost(o) + "/"
}

// prepare fills the derived search metadata. Fields already set are kept,
// so calling it again yields the same values.
func (s *Site) prepare(o Origins) {
	m := &s.Search
	if m.TitlePattern == nil {
		name := regexp.QuoteMeta(s.DisplayName())
		m.TitlePattern = regexp.MustCompile(`(?i)(Official )?` + name + ` (\| |- )?(Wiki|Fandom)( (-|\|) Fandom)?$`)
	}
	if m.PlaceholderTitle == "" {
		m.PlaceholderTitle = s.DisplayName() + " Fandom"
	}
	if m.NewTitle == "" {
		title := s.Name
		if m.Official {
			title = "Official " + title
		}
		if !m.NewIncludesWiki {
			title += " Wiki"
		}
		m.NewTitle = title
	}
	if m.GoodSelector == "" {
		m.GoodSelector = `a[href*="://` + s.CanonicalHost(o) + `"]`
	}
	if m.BadSelector == "" {
		var parts []string
		for _, id := range s.LegacyIDs() {
			for _, root := range o.LegacyRootsFor(s) {
				parts = append(parts, `a[href*="://`+id+`.`+root+`"]`)
			}
		}
		m.BadSelector = strings.Join(parts, ", ")
	}
}
