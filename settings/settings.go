// Package settings is the read side of the user settings: which mode each
// search provider (and optionally each site) runs in, which sites are
// disabled, and which scan path to use. The engine reads a View once per
// scan and never writes it.
package settings

import (
	"context"
	"slices"
)

// Mode selects the transformation applied to matched results.
type Mode string

const (
	ModeFilter  Mode = "filter"
	ModeRewrite Mode = "rewrite"
	ModeDisarm  Mode = "disarm"
	ModeNone    Mode = "none"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeFilter, ModeRewrite, ModeDisarm, ModeNone:
		return true
	}
	return false
}

// ProviderSettings is the per-provider block ("sfs.<provider>").
type ProviderSettings struct {
	Mode Mode `yaml:"mode" json:"mode"`
}

// View is a snapshot of the settings the engine consumes.
type View struct {
	Providers      map[string]ProviderSettings `yaml:"sfs" json:"sfs"`
	SiteModes      map[string]Mode             `yaml:"siteModes,omitempty" json:"siteModes,omitempty"`
	DisabledSites  []string                    `yaml:"disabledWikis" json:"disabledWikis"`
	UseIndexedScan *bool                       `yaml:"ffUseOptimisedSearchCore,omitempty" json:"ffUseOptimisedSearchCore,omitempty"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() *View {
	indexed := true
	return &View{
		Providers: map[string]ProviderSettings{
			"google": {Mode: ModeRewrite},
			"ddg":    {Mode: ModeRewrite},
		},
		DisabledSites:  []string{},
		UseIndexedScan: &indexed,
	}
}

// WithDefaults fills every key missing from v with its default.
func (v *View) WithDefaults() *View {
	d := Defaults()
	if v == nil {
		return d
	}
	out := &View{
		Providers:      make(map[string]ProviderSettings, len(d.Providers)),
		SiteModes:      v.SiteModes,
		DisabledSites:  v.DisabledSites,
		UseIndexedScan: v.UseIndexedScan,
	}
	for id, p := range d.Providers {
		out.Providers[id] = p
	}
	for id, p := range v.Providers {
		if p.Mode != "" {
			out.Providers[id] = p
		}
	}
	if out.DisabledSites == nil {
		out.DisabledSites = d.DisabledSites
	}
	if out.UseIndexedScan == nil {
		out.UseIndexedScan = d.UseIndexedScan
	}
	return out
}

// ModeFor resolves the mode for a site under a provider: a per-site
// override first, then the provider mode. Unknown providers get ModeNone.
func (v *View) ModeFor(provider, siteID string) Mode {
	if m, ok := v.SiteModes[siteID]; ok && m != "" {
		return m
	}
	if p, ok := v.Providers[provider]; ok {
		return p.Mode
	}
	return ModeNone
}

// IsDisabled reports whether a site id is in the disabled list.
func (v *View) IsDisabled(siteID string) bool {
	return slices.Contains(v.DisabledSites, siteID)
}

// Indexed reports whether the indexed scan path is enabled.
func (v *View) Indexed() bool {
	return v.UseIndexedScan == nil || *v.UseIndexedScan
}

// Source supplies settings. Implementations must fall back to defaults for
// missing keys.
type Source interface {
	Load(ctx context.Context) (*View, error)
}

// Static is a fixed View.
type Static struct {
	View *View
}

// Load returns the static view with defaults applied.
func (s Static) Load(ctx context.Context) (*View, error) {
	return s.View.WithDefaults(), nil
}
