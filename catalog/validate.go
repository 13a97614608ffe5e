package catalog

import "fmt"

// IssueKind classifies a catalog authoring problem.
type IssueKind string

const (
	IssueEmptyID      IssueKind = "empty_id"
	IssueDuplicateID  IssueKind = "duplicate_id"
	IssueUnknownFarm  IssueKind = "unknown_farm"
	IssueLegacyShared IssueKind = "legacy_id_shared"
)

// Issue is one problem found by Validate. Issues are warnings: the catalog
// stays usable and keeps its documented precedence.
type Issue struct {
	Kind   IssueKind
	SiteID string
	Detail string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.SiteID, i.Detail)
}

// Validate reports authoring problems. When two sites claim the same
// legacy id under the same root domain the later one wins the lookup; the
// collision is reported so the catalog can be fixed.
func Validate(c *Catalog) []Issue {
	var issues []Issue
	ids := make(map[string]bool, len(c.Sites))
	claimed := make(map[string]string)

	for i, s := range c.Sites {
		if s.ID == "" {
			issues = append(issues, Issue{Kind: IssueEmptyID, Detail: fmt.Sprintf("entry %d", i)})
			continue
		}
		if ids[s.ID] {
			issues = append(issues, Issue{Kind: IssueDuplicateID, SiteID: s.ID, Detail: "id listed twice"})
		}
		ids[s.ID] = true

		if s.Farm != "" {
			if _, ok := c.Origins.Farms[s.Farm]; !ok {
				issues = append(issues, Issue{
					Kind:   IssueUnknownFarm,
					SiteID: s.ID,
					Detail: fmt.Sprintf("farm %q has no root domain, using %s", s.Farm, c.Origins.DefaultRootDomain),
				})
			}
		}

		if s.BannerOnly {
			continue
		}
		root := c.Origins.RootFor(s)
		for _, legacy := range s.LegacyIDs() {
			key := legacy + "." + root
			if prev, ok := claimed[key]; ok && prev != s.ID {
				issues = append(issues, Issue{
					Kind:   IssueLegacyShared,
					SiteID: s.ID,
					Detail: fmt.Sprintf("%s already claimed by %s, %s wins", key, prev, s.ID),
				})
			}
			claimed[key] = s.ID
		}
	}
	return issues
}
