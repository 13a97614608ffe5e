package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
origins:
  farms:
    gp: gamepedia.com
  domainAliasMapping:
    gamepedia.io: gamepedia.com
sites:
  - id: acme
    oldId: acme-old
    name: Acme
  - id: terraria
    oldIds: [terraria, terrariagame]
    farm: gp
    name: Terraria
    search:
      official: true
  - id: banner
    name: Banner
    bannerOnly: true
`

func TestParse_DerivesMetadata(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Sites) != 3 {
		t.Fatalf("sites: got %d, want 3", len(c.Sites))
	}

	acme := c.Site("acme")
	if acme == nil {
		t.Fatal("Site(acme): nil")
	}
	if got := acme.Search.NewTitle; got != "Acme Wiki" {
		t.Errorf("NewTitle: got %q, want %q", got, "Acme Wiki")
	}
	if got := acme.Search.PlaceholderTitle; got != "Acme Fandom" {
		t.Errorf("PlaceholderTitle: got %q", got)
	}
	if got := acme.Search.GoodSelector; got != `a[href*="://acme.wiki.gg"]` {
		t.Errorf("GoodSelector: got %q", got)
	}
	if got := acme.Search.BadSelector; got != `a[href*="://acme-old.fandom.com"]` {
		t.Errorf("BadSelector: got %q", got)
	}

	terraria := c.Site("terraria")
	if got := terraria.Search.NewTitle; got != "Official Terraria Wiki" {
		t.Errorf("NewTitle: got %q", got)
	}
	want := `a[href*="://terraria.gamepedia.com"], a[href*="://terraria.fandom.com"], a[href*="://terraria.gamepedia.io"], ` +
		`a[href*="://terrariagame.gamepedia.com"], a[href*="://terrariagame.fandom.com"], a[href*="://terrariagame.gamepedia.io"]`
	if got := terraria.Search.BadSelector; got != want {
		t.Errorf("BadSelector:\n got %q\nwant %q", got, want)
	}
}

func TestTitlePattern(t *testing.T) {
	c := New([]*Site{{ID: "acme", Name: "Acme"}}, Origins{})
	p := c.Site("acme").Search.TitlePattern

	for _, title := range []string{"Acme Wiki", "Official Acme Wiki | Fandom", "acme fandom", "Acme - Wiki - Fandom"} {
		if !p.MatchString(title) {
			t.Errorf("pattern should match %q", title)
		}
	}
	if p.MatchString("Acme Wiki and more") {
		t.Error("pattern should be anchored at the end")
	}
}

func TestPrepare_Idempotent(t *testing.T) {
	c := New([]*Site{{ID: "acme", OldID: "acme-old", Name: "Acme"}}, Origins{})
	before := c.Site("acme").Search
	c.Prepare()
	after := c.Site("acme").Search

	if before.TitlePattern != after.TitlePattern {
		t.Error("TitlePattern recompiled")
	}
	if before.BadSelector != after.BadSelector || before.NewTitle != after.NewTitle {
		t.Error("derived strings changed")
	}
}

func TestNew_SanitizesNames(t *testing.T) {
	c := New([]*Site{{ID: "dnd", Name: "<b>Dungeons & Dragons</b>"}}, Origins{})
	if got := c.Site("dnd").Name; got != "Dungeons & Dragons" {
		t.Errorf("Name: got %q", got)
	}
}

func TestRootFor_UnknownFarmFallsBack(t *testing.T) {
	o := Origins{Farms: map[string]string{"gp": "gamepedia.com"}}
	o.applyDefaults()

	if got := o.RootFor(&Site{ID: "x", Farm: "nope"}); got != "fandom.com" {
		t.Errorf("RootFor: got %q, want fandom.com", got)
	}
	if got := o.RootFor(&Site{ID: "x", Farm: "gp"}); got != "gamepedia.com" {
		t.Errorf("RootFor: got %q, want gamepedia.com", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Generation() == 0 {
		t.Error("Generation: got 0")
	}

	if _, err := Parse([]byte("sites: []")); !errors.Is(err, ErrNoSites) {
		t.Errorf("empty catalog: got %v, want ErrNoSites", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: want error")
	}
}

func TestParse_JSON(t *testing.T) {
	c, err := Parse([]byte(`{"sites":[{"id":"acme","oldId":"acme-old","name":"Acme"}],"origins":{"canonicalDomain":"example.org"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := c.Site("acme").CanonicalURL(c.Origins); got != "https://acme.example.org/" {
		t.Errorf("CanonicalURL: got %q", got)
	}
}

func TestValidate(t *testing.T) {
	c := New([]*Site{
		{ID: "a", OldID: "shared", Name: "A"},
		{ID: "b", OldID: "shared", Name: "B"},
		{ID: "c", Farm: "missing", Name: "C"},
		{ID: "a", Name: "A again"},
	}, Origins{})

	kinds := map[IssueKind]int{}
	for _, is := range Validate(c) {
		kinds[is.Kind]++
	}
	if kinds[IssueLegacyShared] != 1 {
		t.Errorf("legacy collisions: got %d, want 1", kinds[IssueLegacyShared])
	}
	if kinds[IssueUnknownFarm] != 1 {
		t.Errorf("unknown farms: got %d, want 1", kinds[IssueUnknownFarm])
	}
	if kinds[IssueDuplicateID] != 1 {
		t.Errorf("duplicate ids: got %d, want 1", kinds[IssueDuplicateID])
	}
}
