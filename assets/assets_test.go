package assets

import (
	"testing"

	"github.com/dmkeith/dungeonmaster/pkg/achievements"
	"github.com/dmkeith/dungeonmaster/pkg/campaign"
)

func TestEmbeddedCampaign(t *testing.T) {
	c, err := campaign.LoadFile(FS, DefaultCampaign)
	if err != nil {
		t.Fatalf("embedded campaign failed to load: %v", err)
	}
	if c.Root() == nil {
		t.Fatal("campaign has no root scene")
	}
	if len(c.Root().Choices) == 0 {
		t.Error("root scene offers no choices")
	}
}

func TestEmbeddedCatalog(t *testing.T) {
	catalog, err := achievements.LoadCatalogFile(FS, DefaultCatalog)
	if err != nil {
		t.Fatalf("embedded catalog failed to load: %v", err)
	}
	if len(catalog.All()) == 0 {
		t.Fatal("catalog is empty")
	}
	if _, ok := catalog.Get("first_blood"); !ok {
		t.Error("first_blood missing from the catalog")
	}
}

// Every achievement a campaign choice awards must exist in the catalog,
// or the grant would fail at runtime.
func TestCampaignAchievementsResolve(t *testing.T) {
	c, err := campaign.LoadFile(FS, DefaultCampaign)
	if err != nil {
		t.Fatalf("embedded campaign failed to load: %v", err)
	}
	catalog, err := achievements.LoadCatalogFile(FS, DefaultCatalog)
	if err != nil {
		t.Fatalf("embedded catalog failed to load: %v", err)
	}

	for _, scene := range c.Scenes {
		for _, choice := range scene.Choices {
			if choice.AchievementID == "" {
				continue
			}
			if _, ok := catalog.Get(choice.AchievementID); !ok {
				t.Errorf("scene %s choice %s awards unknown achievement %q",
					scene.ID, choice.ID, choice.AchievementID)
			}
		}
	}
}
