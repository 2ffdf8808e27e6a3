// Package achievements decides whether candidate achievements are granted,
// enforcing once-per-user and cooldown policy against historical grants.
package achievements

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"time"
)

// Rarities orders achievement rarity tiers from most to least common.
var Rarities = map[string]int{
	"common":   0,
	"uncommon": 1,
	"rare":     2,
	"epic":     3,
	"mythic":   4,
}

// Achievement is one entry in the static catalog. The trigger predicate is
// evaluated by callers; the ledger only enforces dedupe/cooldown once a
// candidate is proposed.
type Achievement struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Reward      string   `json:"reward,omitempty"`
	Rarity      string   `json:"rarity"`
	Tags        []string `json:"tags,omitempty"`
	Triggers    []string `json:"triggers,omitempty"`
	CooldownSec int      `json:"cooldown_sec,omitempty"`
	OncePerUser bool     `json:"once_per_user,omitempty"`
}

// Cooldown returns the minimum duration between grants, zero when unset.
func (a Achievement) Cooldown() time.Duration {
	return time.Duration(a.CooldownSec) * time.Second
}

// Catalog is the load-once achievement registry, keyed by identifier.
type Catalog struct {
	ordered []Achievement
	byID    map[string]Achievement
}

// LoadCatalog parses and validates catalog JSON.
func LoadCatalog(data []byte) (*Catalog, error) {
	var entries []Achievement
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal achievement catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("achievement catalog is empty")
	}

	byID := make(map[string]Achievement, len(entries))
	for _, a := range entries {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement with empty id")
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", a.ID)
		}
		if _, ok := Rarities[a.Rarity]; !ok {
			return nil, fmt.Errorf("achievement %q: unknown rarity %q", a.ID, a.Rarity)
		}
		if a.CooldownSec < 0 {
			return nil, fmt.Errorf("achievement %q: negative cooldown", a.ID)
		}
		byID[a.ID] = a
	}

	return &Catalog{ordered: entries, byID: byID}, nil
}

// LoadCatalogFile reads a catalog from a filesystem.
func LoadCatalogFile(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read achievement catalog %s: %w", name, err)
	}
	return LoadCatalog(data)
}

// Get looks up an achievement by id.
func (c *Catalog) Get(id string) (Achievement, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// ForTrigger returns all achievements listing trigger, in catalog order.
func (c *Catalog) ForTrigger(trigger string) []Achievement {
	var matches []Achievement
	for _, a := range c.ordered {
		for _, t := range a.Triggers {
			if t == trigger {
				matches = append(matches, a)
				break
			}
		}
	}
	return matches
}

// All returns every catalog entry in load order.
func (c *Catalog) All() []Achievement {
	return c.ordered
}
