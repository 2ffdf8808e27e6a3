// Package campaign models the story scene graph: scenes, choice options,
// ability checks, and flag-gated branching. Campaigns are external JSON
// content, validated once at load time. Scenes may reference each other
// cyclically; nodes are always looked up by id.
package campaign

import (
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
)

// Check is an ability check attached to a choice option.
type Check struct {
	Ability      string `json:"ability"`
	DC           int    `json:"dc"`
	SuccessScene string `json:"success_scene,omitempty"` // overrides the choice target on success
	FailureScene string `json:"failure_scene,omitempty"` // overrides the choice target on failure
	SuccessXP    int    `json:"success_xp,omitempty"`
	FailureXP    int    `json:"failure_xp,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Effect is a mutation set applied when a choice resolves.
type Effect struct {
	Flags map[string]string `json:"flags,omitempty"`
	Stats map[string]int    `json:"stats,omitempty"` // additive deltas
}

// Choice is one option offered by a scene.
type Choice struct {
	ID            string            `json:"id"`
	Label         string            `json:"label"`
	NextScene     string            `json:"next_scene"`
	AchievementID string            `json:"achievement_id,omitempty"`
	XPReward      int               `json:"xp_reward,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Requires      map[string]string `json:"requires,omitempty"` // flag preconditions gating visibility
	Check         *Check            `json:"check,omitempty"`
	OnSuccess     Effect            `json:"on_success,omitempty"`
	OnFailure     Effect            `json:"on_failure,omitempty"`
}

// Scene is a node in the story graph. Narration prose lives with the
// campaign content; the engine only tracks identifiers and flags.
type Scene struct {
	ID        string   `json:"id"`
	Title     string   `json:"title,omitempty"`
	Narration []string `json:"narration,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Choices   []Choice `json:"choices,omitempty"`
}

// Campaign is a loaded, validated scene graph.
type Campaign struct {
	Name      string  `json:"name,omitempty"`
	RootScene string  `json:"root_scene"`
	Scenes    []Scene `json:"scenes"`

	index map[string]*Scene
}

// AutoCheckTags maps choice tags to inferred ability checks, used when a
// choice carries no explicit check.
var AutoCheckTags = map[string]Check{
	"chaos":       {Ability: "cha", DC: 12},
	"risk":        {Ability: "dex", DC: 12},
	"puzzle":      {Ability: "int", DC: 13},
	"stealth":     {Ability: "dex", DC: 13},
	"social":      {Ability: "cha", DC: 12},
	"ally":        {Ability: "cha", DC: 11},
	"exploration": {Ability: "wis", DC: 11},
	"combat":      {Ability: "str", DC: 14},
	"magic":       {Ability: "int", DC: 14},
	"inventory":   {Ability: "wis", DC: 10},
	"shortcut":    {Ability: "dex", DC: 12},
}

// Load parses and validates campaign JSON.
func Load(data []byte) (*Campaign, error) {
	var c Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.buildIndex()
	return &c, nil
}

// LoadFile reads a campaign from a filesystem.
func LoadFile(fsys fs.FS, name string) (*Campaign, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign %s: %w", name, err)
	}
	return Load(data)
}

// Scene looks up a scene by id.
func (c *Campaign) Scene(id string) (*Scene, bool) {
	s, ok := c.index[id]
	return s, ok
}

// Root returns the campaign's start scene.
func (c *Campaign) Root() *Scene {
	return c.index[c.RootScene]
}

func (c *Campaign) buildIndex() {
	c.index = make(map[string]*Scene, len(c.Scenes))
	for i := range c.Scenes {
		c.index[c.Scenes[i].ID] = &c.Scenes[i]
	}
}

func (c *Campaign) validate() error {
	if len(c.Scenes) == 0 {
		return fmt.Errorf("campaign has no scenes")
	}
	ids := make(map[string]bool, len(c.Scenes))
	for _, scene := range c.Scenes {
		if scene.ID == "" {
			return fmt.Errorf("scene with empty id")
		}
		if ids[scene.ID] {
			return fmt.Errorf("duplicate scene id %q", scene.ID)
		}
		ids[scene.ID] = true
	}
	if !ids[c.RootScene] {
		return fmt.Errorf("root scene %q is not defined", c.RootScene)
	}

	for _, scene := range c.Scenes {
		choiceIDs := make(map[string]bool, len(scene.Choices))
		for _, choice := range scene.Choices {
			if choice.ID == "" {
				return fmt.Errorf("scene %q: choice with empty id", scene.ID)
			}
			if choiceIDs[choice.ID] {
				return fmt.Errorf("scene %q: duplicate choice id %q", scene.ID, choice.ID)
			}
			choiceIDs[choice.ID] = true
			if !ids[choice.NextScene] {
				return fmt.Errorf("scene %q: choice %q targets missing scene %q", scene.ID, choice.ID, choice.NextScene)
			}
			if check := choice.Check; check != nil {
				if !actor.IsAbility(check.Ability) {
					return fmt.Errorf("scene %q: choice %q: unknown check ability %q", scene.ID, choice.ID, check.Ability)
				}
				if check.DC < 1 {
					return fmt.Errorf("scene %q: choice %q: check DC must be positive", scene.ID, choice.ID)
				}
				for _, target := range []string{check.SuccessScene, check.FailureScene} {
					if target != "" && !ids[target] {
						return fmt.Errorf("scene %q: choice %q: check targets missing scene %q", scene.ID, choice.ID, target)
					}
				}
			}
		}
	}
	return nil
}

// VisibleChoices filters a scene's options by their flag preconditions.
// Order is preserved.
func (s *Scene) VisibleChoices(flags map[string]string) []Choice {
	visible := make([]Choice, 0, len(s.Choices))
	for _, choice := range s.Choices {
		if choice.Visible(flags) {
			visible = append(visible, choice)
		}
	}
	return visible
}

// Visible reports whether all flag preconditions are satisfied.
func (ch Choice) Visible(flags map[string]string) bool {
	for key, want := range ch.Requires {
		if flags[key] != want {
			return false
		}
	}
	return true
}

// EffectiveCheck returns the explicit check, or one inferred from the
// choice tags, or nil. The second return value reports inference.
func (ch Choice) EffectiveCheck() (*Check, bool) {
	if ch.Check != nil {
		return ch.Check, false
	}
	for _, tag := range ch.Tags {
		if check, ok := AutoCheckTags[tag]; ok {
			check.Note = "auto:" + tag
			return &check, true
		}
	}
	return nil, false
}
