package actor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// XPThresholds lists the cumulative experience required for each level.
// Index 0 is level 1. Levels are supplied as external content; the engine
// only does table lookups.
var XPThresholds = []int{
	0,
	300,
	900,
	2700,
	6500,
	14000,
	23000,
	34000,
	48000,
	64000,
}

// SupportedRaces are the playable races accepted during character creation.
var SupportedRaces = map[string]bool{
	"human": true, "elf": true, "dwarf": true, "halfling": true,
	"gnome": true, "tiefling": true, "dragonborn": true, "orc": true,
	"goblin": true, "half-elf": true, "half-orc": true,
}

// SupportedClasses are the playable classes accepted during character creation.
var SupportedClasses = map[string]bool{
	"barbarian": true, "bard": true, "cleric": true, "druid": true,
	"fighter": true, "monk": true, "paladin": true, "ranger": true,
	"rogue": true, "sorcerer": true, "warlock": true, "wizard": true,
	"artificer": true,
}

// Profile is the character sheet attached to a story session.
type Profile struct {
	SessionID  uuid.UUID      `json:"session_id"`
	UserID     string         `json:"user_id"`
	Name       string         `json:"name,omitempty"`
	Pronouns   string         `json:"pronouns,omitempty"`
	Race       string         `json:"race,omitempty"`
	Class      string         `json:"class,omitempty"`
	Backstory  string         `json:"backstory,omitempty"`
	Level      int            `json:"level"`
	Experience int            `json:"experience"`
	Abilities  AbilityScores  `json:"abilities"`
	Inventory  map[string]int `json:"inventory"`
	Finalized  bool           `json:"finalized"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewProfile returns an unfinalized profile with default scores.
func NewProfile(sessionID uuid.UUID, userID string) *Profile {
	return &Profile{
		SessionID:  sessionID,
		UserID:     userID,
		Level:      1,
		Experience: 0,
		Abilities:  DefaultAbilityScores(),
		Inventory:  make(map[string]int),
	}
}

// LevelFromXP looks up the level for a cumulative experience total.
func LevelFromXP(xp int) int {
	level := 1
	for i, threshold := range XPThresholds {
		if xp >= threshold {
			level = i + 1
		} else {
			break
		}
	}
	return level
}

// MissingFields lists the character creation fields still required
// before the profile can be finalized.
func (p *Profile) MissingFields() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Race == "" {
		missing = append(missing, "race")
	}
	if p.Class == "" {
		missing = append(missing, "class")
	}
	return missing
}

// Ready reports whether the profile has all fields required for story mode.
func (p *Profile) Ready() bool {
	return len(p.MissingFields()) == 0
}

// AddItem increments the inventory quantity for item.
func (p *Profile) AddItem(item string, quantity int) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return fmt.Errorf("item name cannot be empty")
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if p.Inventory == nil {
		p.Inventory = make(map[string]int)
	}
	p.Inventory[item] += quantity
	return nil
}

// RemoveItem decrements the inventory quantity for item, deleting the
// entry when it reaches zero.
func (p *Profile) RemoveItem(item string, quantity int) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return fmt.Errorf("item name cannot be empty")
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	have, ok := p.Inventory[item]
	if !ok {
		return fmt.Errorf("%s is not in the inventory", item)
	}
	if remaining := have - quantity; remaining > 0 {
		p.Inventory[item] = remaining
	} else {
		delete(p.Inventory, item)
	}
	return nil
}
