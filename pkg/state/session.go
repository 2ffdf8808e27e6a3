// Package state holds the persisted entities of the session game engine:
// users, sessions and their behavioral toggles, story state, dice rolls,
// achievement grants, and the append-only event log.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode is a session's active interaction mode.
type Mode string

const (
	ModeNarrator     Mode = "narrator"
	ModeAchievements Mode = "achievements"
	ModeExplain      Mode = "explain"
	ModeStory        Mode = "story"
)

// ParseMode validates a user-supplied mode name.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case ModeNarrator, ModeAchievements, ModeExplain, ModeStory:
		return Mode(name), nil
	}
	return "", fmt.Errorf("unknown mode %q (narrator|achievements|explain|story)", name)
}

// Rating is the content rating toggle.
type Rating string

const (
	RatingPG   Rating = "PG"
	RatingPG13 Rating = "PG-13"
	RatingR    Rating = "R"
)

// Density controls how eagerly achievements are proposed per turn.
type Density string

const (
	DensityLow    Density = "low"
	DensityNormal Density = "normal"
	DensityHigh   Density = "high"
)

// Toggles are the per-session behavioral settings, read at the start of
// every turn. They are session fields, never process-wide state.
type Toggles struct {
	ProfanityLevel     int     `json:"profanity_level"` // 0 (filter everything) to 3 (off)
	Rating             Rating  `json:"rating"`
	TangentsLevel      int     `json:"tangents_level"` // 0 to 2
	AchievementDensity Density `json:"achievement_density"`
}

// Validate checks toggle ranges.
func (t Toggles) Validate() error {
	if t.ProfanityLevel < 0 || t.ProfanityLevel > 3 {
		return fmt.Errorf("profanity level %d out of range [0,3]", t.ProfanityLevel)
	}
	if t.TangentsLevel < 0 || t.TangentsLevel > 2 {
		return fmt.Errorf("tangents level %d out of range [0,2]", t.TangentsLevel)
	}
	switch t.Rating {
	case RatingPG, RatingPG13, RatingR:
	default:
		return fmt.Errorf("unknown rating %q", t.Rating)
	}
	switch t.AchievementDensity {
	case DensityLow, DensityNormal, DensityHigh:
	default:
		return fmt.Errorf("unknown achievement density %q", t.AchievementDensity)
	}
	return nil
}

// User is a chat participant, created on first contact. The transport
// bridge owns the mapping from platform accounts to these identifiers.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Session is one user's persistent configuration for one campaign.
type Session struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"user_id"`
	Mode         Mode      `json:"mode"`
	Toggles      Toggles   `json:"toggles"`
	StoryEnabled bool      `json:"story_enabled"` // set once a profile is finalized
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
