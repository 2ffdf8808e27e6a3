package state

import (
	"time"

	"github.com/google/uuid"
)

// SceneHistoryLimit caps the persisted scene-visit history.
const SceneHistoryLimit = 50

// StoryState is a session's position in the campaign scene graph.
type StoryState struct {
	SessionID    uuid.UUID         `json:"session_id"`
	CurrentScene string            `json:"current_scene"`
	SceneHistory []string          `json:"scene_history"` // append-only, capped at SceneHistoryLimit
	Flags        map[string]string `json:"flags"`
	Stats        map[string]int    `json:"stats"` // counters separate from ability scores
	UpdatedAt    time.Time         `json:"updated_at"`
}

// AppendScene records a visit, trimming history to the persisted cap.
func (s *StoryState) AppendScene(sceneID string) {
	s.SceneHistory = append(s.SceneHistory, sceneID)
	if len(s.SceneHistory) > SceneHistoryLimit {
		s.SceneHistory = s.SceneHistory[len(s.SceneHistory)-SceneHistoryLimit:]
	}
	s.CurrentScene = sceneID
}

// StoryRoll is an immutable record of one dice evaluation. Unconsumed rolls
// may later satisfy a compatible ability check instead of a fresh roll.
type StoryRoll struct {
	ID         int64      `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	UserID     string     `json:"user_id"`
	Expression string     `json:"expression"`
	Ability    string     `json:"ability,omitempty"` // set when the expression names an ability
	Total      int        `json:"total"`
	Detail     RollDetail `json:"detail"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RollDetail is the die-by-die breakdown persisted with every roll.
type RollDetail struct {
	Rolls     []int  `json:"rolls"`
	Kept      []int  `json:"kept"`
	Modifier  int    `json:"modifier"`
	Advantage string `json:"advantage,omitempty"`
	Ability   string `json:"ability,omitempty"`
	DC        int    `json:"dc,omitempty"`
	Success   *bool  `json:"success,omitempty"`
}

// AchievementGrant is an immutable record that an achievement was awarded.
type AchievementGrant struct {
	ID            int64          `json:"id"`
	AchievementID string         `json:"achievement_id"`
	UserID        string         `json:"user_id"`
	SessionID     *uuid.UUID     `json:"session_id,omitempty"`
	Rarity        string         `json:"rarity"`
	AwardedAt     time.Time      `json:"awarded_at"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Event kinds recorded in the audit log.
const (
	EventModeSwitch = "mode_switch"
	EventRoll       = "roll"
	EventGrant      = "grant"
	EventTransition = "scene_transition"
	EventRestart    = "restart"
)

// EventRecord is one entry in the append-only audit trail. The engine only
// writes these; they are never read back into game logic.
type EventRecord struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID *uuid.UUID     `json:"session_id,omitempty"`
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
