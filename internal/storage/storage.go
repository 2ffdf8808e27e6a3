// Package storage persists the engine's entities in a single relational
// SQLite database. Each component writes only its own tables; reads across
// tables go through the query methods defined here.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// Store is the unified persistence interface consumed by the engine
// components. Lookups return nil (not an error) when a row is absent.
type Store interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// User operations (orchestrator-owned)
	EnsureUser(ctx context.Context, id, displayName string) (*state.User, error)

	// Session operations (orchestrator-owned)
	GetSession(ctx context.Context, id uuid.UUID) (*state.Session, error)
	SaveSession(ctx context.Context, s *state.Session) error

	// StoryProfile operations (story engine-owned)
	GetProfile(ctx context.Context, sessionID uuid.UUID) (*actor.Profile, error)
	SaveProfile(ctx context.Context, p *actor.Profile) error

	// StoryState operations (story engine-owned)
	GetStoryState(ctx context.Context, sessionID uuid.UUID) (*state.StoryState, error)
	SaveStoryState(ctx context.Context, st *state.StoryState) error

	// StoryRoll operations (story engine-owned, append-only)
	AppendRoll(ctx context.Context, roll state.StoryRoll) (*state.StoryRoll, error)
	RecentRolls(ctx context.Context, sessionID uuid.UUID, limit int) ([]state.StoryRoll, error)
	// ConsumeStoredRoll marks the oldest unconsumed compatible roll for the
	// session as consumed and returns it, or nil when none exists. A roll is
	// compatible when its ability matches, or its raw expression matches
	// exactly. The select-and-mark is one write transaction.
	ConsumeStoredRoll(ctx context.Context, sessionID uuid.UUID, ability, expression string) (*state.StoryRoll, error)

	// AchievementGrant operations (ledger-owned). ConsiderInsert implements
	// achievements.GrantHistory: check and insert are atomic per key.
	ConsiderInsert(ctx context.Context, grant state.AchievementGrant,
		shouldInsert func(latest *state.AchievementGrant) bool,
	) (latest *state.AchievementGrant, inserted *state.AchievementGrant, err error)
	LatestGrant(ctx context.Context, achievementID, userID string) (*state.AchievementGrant, error)
	RecentGrants(ctx context.Context, userID string, limit int) ([]state.AchievementGrant, error)

	// EventLog operations (append-only, write-only from the engine)
	AppendEvent(ctx context.Context, event state.EventRecord) error
}
