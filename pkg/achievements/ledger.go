package achievements

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// OutcomeKind tags the result of considering a candidate grant.
type OutcomeKind string

const (
	// Granted means a new grant row was inserted.
	Granted OutcomeKind = "granted"
	// Deduped means a once-per-user achievement was already granted.
	Deduped OutcomeKind = "deduped"
	// CooldownBlocked means the most recent grant is still within the
	// cooldown window.
	CooldownBlocked OutcomeKind = "cooldown_blocked"
)

// Outcome is the ledger's answer for one candidate. Non-grants are normal,
// frequent results, not errors.
type Outcome struct {
	Kind           OutcomeKind             `json:"kind"`
	Grant          *state.AchievementGrant `json:"grant,omitempty"`            // set when Kind == Granted
	Prior          *state.AchievementGrant `json:"prior,omitempty"`            // set when Kind == Deduped
	NextEligibleAt time.Time               `json:"next_eligible_at,omitzero"`  // set when Kind == CooldownBlocked
}

// Candidate proposes an achievement grant. Rarity is supplied by the
// caller and stored verbatim; the ledger never escalates it.
type Candidate struct {
	AchievementID string         `json:"achievement_id"`
	UserID        string         `json:"user_id"`
	SessionID     *uuid.UUID     `json:"session_id,omitempty"`
	Rarity        string         `json:"rarity"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// GrantHistory is the ledger's storage dependency. ConsiderInsert must load
// the most recent grant for (achievementID, userID) and insert the candidate
// row in one atomic write transaction, so that two racing triggers cannot
// both succeed.
type GrantHistory interface {
	ConsiderInsert(ctx context.Context, grant state.AchievementGrant,
		shouldInsert func(latest *state.AchievementGrant) bool,
	) (latest *state.AchievementGrant, inserted *state.AchievementGrant, err error)
}

// Ledger enforces dedupe and cooldown policy for achievement grants.
type Ledger struct {
	catalog *Catalog
	history GrantHistory
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger creates a ledger over the given catalog and grant history.
func NewLedger(catalog *Catalog, history GrantHistory, logger *slog.Logger) *Ledger {
	return &Ledger{
		catalog: catalog,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Consider applies dedupe/cooldown policy to one candidate. The returned
// Outcome is always meaningful; the error is reserved for unknown
// achievements and storage faults.
func (l *Ledger) Consider(ctx context.Context, c Candidate) (Outcome, error) {
	def, ok := l.catalog.Get(c.AchievementID)
	if !ok {
		return Outcome{}, fmt.Errorf("unknown achievement %q", c.AchievementID)
	}

	rarity := c.Rarity
	if rarity == "" {
		rarity = def.Rarity
	}

	now := l.now().UTC()
	candidate := state.AchievementGrant{
		AchievementID: c.AchievementID,
		UserID:        c.UserID,
		SessionID:     c.SessionID,
		Rarity:        rarity,
		AwardedAt:     now,
		Detail:        c.Detail,
	}

	latest, inserted, err := l.history.ConsiderInsert(ctx, candidate, func(latest *state.AchievementGrant) bool {
		return eligible(def, latest, now)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to consider grant %s for %s: %w", c.AchievementID, c.UserID, err)
	}

	if inserted != nil {
		l.logger.Info("Achievement granted",
			"achievement_id", c.AchievementID,
			"user_id", c.UserID,
			"rarity", rarity)
		return Outcome{Kind: Granted, Grant: inserted}, nil
	}

	if def.OncePerUser {
		return Outcome{Kind: Deduped, Prior: latest}, nil
	}
	return Outcome{
		Kind:           CooldownBlocked,
		Prior:          latest,
		NextEligibleAt: latest.AwardedAt.Add(def.Cooldown()),
	}, nil
}

func eligible(def Achievement, latest *state.AchievementGrant, now time.Time) bool {
	if latest == nil {
		return true
	}
	if def.OncePerUser {
		return false
	}
	if def.CooldownSec <= 0 {
		return true
	}
	return !now.Before(latest.AwardedAt.Add(def.Cooldown()))
}
