package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// ConsiderInsert loads the most recent grant for (achievementID, userID) and,
// when shouldInsert approves, inserts the candidate row, all in one write
// transaction. SQLite serializes writers, so two racing triggers observe
// each other's inserts and at most one can succeed for a once-per-user
// achievement.
func (s *SQLiteStore) ConsiderInsert(ctx context.Context, grant state.AchievementGrant,
	shouldInsert func(latest *state.AchievementGrant) bool,
) (*state.AchievementGrant, *state.AchievementGrant, error) {
	var latest, inserted *state.AchievementGrant
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, grantSelect+`
			WHERE achievement_id = ? AND user_id = ?
			ORDER BY awarded_at DESC, id DESC
			LIMIT 1
		`, grant.AchievementID, grant.UserID)

		g, err := scanGrant(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		latest = g

		if !shouldInsert(latest) {
			return nil
		}

		detail, err := json.Marshal(grant.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal grant detail: %w", err)
		}
		if grant.AwardedAt.IsZero() {
			grant.AwardedAt = time.Now().UTC()
		}
		var sessionID any
		if grant.SessionID != nil {
			sessionID = grant.SessionID.String()
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO achievement_grants (achievement_id, user_id, session_id, rarity, awarded_at, detail)
			VALUES (?, ?, ?, ?, ?, ?)
		`, grant.AchievementID, grant.UserID, sessionID, grant.Rarity,
			grant.AwardedAt.Format(timeFormat), string(detail))
		if err != nil {
			return fmt.Errorf("failed to insert grant %s for %s: %w", grant.AchievementID, grant.UserID, err)
		}
		if grant.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read grant id: %w", err)
		}
		inserted = &grant
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return latest, inserted, nil
}

// LatestGrant fetches the most recent grant for (achievementID, userID),
// nil when none exists.
func (s *SQLiteStore) LatestGrant(ctx context.Context, achievementID, userID string) (*state.AchievementGrant, error) {
	row := s.db.QueryRowContext(ctx, grantSelect+`
		WHERE achievement_id = ? AND user_id = ?
		ORDER BY awarded_at DESC, id DESC
		LIMIT 1
	`, achievementID, userID)

	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest grant %s for %s: %w", achievementID, userID, err)
	}
	return g, nil
}

// RecentGrants lists a user's newest grants, newest first.
func (s *SQLiteStore) RecentGrants(ctx context.Context, userID string, limit int) ([]state.AchievementGrant, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, grantSelect+`
		WHERE user_id = ?
		ORDER BY awarded_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants for %s: %w", userID, err)
	}
	defer rows.Close()

	var grants []state.AchievementGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

const grantSelect = `
	SELECT id, achievement_id, user_id, session_id, rarity, awarded_at, detail
	FROM achievement_grants
`

func scanGrant(row rowScanner) (*state.AchievementGrant, error) {
	var g state.AchievementGrant
	var sessionID sql.NullString
	var awarded, detail string
	err := row.Scan(&g.ID, &g.AchievementID, &g.UserID, &sessionID, &g.Rarity, &awarded, &detail)
	if err != nil {
		return nil, err
	}

	if sessionID.Valid {
		id, err := uuid.Parse(sessionID.String)
		if err != nil {
			return nil, fmt.Errorf("bad session id %q: %w", sessionID.String, err)
		}
		g.SessionID = &id
	}
	if g.AwardedAt, err = parseTime(awarded); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(detail), &g.Detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant detail: %w", err)
	}
	return &g, nil
}
