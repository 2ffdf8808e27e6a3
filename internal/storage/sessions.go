package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// EnsureUser inserts or refreshes a user row and returns the stored record.
func (s *SQLiteStore) EnsureUser(ctx context.Context, id, displayName string) (*state.User, error) {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`, id, displayName, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", id, err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, created_at, updated_at FROM users WHERE id = ?", id)
	var u state.User
	var name sql.NullString
	var created, updated string
	if err := row.Scan(&u.ID, &name, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	u.DisplayName = name.String
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetSession fetches a session row, returning nil when absent.
func (s *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, mode, profanity_level, rating, tangents_level,
		       achievement_density, story_enabled, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`, id.String())

	var sess state.Session
	var rawID, created, updated string
	var storyEnabled int
	err := row.Scan(&rawID, &sess.UserID, &sess.Mode,
		&sess.Toggles.ProfanityLevel, &sess.Toggles.Rating,
		&sess.Toggles.TangentsLevel, &sess.Toggles.AchievementDensity,
		&storyEnabled, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	if sess.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("bad session id %q: %w", rawID, err)
	}
	sess.StoryEnabled = storyEnabled != 0
	if sess.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveSession upserts a session row.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *state.Session) error {
	if err := sess.Toggles.Validate(); err != nil {
		return fmt.Errorf("invalid session toggles: %w", err)
	}

	now := time.Now().UTC()
	sess.UpdatedAt = now
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	storyEnabled := 0
	if sess.StoryEnabled {
		storyEnabled = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, mode, profanity_level, rating,
			tangents_level, achievement_density, story_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			profanity_level = excluded.profanity_level,
			rating = excluded.rating,
			tangents_level = excluded.tangents_level,
			achievement_density = excluded.achievement_density,
			story_enabled = excluded.story_enabled,
			updated_at = excluded.updated_at
	`, sess.ID.String(), sess.UserID, string(sess.Mode),
		sess.Toggles.ProfanityLevel, string(sess.Toggles.Rating),
		sess.Toggles.TangentsLevel, string(sess.Toggles.AchievementDensity),
		storyEnabled, sess.CreatedAt.Format(timeFormat), sess.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}
