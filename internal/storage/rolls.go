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

// AppendRoll persists one dice evaluation and returns the stored row.
func (s *SQLiteStore) AppendRoll(ctx context.Context, roll state.StoryRoll) (*state.StoryRoll, error) {
	detail, err := json.Marshal(roll.Detail)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal roll detail: %w", err)
	}
	if roll.CreatedAt.IsZero() {
		roll.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO story_rolls (session_id, user_id, expression, ability, total, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, roll.SessionID.String(), roll.UserID, roll.Expression,
		nullable(roll.Ability), roll.Total, string(detail),
		roll.CreatedAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to append roll for %s: %w", roll.SessionID, err)
	}
	if roll.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read roll id: %w", err)
	}
	return &roll, nil
}

// RecentRolls lists the newest rolls for a session, newest first.
func (s *SQLiteStore) RecentRolls(ctx context.Context, sessionID uuid.UUID, limit int) ([]state.StoryRoll, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, expression, ability, total, detail, consumed_at, created_at
		FROM story_rolls
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sessionID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rolls for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var rolls []state.StoryRoll
	for rows.Next() {
		roll, err := scanRoll(rows)
		if err != nil {
			return nil, err
		}
		rolls = append(rolls, *roll)
	}
	return rolls, rows.Err()
}

// ConsumeStoredRoll atomically claims the oldest unconsumed compatible roll
// for the session. Compatibility is same ability or exact expression match.
// Returns nil when no stored roll qualifies.
func (s *SQLiteStore) ConsumeStoredRoll(ctx context.Context, sessionID uuid.UUID, ability, expression string) (*state.StoryRoll, error) {
	var consumed *state.StoryRoll
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, session_id, user_id, expression, ability, total, detail, consumed_at, created_at
			FROM story_rolls
			WHERE session_id = ?
			  AND consumed_at IS NULL
			  AND (ability = ? OR expression = ?)
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		`, sessionID.String(), ability, expression)

		roll, err := scanRoll(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			"UPDATE story_rolls SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL",
			now.Format(timeFormat), roll.ID)
		if err != nil {
			return fmt.Errorf("failed to consume roll %d: %w", roll.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check consumed roll %d: %w", roll.ID, err)
		}
		if affected == 0 {
			// Claimed concurrently; treat as no stored roll.
			return nil
		}
		roll.ConsumedAt = &now
		consumed = roll
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoll(row rowScanner) (*state.StoryRoll, error) {
	var roll state.StoryRoll
	var rawID, detail, created string
	var abilityCol, consumed sql.NullString
	err := row.Scan(&roll.ID, &rawID, &roll.UserID, &roll.Expression,
		&abilityCol, &roll.Total, &detail, &consumed, &created)
	if err != nil {
		return nil, err
	}

	var parseErr error
	if roll.SessionID, parseErr = uuid.Parse(rawID); parseErr != nil {
		return nil, fmt.Errorf("bad session id %q: %w", rawID, parseErr)
	}
	roll.Ability = abilityCol.String
	if err := json.Unmarshal([]byte(detail), &roll.Detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roll detail: %w", err)
	}
	if consumed.Valid {
		t, err := parseTime(consumed.String)
		if err != nil {
			return nil, err
		}
		roll.ConsumedAt = &t
	}
	if roll.CreatedAt, parseErr = parseTime(created); parseErr != nil {
		return nil, parseErr
	}
	return &roll, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
