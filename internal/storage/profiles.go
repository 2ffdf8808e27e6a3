package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// GetProfile fetches the character sheet for a session, nil when absent.
func (s *SQLiteStore) GetProfile(ctx context.Context, sessionID uuid.UUID) (*actor.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, name, pronouns, race, class, backstory,
		       level, experience, abilities, inventory, finalized,
		       created_at, updated_at
		FROM story_profiles
		WHERE session_id = ?
	`, sessionID.String())

	var p actor.Profile
	var rawID, created, updated, abilities, inventory string
	var name, pronouns, race, class, backstory sql.NullString
	var finalized int
	err := row.Scan(&rawID, &p.UserID, &name, &pronouns, &race, &class, &backstory,
		&p.Level, &p.Experience, &abilities, &inventory, &finalized, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", sessionID, err)
	}

	if p.SessionID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("bad session id %q: %w", rawID, err)
	}
	p.Name = name.String
	p.Pronouns = pronouns.String
	p.Race = race.String
	p.Class = class.String
	p.Backstory = backstory.String
	p.Finalized = finalized != 0
	if err := json.Unmarshal([]byte(abilities), &p.Abilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal abilities for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(inventory), &p.Inventory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inventory for %s: %w", sessionID, err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile upserts a character sheet.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p *actor.Profile) error {
	if err := p.Abilities.Validate(); err != nil {
		return fmt.Errorf("invalid ability scores: %w", err)
	}
	abilities, err := json.Marshal(p.Abilities)
	if err != nil {
		return fmt.Errorf("failed to marshal abilities: %w", err)
	}
	if p.Inventory == nil {
		p.Inventory = make(map[string]int)
	}
	inventory, err := json.Marshal(p.Inventory)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}

	now := time.Now().UTC()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	finalized := 0
	if p.Finalized {
		finalized = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO story_profiles (session_id, user_id, name, pronouns, race,
			class, backstory, level, experience, abilities, inventory,
			finalized, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			name = excluded.name,
			pronouns = excluded.pronouns,
			race = excluded.race,
			class = excluded.class,
			backstory = excluded.backstory,
			level = excluded.level,
			experience = excluded.experience,
			abilities = excluded.abilities,
			inventory = excluded.inventory,
			finalized = excluded.finalized,
			updated_at = excluded.updated_at
	`, p.SessionID.String(), p.UserID, p.Name, p.Pronouns, p.Race, p.Class,
		p.Backstory, p.Level, p.Experience, string(abilities), string(inventory),
		finalized, p.CreatedAt.Format(timeFormat), p.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.SessionID, err)
	}
	return nil
}

// GetStoryState fetches a session's scene-graph position, nil when absent.
func (s *SQLiteStore) GetStoryState(ctx context.Context, sessionID uuid.UUID) (*state.StoryState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, current_scene, scene_history, flags, stats, updated_at
		FROM story_state
		WHERE session_id = ?
	`, sessionID.String())

	var st state.StoryState
	var rawID, history, flags, stats, updated string
	var current sql.NullString
	err := row.Scan(&rawID, &current, &history, &flags, &stats, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load story state %s: %w", sessionID, err)
	}

	if st.SessionID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("bad session id %q: %w", rawID, err)
	}
	st.CurrentScene = current.String
	if err := json.Unmarshal([]byte(history), &st.SceneHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene history for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(flags), &st.Flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flags for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(stats), &st.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats for %s: %w", sessionID, err)
	}
	if st.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveStoryState upserts a session's scene-graph position.
func (s *SQLiteStore) SaveStoryState(ctx context.Context, st *state.StoryState) error {
	if st.SceneHistory == nil {
		st.SceneHistory = []string{}
	}
	if st.Flags == nil {
		st.Flags = map[string]string{}
	}
	if st.Stats == nil {
		st.Stats = map[string]int{}
	}
	history, err := json.Marshal(st.SceneHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal scene history: %w", err)
	}
	flags, err := json.Marshal(st.Flags)
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}
	stats, err := json.Marshal(st.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	st.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO story_state (session_id, current_scene, scene_history, flags, stats, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_scene = excluded.current_scene,
			scene_history = excluded.scene_history,
			flags = excluded.flags,
			stats = excluded.stats,
			updated_at = excluded.updated_at
	`, st.SessionID.String(), st.CurrentScene, string(history), string(flags),
		string(stats), st.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to save story state %s: %w", st.SessionID, err)
	}
	return nil
}
