package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// AppendEvent writes one audit-trail entry. The event log is write-only
// from the engine's perspective.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event state.EventRecord) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	var sessionID any
	if event.SessionID != nil {
		sessionID = event.SessionID.String()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event_log (user_id, session_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, nullable(event.UserID), sessionID, event.Kind, string(detail),
		event.CreatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", event.Kind, err)
	}
	return nil
}
