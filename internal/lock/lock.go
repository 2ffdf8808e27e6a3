// Package lock serializes turns per session with a Redis advisory lock.
// Concurrent turns for different sessions proceed independently; duplicate
// or retried deliveries for the same session wait their turn.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "turnlock:"
	acquirePoll   = 25 * time.Millisecond
	defaultExpiry = 30 * time.Second
)

// releaseScript deletes the lock only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// SessionLocker hands out per-session advisory locks.
type SessionLocker struct {
	client *redis.Client
	logger *slog.Logger
	expiry time.Duration
}

// NewSessionLocker connects a locker to Redis at addr.
func NewSessionLocker(addr string, logger *slog.Logger) *SessionLocker {
	return &SessionLocker{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
		expiry: defaultExpiry,
	}
}

// Ping tests the Redis connection.
func (l *SessionLocker) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (l *SessionLocker) Close() error {
	return l.client.Close()
}

// Acquire blocks until the session lock is held or ctx is done. The
// returned release function must be called when the turn completes; the
// lock also expires on its own if the holder dies mid-turn.
func (l *SessionLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	key := keyPrefix + sessionID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.expiry).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock %s: %w", sessionID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for session lock %s: %w", sessionID, ctx.Err())
		case <-time.After(acquirePoll):
		}
	}

	release := func() {
		// Release outlives the turn's context so a cancelled turn still unlocks.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release session lock", "session_id", sessionID, "error", err)
		}
	}
	return release, nil
}
