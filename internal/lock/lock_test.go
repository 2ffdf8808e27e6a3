package lock

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func testLocker(t *testing.T) (*SessionLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	locker := NewSessionLocker(mr.Addr(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		if err := locker.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return locker, mr
}

func TestPing(t *testing.T) {
	locker, _ := testLocker(t)
	if err := locker.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestAcquireRelease(t *testing.T) {
	locker, mr := testLocker(t)
	ctx := context.Background()
	sessionID := uuid.New()

	release, err := locker.Acquire(ctx, sessionID)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !mr.Exists(keyPrefix + sessionID.String()) {
		t.Error("lock key not set in redis")
	}

	release()
	if mr.Exists(keyPrefix + sessionID.String()) {
		t.Error("lock key still set after release")
	}

	// The lock is reusable once released.
	release, err = locker.Acquire(ctx, sessionID)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	release()
}

func TestAcquireBlocksSameSession(t *testing.T) {
	locker, _ := testLocker(t)
	sessionID := uuid.New()

	release, err := locker.Acquire(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, sessionID); err == nil {
		t.Fatal("second Acquire for a held session should time out")
	}
}

func TestAcquireIndependentSessions(t *testing.T) {
	locker, _ := testLocker(t)
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer releaseA()

	// A different session is not blocked by the first.
	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx2, uuid.New())
	if err != nil {
		t.Fatalf("Acquire for an independent session failed: %v", err)
	}
	releaseB()
}

func TestAcquireWaitsForRelease(t *testing.T) {
	locker, _ := testLocker(t)
	sessionID := uuid.New()

	release, err := locker.Acquire(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(75 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	releaseAgain, err := locker.Acquire(ctx, sessionID)
	if err != nil {
		t.Fatalf("Acquire did not obtain the lock after release: %v", err)
	}
	releaseAgain()
}

func TestReleaseOnlyOwnToken(t *testing.T) {
	locker, mr := testLocker(t)
	sessionID := uuid.New()
	key := keyPrefix + sessionID.String()

	release, err := locker.Acquire(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Simulate expiry plus takeover by another holder.
	if err := mr.Set(key, "someone-else"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	release()
	if !mr.Exists(key) {
		t.Error("release deleted a lock held by another token")
	}
}
