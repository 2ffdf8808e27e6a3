package services

import (
	"context"
	"strings"
	"sync"
)

// MockNarrator is a Narrator for tests. It echoes mechanical lines and
// tracks calls.
type MockNarrator struct {
	NarrateFunc func(ctx context.Context, in NarrationInput) (string, error)

	// Calls records every input received.
	Calls []NarrationInput

	mu sync.Mutex
}

// NewMockNarrator creates a new mock narrator.
func NewMockNarrator() *MockNarrator {
	return &MockNarrator{}
}

// Narrate returns the mechanical lines joined by newlines unless
// NarrateFunc overrides the behavior.
func (m *MockNarrator) Narrate(ctx context.Context, in NarrationInput) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, in)
	fn := m.NarrateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, in)
	}

	lines := make([]string, 0, len(in.MechanicalLines)+1)
	if in.SceneNarration != "" {
		lines = append(lines, in.SceneNarration)
	}
	lines = append(lines, in.MechanicalLines...)
	return strings.Join(lines, "\n"), nil
}

// Reset clears call tracking.
func (m *MockNarrator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}
