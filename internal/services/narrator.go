// Package services provides the narration layer that wraps mechanical
// turn results in persona prose.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// NarrationInput carries everything the narrator may weave into prose.
// Mechanical facts (totals, outcomes, grants) are already final; the
// narrator only decorates them.
type NarrationInput struct {
	Mode       state.Mode
	Toggles    state.Toggles
	PlayerName string

	// Scene prose for story mode, empty otherwise.
	SceneTitle     string
	SceneNarration string

	// Mechanical lines the narrator must include verbatim.
	MechanicalLines []string

	// PlayerText is the player's freeform message, empty for command turns.
	PlayerText string
}

// Narrator turns a mechanical result into table talk.
type Narrator interface {
	Narrate(ctx context.Context, in NarrationInput) (string, error)
}

// CannedNarrator is the offline narrator. It composes deterministic
// structure with rotating flavor lines so repeated turns do not read
// identically.
type CannedNarrator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCannedNarrator creates a narrator seeded from src.
func NewCannedNarrator(src rand.Source) *CannedNarrator {
	return &CannedNarrator{rng: rand.New(src)}
}

var narratorOpeners = []string{
	"The dice clatter across the table.",
	"Keith leans forward over the screen.",
	"A hush settles over the table.",
	"Keith taps the table twice.",
}

var tangentLines = []string{
	"Reminds me of a campaign back in '09. Different table, same chaos.",
	"Fun fact: this exact thing once wiped a party of five. Anyway.",
	"I had a cat named after this scene once. Long story.",
}

var explainPreamble = "Here is what happened mechanically, no theater:"

// Narrate renders the turn. The canned narrator never fails.
func (n *CannedNarrator) Narrate(_ context.Context, in NarrationInput) (string, error) {
	var b strings.Builder

	switch in.Mode {
	case state.ModeExplain:
		b.WriteString(explainPreamble)
		b.WriteString("\n")
	case state.ModeStory:
		if in.SceneTitle != "" {
			fmt.Fprintf(&b, "%s\n\n", in.SceneTitle)
		}
		if in.SceneNarration != "" {
			b.WriteString(in.SceneNarration)
			b.WriteString("\n")
		}
	default:
		b.WriteString(n.pick(narratorOpeners))
		b.WriteString("\n")
		if in.PlayerText != "" {
			fmt.Fprintf(&b, "Keith weighs your words: %q.\n", in.PlayerText)
		}
	}

	for _, line := range in.MechanicalLines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if in.Mode != state.ModeExplain && in.Toggles.TangentsLevel >= 2 {
		b.WriteString(n.pick(tangentLines))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func (n *CannedNarrator) pick(lines []string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return lines[n.rng.Intn(len(lines))]
}
