package services

import (
	"context"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

func TestCannedNarratorDefault(t *testing.T) {
	n := NewCannedNarrator(rand.NewSource(1))

	out, err := n.Narrate(context.Background(), NarrationInput{
		Mode:            state.ModeNarrator,
		MechanicalLines: []string{"Rolled 2d6: [3 4] = 7"},
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}

	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected opener plus mechanical line, got %q", out)
	}
	if !slices.Contains(narratorOpeners, lines[0]) {
		t.Errorf("first line %q is not a known opener", lines[0])
	}
	if lines[1] != "Rolled 2d6: [3 4] = 7" {
		t.Errorf("mechanical line altered: %q", lines[1])
	}
}

func TestCannedNarratorWeavesPlayerText(t *testing.T) {
	n := NewCannedNarrator(rand.NewSource(1))

	out, err := n.Narrate(context.Background(), NarrationInput{
		Mode:       state.ModeNarrator,
		PlayerText: "I kick the door",
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if !strings.Contains(out, `Keith weighs your words: "I kick the door".`) {
		t.Errorf("output %q does not quote the player", out)
	}

	// Explain mode stays strictly mechanical.
	out, err = n.Narrate(context.Background(), NarrationInput{
		Mode:       state.ModeExplain,
		PlayerText: "I kick the door",
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if strings.Contains(out, "I kick the door") {
		t.Errorf("explain output %q echoes the player", out)
	}
}

func TestCannedNarratorExplain(t *testing.T) {
	n := NewCannedNarrator(rand.NewSource(1))

	out, err := n.Narrate(context.Background(), NarrationInput{
		Mode:            state.ModeExplain,
		Toggles:         state.Toggles{TangentsLevel: 2},
		MechanicalLines: []string{"STR check, DC 15: [13] +2 = 15. Success!"},
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}

	if !strings.HasPrefix(out, explainPreamble) {
		t.Errorf("output %q missing the explain preamble", out)
	}
	// Explain mode stays dry even with tangents turned up.
	for _, tangent := range tangentLines {
		if strings.Contains(out, tangent) {
			t.Errorf("explain mode included tangent %q", tangent)
		}
	}
}

func TestCannedNarratorStory(t *testing.T) {
	n := NewCannedNarrator(rand.NewSource(1))

	out, err := n.Narrate(context.Background(), NarrationInput{
		Mode:           state.ModeStory,
		SceneTitle:     "The Gilded Flagon",
		SceneNarration: "The tavern door creaks open.",
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}

	if !strings.HasPrefix(out, "The Gilded Flagon") {
		t.Errorf("output %q missing the scene title", out)
	}
	if !strings.Contains(out, "The tavern door creaks open.") {
		t.Errorf("output %q missing the scene narration", out)
	}
	for _, opener := range narratorOpeners {
		if strings.Contains(out, opener) {
			t.Errorf("story mode included table-talk opener %q", opener)
		}
	}
}

func TestCannedNarratorTangents(t *testing.T) {
	n := NewCannedNarrator(rand.NewSource(1))

	out, err := n.Narrate(context.Background(), NarrationInput{
		Mode:    state.ModeNarrator,
		Toggles: state.Toggles{TangentsLevel: 2},
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}

	found := false
	for _, tangent := range tangentLines {
		if strings.Contains(out, tangent) {
			found = true
		}
	}
	if !found {
		t.Errorf("tangents level 2 produced no tangent: %q", out)
	}

	// Level 1 and below never rambles.
	out, err = n.Narrate(context.Background(), NarrationInput{
		Mode:    state.ModeNarrator,
		Toggles: state.Toggles{TangentsLevel: 1},
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	for _, tangent := range tangentLines {
		if strings.Contains(out, tangent) {
			t.Errorf("tangents level 1 included %q", tangent)
		}
	}
}

func TestMockNarrator(t *testing.T) {
	m := NewMockNarrator()

	out, err := m.Narrate(context.Background(), NarrationInput{
		SceneNarration:  "A dark cellar.",
		MechanicalLines: []string{"You gain 10 XP."},
	})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if out != "A dark cellar.\nYou gain 10 XP." {
		t.Errorf("output = %q", out)
	}
	if len(m.Calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(m.Calls))
	}

	m.Reset()
	if len(m.Calls) != 0 {
		t.Error("Reset did not clear calls")
	}
}
