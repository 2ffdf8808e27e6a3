package state

import (
	"fmt"
	"testing"
)

func TestParseMode(t *testing.T) {
	for _, name := range []string{"narrator", "achievements", "explain", "story"} {
		mode, err := ParseMode(name)
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", name, err)
		}
		if string(mode) != name {
			t.Errorf("ParseMode(%q) = %q", name, mode)
		}
	}

	if _, err := ParseMode("dungeon"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := ParseMode(""); err == nil {
		t.Error("expected error for empty mode")
	}
}

func TestTogglesValidate(t *testing.T) {
	valid := Toggles{
		ProfanityLevel:     1,
		Rating:             RatingPG13,
		TangentsLevel:      1,
		AchievementDensity: DensityNormal,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid toggles rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Toggles)
	}{
		{"profanity below range", func(t *Toggles) { t.ProfanityLevel = -1 }},
		{"profanity above range", func(t *Toggles) { t.ProfanityLevel = 4 }},
		{"tangents above range", func(t *Toggles) { t.TangentsLevel = 3 }},
		{"unknown rating", func(t *Toggles) { t.Rating = "NC-17" }},
		{"unknown density", func(t *Toggles) { t.AchievementDensity = "maximum" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toggles := valid
			tt.mutate(&toggles)
			if err := toggles.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAppendScene(t *testing.T) {
	var s StoryState

	s.AppendScene("start")
	s.AppendScene("hall")
	if s.CurrentScene != "hall" {
		t.Errorf("current scene = %q, want hall", s.CurrentScene)
	}
	if len(s.SceneHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(s.SceneHistory))
	}
}

func TestAppendSceneCap(t *testing.T) {
	var s StoryState
	for i := 0; i < SceneHistoryLimit+10; i++ {
		s.AppendScene(fmt.Sprintf("scene_%d", i))
	}

	if len(s.SceneHistory) != SceneHistoryLimit {
		t.Fatalf("history length = %d, want %d", len(s.SceneHistory), SceneHistoryLimit)
	}
	// The oldest entries are trimmed, the newest kept.
	if s.SceneHistory[0] != "scene_10" {
		t.Errorf("oldest kept entry = %q, want scene_10", s.SceneHistory[0])
	}
	last := s.SceneHistory[len(s.SceneHistory)-1]
	if last != fmt.Sprintf("scene_%d", SceneHistoryLimit+9) {
		t.Errorf("newest entry = %q", last)
	}
	if s.CurrentScene != last {
		t.Errorf("current scene %q does not match newest entry %q", s.CurrentScene, last)
	}
}
