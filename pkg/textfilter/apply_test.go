package textfilter

import (
	"testing"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

func TestActive(t *testing.T) {
	tests := []struct {
		name    string
		toggles state.Toggles
		want    bool
	}{
		{
			name:    "low level always filters",
			toggles: state.Toggles{ProfanityLevel: 0, Rating: state.RatingR},
			want:    true,
		},
		{
			name:    "level one always filters",
			toggles: state.Toggles{ProfanityLevel: 1, Rating: state.RatingR},
			want:    true,
		},
		{
			name:    "pg rating filters at high level",
			toggles: state.Toggles{ProfanityLevel: 3, Rating: state.RatingPG},
			want:    true,
		},
		{
			name:    "pg-13 rating filters at high level",
			toggles: state.Toggles{ProfanityLevel: 3, Rating: state.RatingPG13},
			want:    true,
		},
		{
			name:    "r rating with filter off passes through",
			toggles: state.Toggles{ProfanityLevel: 3, Rating: state.RatingR},
			want:    false,
		},
		{
			name:    "r rating at level two passes through",
			toggles: state.Toggles{ProfanityLevel: 2, Rating: state.RatingR},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Active(tt.toggles); got != tt.want {
				t.Errorf("Active(%+v) = %v, want %v", tt.toggles, got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	pf := NewProfanityFilter()
	text := "That was a damn good roll."

	filtered := pf.Apply(text, state.Toggles{ProfanityLevel: 0, Rating: state.RatingR})
	if filtered != "That was a dang good roll." {
		t.Errorf("filtered = %q", filtered)
	}

	passed := pf.Apply(text, state.Toggles{ProfanityLevel: 3, Rating: state.RatingR})
	if passed != text {
		t.Errorf("passed = %q, want unchanged text", passed)
	}
}
