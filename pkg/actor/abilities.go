package actor

import (
	"fmt"
	"math/rand"
	"sort"
)

// AbilityKeys is the fixed set of ability score names, in display order.
var AbilityKeys = []string{"str", "dex", "con", "int", "wis", "cha"}

// AbilityScores maps an ability key ("str", "dex", ...) to its score.
type AbilityScores map[string]int

// IsAbility reports whether key names one of the six ability scores.
func IsAbility(key string) bool {
	for _, k := range AbilityKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Modifier computes the signed modifier for an ability score:
// (score-10)/2, rounded down.
func Modifier(score int) int {
	diff := score - 10
	if diff < 0 {
		// Go integer division truncates toward zero; modifiers round down.
		return -((-diff + 1) / 2)
	}
	return diff / 2
}

// DefaultAbilityScores returns a flat sheet of 10s, the pre-generation default.
func DefaultAbilityScores() AbilityScores {
	scores := make(AbilityScores, len(AbilityKeys))
	for _, key := range AbilityKeys {
		scores[key] = 10
	}
	return scores
}

// RollAbilityScores generates a fresh set of ability scores using the
// standard 4d6-drop-lowest method, one roll group per ability.
func RollAbilityScores(rng *rand.Rand) AbilityScores {
	scores := make(AbilityScores, len(AbilityKeys))
	for _, key := range AbilityKeys {
		dice := make([]int, 4)
		for i := range dice {
			dice[i] = rng.Intn(6) + 1
		}
		sort.Ints(dice)
		scores[key] = dice[1] + dice[2] + dice[3]
	}
	return scores
}

// Validate checks that every ability key is known and every score is
// within the allowed range.
func (s AbilityScores) Validate() error {
	for key, score := range s {
		if !IsAbility(key) {
			return fmt.Errorf("unknown ability %q", key)
		}
		if score < 1 || score > 20 {
			return fmt.Errorf("ability %s score %d out of range [1,20]", key, score)
		}
	}
	return nil
}

// Get returns the score for key, defaulting to 10 when unset.
func (s AbilityScores) Get(key string) int {
	if score, ok := s[key]; ok {
		return score
	}
	return 10
}
