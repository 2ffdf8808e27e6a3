// Package dice parses and evaluates dice-roll expressions with full
// provenance. The randomness source is always injected so that rolls are
// reproducible under a seeded source.
package dice

import (
	"fmt"
	"math/rand"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
)

const (
	// MaxCount is the largest accepted die count in a single expression.
	MaxCount = 100
	// MinSides and MaxSides bound the accepted die size.
	MinSides = 2
	MaxSides = 1000
)

// Advantage selects how multiple candidate dice collapse to one kept die.
type Advantage int

const (
	Normal           Advantage = 0
	WithAdvantage    Advantage = 1
	WithDisadvantage Advantage = -1
)

func (a Advantage) String() string {
	switch a {
	case WithAdvantage:
		return "advantage"
	case WithDisadvantage:
		return "disadvantage"
	default:
		return "normal"
	}
}

// ParseError reports a malformed dice expression. Offending carries the
// substring that failed, verbatim, for user-facing display.
type ParseError struct {
	Expression string
	Offending  string
	Reason     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse dice expression %q: %s (%q)", e.Expression, e.Reason, e.Offending)
}

// Instruction is a parsed dice expression ready to roll.
type Instruction struct {
	Count     int       `json:"count"`
	Sides     int       `json:"sides"`
	Modifier  int       `json:"modifier"`
	Advantage Advantage `json:"advantage"`
	Ability   string    `json:"ability,omitempty"` // set for ability-token expressions
}

// Roll is one evaluated dice expression. Rolls holds every die produced
// (both candidates under advantage/disadvantage), Kept holds the dice that
// count toward the total.
type Roll struct {
	Instruction     Instruction `json:"instruction"`
	Rolls           []int       `json:"rolls"`
	Kept            []int       `json:"kept"`
	AbilityModifier int         `json:"ability_modifier"`
	Total           int         `json:"total"`
}

// Evaluate parses and rolls expr in one step. Ability-token expressions
// resolve their modifier from scores.
func Evaluate(expr string, scores actor.AbilityScores, rng *rand.Rand) (*Roll, error) {
	inst, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	abilityMod := 0
	if inst.Ability != "" {
		abilityMod = actor.Modifier(scores.Get(inst.Ability))
	}
	return inst.Roll(rng, abilityMod), nil
}

// Roll evaluates the instruction against the provided randomness source.
// abilityMod is the signed modifier derived from an ability score; it is
// zero for plain expressions.
func (inst Instruction) Roll(rng *rand.Rand, abilityMod int) *Roll {
	result := &Roll{
		Instruction:     inst,
		AbilityModifier: abilityMod,
	}

	if inst.Advantage != Normal {
		// Advantage and disadvantage roll two independent dice and keep
		// the max or min. Parse guarantees Count == 1 here.
		first := rollDie(rng, inst.Sides)
		second := rollDie(rng, inst.Sides)
		result.Rolls = []int{first, second}
		kept := max(first, second)
		if inst.Advantage == WithDisadvantage {
			kept = min(first, second)
		}
		result.Kept = []int{kept}
	} else {
		result.Rolls = make([]int, inst.Count)
		for i := 0; i < inst.Count; i++ {
			result.Rolls[i] = rollDie(rng, inst.Sides)
		}
		result.Kept = result.Rolls
	}

	for _, value := range result.Kept {
		result.Total += value
	}
	result.Total += inst.Modifier + abilityMod
	return result
}

// Expression reconstructs a canonical expression string for the instruction.
func (inst Instruction) Expression() string {
	if inst.Ability != "" && inst.Sides == 20 && inst.Count == 1 && inst.Advantage == Normal {
		if inst.Modifier != 0 {
			return fmt.Sprintf("%s%+d", inst.Ability, inst.Modifier)
		}
		return inst.Ability
	}
	expr := fmt.Sprintf("%dd%d", inst.Count, inst.Sides)
	switch inst.Advantage {
	case WithAdvantage:
		expr += "adv"
	case WithDisadvantage:
		expr += "dis"
	}
	if inst.Modifier != 0 {
		expr += fmt.Sprintf("%+d", inst.Modifier)
	}
	return expr
}

func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}
