package dice

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
)

var (
	dicePattern    = regexp.MustCompile(`^(\d*)d(\d*)(adv|dis)?([+-]\d+)?$`)
	abilityPattern = regexp.MustCompile(`^(str|dex|con|int|wis|cha)([+-]\d+)?$`)
)

// Parse turns an expression like "2d6", "1d20adv+3" or "str" into an
// Instruction. Expressions are case-insensitive and may contain spaces.
// Malformed input fails with *ParseError; nothing is silently coerced.
func Parse(expression string) (Instruction, error) {
	text := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(expression), " ", ""))
	if text == "" {
		return Instruction{}, &ParseError{
			Expression: expression,
			Offending:  expression,
			Reason:     "empty expression",
		}
	}

	// Bare ability token, optionally with a signed modifier: resolves to
	// 1d20 plus the ability modifier.
	if m := abilityPattern.FindStringSubmatch(text); m != nil {
		modifier := 0
		if m[2] != "" {
			modifier, _ = strconv.Atoi(m[2])
		}
		return Instruction{Count: 1, Sides: 20, Modifier: modifier, Ability: m[1]}, nil
	}

	m := dicePattern.FindStringSubmatch(text)
	if m == nil {
		return Instruction{}, &ParseError{
			Expression: expression,
			Offending:  text,
			Reason:     "expected [N]dM[adv|dis][+K|-K] or an ability name",
		}
	}

	count := 1
	if m[1] != "" {
		parsed, err := strconv.Atoi(m[1])
		if err != nil || parsed < 1 {
			return Instruction{}, &ParseError{Expression: expression, Offending: m[1], Reason: "bad die count"}
		}
		count = parsed
	}
	if count > MaxCount {
		return Instruction{}, &ParseError{Expression: expression, Offending: m[1], Reason: "too many dice"}
	}

	if m[2] == "" {
		return Instruction{}, &ParseError{Expression: expression, Offending: text, Reason: "missing die size"}
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < MinSides || sides > MaxSides {
		return Instruction{}, &ParseError{Expression: expression, Offending: m[2], Reason: "die size must be between 2 and 1000"}
	}

	advantage := Normal
	switch m[3] {
	case "adv":
		advantage = WithAdvantage
	case "dis":
		advantage = WithDisadvantage
	}
	if advantage != Normal && count != 1 {
		return Instruction{}, &ParseError{
			Expression: expression,
			Offending:  m[3],
			Reason:     "advantage and disadvantage require a single die",
		}
	}

	modifier := 0
	if m[4] != "" {
		modifier, _ = strconv.Atoi(m[4])
	}

	return Instruction{Count: count, Sides: sides, Modifier: modifier, Advantage: advantage}, nil
}

// ParseForAbility reports whether expression resolves to a plain check of
// the named ability (used to match stored rolls against pending checks).
func ParseForAbility(expression, ability string) bool {
	inst, err := Parse(expression)
	if err != nil {
		return false
	}
	return inst.Ability != "" && inst.Ability == strings.ToLower(ability) && actor.IsAbility(inst.Ability)
}
