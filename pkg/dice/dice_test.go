package dice

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want Instruction
	}{
		{
			name: "plain roll",
			expr: "2d6",
			want: Instruction{Count: 2, Sides: 6},
		},
		{
			name: "implicit count",
			expr: "d20",
			want: Instruction{Count: 1, Sides: 20},
		},
		{
			name: "positive modifier",
			expr: "1d20+3",
			want: Instruction{Count: 1, Sides: 20, Modifier: 3},
		},
		{
			name: "negative modifier",
			expr: "3d8-2",
			want: Instruction{Count: 3, Sides: 8, Modifier: -2},
		},
		{
			name: "advantage",
			expr: "1d20adv",
			want: Instruction{Count: 1, Sides: 20, Advantage: WithAdvantage},
		},
		{
			name: "disadvantage with modifier",
			expr: "1d20dis-1",
			want: Instruction{Count: 1, Sides: 20, Modifier: -1, Advantage: WithDisadvantage},
		},
		{
			name: "ability token",
			expr: "str",
			want: Instruction{Count: 1, Sides: 20, Ability: "str"},
		},
		{
			name: "ability token with modifier",
			expr: "dex+2",
			want: Instruction{Count: 1, Sides: 20, Modifier: 2, Ability: "dex"},
		},
		{
			name: "uppercase and spaces",
			expr: " 2D6 + 1 ",
			want: Instruction{Count: 2, Sides: 6, Modifier: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"missing die size", "d"},
		{"one-sided die", "1d1"},
		{"too many sides", "1d1001"},
		{"too many dice", "99999d20"},
		{"zero dice", "0d6"},
		{"gibberish", "foo"},
		{"advantage on multiple dice", "2d20adv"},
		{"unknown ability", "lck+1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.expr)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("Parse(%q) returned %T, want *ParseError", tt.expr, err)
			}
		})
	}
}

func TestRollBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inst := Instruction{Count: 4, Sides: 6, Modifier: 2}

	for i := 0; i < 100; i++ {
		roll := inst.Roll(rng, 0)
		if len(roll.Rolls) != 4 {
			t.Fatalf("expected 4 dice, got %d", len(roll.Rolls))
		}
		sum := 0
		for _, die := range roll.Rolls {
			if die < 1 || die > 6 {
				t.Fatalf("die value %d out of range [1,6]", die)
			}
			sum += die
		}
		if roll.Total != sum+2 {
			t.Errorf("total %d does not match dice sum %d plus modifier", roll.Total, sum)
		}
	}
}

func TestRollDeterministic(t *testing.T) {
	first, err := Evaluate("3d6+1", nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	second, err := Evaluate("3d6+1", nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed produced different rolls: %+v vs %+v", first, second)
	}
}

func TestRollAdvantage(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	inst := Instruction{Count: 1, Sides: 20, Modifier: 3, Advantage: WithAdvantage}

	for i := 0; i < 50; i++ {
		roll := inst.Roll(rng, 0)
		if len(roll.Rolls) != 2 {
			t.Fatalf("advantage should roll 2 dice, got %d", len(roll.Rolls))
		}
		if len(roll.Kept) != 1 {
			t.Fatalf("advantage should keep 1 die, got %d", len(roll.Kept))
		}
		want := max(roll.Rolls[0], roll.Rolls[1])
		if roll.Kept[0] != want {
			t.Errorf("kept %d, want max of %v", roll.Kept[0], roll.Rolls)
		}
		if roll.Total != want+3 {
			t.Errorf("total %d, want %d", roll.Total, want+3)
		}
	}
}

func TestRollDisadvantage(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	inst := Instruction{Count: 1, Sides: 20, Advantage: WithDisadvantage}

	for i := 0; i < 50; i++ {
		roll := inst.Roll(rng, 0)
		want := min(roll.Rolls[0], roll.Rolls[1])
		if roll.Kept[0] != want {
			t.Errorf("kept %d, want min of %v", roll.Kept[0], roll.Rolls)
		}
	}
}

func TestEvaluateAbilityToken(t *testing.T) {
	scores := actor.AbilityScores{"str": 16}
	roll, err := Evaluate("str+1", scores, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	// 16 STR is a +3 modifier, plus the explicit +1.
	if roll.AbilityModifier != 3 {
		t.Errorf("ability modifier = %d, want 3", roll.AbilityModifier)
	}
	if roll.Total != roll.Kept[0]+3+1 {
		t.Errorf("total %d does not include both modifiers", roll.Total)
	}
}

func TestExpressionRoundTrip(t *testing.T) {
	exprs := []string{"2d6", "1d20adv", "1d20dis-1", "3d8+2", "str", "cha-1"}
	for _, expr := range exprs {
		inst, err := Parse(expr)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", expr, err)
		}
		again, err := Parse(inst.Expression())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", inst.Expression(), err)
		}
		if inst != again {
			t.Errorf("canonical expression %q reparsed to %+v, want %+v", inst.Expression(), again, inst)
		}
	}
}

func TestParseForAbility(t *testing.T) {
	if !ParseForAbility("wis", "wis") {
		t.Error("expected wis to match wis")
	}
	if ParseForAbility("2d6", "wis") {
		t.Error("plain roll should not match an ability")
	}
	if ParseForAbility("str", "dex") {
		t.Error("str should not match dex")
	}
}
