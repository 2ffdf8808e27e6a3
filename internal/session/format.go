package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/state"
	"github.com/dmkeith/dungeonmaster/pkg/story"
)

// formatRoll renders an explicit roll as table talk.
func formatRoll(roll *state.StoryRoll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rolled %s: %s", roll.Expression, formatDice(roll.Detail.Rolls, roll.Detail.Kept))
	if roll.Detail.Modifier != 0 {
		fmt.Fprintf(&b, " %+d", roll.Detail.Modifier)
	}
	fmt.Fprintf(&b, " = %d", roll.Total)
	if roll.Detail.Advantage != "" {
		fmt.Fprintf(&b, " (%s)", roll.Detail.Advantage)
	}
	return b.String()
}

// formatCheck renders an ability check outcome.
func formatCheck(check *story.CheckOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s check, DC %d: %s", strings.ToUpper(check.Ability), check.DC,
		formatDice(check.Rolls, check.Kept))
	if check.Modifier != 0 {
		fmt.Fprintf(&b, " %+d", check.Modifier)
	}
	fmt.Fprintf(&b, " = %d.", check.Total)
	if check.Stored {
		b.WriteString(" (using your earlier roll)")
	}
	if check.Success {
		b.WriteString(" Success!")
	} else {
		b.WriteString(" Failure.")
	}
	return b.String()
}

// formatDice shows the raw dice, marking discarded ones.
func formatDice(rolls, kept []int) string {
	if len(rolls) == 0 {
		return "[]"
	}
	if len(kept) == 0 || len(kept) == len(rolls) {
		return fmt.Sprintf("%v", rolls)
	}
	// Advantage and disadvantage roll two, keep one.
	return fmt.Sprintf("%v keeping %v", rolls, kept)
}

// formatProfile renders the character sheet.
func formatProfile(p *actor.Profile) string {
	var b strings.Builder
	name := p.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&b, "%s", name)
	if p.Race != "" || p.Class != "" {
		fmt.Fprintf(&b, ", %s %s", p.Race, p.Class)
	}
	fmt.Fprintf(&b, "\nLevel %d (%d XP)\n", p.Level, p.Experience)
	for _, key := range actor.AbilityKeys {
		score := p.Abilities.Get(key)
		fmt.Fprintf(&b, "%s %d (%+d)  ", strings.ToUpper(key), score, actor.Modifier(score))
	}
	if !p.Finalized {
		b.WriteString("\nCharacter creation in progress.")
		if missing := p.MissingFields(); len(missing) > 0 {
			fmt.Fprintf(&b, " Still needed: %s.", strings.Join(missing, ", "))
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// formatInventory renders the inventory in stable order.
func formatInventory(p *actor.Profile) string {
	if len(p.Inventory) == 0 {
		return "Your pack is empty."
	}
	items := make([]string, 0, len(p.Inventory))
	for item := range p.Inventory {
		items = append(items, item)
	}
	sort.Strings(items)

	var b strings.Builder
	b.WriteString("You are carrying:")
	for _, item := range items {
		fmt.Fprintf(&b, "\n- %s x%d", item, p.Inventory[item])
	}
	return b.String()
}
