package story

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
)

// EnsureProfile loads the session's character sheet, creating an
// unfinalized default when missing.
func (e *Engine) EnsureProfile(ctx context.Context, sessionID uuid.UUID, userID string) (*actor.Profile, error) {
	profile, err := e.store.GetProfile(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	profile = actor.NewProfile(sessionID, userID)
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SetProfileField updates one character-creation field. Race and class are
// validated against the supported sets.
func (e *Engine) SetProfileField(ctx context.Context, sessionID uuid.UUID, userID, field, value string) (*actor.Profile, error) {
	profile, err := e.EnsureProfile(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	switch field {
	case "name":
		profile.Name = value
	case "pronouns":
		profile.Pronouns = value
	case "backstory":
		profile.Backstory = value
	case "race":
		race := strings.ToLower(value)
		if !actor.SupportedRaces[race] {
			return nil, fmt.Errorf("%w: unsupported race %q", ErrInvalidArgument, value)
		}
		profile.Race = race
	case "class":
		class := strings.ToLower(value)
		if !actor.SupportedClasses[class] {
			return nil, fmt.Errorf("%w: unsupported class %q", ErrInvalidArgument, value)
		}
		profile.Class = class
	default:
		return nil, fmt.Errorf("%w: unknown character field %q", ErrInvalidArgument, field)
	}

	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SetAbilityScore assigns one ability score during character creation.
func (e *Engine) SetAbilityScore(ctx context.Context, sessionID uuid.UUID, userID, ability string, value int) (*actor.Profile, error) {
	ability = strings.ToLower(ability)
	if !actor.IsAbility(ability) {
		return nil, fmt.Errorf("%w: ability must be one of %s", ErrInvalidArgument, strings.Join(actor.AbilityKeys, ", "))
	}
	if value < 1 || value > 20 {
		return nil, fmt.Errorf("%w: ability scores must be between 1 and 20", ErrInvalidArgument)
	}

	profile, err := e.EnsureProfile(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	profile.Abilities[ability] = value
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// FinalizeProfile marks character creation complete. It fails while
// required fields are missing, and guarantees the story state exists.
func (e *Engine) FinalizeProfile(ctx context.Context, sessionID uuid.UUID, userID string) (*actor.Profile, error) {
	profile, err := e.EnsureProfile(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if missing := profile.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: character needs more info: %s", ErrInvalidArgument, strings.Join(missing, ", "))
	}

	profile.Finalized = true
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	if _, err := e.EnsureState(ctx, sessionID); err != nil {
		return nil, err
	}
	return profile, nil
}

// AddInventoryItem adds quantity of item to the character's inventory.
func (e *Engine) AddInventoryItem(ctx context.Context, sessionID uuid.UUID, userID, item string, quantity int) (*actor.Profile, error) {
	profile, err := e.EnsureProfile(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := profile.AddItem(item, quantity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// RemoveInventoryItem removes quantity of item from the inventory.
func (e *Engine) RemoveInventoryItem(ctx context.Context, sessionID uuid.UUID, userID, item string, quantity int) (*actor.Profile, error) {
	profile, err := e.EnsureProfile(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := profile.RemoveItem(item, quantity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ClearInventory empties the character's inventory.
func (e *Engine) ClearInventory(ctx context.Context, sessionID uuid.UUID, userID string) (*actor.Profile, error) {
	profile, err := e.EnsureProfile(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	profile.Inventory = map[string]int{}
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
