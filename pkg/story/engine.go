// Package story drives the scene-graph state machine: choice resolution,
// ability checks (fresh or from stored rolls), experience/level tracking,
// and campaign restarts. It emits candidate achievement events; granting
// them is the ledger's concern.
package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/campaign"
	"github.com/dmkeith/dungeonmaster/pkg/dice"
	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// ErrInvalidChoice is returned when the option id is not present in the
// current scene.
var ErrInvalidChoice = errors.New("choice is not available in the current scene")

// ErrPreconditionUnmet is returned when the option exists but its flag
// preconditions fail. This guards against stale client state.
var ErrPreconditionUnmet = errors.New("choice preconditions are not met")

// ErrInvalidArgument is returned when a caller-supplied value fails
// validation, as opposed to a storage or campaign fault.
var ErrInvalidArgument = errors.New("invalid argument")

// Store is the persistence surface the story engine writes through. The
// engine is the sole writer of profiles, story state, and rolls.
type Store interface {
	GetProfile(ctx context.Context, sessionID uuid.UUID) (*actor.Profile, error)
	SaveProfile(ctx context.Context, p *actor.Profile) error
	GetStoryState(ctx context.Context, sessionID uuid.UUID) (*state.StoryState, error)
	SaveStoryState(ctx context.Context, st *state.StoryState) error
	AppendRoll(ctx context.Context, roll state.StoryRoll) (*state.StoryRoll, error)
	RecentRolls(ctx context.Context, sessionID uuid.UUID, limit int) ([]state.StoryRoll, error)
	ConsumeStoredRoll(ctx context.Context, sessionID uuid.UUID, ability, expression string) (*state.StoryRoll, error)
	AppendEvent(ctx context.Context, event state.EventRecord) error
}

// Engine runs one campaign's scene graph for many sessions.
type Engine struct {
	store    Store
	campaign *campaign.Campaign
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a story engine. The randomness source is injected so
// checks are reproducible in tests.
func NewEngine(store Store, c *campaign.Campaign, rng *rand.Rand, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		campaign: c,
		rng:      rng,
		logger:   logger,
	}
}

// Campaign exposes the loaded scene graph (read-only).
func (e *Engine) Campaign() *campaign.Campaign {
	return e.campaign
}

// CheckOutcome records how one ability check resolved.
type CheckOutcome struct {
	Ability  string `json:"ability"`
	DC       int    `json:"dc"`
	Rolls    []int  `json:"rolls"`
	Kept     []int  `json:"kept"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
	Success  bool   `json:"success"`
	Stored   bool   `json:"stored"`   // satisfied by a previously stored roll
	Inferred bool   `json:"inferred"` // check inferred from choice tags
	Note     string `json:"note,omitempty"`
}

// LevelUp describes a level threshold crossing.
type LevelUp struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Outcome is the result of applying one choice.
type Outcome struct {
	ChoiceID      string        `json:"choice_id"`
	ChoiceLabel   string        `json:"choice_label"`
	SceneID       string        `json:"scene_id"` // resulting scene
	Check         *CheckOutcome `json:"check,omitempty"`
	XPAwarded     int           `json:"xp_awarded,omitempty"`
	LevelUp       *LevelUp      `json:"level_up,omitempty"`
	AchievementID string        `json:"achievement_id,omitempty"` // explicit choice reward
	Triggers      []string      `json:"triggers,omitempty"`
}

// EnsureState loads the session's story state, creating it at the campaign
// root when missing.
func (e *Engine) EnsureState(ctx context.Context, sessionID uuid.UUID) (*state.StoryState, error) {
	st, err := e.store.GetStoryState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = &state.StoryState{
			SessionID:    sessionID,
			CurrentScene: e.campaign.RootScene,
			SceneHistory: []string{e.campaign.RootScene},
			Flags:        map[string]string{},
			Stats:        map[string]int{},
		}
		if err := e.store.SaveStoryState(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}
	if st.CurrentScene == "" {
		st.AppendScene(e.campaign.RootScene)
		if err := e.store.SaveStoryState(ctx, st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// CurrentScene returns the scene the session is in, falling back to the
// campaign root for unknown ids.
func (e *Engine) CurrentScene(ctx context.Context, sessionID uuid.UUID) (*campaign.Scene, *state.StoryState, error) {
	st, err := e.EnsureState(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	scene, ok := e.campaign.Scene(st.CurrentScene)
	if !ok {
		scene = e.campaign.Root()
	}
	return scene, st, nil
}

// ApplyChoice resolves an option in the session's current scene: visibility
// preconditions, the attached or inferred ability check, mutation sets,
// experience, and the scene transition. Effects become visible in the order
// issued: roll persisted, then check computed, then transition committed.
func (e *Engine) ApplyChoice(ctx context.Context, sess *state.Session, optionID string) (*Outcome, error) {
	scene, st, err := e.CurrentScene(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	var choice *campaign.Choice
	for i := range scene.Choices {
		if scene.Choices[i].ID == optionID {
			choice = &scene.Choices[i]
			break
		}
	}
	if choice == nil {
		return nil, fmt.Errorf("%w: %q in scene %q", ErrInvalidChoice, optionID, scene.ID)
	}
	if !choice.Visible(st.Flags) {
		return nil, fmt.Errorf("%w: %q in scene %q", ErrPreconditionUnmet, optionID, scene.ID)
	}

	profile, err := e.EnsureProfile(ctx, sess.ID, sess.UserID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		ChoiceID:      choice.ID,
		ChoiceLabel:   choice.Label,
		AchievementID: choice.AchievementID,
		Triggers:      []string{"event.story.choice"},
	}

	target := choice.NextScene
	xp := choice.XPReward
	effect := choice.OnSuccess

	check, inferred := choice.EffectiveCheck()
	if check != nil {
		result, err := e.resolveCheck(ctx, sess, profile, check, inferred)
		if err != nil {
			return nil, err
		}
		outcome.Check = result
		if result.Success {
			if check.SuccessScene != "" {
				target = check.SuccessScene
			}
			if check.SuccessXP > 0 {
				xp = check.SuccessXP
			}
		} else {
			if check.FailureScene != "" {
				target = check.FailureScene
			}
			xp = check.FailureXP
			effect = choice.OnFailure
		}
	}

	// Apply the mutation set for this branch.
	for key, value := range effect.Flags {
		st.Flags[key] = value
	}
	for key, delta := range effect.Stats {
		st.Stats[key] += delta
	}

	if xp > 0 {
		levelUp, err := e.applyExperience(ctx, profile, st, xp)
		if err != nil {
			return nil, err
		}
		outcome.XPAwarded = xp
		outcome.LevelUp = levelUp
		if levelUp != nil {
			outcome.Triggers = append(outcome.Triggers, "event.story.level_up")
		}
	}

	st.AppendScene(target)
	if err := e.store.SaveStoryState(ctx, st); err != nil {
		return nil, err
	}
	outcome.SceneID = target

	if newScene, ok := e.campaign.Scene(target); ok {
		for _, tag := range newScene.Tags {
			outcome.Triggers = append(outcome.Triggers, "event.scene."+tag)
		}
	}

	e.logEvent(ctx, sess, state.EventTransition, map[string]any{
		"from":   scene.ID,
		"to":     target,
		"choice": choice.ID,
	})
	return outcome, nil
}

// resolveCheck satisfies an ability check from the oldest compatible stored
// roll, or rolls fresh. Fresh rolls are persisted (already consumed) before
// the outcome is computed.
func (e *Engine) resolveCheck(ctx context.Context, sess *state.Session, profile *actor.Profile, check *campaign.Check, inferred bool) (*CheckOutcome, error) {
	modifier := actor.Modifier(profile.Abilities.Get(check.Ability))

	stored, err := e.store.ConsumeStoredRoll(ctx, sess.ID, check.Ability, check.Ability)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return &CheckOutcome{
			Ability:  check.Ability,
			DC:       check.DC,
			Rolls:    stored.Detail.Rolls,
			Kept:     stored.Detail.Kept,
			Modifier: stored.Detail.Modifier,
			Total:    stored.Total,
			Success:  stored.Total >= check.DC, // tie goes to the player
			Stored:   true,
			Inferred: inferred,
			Note:     check.Note,
		}, nil
	}

	inst := dice.Instruction{Count: 1, Sides: 20, Ability: check.Ability}
	roll := e.roll(inst, modifier)
	success := roll.Total >= check.DC

	record := state.StoryRoll{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Expression: inst.Expression(),
		Ability:    check.Ability,
		Total:      roll.Total,
		Detail: state.RollDetail{
			Rolls:    roll.Rolls,
			Kept:     roll.Kept,
			Modifier: modifier,
			Ability:  check.Ability,
			DC:       check.DC,
			Success:  &success,
		},
	}
	saved, err := e.store.AppendRoll(ctx, record)
	if err != nil {
		return nil, err
	}
	// An auto-roll exists only to satisfy this check; claim it immediately
	// so it can never satisfy a later one.
	if _, err := e.store.ConsumeStoredRoll(ctx, sess.ID, "", saved.Expression); err != nil {
		return nil, err
	}

	return &CheckOutcome{
		Ability:  check.Ability,
		DC:       check.DC,
		Rolls:    roll.Rolls,
		Kept:     roll.Kept,
		Modifier: modifier,
		Total:    roll.Total,
		Success:  success,
		Inferred: inferred,
		Note:     check.Note,
	}, nil
}

// RecordRoll evaluates an explicit roll expression and persists it as a
// stored roll eligible to satisfy a later compatible check.
func (e *Engine) RecordRoll(ctx context.Context, sess *state.Session, expression string) (*state.StoryRoll, error) {
	profile, err := e.EnsureProfile(ctx, sess.ID, sess.UserID)
	if err != nil {
		return nil, err
	}

	inst, err := dice.Parse(expression)
	if err != nil {
		return nil, err
	}
	modifier := 0
	if inst.Ability != "" {
		modifier = actor.Modifier(profile.Abilities.Get(inst.Ability))
	}
	roll := e.roll(inst, modifier)

	record := state.StoryRoll{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Expression: inst.Expression(),
		Ability:    inst.Ability,
		Total:      roll.Total,
		Detail: state.RollDetail{
			Rolls:     roll.Rolls,
			Kept:      roll.Kept,
			Modifier:  inst.Modifier + modifier,
			Advantage: advantageNote(inst.Advantage),
			Ability:   inst.Ability,
		},
	}
	saved, err := e.store.AppendRoll(ctx, record)
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, sess, state.EventRoll, map[string]any{
		"expression": saved.Expression,
		"total":      saved.Total,
	})
	return saved, nil
}

func (e *Engine) applyExperience(ctx context.Context, profile *actor.Profile, st *state.StoryState, xp int) (*LevelUp, error) {
	profile.Experience += xp
	newLevel := actor.LevelFromXP(profile.Experience)

	var levelUp *LevelUp
	if newLevel > profile.Level {
		levelUp = &LevelUp{From: profile.Level, To: newLevel}
		e.logger.Info("Level up", "session_id", profile.SessionID, "from", levelUp.From, "to", levelUp.To)
	}
	profile.Level = newLevel

	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	st.Stats["xp"] = profile.Experience
	st.Stats["level"] = profile.Level
	return levelUp, nil
}

// Restart performs a full campaign reset: state back to the root scene,
// history and flags cleared, experience zeroed, and a fresh set of ability
// scores. User and session identifiers are preserved.
func (e *Engine) Restart(ctx context.Context, sess *state.Session) (*state.StoryState, *actor.Profile, error) {
	profile, err := e.EnsureProfile(ctx, sess.ID, sess.UserID)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	profile.Abilities = actor.RollAbilityScores(e.rng)
	e.mu.Unlock()
	profile.Level = 1
	profile.Experience = 0
	profile.Inventory = map[string]int{}
	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return nil, nil, err
	}

	st := &state.StoryState{
		SessionID:    sess.ID,
		CurrentScene: e.campaign.RootScene,
		SceneHistory: []string{e.campaign.RootScene},
		Flags:        map[string]string{},
		Stats:        map[string]int{"xp": 0, "level": 1},
	}
	if err := e.store.SaveStoryState(ctx, st); err != nil {
		return nil, nil, err
	}

	e.logEvent(ctx, sess, state.EventRestart, map[string]any{"scene": e.campaign.RootScene})
	return st, profile, nil
}

func (e *Engine) roll(inst dice.Instruction, abilityMod int) *dice.Roll {
	e.mu.Lock()
	defer e.mu.Unlock()
	return inst.Roll(e.rng, abilityMod)
}

func (e *Engine) logEvent(ctx context.Context, sess *state.Session, kind string, detail map[string]any) {
	sessionID := sess.ID
	err := e.store.AppendEvent(ctx, state.EventRecord{
		UserID:    sess.UserID,
		SessionID: &sessionID,
		Kind:      kind,
		Detail:    detail,
	})
	if err != nil {
		// The audit log never blocks game logic.
		e.logger.Warn("Failed to append event", "kind", kind, "error", err)
	}
}

func advantageNote(a dice.Advantage) string {
	if a == dice.Normal {
		return ""
	}
	return a.String()
}
