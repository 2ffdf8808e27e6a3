// Package session orchestrates one turn of the game: lock the session,
// route the player's text to the right subsystem, consider achievement
// candidates, and hand the mechanical result to the narrator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/internal/metrics"
	"github.com/dmkeith/dungeonmaster/internal/services"
	"github.com/dmkeith/dungeonmaster/internal/storage"
	"github.com/dmkeith/dungeonmaster/pkg/achievements"
	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/campaign"
	"github.com/dmkeith/dungeonmaster/pkg/state"
	"github.com/dmkeith/dungeonmaster/pkg/story"
	"github.com/dmkeith/dungeonmaster/pkg/textfilter"
)

// ErrProfileRequired is returned when a story action needs a finalized
// character sheet.
var ErrProfileRequired = errors.New("character creation must be completed first")

// ErrEmptyInput is returned when a turn carries no text.
var ErrEmptyInput = errors.New("turn text is empty")

// ErrInvalidInput is returned for malformed commands and toggle values.
var ErrInvalidInput = errors.New("invalid input")

// Locker serializes turns per session.
type Locker interface {
	Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error)
}

// Defaults seed brand-new sessions.
type Defaults struct {
	Mode    state.Mode
	Toggles state.Toggles
}

// Orchestrator wires the store, story engine, achievement ledger and
// narrator into a single turn pipeline.
type Orchestrator struct {
	store    storage.Store
	locker   Locker
	engine   *story.Engine
	ledger   *achievements.Ledger
	catalog  *achievements.Catalog
	narrator services.Narrator
	filter   *textfilter.ProfanityFilter
	defaults Defaults
	logger   *slog.Logger
}

// NewOrchestrator creates a turn orchestrator.
func NewOrchestrator(store storage.Store, locker Locker, engine *story.Engine,
	ledger *achievements.Ledger, catalog *achievements.Catalog,
	narrator services.Narrator, defaults Defaults, logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		locker:   locker,
		engine:   engine,
		ledger:   ledger,
		catalog:  catalog,
		narrator: narrator,
		filter:   textfilter.NewProfanityFilter(),
		defaults: defaults,
		logger:   logger,
	}
}

// TurnInput is one inbound player message.
type TurnInput struct {
	SessionID   uuid.UUID `json:"session_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Text        string    `json:"text"`
}

// ChoiceSnapshot is one selectable option shown to the player.
type ChoiceSnapshot struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SceneSnapshot is the player-visible view of the current scene.
type SceneSnapshot struct {
	ID        string           `json:"id"`
	Title     string           `json:"title,omitempty"`
	Narration string           `json:"narration,omitempty"`
	Choices   []ChoiceSnapshot `json:"choices,omitempty"`
}

// TurnResult is everything one turn produced.
type TurnResult struct {
	SessionID uuid.UUID              `json:"session_id"`
	Mode      state.Mode             `json:"mode"`
	Toggles   state.Toggles          `json:"toggles"`
	Message   string                 `json:"message"`
	Roll      *state.StoryRoll       `json:"roll,omitempty"`
	Choice    *story.Outcome         `json:"choice,omitempty"`
	Grants    []achievements.Outcome `json:"grants,omitempty"`
	Scene     *SceneSnapshot         `json:"scene,omitempty"`
	Profile   *actor.Profile         `json:"profile,omitempty"`
}

// turnState accumulates a turn's mechanical output before narration.
type turnState struct {
	lines      []string
	triggers   []string
	explicit   []string // achievement ids granted directly, bypassing density
	scene      *SceneSnapshot
	playerText string // freeform message, empty for command turns
}

func (t *turnState) addLine(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

// HandleTurn runs one player turn end to end. All effects of the turn are
// committed before the result is returned.
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyInput
	}
	if in.SessionID == uuid.Nil {
		in.SessionID = uuid.New()
	}

	release, err := o.locker.Acquire(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := o.store.EnsureUser(ctx, in.UserID, in.DisplayName); err != nil {
		return nil, err
	}
	sess, err := o.ensureSession(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{
		SessionID: sess.ID,
		Mode:      sess.Mode,
		Toggles:   sess.Toggles,
	}
	turn := &turnState{}

	if err := o.dispatch(ctx, sess, in, result, turn); err != nil {
		metrics.TurnErrorsTotal.Inc()
		return nil, err
	}

	// Mode and toggles may have changed during the turn.
	result.Mode = sess.Mode
	result.Toggles = sess.Toggles
	result.Scene = turn.scene

	result.Grants = o.considerAchievements(ctx, sess, turn)
	for _, out := range result.Grants {
		if out.Kind != achievements.Granted || out.Grant == nil {
			continue
		}
		if def, ok := o.catalog.Get(out.Grant.AchievementID); ok {
			turn.addLine("Achievement unlocked: %s (%s)", def.Title, def.Rarity)
		}
	}

	narration, err := o.narrator.Narrate(ctx, services.NarrationInput{
		Mode:            sess.Mode,
		Toggles:         sess.Toggles,
		PlayerName:      in.DisplayName,
		SceneTitle:      sceneTitle(turn.scene),
		SceneNarration:  sceneNarration(turn.scene),
		MechanicalLines: turn.lines,
		PlayerText:      turn.playerText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to narrate turn: %w", err)
	}
	result.Message = o.filter.Apply(narration, sess.Toggles)

	metrics.TurnsTotal.WithLabelValues(string(sess.Mode)).Inc()
	return result, nil
}

// ensureSession loads the session or creates it with the configured
// defaults.
func (o *Orchestrator) ensureSession(ctx context.Context, in TurnInput) (*state.Session, error) {
	sess, err := o.store.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	sess = &state.Session{
		ID:      in.SessionID,
		UserID:  in.UserID,
		Mode:    o.defaults.Mode,
		Toggles: o.defaults.Toggles,
	}
	if err := o.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	o.logger.Info("Session created", "session_id", sess.ID, "user_id", sess.UserID)
	return sess, nil
}

// dispatch routes one turn to its command handler.
func (o *Orchestrator) dispatch(ctx context.Context, sess *state.Session, in TurnInput, result *TurnResult, turn *turnState) error {
	cmd := parseCommand(in.Text)
	if cmd.kind == cmdNone && strings.HasPrefix(strings.TrimSpace(in.Text), "/") {
		turn.addLine("Unknown command. Try /help.")
		return nil
	}

	switch cmd.kind {
	case cmdHelp:
		turn.lines = append(turn.lines, helpText())
		return nil
	case cmdMode:
		return o.handleMode(ctx, sess, cmd.args, turn)
	case cmdSet:
		return o.handleSet(ctx, sess, cmd.args, turn)
	case cmdRoll:
		return o.handleRoll(ctx, sess, cmd.args, result, turn)
	case cmdChoose:
		return o.handleChoose(ctx, sess, cmd.args, result, turn)
	case cmdLook:
		return o.handleLook(ctx, sess, turn)
	case cmdCharacter:
		return o.handleCharacter(ctx, sess, cmd.args, result, turn)
	case cmdSheet:
		return o.handleSheet(ctx, sess, result, turn)
	case cmdInventory:
		return o.handleInventory(ctx, sess, cmd.args, result, turn)
	case cmdHistory:
		return o.handleHistory(ctx, sess, turn)
	case cmdTrophies:
		return o.handleTrophies(ctx, sess, turn)
	case cmdRestart:
		return o.handleRestart(ctx, sess, result, turn)
	default:
		return o.handleFreeform(ctx, sess, in, turn)
	}
}

func (o *Orchestrator) handleMode(ctx context.Context, sess *state.Session, args []string, turn *turnState) error {
	if err := requireArgs(args, 1, "/mode <narrator|achievements|explain|story>"); err != nil {
		return err
	}
	mode, err := state.ParseMode(strings.ToLower(args[0]))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	// Story mode is only reachable with a finished character sheet.
	if mode == state.ModeStory {
		if err := o.requireFinalizedProfile(ctx, sess); err != nil {
			return err
		}
	}

	previous := sess.Mode
	sess.Mode = mode
	if err := o.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	o.logEvent(ctx, sess, state.EventModeSwitch, map[string]any{
		"from": string(previous),
		"to":   string(mode),
	})
	turn.triggers = append(turn.triggers, "event.mode_switch")
	turn.addLine("Mode set to %s.", mode)
	return nil
}

func (o *Orchestrator) handleSet(ctx context.Context, sess *state.Session, args []string, turn *turnState) error {
	usage := "/set <profanity 0-3 | rating PG|PG-13|R | tangents 0-2 | density low|normal|high>"
	if err := requireArgs(args, 2, usage); err != nil {
		return err
	}

	toggles := sess.Toggles
	name, value := strings.ToLower(args[0]), args[1]
	switch name {
	case "profanity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: profanity level must be a number", ErrInvalidInput)
		}
		toggles.ProfanityLevel = n
	case "rating":
		toggles.Rating = state.Rating(strings.ToUpper(value))
	case "tangents":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: tangents level must be a number", ErrInvalidInput)
		}
		toggles.TangentsLevel = n
	case "density":
		toggles.AchievementDensity = state.Density(strings.ToLower(value))
	default:
		return fmt.Errorf("%w: unknown setting %q; %s", ErrInvalidInput, name, usage)
	}
	if err := toggles.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sess.Toggles = toggles
	if err := o.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	turn.addLine("Setting %s updated.", name)
	return nil
}

func (o *Orchestrator) handleRoll(ctx context.Context, sess *state.Session, args []string, result *TurnResult, turn *turnState) error {
	if err := requireArgs(args, 1, "/roll <expr>"); err != nil {
		return err
	}

	// Expressions may be typed with spaces, e.g. "2d6 + 1".
	expression := strings.ToLower(strings.Join(args, ""))
	roll, err := o.engine.RecordRoll(ctx, sess, expression)
	if err != nil {
		return err
	}
	metrics.RollsTotal.WithLabelValues("explicit").Inc()

	result.Roll = roll
	turn.triggers = append(turn.triggers, "event.roll")
	turn.lines = append(turn.lines, formatRoll(roll))
	return nil
}

func (o *Orchestrator) handleChoose(ctx context.Context, sess *state.Session, args []string, result *TurnResult, turn *turnState) error {
	if err := requireArgs(args, 1, "/choose <option>"); err != nil {
		return err
	}
	if err := o.requireFinalizedProfile(ctx, sess); err != nil {
		return err
	}

	outcome, err := o.engine.ApplyChoice(ctx, sess, strings.ToLower(strings.Join(args, "_")))
	if err != nil {
		return err
	}
	metrics.TransitionsTotal.Inc()
	if outcome.Check != nil && !outcome.Check.Stored {
		metrics.RollsTotal.WithLabelValues("check").Inc()
	}

	result.Choice = outcome
	turn.triggers = append(turn.triggers, outcome.Triggers...)
	if outcome.AchievementID != "" {
		turn.explicit = append(turn.explicit, outcome.AchievementID)
	}

	if outcome.Check != nil {
		turn.lines = append(turn.lines, formatCheck(outcome.Check))
	}
	if outcome.XPAwarded > 0 {
		turn.addLine("You gain %d XP.", outcome.XPAwarded)
	}
	if outcome.LevelUp != nil {
		turn.addLine("Level up! You are now level %d.", outcome.LevelUp.To)
	}

	st, err := o.engine.EnsureState(ctx, sess.ID)
	if err != nil {
		return err
	}
	if scene, ok := o.engine.Campaign().Scene(outcome.SceneID); ok {
		turn.scene = SnapshotScene(scene, st.Flags)
	}
	return nil
}

func (o *Orchestrator) handleLook(ctx context.Context, sess *state.Session, turn *turnState) error {
	scene, st, err := o.engine.CurrentScene(ctx, sess.ID)
	if err != nil {
		return err
	}
	turn.scene = SnapshotScene(scene, st.Flags)
	return nil
}

func (o *Orchestrator) handleCharacter(ctx context.Context, sess *state.Session, args []string, result *TurnResult, turn *turnState) error {
	usage := "/character <name|pronouns|race|class|backstory> <value>, /character ability <str|...> <score>, /character done"
	if err := requireArgs(args, 1, usage); err != nil {
		return err
	}

	switch strings.ToLower(args[0]) {
	case "done":
		profile, err := o.engine.FinalizeProfile(ctx, sess.ID, sess.UserID)
		if err != nil {
			return err
		}
		sess.StoryEnabled = true
		if err := o.store.SaveSession(ctx, sess); err != nil {
			return err
		}
		result.Profile = profile
		turn.triggers = append(turn.triggers, "event.character_finalized")
		turn.addLine("%s the %s %s is ready for adventure.", profile.Name, profile.Race, profile.Class)
		return nil

	case "ability":
		if err := requireArgs(args, 3, usage); err != nil {
			return err
		}
		score, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: ability score must be a number", ErrInvalidInput)
		}
		profile, err := o.engine.SetAbilityScore(ctx, sess.ID, sess.UserID, args[1], score)
		if err != nil {
			return err
		}
		result.Profile = profile
		turn.addLine("Set %s to %d.", strings.ToLower(args[1]), score)
		return nil

	default:
		if err := requireArgs(args, 2, usage); err != nil {
			return err
		}
		field := strings.ToLower(args[0])
		value := strings.Join(args[1:], " ")
		profile, err := o.engine.SetProfileField(ctx, sess.ID, sess.UserID, field, value)
		if err != nil {
			return err
		}
		result.Profile = profile
		if missing := profile.MissingFields(); len(missing) > 0 {
			turn.addLine("Set %s. Still needed: %s.", field, strings.Join(missing, ", "))
		} else {
			turn.addLine("Set %s. Use /character done to finalize.", field)
		}
		return nil
	}
}

func (o *Orchestrator) handleSheet(ctx context.Context, sess *state.Session, result *TurnResult, turn *turnState) error {
	profile, err := o.engine.EnsureProfile(ctx, sess.ID, sess.UserID)
	if err != nil {
		return err
	}
	result.Profile = profile
	turn.lines = append(turn.lines, formatProfile(profile))
	return nil
}

func (o *Orchestrator) handleInventory(ctx context.Context, sess *state.Session, args []string, result *TurnResult, turn *turnState) error {
	if len(args) == 0 {
		profile, err := o.engine.EnsureProfile(ctx, sess.ID, sess.UserID)
		if err != nil {
			return err
		}
		result.Profile = profile
		turn.lines = append(turn.lines, formatInventory(profile))
		return nil
	}

	usage := "/inventory [add|remove <item> [qty] | clear]"
	if strings.ToLower(args[0]) == "clear" {
		profile, err := o.engine.ClearInventory(ctx, sess.ID, sess.UserID)
		if err != nil {
			return err
		}
		result.Profile = profile
		turn.addLine("Inventory cleared.")
		return nil
	}
	if err := requireArgs(args, 2, usage); err != nil {
		return err
	}
	item := strings.ToLower(args[1])
	quantity := 1
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: quantity must be a number", ErrInvalidInput)
		}
		quantity = n
	}

	var profile *actor.Profile
	var err error
	switch strings.ToLower(args[0]) {
	case "add":
		profile, err = o.engine.AddInventoryItem(ctx, sess.ID, sess.UserID, item, quantity)
	case "remove":
		profile, err = o.engine.RemoveInventoryItem(ctx, sess.ID, sess.UserID, item, quantity)
	default:
		return fmt.Errorf("%w: usage: %s", ErrInvalidInput, usage)
	}
	if err != nil {
		return err
	}
	result.Profile = profile
	turn.lines = append(turn.lines, formatInventory(profile))
	return nil
}

func (o *Orchestrator) handleHistory(ctx context.Context, sess *state.Session, turn *turnState) error {
	st, err := o.engine.EnsureState(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(st.SceneHistory) == 0 {
		turn.addLine("No scenes visited yet.")
		return nil
	}
	turn.addLine("Scenes visited: %s", strings.Join(st.SceneHistory, " > "))
	return nil
}

func (o *Orchestrator) handleTrophies(ctx context.Context, sess *state.Session, turn *turnState) error {
	grants, err := o.store.RecentGrants(ctx, sess.UserID, 10)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		turn.addLine("No achievements yet. Keep at it.")
		return nil
	}
	for _, g := range grants {
		title := g.AchievementID
		if def, ok := o.catalog.Get(g.AchievementID); ok {
			title = def.Title
		}
		turn.addLine("- %s (%s)", title, g.Rarity)
	}
	return nil
}

func (o *Orchestrator) handleRestart(ctx context.Context, sess *state.Session, result *TurnResult, turn *turnState) error {
	st, profile, err := o.engine.Restart(ctx, sess)
	if err != nil {
		return err
	}
	result.Profile = profile
	if scene, ok := o.engine.Campaign().Scene(st.CurrentScene); ok {
		turn.scene = SnapshotScene(scene, st.Flags)
	}
	turn.addLine("The campaign begins anew. Fresh ability scores have been rolled.")
	return nil
}

func (o *Orchestrator) handleFreeform(ctx context.Context, sess *state.Session, in TurnInput, turn *turnState) error {
	turn.playerText = strings.TrimSpace(in.Text)
	if sess.Mode == state.ModeStory {
		if err := o.requireFinalizedProfile(ctx, sess); err != nil {
			return err
		}
		return o.handleLook(ctx, sess, turn)
	}

	// Every plain message is an achievement opportunity for eager tables.
	turn.triggers = append(turn.triggers, "event.message")
	return nil
}

// requireFinalizedProfile gates story actions behind character creation.
func (o *Orchestrator) requireFinalizedProfile(ctx context.Context, sess *state.Session) error {
	if sess.StoryEnabled {
		return nil
	}
	profile, err := o.engine.EnsureProfile(ctx, sess.ID, sess.UserID)
	if err != nil {
		return err
	}
	if !profile.Finalized {
		return fmt.Errorf("%w: use /character to build one", ErrProfileRequired)
	}
	sess.StoryEnabled = true
	return o.store.SaveSession(ctx, sess)
}

// considerAchievements turns the turn's triggers into ledger candidates,
// gated by the session's achievement density. Explicit rewards always go
// through; "event.message" candidates only fire on high density.
func (o *Orchestrator) considerAchievements(ctx context.Context, sess *state.Session, turn *turnState) []achievements.Outcome {
	density := sess.Toggles.AchievementDensity
	sessionID := sess.ID
	seen := make(map[string]bool)
	var outcomes []achievements.Outcome

	consider := func(id, rarity string, detail map[string]any) {
		if seen[id] {
			return
		}
		seen[id] = true
		out, err := o.ledger.Consider(ctx, achievements.Candidate{
			AchievementID: id,
			UserID:        sess.UserID,
			SessionID:     &sessionID,
			Rarity:        rarity,
			Detail:        detail,
		})
		if err != nil {
			o.logger.Warn("Failed to consider achievement", "achievement_id", id, "error", err)
			return
		}
		metrics.GrantsTotal.WithLabelValues(string(out.Kind)).Inc()
		if out.Kind == achievements.Granted && out.Grant != nil {
			o.logEvent(ctx, sess, state.EventGrant, map[string]any{
				"achievement_id": id,
				"rarity":         out.Grant.Rarity,
			})
		}
		outcomes = append(outcomes, out)
	}

	for _, id := range turn.explicit {
		consider(id, "", map[string]any{"source": "choice"})
	}
	if density == state.DensityLow {
		return outcomes
	}

	for _, trig := range turn.triggers {
		if trig == "event.message" && density != state.DensityHigh {
			continue
		}
		for _, def := range o.catalog.ForTrigger(trig) {
			consider(def.ID, def.Rarity, map[string]any{"trigger": trig})
		}
	}
	return outcomes
}

func (o *Orchestrator) logEvent(ctx context.Context, sess *state.Session, kind string, detail map[string]any) {
	sessionID := sess.ID
	err := o.store.AppendEvent(ctx, state.EventRecord{
		UserID:    sess.UserID,
		SessionID: &sessionID,
		Kind:      kind,
		Detail:    detail,
	})
	if err != nil {
		o.logger.Warn("Failed to append event", "kind", kind, "error", err)
	}
}

func SnapshotScene(scene *campaign.Scene, flags map[string]string) *SceneSnapshot {
	snap := &SceneSnapshot{
		ID:        scene.ID,
		Title:     scene.Title,
		Narration: strings.Join(scene.Narration, "\n"),
	}
	for _, choice := range scene.VisibleChoices(flags) {
		snap.Choices = append(snap.Choices, ChoiceSnapshot{ID: choice.ID, Label: choice.Label})
	}
	return snap
}

func sceneTitle(s *SceneSnapshot) string {
	if s == nil {
		return ""
	}
	return s.Title
}

func sceneNarration(s *SceneSnapshot) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.Narration)
	for _, c := range s.Choices {
		fmt.Fprintf(&b, "\n[%s] %s", c.ID, c.Label)
	}
	return b.String()
}
