package story

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/internal/storage"
	"github.com/dmkeith/dungeonmaster/pkg/campaign"
	"github.com/dmkeith/dungeonmaster/pkg/state"
)

const engineCampaign = `{
  "name": "Engine Test",
  "root_scene": "start",
  "scenes": [
    {
      "id": "start",
      "choices": [
        {"id": "walk", "label": "Walk ahead", "next_scene": "hall", "xp_reward": 10},
        {
          "id": "easy_check",
          "label": "Step over the crack",
          "next_scene": "hall",
          "check": {"ability": "dex", "dc": 1, "failure_scene": "pit", "success_xp": 350}
        },
        {
          "id": "hard_check",
          "label": "Lift the portcullis",
          "next_scene": "hall",
          "check": {"ability": "str", "dc": 21, "failure_scene": "pit", "failure_xp": 5}
        },
        {
          "id": "tie_check",
          "label": "Force the door",
          "next_scene": "hall",
          "check": {"ability": "str", "dc": 12}
        },
        {"id": "locked", "label": "Use the key", "next_scene": "hall", "requires": {"key": "true"}},
        {"id": "risky", "label": "Leap the gap", "next_scene": "hall", "tags": ["risk"]},
        {
          "id": "grab_key",
          "label": "Grab the key",
          "next_scene": "hall",
          "on_success": {"flags": {"key": "true"}, "stats": {"bravery": 1}}
        }
      ]
    },
    {
      "id": "hall",
      "tags": ["spooky"],
      "choices": [{"id": "back", "label": "Go back", "next_scene": "start"}]
    },
    {"id": "pit"}
  ]
}`

func testEngine(t *testing.T, seed int64) (*Engine, *storage.MockStore, *state.Session) {
	t.Helper()
	c, err := campaign.Load([]byte(engineCampaign))
	if err != nil {
		t.Fatalf("campaign.Load failed: %v", err)
	}
	store := storage.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(store, c, rand.New(rand.NewSource(seed)), logger)
	sess := &state.Session{ID: uuid.New(), UserID: "user-1"}
	return engine, store, sess
}

func TestEnsureState(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	st, err := engine.EnsureState(ctx, sess.ID)
	if err != nil {
		t.Fatalf("EnsureState failed: %v", err)
	}
	if st.CurrentScene != "start" {
		t.Errorf("current scene = %q, want start", st.CurrentScene)
	}
	if len(st.SceneHistory) != 1 || st.SceneHistory[0] != "start" {
		t.Errorf("history = %v, want [start]", st.SceneHistory)
	}

	// A second call returns the persisted state, not a new one.
	st.Flags["seen"] = "true"
	if err := engine.store.SaveStoryState(ctx, st); err != nil {
		t.Fatalf("SaveStoryState failed: %v", err)
	}
	again, err := engine.EnsureState(ctx, sess.ID)
	if err != nil {
		t.Fatalf("EnsureState failed: %v", err)
	}
	if again.Flags["seen"] != "true" {
		t.Error("second EnsureState lost persisted flags")
	}
}

func TestApplyChoicePlain(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	out, err := engine.ApplyChoice(ctx, sess, "walk")
	if err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}
	if out.SceneID != "hall" {
		t.Errorf("scene = %q, want hall", out.SceneID)
	}
	if out.XPAwarded != 10 {
		t.Errorf("xp = %d, want 10", out.XPAwarded)
	}
	if out.Check != nil {
		t.Error("plain choice should not roll a check")
	}
	if !slices.Contains(out.Triggers, "event.story.choice") {
		t.Errorf("triggers %v missing event.story.choice", out.Triggers)
	}
	if !slices.Contains(out.Triggers, "event.scene.spooky") {
		t.Errorf("triggers %v missing scene tag trigger", out.Triggers)
	}

	_, st, err := engine.CurrentScene(ctx, sess.ID)
	if err != nil {
		t.Fatalf("CurrentScene failed: %v", err)
	}
	if st.CurrentScene != "hall" {
		t.Errorf("persisted scene = %q, want hall", st.CurrentScene)
	}
}

func TestApplyChoiceInvalid(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	_, err := engine.ApplyChoice(ctx, sess, "teleport")
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("error = %v, want ErrInvalidChoice", err)
	}

	// The failed choice leaves the story state untouched.
	_, st, err := engine.CurrentScene(ctx, sess.ID)
	if err != nil {
		t.Fatalf("CurrentScene failed: %v", err)
	}
	if st.CurrentScene != "start" {
		t.Errorf("scene moved to %q after an invalid choice", st.CurrentScene)
	}
}

func TestApplyChoicePrecondition(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	_, err := engine.ApplyChoice(ctx, sess, "locked")
	if !errors.Is(err, ErrPreconditionUnmet) {
		t.Fatalf("error = %v, want ErrPreconditionUnmet", err)
	}

	// Grab the key, return, and the gated choice opens up.
	if _, err := engine.ApplyChoice(ctx, sess, "grab_key"); err != nil {
		t.Fatalf("grab_key failed: %v", err)
	}
	if _, err := engine.ApplyChoice(ctx, sess, "back"); err != nil {
		t.Fatalf("back failed: %v", err)
	}
	out, err := engine.ApplyChoice(ctx, sess, "locked")
	if err != nil {
		t.Fatalf("locked should be available with the key: %v", err)
	}
	if out.SceneID != "hall" {
		t.Errorf("scene = %q, want hall", out.SceneID)
	}

	_, st, err := engine.CurrentScene(ctx, sess.ID)
	if err != nil {
		t.Fatalf("CurrentScene failed: %v", err)
	}
	if st.Stats["bravery"] != 1 {
		t.Errorf("bravery stat = %d, want 1", st.Stats["bravery"])
	}
}

func TestApplyChoiceCheckSuccess(t *testing.T) {
	engine, store, sess := testEngine(t, 1)
	ctx := context.Background()

	// A d20 with a +0 modifier always clears DC 1.
	out, err := engine.ApplyChoice(ctx, sess, "easy_check")
	if err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}
	if out.Check == nil || !out.Check.Success {
		t.Fatalf("check = %+v, want success", out.Check)
	}
	if out.Check.Stored {
		t.Error("fresh roll should not be marked stored")
	}
	if out.SceneID != "hall" {
		t.Errorf("scene = %q, want hall on success", out.SceneID)
	}
	if out.XPAwarded != 350 {
		t.Errorf("xp = %d, want the success award", out.XPAwarded)
	}
	if out.LevelUp == nil || out.LevelUp.From != 1 || out.LevelUp.To != 2 {
		t.Errorf("level up = %+v, want 1 to 2", out.LevelUp)
	}
	if !slices.Contains(out.Triggers, "event.story.level_up") {
		t.Errorf("triggers %v missing level up", out.Triggers)
	}

	// The auto-roll is persisted but already claimed by this check.
	rolls, err := store.RecentRolls(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("RecentRolls failed: %v", err)
	}
	if len(rolls) != 1 {
		t.Fatalf("expected 1 persisted roll, got %d", len(rolls))
	}
	if rolls[0].ConsumedAt == nil {
		t.Error("auto-roll should be consumed immediately")
	}
}

func TestApplyChoiceCheckFailure(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	// A d20 with a +0 modifier can never reach DC 21.
	out, err := engine.ApplyChoice(ctx, sess, "hard_check")
	if err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}
	if out.Check == nil || out.Check.Success {
		t.Fatalf("check = %+v, want failure", out.Check)
	}
	if out.SceneID != "pit" {
		t.Errorf("scene = %q, want the failure scene", out.SceneID)
	}
	if out.XPAwarded != 5 {
		t.Errorf("xp = %d, want the failure award", out.XPAwarded)
	}
	if out.LevelUp != nil {
		t.Errorf("unexpected level up %+v", out.LevelUp)
	}
}

func TestStoredRollSatisfiesCheck(t *testing.T) {
	engine, store, sess := testEngine(t, 1)
	ctx := context.Background()

	// A stored roll equal to the DC succeeds: ties go to the player.
	_, err := store.AppendRoll(ctx, state.StoryRoll{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Expression: "str",
		Ability:    "str",
		Total:      12,
		Detail:     state.RollDetail{Rolls: []int{12}, Kept: []int{12}},
	})
	if err != nil {
		t.Fatalf("AppendRoll failed: %v", err)
	}

	out, err := engine.ApplyChoice(ctx, sess, "tie_check")
	if err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}
	if out.Check == nil || !out.Check.Stored {
		t.Fatalf("check = %+v, want a stored roll", out.Check)
	}
	if !out.Check.Success {
		t.Error("total equal to the DC should succeed")
	}
	if out.Check.Total != 12 {
		t.Errorf("total = %d, want the stored 12", out.Check.Total)
	}

	// The stored roll is spent; the same check now rolls fresh.
	if _, err := engine.ApplyChoice(ctx, sess, "back"); err != nil {
		t.Fatalf("back failed: %v", err)
	}
	out, err = engine.ApplyChoice(ctx, sess, "tie_check")
	if err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}
	if out.Check.Stored {
		t.Error("consumed roll satisfied a second check")
	}
}

func TestInferredCheck(t *testing.T) {
	engine, _, sess := testEngine(t, 1)

	out, err := engine.ApplyChoice(context.Background(), sess, "risky")
	if err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}
	if out.Check == nil || !out.Check.Inferred {
		t.Fatalf("check = %+v, want an inferred check", out.Check)
	}
	if out.Check.Ability != "dex" || out.Check.DC != 12 {
		t.Errorf("inferred check %s DC %d, want dex DC 12", out.Check.Ability, out.Check.DC)
	}
	if out.Check.Note != "auto:risk" {
		t.Errorf("note = %q, want auto:risk", out.Check.Note)
	}
}

func TestRecordRoll(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	saved, err := engine.RecordRoll(ctx, sess, "2d6+1")
	if err != nil {
		t.Fatalf("RecordRoll failed: %v", err)
	}
	if saved.Expression != "2d6+1" {
		t.Errorf("expression = %q, want canonical 2d6+1", saved.Expression)
	}
	if saved.Total < 3 || saved.Total > 13 {
		t.Errorf("total %d out of range for 2d6+1", saved.Total)
	}
	if saved.ConsumedAt != nil {
		t.Error("explicit roll should start unconsumed")
	}
	if saved.Ability != "" {
		t.Errorf("plain roll carries ability %q", saved.Ability)
	}

	saved, err = engine.RecordRoll(ctx, sess, "wis")
	if err != nil {
		t.Fatalf("RecordRoll failed: %v", err)
	}
	if saved.Ability != "wis" {
		t.Errorf("ability = %q, want wis", saved.Ability)
	}

	if _, err := engine.RecordRoll(ctx, sess, "not dice"); err == nil {
		t.Error("expected parse error")
	}
}

func TestRestart(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	if _, err := engine.SetProfileField(ctx, sess.ID, sess.UserID, "name", "Brum"); err != nil {
		t.Fatalf("SetProfileField failed: %v", err)
	}
	if _, err := engine.AddInventoryItem(ctx, sess.ID, sess.UserID, "rope", 2); err != nil {
		t.Fatalf("AddInventoryItem failed: %v", err)
	}
	if _, err := engine.ApplyChoice(ctx, sess, "easy_check"); err != nil {
		t.Fatalf("ApplyChoice failed: %v", err)
	}

	st, profile, err := engine.Restart(ctx, sess)
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if st.CurrentScene != "start" || len(st.SceneHistory) != 1 {
		t.Errorf("state = %q %v, want a fresh start", st.CurrentScene, st.SceneHistory)
	}
	if profile.Experience != 0 || profile.Level != 1 {
		t.Errorf("profile xp=%d level=%d, want 0 and 1", profile.Experience, profile.Level)
	}
	if len(profile.Inventory) != 0 {
		t.Errorf("inventory %v should be empty", profile.Inventory)
	}
	// Identity survives a restart.
	if profile.Name != "Brum" {
		t.Errorf("name = %q, want Brum", profile.Name)
	}
}

func TestSetProfileField(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	profile, err := engine.SetProfileField(ctx, sess.ID, sess.UserID, "race", "Dwarf")
	if err != nil {
		t.Fatalf("SetProfileField failed: %v", err)
	}
	if profile.Race != "dwarf" {
		t.Errorf("race = %q, want lowercased dwarf", profile.Race)
	}

	tests := []struct {
		name  string
		field string
		value string
	}{
		{"unsupported race", "race", "kobold"},
		{"unsupported class", "class", "influencer"},
		{"unknown field", "alignment", "chaotic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.SetProfileField(ctx, sess.ID, sess.UserID, tt.field, tt.value)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSetAbilityScore(t *testing.T) {
	engine, _, sess := testEngine(t, 1)
	ctx := context.Background()

	profile, err := engine.SetAbilityScore(ctx, sess.ID, sess.UserID, "STR", 16)
	if err != nil {
		t.Fatalf("SetAbilityScore failed: %v", err)
	}
	if profile.Abilities["str"] != 16 {
		t.Errorf("str = %d, want 16", profile.Abilities["str"])
	}

	if _, err := engine.SetAbilityScore(ctx, sess.ID, sess.UserID, "luck", 10); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown ability error = %v, want ErrInvalidArgument", err)
	}
	if _, err := engine.SetAbilityScore(ctx, sess.ID, sess.UserID, "str", 21); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out of range error = %v, want ErrInvalidArgument", err)
	}
}

func TestFinalizeProfile(t *testing.T) {
	engine, store, sess := testEngine(t, 1)
	ctx := context.Background()

	_, err := engine.FinalizeProfile(ctx, sess.ID, sess.UserID)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("finalizing an empty profile = %v, want ErrInvalidArgument", err)
	}

	for field, value := range map[string]string{"name": "Brum", "race": "dwarf", "class": "cleric"} {
		if _, err := engine.SetProfileField(ctx, sess.ID, sess.UserID, field, value); err != nil {
			t.Fatalf("SetProfileField(%s) failed: %v", field, err)
		}
	}

	profile, err := engine.FinalizeProfile(ctx, sess.ID, sess.UserID)
	if err != nil {
		t.Fatalf("FinalizeProfile failed: %v", err)
	}
	if !profile.Finalized {
		t.Error("profile should be finalized")
	}

	// Finalizing guarantees the story state exists.
	st, err := store.GetStoryState(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetStoryState failed: %v", err)
	}
	if st == nil || st.CurrentScene != "start" {
		t.Errorf("story state = %+v, want it seeded at the root", st)
	}
}
