package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/internal/session"
	"github.com/dmkeith/dungeonmaster/internal/storage"
	"github.com/dmkeith/dungeonmaster/pkg/achievements"
	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/state"
	"github.com/dmkeith/dungeonmaster/pkg/story"
)

// SessionResponse is a read-only snapshot of one session.
type SessionResponse struct {
	Session *state.Session           `json:"session"`
	Profile *actor.Profile           `json:"profile,omitempty"`
	Scene   *session.SceneSnapshot   `json:"scene,omitempty"`
	Rolls   []state.StoryRoll        `json:"rolls,omitempty"`
	Grants  []state.AchievementGrant `json:"grants,omitempty"`
}

// SessionHandler serves session snapshots.
type SessionHandler struct {
	store   storage.Store
	engine  *story.Engine
	catalog *achievements.Catalog
	logger  *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store storage.Store, engine *story.Engine, catalog *achievements.Catalog, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		store:   store,
		engine:  engine,
		catalog: catalog,
		logger:  logger,
	}
}

// ServeHTTP handles GET requests for a session snapshot.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeJSON(w, h.logger, http.StatusMethodNotAllowed,
			ErrorResponse{Error: "Method not allowed. Only GET is supported."})
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest,
			ErrorResponse{Error: "Invalid session id."})
		return
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if sess == nil {
		writeJSON(w, h.logger, http.StatusNotFound,
			ErrorResponse{Error: "Session not found."})
		return
	}

	response := SessionResponse{Session: sess}

	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Profile = profile

	st, err := h.store.GetStoryState(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if st != nil {
		if scene, ok := h.engine.Campaign().Scene(st.CurrentScene); ok {
			response.Scene = session.SnapshotScene(scene, st.Flags)
		}
	}

	if response.Rolls, err = h.store.RecentRolls(r.Context(), id, 10); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if response.Grants, err = h.store.RecentGrants(r.Context(), sess.UserID, 10); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, response)
}
