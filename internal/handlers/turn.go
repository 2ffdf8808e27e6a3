package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmkeith/dungeonmaster/internal/session"
)

const turnTimeout = 30 * time.Second

// TurnHandler handles player turns
type TurnHandler struct {
	orchestrator *session.Orchestrator
	logger       *slog.Logger
}

// NewTurnHandler creates a new turn handler
func NewTurnHandler(orchestrator *session.Orchestrator, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// ServeHTTP handles HTTP requests for turns
func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSON(w, h.logger, http.StatusMethodNotAllowed,
			ErrorResponse{Error: "Method not allowed. Only POST is supported."})
		return
	}

	var input session.TurnInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeJSON(w, h.logger, http.StatusBadRequest,
			ErrorResponse{Error: "Invalid request body. Expected JSON with 'user_id' and 'text' fields."})
		return
	}
	if input.UserID == "" {
		writeJSON(w, h.logger, http.StatusBadRequest,
			ErrorResponse{Error: "user_id cannot be empty."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	result, err := h.orchestrator.HandleTurn(ctx, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Debug("Turn handled",
		"session_id", result.SessionID,
		"mode", result.Mode)
	writeJSON(w, h.logger, http.StatusOK, result)
}
