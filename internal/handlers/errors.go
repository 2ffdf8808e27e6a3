package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmkeith/dungeonmaster/internal/session"
	"github.com/dmkeith/dungeonmaster/pkg/dice"
	"github.com/dmkeith/dungeonmaster/pkg/story"
)

// ErrorResponse is the JSON body for every error status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine errors onto HTTP statuses. Anything unrecognized
// is a server fault.
func statusFor(err error) int {
	var parseErr *dice.ParseError
	switch {
	case errors.As(err, &parseErr),
		errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, story.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, story.ErrInvalidChoice),
		errors.Is(err, story.ErrPreconditionUnmet):
		return http.StatusConflict
	case errors.Is(err, session.ErrProfileRequired):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// writeError encodes one error response. Server faults are logged with the
// real error and reported generically.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
		message = "Internal server error. Please try again."
	}

	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); encErr != nil {
		logger.Error("Error encoding error response", "error", encErr)
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}
