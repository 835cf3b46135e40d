package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"shiftclock-backend/internal/domain"
)

type apiError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Details any    `json:"details,omitempty"`
}

type apiResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data"`
	Error   *apiError `json:"error,omitempty"`
}

func writeRawJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if status >= 400 {
		writeRawJSON(w, status, apiResponse{
			Status: "error",
			Data:   payload,
			Error: &apiError{
				Code:   status,
				Status: http.StatusText(status),
			},
		})
		return
	}
	writeRawJSON(w, status, apiResponse{
		Status: "ok",
		Data:   payload,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorDetails(w, status, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	if status < 400 {
		status = http.StatusInternalServerError
	}
	writeRawJSON(w, status, apiResponse{
		Status:  "error",
		Message: message,
		Data:    nil,
		Error: &apiError{
			Code:    status,
			Status:  http.StatusText(status),
			Details: details,
		},
	})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var overlap *domain.OverlapError
	var duration *domain.DurationError
	switch {
	case errors.As(err, &overlap):
		writeErrorDetails(w, http.StatusConflict, err.Error(), map[string]any{
			"conflictingScheduleId": overlap.ConflictID,
			"conflictStart":         overlap.ConflictStart.Format(time.RFC3339),
			"conflictEnd":           overlap.ConflictEnd.Format(time.RFC3339),
		})
	case errors.As(err, &duration):
		writeErrorDetails(w, http.StatusUnprocessableEntity, err.Error(), map[string]any{
			"durationMinutes": int64(duration.Duration / time.Minute),
			"minMinutes":      int64(duration.Min / time.Minute),
			"maxMinutes":      int64(duration.Max / time.Minute),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
