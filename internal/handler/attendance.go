package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"shiftclock-backend/internal/service"
)

// AttendanceHandler ends the attendance period that groups a user's POS shifts.
type AttendanceHandler struct {
	TimeShifts service.TimeShiftService
}

func (h AttendanceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/attendance/checkout", h.checkOut)
}

func (h AttendanceHandler) checkOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		UserID *int64 `json:"userId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	userID := actor.ID
	if req.UserID != nil {
		userID = *req.UserID
	}
	ts, err := h.TimeShifts.Close(r.Context(), actor, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeShiftJSON(*ts))
}
