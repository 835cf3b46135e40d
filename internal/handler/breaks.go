package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/service"
)

type BreakHandler struct {
	Breaks service.BreakTracker
	Clock  service.TimeClock
}

func (h BreakHandler) RegisterRoutes(r chi.Router) {
	r.Post("/breaks", h.start)
	r.Post("/breaks/{id}/end", h.end)
}

func (h BreakHandler) start(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		ShiftID string `json:"shiftId"`
		Type    string `json:"type"`
		IsPaid  *bool  `json:"isPaid"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var shiftID uuid.UUID
	if req.ShiftID != "" {
		id, err := uuid.Parse(req.ShiftID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid shiftId")
			return
		}
		shiftID = id
	} else {
		active, err := h.Clock.Active(r.Context(), actor.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if active == nil {
			writeError(w, http.StatusConflict, "no active shift")
			return
		}
		shiftID = active.ID
	}
	b, err := h.Breaks.Start(r.Context(), service.StartBreakInput{
		ShiftID: shiftID,
		UserID:  actor.ID,
		Type:    domain.BreakType(req.Type),
		IsPaid:  req.IsPaid,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, breakJSON(*b))
}

func (h BreakHandler) end(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid break id")
		return
	}
	b, err := h.Breaks.EndAs(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakJSON(*b))
}
