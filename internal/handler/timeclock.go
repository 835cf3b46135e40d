package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/service"
)

type TimeClockHandler struct {
	Clock service.TimeClock
}

func (h TimeClockHandler) RegisterRoutes(r chi.Router) {
	r.Post("/clock/in", h.clockIn)
	r.Post("/clock/out", h.clockOut)
	r.Post("/clock/pin", h.pinPunch)
	r.Get("/clock/active", h.active)
}

// RegisterManagerRoutes mounts the routes that need manager capability.
func (h TimeClockHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/shifts/force-close", h.forceClose)
}

type punchRequest struct {
	TerminalID string `json:"terminalId"`
	Method     string `json:"method"`
	LocationID string `json:"locationId"`
}

func (h TimeClockHandler) clockIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req punchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.Clock.ClockIn(r.Context(), h.input(r, actor.ID, actor.BusinessID, req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clockInJSON(res))
}

func (h TimeClockHandler) clockOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req punchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.Clock.ClockOut(r.Context(), h.input(r, actor.ID, actor.BusinessID, req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event": eventJSON(res.Event),
		"shift": shiftJSON(res.Shift),
	})
}

// pinPunch lets a staff member punch at a terminal signed in as someone else.
func (h TimeClockHandler) pinPunch(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		UserID     int64  `json:"userId"`
		Pin        string `json:"pin"`
		Action     string `json:"action"`
		TerminalID string `json:"terminalId"`
		LocationID string `json:"locationId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == 0 || req.Pin == "" {
		writeError(w, http.StatusBadRequest, "userId and pin are required")
		return
	}
	user, err := h.Clock.VerifyPIN(r.Context(), actor.BusinessID, req.UserID, req.Pin)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid pin")
		return
	}
	in := h.input(r, user.ID, user.BusinessID, punchRequest{
		TerminalID: req.TerminalID,
		Method:     string(domain.MethodManual),
		LocationID: req.LocationID,
	})
	switch strings.ToLower(req.Action) {
	case "", "in":
		res, err := h.Clock.ClockIn(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, clockInJSON(res))
	case "out":
		res, err := h.Clock.ClockOut(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"event": eventJSON(res.Event),
			"shift": shiftJSON(res.Shift),
		})
	default:
		writeError(w, http.StatusBadRequest, "action must be in or out")
	}
}

func (h TimeClockHandler) active(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	shift, err := h.Clock.Active(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if shift == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "shift": shiftJSON(*shift)})
}

func (h TimeClockHandler) forceClose(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		UserID int64  `json:"userId"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	res, err := h.Clock.ForceClockOut(r.Context(), actor, req.UserID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event": eventJSON(res.Event),
		"shift": shiftJSON(res.Shift),
	})
}

func (h TimeClockHandler) input(r *http.Request, userID, businessID int64, req punchRequest) service.ClockInput {
	terminal := strings.TrimSpace(req.TerminalID)
	if terminal == "" {
		terminal = r.Header.Get("X-Terminal-ID")
	}
	return service.ClockInput{
		UserID:     userID,
		BusinessID: businessID,
		TerminalID: terminal,
		Method:     domain.ClockMethod(req.Method),
		LocationID: optionalString(req.LocationID),
		IPAddress:  clientIP(r),
	}
}

func clockInJSON(res *service.ClockInResult) map[string]any {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []service.ValidationWarning{}
	}
	return map[string]any{
		"event":     eventJSON(res.Event),
		"shift":     shiftJSON(res.Shift),
		"timeShift": timeShiftJSON(res.TimeShift),
		"warnings":  warnings,
	}
}
