package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"shiftclock-backend/internal/service"
)

type ScheduleHandler struct {
	Schedules service.ScheduleService
}

func (h ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/schedules", h.list)
}

func (h ScheduleHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/schedules", h.create)
	r.Get("/schedules/{id}", h.get)
	r.Put("/schedules/{id}", h.update)
	r.Delete("/schedules/{id}", h.delete)
}

type scheduleRequest struct {
	StaffID          int64  `json:"staffId"`
	Date             string `json:"date"`
	Start            string `json:"start"`
	End              string `json:"end"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	AssignedRegister string `json:"assignedRegister"`
	Notes            string `json:"notes"`
}

func (h ScheduleHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	now := h.now()
	from, to, err := parseRangeQuery(r, h.Schedules.Location, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	staffID := actor.ID
	if actor.Role.IsManager() {
		staffID = 0
		if raw := r.URL.Query().Get("staffId"); raw != "" {
			staffID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid staffId")
				return
			}
		}
	}
	items, err := h.Schedules.List(r.Context(), actor.BusinessID, staffID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, s := range items {
		resp = append(resp, scheduleJSON(s, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ScheduleHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	sc, err := h.Schedules.Get(r.Context(), actor.BusinessID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleJSON(*sc, h.now()))
}

func (h ScheduleHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	sc, err := h.Schedules.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scheduleJSON(*sc, h.now()))
}

func (h ScheduleHandler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	sc, err := h.Schedules.Update(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleJSON(*sc, h.now()))
}

func (h ScheduleHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	if err := h.Schedules.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h ScheduleHandler) decode(w http.ResponseWriter, r *http.Request) (service.ScheduleInput, bool) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return service.ScheduleInput{}, false
	}
	in := service.ScheduleInput{
		StaffID:          req.StaffID,
		Start:            req.Start,
		End:              req.End,
		AssignedRegister: req.AssignedRegister,
		Notes:            req.Notes,
	}
	loc := h.Schedules.Location
	if loc == nil {
		loc = time.Local
	}
	var err error
	if req.Date != "" {
		if in.Date, err = time.ParseInLocation(dateLayout, req.Date, loc); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return in, false
		}
	}
	if req.StartTime != "" {
		if in.StartTime, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
			writeError(w, http.StatusBadRequest, "startTime must be RFC3339")
			return in, false
		}
	}
	if req.EndTime != "" {
		if in.EndTime, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
			writeError(w, http.StatusBadRequest, "endTime must be RFC3339")
			return in, false
		}
	}
	return in, true
}

func (h ScheduleHandler) now() time.Time {
	if h.Schedules.Now != nil {
		return h.Schedules.Now()
	}
	return time.Now()
}
