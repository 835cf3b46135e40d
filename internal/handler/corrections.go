package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/service"
)

type CorrectionHandler struct {
	Workflow service.TimeCorrectionWorkflow
}

func (h CorrectionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/corrections", h.request)
}

func (h CorrectionHandler) RegisterManagerRoutes(r chi.Router) {
	r.Get("/corrections/pending", h.pending)
	r.Post("/corrections/{id}/process", h.process)
}

func (h CorrectionHandler) request(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		ClockEventID   string `json:"clockEventId"`
		ShiftID        string `json:"shiftId"`
		CorrectionType string `json:"correctionType"`
		CorrectedTime  string `json:"correctedTime"`
		Reason         string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	in := service.RequestCorrectionInput{
		CorrectionType: domain.CorrectionType(req.CorrectionType),
		Reason:         req.Reason,
	}
	var err error
	if in.ClockEventID, err = optionalUUID(req.ClockEventID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid clockEventId")
		return
	}
	if in.ShiftID, err = optionalUUID(req.ShiftID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid shiftId")
		return
	}
	if req.CorrectedTime != "" {
		in.CorrectedTime, err = time.Parse(time.RFC3339, req.CorrectedTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "correctedTime must be RFC3339")
			return
		}
	}
	c, err := h.Workflow.Request(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, correctionJSON(*c))
}

func (h CorrectionHandler) process(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid correction id")
		return
	}
	var req struct {
		Approved *bool `json:"approved"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved is required")
		return
	}
	c, err := h.Workflow.Process(r.Context(), actor, id, *req.Approved)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, correctionJSON(*c))
}

func (h CorrectionHandler) pending(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	items, err := h.Workflow.ListPending(r.Context(), actor.BusinessID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, c := range items {
		resp = append(resp, correctionJSON(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
