package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/server/authctx"
)

func currentActor(r *http.Request) (domain.Actor, bool) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: user.ID, BusinessID: user.BusinessID, Role: user.Role}, true
}

// decodeJSON tolerates an empty body so optional payloads can be omitted.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func clientIP(r *http.Request) *string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return nil
	}
	return &host
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
