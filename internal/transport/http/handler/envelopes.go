package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/rs/zerolog"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps login responses.
type AuthEnvelope struct {
	Bearer   string          `json:"Bearer,omitempty"`
	Session  *domain.Session `json:"session,omitempty"`
	CodeSent bool            `json:"code_sent"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type RecordEnvelope struct {
	Record *domain.Record `json:"record,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type TakenEnvelope struct {
	Taken []string `json:"taken"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps service errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func httpError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrAllocationFailed):
		writeError(w, http.StatusServiceUnavailable, domain.ErrAllocationFailed.Error())
	case errors.Is(err, domain.ErrTransportFailure):
		writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: domain.ErrTransportFailure.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
