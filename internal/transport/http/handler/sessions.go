package handler

import (
	"net/http"

	"github.com/husnainisworking/personal-blog/internal/application/session"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/pkg/validate"
	"github.com/husnainisworking/personal-blog/internal/transport/http/middleware"
	"github.com/rs/zerolog"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc session.Service
	log *zerolog.Logger
}

func NewSessionHandler(svc session.Service, log *zerolog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, log: log}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	env := AuthEnvelope{
		Bearer:   result.Bearer,
		Session:  result.Session,
		CodeSent: result.CodeSent,
		Message:  "verification code sent",
	}
	status := http.StatusOK
	if !result.CodeSent {
		status = http.StatusAccepted
		env.Message = domain.ErrTransportFailure.Error()
	}
	writeJSON(w, status, env)
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
