package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/husnainisworking/personal-blog/internal/application/twofactor"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/pkg/validate"
	"github.com/husnainisworking/personal-blog/internal/transport/http/middleware"
	"github.com/rs/zerolog"
)

type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,otp6"`
}

// TwoFactorHandler serves the verification endpoints. They sit behind Auth
// but not behind the guard.
type TwoFactorHandler struct {
	svc twofactor.Service
	log *zerolog.Logger
}

func NewTwoFactorHandler(svc twofactor.Service, log *zerolog.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{svc: svc, log: log}
}

func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req VerifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res, err := h.svc.Verify(r.Context(), sub, req.Code, middleware.ClientIP(r))
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	switch res.Outcome {
	case twofactor.Verified:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verified"})
	case twofactor.TooManyAttempts:
		secs := res.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("too many attempts, try again in %d seconds", secs))
	case twofactor.NoActiveCode, twofactor.InvalidOrExpired:
		writeError(w, http.StatusUnauthorized, "invalid or expired verification code")
	default:
		httpError(w, h.log, fmt.Errorf("unexpected verify outcome %v", res.Outcome))
	}
}

func (h *TwoFactorHandler) Resend(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.svc.Resend(r.Context(), sub, middleware.ClientIP(r))
	if err != nil && !errors.Is(err, domain.ErrTransportFailure) {
		httpError(w, h.log, err)
		return
	}
	switch res.Outcome {
	case twofactor.TooManyResends:
		mins := res.RetryAfterMinutes()
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("too many resend requests, try again in %d minutes", mins))
	case twofactor.Resent:
		if err != nil {
			httpError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code resent"})
	default:
		httpError(w, h.log, fmt.Errorf("unexpected resend outcome %v", res.Outcome))
	}
}
