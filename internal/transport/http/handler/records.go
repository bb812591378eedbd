package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/husnainisworking/personal-blog/internal/application/record"
	"github.com/husnainisworking/personal-blog/internal/application/slug"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/pkg/validate"
	"github.com/rs/zerolog"
)

// RecordHandler serves posts, categories and tags under /v1/{type}.
type RecordHandler struct {
	slugs   slug.Service
	records record.Service
	log     *zerolog.Logger
}

func NewRecordHandler(slugs slug.Service, records record.Service, log *zerolog.Logger) *RecordHandler {
	return &RecordHandler{slugs: slugs, records: records, log: log}
}

func (h *RecordHandler) recordType(w http.ResponseWriter, r *http.Request) (domain.RecordType, bool) {
	t, err := domain.ParseRecordType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return "", false
	}
	return t, true
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := h.recordType(w, r)
	if !ok {
		return
	}
	var req domain.CreateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rec, err := h.slugs.Create(r.Context(), t, req.Title)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordEnvelope{Record: rec})
}

func (h *RecordHandler) Rename(w http.ResponseWriter, r *http.Request) {
	t, ok := h.recordType(w, r)
	if !ok {
		return
	}
	var req domain.RenameRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rec, err := h.slugs.Rename(r.Context(), t, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordEnvelope{Record: rec})
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.recordType(w, r)
	if !ok {
		return
	}
	if err := h.records.Delete(r.Context(), t, chi.URLParam(r, "id")); err != nil {
		httpError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	t, ok := h.recordType(w, r)
	if !ok {
		return
	}
	rec, err := h.records.Get(r.Context(), t, chi.URLParam(r, "slug"))
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordEnvelope{Record: rec})
}

func (h *RecordHandler) Taken(w http.ResponseWriter, r *http.Request) {
	t, ok := h.recordType(w, r)
	if !ok {
		return
	}
	var req domain.SlugsTakenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	taken, err := h.slugs.Taken(r.Context(), t, req.Slugs)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	if taken == nil {
		taken = []string{}
	}
	writeJSON(w, http.StatusOK, TakenEnvelope{Taken: taken})
}
