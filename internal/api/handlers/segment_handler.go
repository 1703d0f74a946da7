package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/service"
)

type CreateSegmentRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Rules       json.RawMessage `json:"rules"`
}

type SegmentHandler struct {
	segments *service.SegmentService
	log      *logrus.Entry
}

func NewSegmentHandler(segments *service.SegmentService, log *logrus.Entry) *SegmentHandler {
	return &SegmentHandler{segments: segments, log: log}
}

func (h *SegmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	seg, err := h.segments.Create(r.Context(), req.Name, req.Description, req.Rules)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	seg, err := h.segments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	segments, err := h.segments.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

func (h *SegmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.segments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audience handles GET /segments/{id}/audience: the live, rule-evaluated
// customer set.
func (h *SegmentHandler) Audience(w http.ResponseWriter, r *http.Request) {
	customers, err := h.segments.ResolveAudience(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// Count handles GET /segments/{id}/count without materializing customers
// when the rules allow it.
func (h *SegmentHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.segments.Count(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
