package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/service"
)

type CreateCampaignRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SegmentID   string `json:"segment_id"`
}

type ScheduleCampaignRequest struct {
	ScheduledFor string `json:"scheduled_for,omitempty"` // RFC3339; empty means immediately eligible
}

type CampaignHandler struct {
	campaigns *service.CampaignService
	messages  *service.MessageService
	log       *logrus.Entry
}

func NewCampaignHandler(campaigns *service.CampaignService, messages *service.MessageService, log *logrus.Entry) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, messages: messages, log: log}
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	c, err := h.campaigns.Create(r.Context(), req.Name, req.Description, req.SegmentID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

// Schedule handles POST /campaigns/{id}/schedule.
func (h *CampaignHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	var scheduledFor *time.Time
	if strings.TrimSpace(req.ScheduledFor) != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid scheduled_for; use RFC3339"})
			return
		}
		scheduledFor = &t
	}

	c, err := h.campaigns.Schedule(r.Context(), chi.URLParam(r, "id"), scheduledFor)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Execute handles POST /campaigns/{id}/execute. Execution is synchronous;
// repeated calls while SENDING or after completion get 409.
func (h *CampaignHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Execute(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	stats, err := h.campaigns.Stats(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *CampaignHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.campaigns.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *CampaignHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.ListByCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
