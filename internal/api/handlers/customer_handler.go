package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
	"github.com/campaignify/xenocrm/internal/service"
)

type UpsertCustomerRequest struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Country   string  `json:"country"`
	LastVisit *string `json:"last_visit,omitempty"` // RFC3339
}

type CustomerHandler struct {
	customers *service.CustomerService
	log       *logrus.Entry
}

func NewCustomerHandler(customers *service.CustomerService, log *logrus.Entry) *CustomerHandler {
	return &CustomerHandler{customers: customers, log: log}
}

// Upsert handles POST /customers: create-or-update keyed by email.
func (h *CustomerHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	c := models.Customer{
		Name:    req.Name,
		Email:   req.Email,
		Country: req.Country,
	}
	if req.LastVisit != nil {
		t, err := time.Parse(time.RFC3339, *req.LastVisit)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid last_visit; use RFC3339"})
			return
		}
		c.LastVisit = &t
	}

	if err := h.customers.Upsert(r.Context(), &c); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// List handles GET /customers, optionally narrowed by ?country= or looked up
// by ?email=.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		c, err := h.customers.GetByEmail(r.Context(), email)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, []models.Customer{*c})
		return
	}

	filter := repository.CustomerFilter{Country: r.URL.Query().Get("country")}
	customers, err := h.customers.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}
