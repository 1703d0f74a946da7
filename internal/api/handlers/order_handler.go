package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/service"
)

type CreateOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Amount     float64            `json:"amount"`
	Currency   string             `json:"currency"`
	Status     string             `json:"status"`
	Items      []OrderItemRequest `json:"items"`
}

type OrderItemRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderHandler struct {
	orders *service.OrderService
	log    *logrus.Entry
}

func NewOrderHandler(orders *service.OrderService, log *logrus.Entry) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	o := models.Order{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     req.Status,
	}
	for _, item := range req.Items {
		o.Items = append(o.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	if err := h.orders.Create(r.Context(), &o); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// ListByCustomer handles GET /orders?customer_id=...
func (h *OrderHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_id is required"})
		return
	}
	orders, err := h.orders.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
