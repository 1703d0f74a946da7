package models

import "time"

type Order struct {
	ID         string
	CustomerID string
	Amount     float64
	Currency   string
	Status     string
	Items      []OrderItem
	CreatedAt  time.Time
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     float64
}
