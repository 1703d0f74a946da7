package models

import "time"

type Customer struct {
	ID         string
	Name       string
	Email      string
	Country    string
	TotalSpent float64
	VisitCount int
	LastVisit  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
