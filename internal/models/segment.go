package models

import (
	"encoding/json"
	"time"
)

// Segment is a named, rule-defined subset of customers. Rules is the raw
// rule-set JSON; membership is recomputed from it on demand, the
// customer_segments join table is only a periodically synced cache.
type Segment struct {
	ID          string
	Name        string
	Description string
	Rules       json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
