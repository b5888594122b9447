package model

import (
	"time"
)

// FactEvent is an immutable record of one business occurrence (an order line
// landing in the ledger). Facts are created once, never mutated, and are
// eventually purged by partition retirement.
type FactEvent struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	CustomerID  string    `json:"customer_id"`
	ItemID      string    `json:"item_id"`
	Quantity    int64     `json:"quantity"`
	AmountCents int64     `json:"amount_cents"`
	Actor       string    `json:"actor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Day returns the UTC business date the event belongs to, in YYYY-MM-DD form.
// Daily rollups key on this value.
func (e *FactEvent) Day() string {
	return e.OccurredAt.UTC().Format("2006-01-02")
}

// FactFilter selects facts by occurred-at range, for exports and range reads.
type FactFilter struct {
	From  time.Time
	To    time.Time // exclusive
	Limit int
}

// Item is a menu item dimension row. Facts must reference an existing item.
type Item struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// Customer is a customer dimension row. Email and phone are PII; equality
// lookups over them go through the lookup policy, never ad-hoc queries.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
