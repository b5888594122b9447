package model

import (
	"encoding/json"
	"time"
)

// AuditEntry is an immutable record of one sensitive mutation. Entries are
// append-only: nothing updates or deletes them outside the explicit retention
// purge. The ID is the commit sequence, so entries for one subject read back
// in commit order.
type AuditEntry struct {
	ID      int64           `json:"id"`
	Subject string          `json:"subject"`
	Action  string          `json:"action"`
	Before  json.RawMessage `json:"before,omitempty"`
	After   json.RawMessage `json:"after,omitempty"`
	At      time.Time       `json:"at"`
}

// Well-known audit actions.
const (
	ActionFactAppended    = "fact.appended"
	ActionCustomerCreated = "customer.created"
	ActionCustomerUpdated = "customer.updated"
)

// AuditFilter selects audit entries by subject and time range.
type AuditFilter struct {
	Subject string
	From    time.Time
	To      time.Time // exclusive; zero means unbounded
	Limit   int
}
