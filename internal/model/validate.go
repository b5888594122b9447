package model

import (
	"fmt"
	"strings"
)

// ValidateFact checks a FactEvent for constraint violations before it may
// enter the ledger. Dimension existence is checked separately by the ledger;
// this covers shape only. Returns a *ConstraintViolation or nil.
func ValidateFact(e *FactEvent) error {
	var cv ConstraintViolation

	if e.OccurredAt.IsZero() {
		cv.Add("occurred_at", "is required")
	}
	if strings.TrimSpace(e.CustomerID) == "" {
		cv.Add("customer_id", "is required")
	}
	if strings.TrimSpace(e.ItemID) == "" {
		cv.Add("item_id", "is required")
	}
	if e.Quantity <= 0 {
		cv.Add("quantity", fmt.Sprintf("must be positive, got %d", e.Quantity))
	}
	if e.AmountCents < 0 {
		cv.Add("amount_cents", fmt.Sprintf("must not be negative, got %d", e.AmountCents))
	}

	if cv.HasErrors() {
		return &cv
	}
	return nil
}

// ValidateItem checks an Item dimension row.
func ValidateItem(it *Item) error {
	var cv ConstraintViolation

	if strings.TrimSpace(it.Name) == "" {
		cv.Add("name", "is required")
	}
	if it.PriceCents < 0 {
		cv.Add("price_cents", fmt.Sprintf("must not be negative, got %d", it.PriceCents))
	}

	if cv.HasErrors() {
		return &cv
	}
	return nil
}

// ValidateCustomer checks a Customer dimension row. Email, when present, must
// look like an address; phone is free-form digits.
func ValidateCustomer(c *Customer) error {
	var cv ConstraintViolation

	if strings.TrimSpace(c.Name) == "" {
		cv.Add("name", "is required")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		cv.Add("email", fmt.Sprintf("invalid address %q", c.Email))
	}

	if cv.HasErrors() {
		return &cv
	}
	return nil
}
