package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validFact() *FactEvent {
	return &FactEvent{
		OccurredAt:  time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
		CustomerID:  "cus-abc123",
		ItemID:      "itm-xyz789",
		Quantity:    2,
		AmountCents: 2450,
	}
}

func TestValidateFact_Valid(t *testing.T) {
	if err := ValidateFact(validFact()); err != nil {
		t.Errorf("ValidateFact(valid) = %v, want nil", err)
	}
}

func TestValidateFact_Violations(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*FactEvent)
		field  string
	}{
		{"missing occurred_at", func(e *FactEvent) { e.OccurredAt = time.Time{} }, "occurred_at"},
		{"missing customer", func(e *FactEvent) { e.CustomerID = " " }, "customer_id"},
		{"missing item", func(e *FactEvent) { e.ItemID = "" }, "item_id"},
		{"zero quantity", func(e *FactEvent) { e.Quantity = 0 }, "quantity"},
		{"negative amount", func(e *FactEvent) { e.AmountCents = -1 }, "amount_cents"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := validFact()
			tc.mutate(e)
			err := ValidateFact(e)
			if err == nil {
				t.Fatal("expected a constraint violation")
			}
			var cv *ConstraintViolation
			if !errors.As(err, &cv) {
				t.Fatalf("error type = %T, want *ConstraintViolation", err)
			}
			if !strings.Contains(cv.Error(), tc.field) {
				t.Errorf("error %q does not mention field %q", cv.Error(), tc.field)
			}
		})
	}
}

func TestValidateFact_CollectsAllFields(t *testing.T) {
	err := ValidateFact(&FactEvent{})
	var cv *ConstraintViolation
	if !errors.As(err, &cv) {
		t.Fatalf("error type = %T, want *ConstraintViolation", err)
	}
	if len(cv.Errors) != 4 {
		t.Errorf("collected %d field errors, want 4: %v", len(cv.Errors), cv)
	}
}

func TestValidateCustomer(t *testing.T) {
	if err := ValidateCustomer(&Customer{Name: "Ada", Email: "ada@example.com"}); err != nil {
		t.Errorf("valid customer rejected: %v", err)
	}
	if err := ValidateCustomer(&Customer{Name: "Ada", Email: "not-an-address"}); err == nil {
		t.Error("bad email accepted")
	}
	if err := ValidateCustomer(&Customer{}); err == nil {
		t.Error("empty name accepted")
	}
}

func TestValidateItem(t *testing.T) {
	if err := ValidateItem(&Item{Name: "Margherita", PriceCents: 1200}); err != nil {
		t.Errorf("valid item rejected: %v", err)
	}
	if err := ValidateItem(&Item{Name: "", PriceCents: -5}); err == nil {
		t.Error("invalid item accepted")
	}
}
