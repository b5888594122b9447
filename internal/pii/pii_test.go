package pii

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
	"github.com/alfredjeanlab/tally/internal/store/memory"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
		phone    bool
	}{
		{"  Ann@Example.COM ", "ann@example.com", false},
		{"ann@example.com", "ann@example.com", false},
		{"+1 (555) 010-2233", "+15550102233", true},
		{"555.010.2233", "5550102233", true},
		{" +44 20 7946 0958 ", "+442079460958", true},
	}
	for _, tt := range tests {
		var got string
		if tt.phone {
			got = NormalizePhone(tt.in)
		} else {
			got = NormalizeEmail(tt.in)
		}
		if got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDigest_NormalizesFirst(t *testing.T) {
	a := Digest(store.LookupEmail, "Ann@Example.com")
	b := Digest(store.LookupEmail, "ann@example.com ")
	if a != b {
		t.Error("digests of equivalent emails differ")
	}
	if a == Digest(store.LookupEmail, "bob@example.com") {
		t.Error("distinct emails collide")
	}
	if Digest(store.LookupPhone, "+1 555 010 2233") != Digest(store.LookupPhone, "+15550102233") {
		t.Error("digests of equivalent phones differ")
	}
}

func seedCustomer(t *testing.T, s *memory.MemoryStore, idx *Index, id, email, phone string) {
	t.Helper()
	ctx := context.Background()
	c := &model.Customer{ID: id, Name: "Customer " + id, Email: email, Phone: phone}
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateCustomer(ctx, c); err != nil {
			return err
		}
		return idx.Record(ctx, tx, c)
	})
	if err != nil {
		t.Fatalf("seed customer %s: %v", id, err)
	}
}

func TestLookup_ScanPath(t *testing.T) {
	s := memory.New()
	idx := NewIndex(s, false, nil)
	seedCustomer(t, s, idx, "cus-ann", "Ann@Example.com", "+1 555 010 2233")
	ctx := context.Background()

	c, path, err := idx.LookupEmail(ctx, "ann@example.com", false)
	if err != nil {
		t.Fatalf("LookupEmail: %v", err)
	}
	if path != PathScan {
		t.Errorf("path = %s, want scan (index not visible)", path)
	}
	if c.ID != "cus-ann" {
		t.Errorf("customer = %s", c.ID)
	}

	c, path, err = idx.LookupPhone(ctx, "555-010-2233", false)
	if err != nil {
		t.Fatalf("LookupPhone: %v", err)
	}
	if path != PathScan || c.ID != "cus-ann" {
		t.Errorf("phone lookup = %s via %s", c.ID, path)
	}
}

func TestLookup_FastPathWhenVisible(t *testing.T) {
	s := memory.New()
	idx := NewIndex(s, true, nil)
	seedCustomer(t, s, idx, "cus-ann", "ann@example.com", "")
	ctx := context.Background()

	c, path, err := idx.LookupEmail(ctx, "ANN@example.com", false)
	if err != nil {
		t.Fatalf("LookupEmail: %v", err)
	}
	if path != PathFast {
		t.Errorf("path = %s, want fast", path)
	}
	if c.ID != "cus-ann" {
		t.Errorf("customer = %s", c.ID)
	}
}

func TestLookup_ForceFast(t *testing.T) {
	s := memory.New()
	idx := NewIndex(s, false, nil)
	seedCustomer(t, s, idx, "cus-ann", "ann@example.com", "")
	ctx := context.Background()

	// force=fast overrides the visibility flag.
	c, path, err := idx.LookupEmail(ctx, "ann@example.com", true)
	if err != nil {
		t.Fatalf("forced fast lookup: %v", err)
	}
	if path != PathFast || c.ID != "cus-ann" {
		t.Errorf("got %s via %s", c.ID, path)
	}

	// Forced fast does not fall back to the scan on a digest miss.
	_, path, err = idx.LookupEmail(ctx, "ghost@example.com", true)
	if !errors.Is(err, model.ErrNotFound) || path != PathFast {
		t.Errorf("forced miss: path=%s err=%v", path, err)
	}
}

func TestLookup_VisibleMissFallsBackToScan(t *testing.T) {
	s := memory.New()
	idx := NewIndex(s, true, nil)
	ctx := context.Background()

	// Customer written without maintaining the side table.
	if err := s.CreateCustomer(ctx, &model.Customer{ID: "cus-raw", Name: "Raw", Email: "raw@example.com"}); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	c, path, err := idx.LookupEmail(ctx, "raw@example.com", false)
	if err != nil {
		t.Fatalf("LookupEmail: %v", err)
	}
	if path != PathScan || c.ID != "cus-raw" {
		t.Errorf("got %s via %s, want cus-raw via scan fallback", c.ID, path)
	}
}

func TestLookup_ToggleRequiresNoRebuild(t *testing.T) {
	s := memory.New()
	idx := NewIndex(s, false, nil)
	seedCustomer(t, s, idx, "cus-ann", "ann@example.com", "")
	ctx := context.Background()

	// Digests were maintained while the flag was off, so flipping it on
	// immediately serves the fast path.
	idx.SetVisible(true)
	_, path, err := idx.LookupEmail(ctx, "ann@example.com", false)
	if err != nil {
		t.Fatalf("LookupEmail: %v", err)
	}
	if path != PathFast {
		t.Errorf("path = %s, want fast after toggle", path)
	}
}

func TestLookup_ScanPagination(t *testing.T) {
	s := memory.New()
	idx := NewIndex(s, false, nil)
	ctx := context.Background()

	for i := 0; i < scanPageSize+10; i++ {
		err := s.CreateCustomer(ctx, &model.Customer{
			ID:    fmt.Sprintf("cus-%04d", i),
			Name:  "C",
			Email: fmt.Sprintf("c%04d@example.com", i),
		})
		if err != nil {
			t.Fatalf("CreateCustomer: %v", err)
		}
	}

	target := fmt.Sprintf("c%04d@example.com", scanPageSize+5)
	c, _, err := idx.LookupEmail(ctx, target, false)
	if err != nil {
		t.Fatalf("LookupEmail across pages: %v", err)
	}
	if c.Email != target {
		t.Errorf("found %s, want %s", c.Email, target)
	}

	if _, _, err := idx.LookupEmail(ctx, "nobody@example.com", false); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing customer err = %v", err)
	}
}
