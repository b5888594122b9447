// Package pii implements customer lookup by email or phone without putting a
// database index on the PII columns themselves. A side table of sha256
// digests over normalized values serves as the fast path; the default
// path scans the customers table. A visibility flag gates the fast path at
// read time only, so toggling it never requires a rebuild.
package pii

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// Path names which lookup strategy answered a query.
type Path string

const (
	PathScan Path = "scan"
	PathFast Path = "fast"
)

// scanPageSize bounds how many customers a scan fetches per round trip.
const scanPageSize = 500

// NormalizeEmail lowercases and trims the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything except digits, keeping a leading +.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Digest returns the hex sha256 of the normalized value for the given kind.
func Digest(kind store.LookupKind, value string) string {
	switch kind {
	case store.LookupEmail:
		value = NormalizeEmail(value)
	case store.LookupPhone:
		value = NormalizePhone(value)
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Index answers customer lookups. The digest side table is always maintained
// on writes; visibility only decides whether reads may use it.
type Index struct {
	store   store.Store
	visible atomic.Bool
	logger  *slog.Logger
}

func NewIndex(s store.Store, visible bool, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{store: s, logger: logger}
	idx.visible.Store(visible)
	return idx
}

// Visible reports whether the fast path is eligible for reads.
func (i *Index) Visible() bool { return i.visible.Load() }

// SetVisible toggles fast path eligibility. No rebuild happens; the side
// table is maintained continuously regardless of this flag.
func (i *Index) SetVisible(v bool) { i.visible.Store(v) }

// Record upserts the digests for a customer's contact fields. Call inside
// the same transaction that writes the customer row.
func (i *Index) Record(ctx context.Context, tx store.Store, c *model.Customer) error {
	if c.Email != "" {
		if err := tx.UpsertLookupDigest(ctx, store.LookupEmail, Digest(store.LookupEmail, c.Email), c.ID); err != nil {
			return fmt.Errorf("record email digest: %w", err)
		}
	}
	if c.Phone != "" {
		if err := tx.UpsertLookupDigest(ctx, store.LookupPhone, Digest(store.LookupPhone, c.Phone), c.ID); err != nil {
			return fmt.Errorf("record phone digest: %w", err)
		}
	}
	return nil
}

// LookupEmail finds the customer with the given email address.
func (i *Index) LookupEmail(ctx context.Context, email string, forceFast bool) (*model.Customer, Path, error) {
	return i.lookup(ctx, store.LookupEmail, email, forceFast)
}

// LookupPhone finds the customer with the given phone number.
func (i *Index) LookupPhone(ctx context.Context, phone string, forceFast bool) (*model.Customer, Path, error) {
	return i.lookup(ctx, store.LookupPhone, phone, forceFast)
}

func (i *Index) lookup(ctx context.Context, kind store.LookupKind, value string, forceFast bool) (*model.Customer, Path, error) {
	if forceFast || i.Visible() {
		c, err := i.lookupFast(ctx, kind, value)
		if err == nil {
			return c, PathFast, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, PathFast, err
		}
		if forceFast {
			return nil, PathFast, model.ErrNotFound
		}
		// Digest miss with the flag on falls through to the scan so a
		// half-populated side table can never hide a customer.
	}
	c, err := i.lookupScan(ctx, kind, value)
	return c, PathScan, err
}

func (i *Index) lookupFast(ctx context.Context, kind store.LookupKind, value string) (*model.Customer, error) {
	id, err := i.store.GetCustomerIDByDigest(ctx, kind, Digest(kind, value))
	if err != nil {
		return nil, err
	}
	return i.store.GetCustomer(ctx, id)
}

func (i *Index) lookupScan(ctx context.Context, kind store.LookupKind, value string) (*model.Customer, error) {
	var want string
	switch kind {
	case store.LookupEmail:
		want = NormalizeEmail(value)
	case store.LookupPhone:
		want = NormalizePhone(value)
	default:
		return nil, fmt.Errorf("unknown lookup kind %q", kind)
	}

	for offset := 0; ; offset += scanPageSize {
		page, err := i.store.ListCustomers(ctx, scanPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			switch kind {
			case store.LookupEmail:
				if NormalizeEmail(c.Email) == want {
					return c, nil
				}
			case store.LookupPhone:
				if c.Phone != "" && NormalizePhone(c.Phone) == want {
					return c, nil
				}
			}
		}
		if len(page) < scanPageSize {
			return nil, model.ErrNotFound
		}
	}
}
