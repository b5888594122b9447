// Package store defines the persistence interface for the tally ledger.
package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
)

// LookupKind names a PII column covered by the digest side table.
type LookupKind string

const (
	LookupEmail LookupKind = "email"
	LookupPhone LookupKind = "phone"
)

// Store is the persistence interface for facts, rollups, audit entries,
// partitions, and dimension rows. Implementations must make RunInTransaction
// atomic: either every write inside fn commits, or none do.
type Store interface {
	// Facts. AppendFact inserts one immutable event; facts are never updated.
	AppendFact(ctx context.Context, event *model.FactEvent) error
	ListFacts(ctx context.Context, filter model.FactFilter) ([]*model.FactEvent, error)
	CountFacts(ctx context.Context, from, to time.Time) (int64, error)
	// DeleteFactsInRange purges facts owned by a retired partition.
	DeleteFactsInRange(ctx context.Context, from, to time.Time) (int64, error)

	// Rollups. UpsertRollup is a single atomic insert-or-combine: concurrent
	// calls for the same key serialize, different keys do not block each other.
	UpsertRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey, delta model.Measures) error
	GetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) (*model.RollupRow, error)
	// ListRollups range-scans by key; keys sort lexicographically, which for
	// the daily family means date order.
	ListRollups(ctx context.Context, family model.RollupFamily, fromKey, toKey model.RollupKey, limit int) ([]*model.RollupRow, error)
	// ResetRollup is the only deletion path for a rollup row.
	ResetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) error

	// Audit. RecordAudit appends; nothing updates or deletes entries except
	// PurgeAudit, the explicitly-invoked retention path.
	RecordAudit(ctx context.Context, entry *model.AuditEntry) error
	ListAudit(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)

	// Partitions. CreatePartition returns ErrPartitionExists when a partition
	// with the same start already exists, and a *model.PartitionBoundaryError
	// when the range would collide with a differently-aligned row.
	CreatePartition(ctx context.Context, p *model.Partition) error
	GetPartitionAt(ctx context.Context, at time.Time) (*model.Partition, error)
	ListPartitions(ctx context.Context) ([]*model.Partition, error)
	UpdatePartitionState(ctx context.Context, start time.Time, state model.PartitionState, objectKey string) error

	// Dimensions.
	CreateItem(ctx context.Context, item *model.Item) error
	GetItem(ctx context.Context, id string) (*model.Item, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	ListCustomers(ctx context.Context, limit, offset int) ([]*model.Customer, error)

	// PII lookup side table (the fast path for equality lookups).
	UpsertLookupDigest(ctx context.Context, kind LookupKind, digest, customerID string) error
	GetCustomerIDByDigest(ctx context.Context, kind LookupKind, digest string) (string, error)

	// RunInTransaction runs fn against a transaction-scoped Store and commits
	// on success or rolls back on error.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle.
	Close() error
}
