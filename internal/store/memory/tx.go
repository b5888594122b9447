package memory

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// RunInTransaction stages every write issued by fn and applies the whole
// batch atomically on success. An error from fn discards the stage with no
// trace. Staged rollup deltas are applied through the same sharded locks as
// direct upserts, so same-key commits serialize and cross-key commits do not
// block each other.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx := &txStore{base: s}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

type rollupDelta struct {
	family model.RollupFamily
	key    model.RollupKey
	delta  model.Measures
}

type lookupDelta struct {
	kind       store.LookupKind
	digest     string
	customerID string
}

type partitionStateChange struct {
	start     time.Time
	state     model.PartitionState
	objectKey string
}

// txStore buffers writes until commit. Reads see the pre-transaction base
// state plus this transaction's own staged partitions; hooks never read rows
// they are about to merge, so read-your-writes beyond that is not needed.
type txStore struct {
	base *MemoryStore

	facts           []*model.FactEvent
	rollups         []rollupDelta
	audits          []*model.AuditEntry
	partitions      []*model.Partition
	stateChanges    []partitionStateChange
	items           []*model.Item
	customers       []*model.Customer
	customerUpdates []*model.Customer
	lookups         []lookupDelta
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *MemoryStore) commit(tx *txStore) error {
	s.mu.Lock()

	// Validate the whole stage before touching anything: a commit either
	// applies completely or not at all.
	for _, f := range tx.facts {
		if _, dup := s.factIDs[f.ID]; dup {
			s.mu.Unlock()
			var cv model.ConstraintViolation
			cv.Add("id", "duplicate fact id "+f.ID)
			return &cv
		}
	}
	for _, p := range tx.partitions {
		for _, existing := range s.partitions {
			if existing.Start.Equal(p.Start) {
				continue // created concurrently; the boundary is the dedup key
			}
			if existing.Overlaps(p) {
				s.mu.Unlock()
				return &model.PartitionBoundaryError{
					Start:  p.Start,
					End:    p.End,
					Reason: "range collides with an existing partition",
				}
			}
		}
	}

	for _, p := range tx.partitions {
		if err := s.createPartitionLocked(p); err != nil && !errors.Is(err, store.ErrPartitionExists) {
			s.mu.Unlock()
			return err
		}
	}
	for _, f := range tx.facts {
		if err := s.appendFactLocked(f); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	for _, e := range tx.audits {
		s.recordAuditLocked(e)
	}
	for _, it := range tx.items {
		cp := *it
		s.items[it.ID] = &cp
	}
	for _, c := range tx.customers {
		cp := *c
		s.customers[c.ID] = &cp
	}
	for _, c := range tx.customerUpdates {
		cp := *c
		s.customers[c.ID] = &cp
	}
	for _, l := range tx.lookups {
		m, ok := s.lookup[l.kind]
		if !ok {
			m = make(map[string]string)
			s.lookup[l.kind] = m
		}
		m[l.digest] = l.customerID
	}
	for _, sc := range tx.stateChanges {
		for _, p := range s.partitions {
			if p.Start.Equal(sc.start) {
				p.State = sc.state
				p.UpdatedAt = time.Now().UTC()
				if sc.objectKey != "" {
					p.ObjectKey = sc.objectKey
				}
			}
		}
	}
	// Rollup deltas go through the per-key shard locks while the store lock
	// is still held: a reader that can see the committed fact also sees its
	// deltas. Nothing past the validation can fail, so the batch stays
	// all-or-nothing.
	for _, d := range tx.rollups {
		s.upsertRollup(d.family, d.key, d.delta)
	}
	s.mu.Unlock()
	return nil
}

func (t *txStore) AppendFact(ctx context.Context, event *model.FactEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	cp := *event
	t.facts = append(t.facts, &cp)
	return nil
}

func (t *txStore) ListFacts(ctx context.Context, filter model.FactFilter) ([]*model.FactEvent, error) {
	return t.base.ListFacts(ctx, filter)
}

func (t *txStore) CountFacts(ctx context.Context, from, to time.Time) (int64, error) {
	return t.base.CountFacts(ctx, from, to)
}

func (t *txStore) DeleteFactsInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return t.base.DeleteFactsInRange(ctx, from, to)
}

func (t *txStore) UpsertRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey, delta model.Measures) error {
	t.rollups = append(t.rollups, rollupDelta{family: family, key: key, delta: delta})
	return nil
}

func (t *txStore) GetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) (*model.RollupRow, error) {
	return t.base.GetRollup(ctx, family, key)
}

func (t *txStore) ListRollups(ctx context.Context, family model.RollupFamily, fromKey, toKey model.RollupKey, limit int) ([]*model.RollupRow, error) {
	return t.base.ListRollups(ctx, family, fromKey, toKey, limit)
}

func (t *txStore) ResetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) error {
	return t.base.ResetRollup(ctx, family, key)
}

func (t *txStore) RecordAudit(ctx context.Context, entry *model.AuditEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	cp := *entry
	t.audits = append(t.audits, &cp)
	return nil
}

func (t *txStore) ListAudit(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	return t.base.ListAudit(ctx, filter)
}

func (t *txStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	return t.base.PurgeAudit(ctx, before)
}

func (t *txStore) CreatePartition(ctx context.Context, p *model.Partition) error {
	t.base.mu.RLock()
	for _, existing := range t.base.partitions {
		if existing.Start.Equal(p.Start) {
			t.base.mu.RUnlock()
			return store.ErrPartitionExists
		}
		if existing.Overlaps(p) {
			t.base.mu.RUnlock()
			return &model.PartitionBoundaryError{
				Start:  p.Start,
				End:    p.End,
				Reason: "range collides with an existing partition",
			}
		}
	}
	t.base.mu.RUnlock()

	for _, staged := range t.partitions {
		if staged.Start.Equal(p.Start) {
			return store.ErrPartitionExists
		}
		if staged.Overlaps(p) {
			return &model.PartitionBoundaryError{Start: p.Start, End: p.End, Reason: "range collides with a staged partition"}
		}
	}

	cp := *p
	t.partitions = append(t.partitions, &cp)
	return nil
}

func (t *txStore) GetPartitionAt(ctx context.Context, at time.Time) (*model.Partition, error) {
	for _, staged := range t.partitions {
		if staged.Contains(at) {
			cp := *staged
			return &cp, nil
		}
	}
	return t.base.GetPartitionAt(ctx, at)
}

func (t *txStore) ListPartitions(ctx context.Context) ([]*model.Partition, error) {
	return t.base.ListPartitions(ctx)
}

func (t *txStore) UpdatePartitionState(ctx context.Context, start time.Time, state model.PartitionState, objectKey string) error {
	t.stateChanges = append(t.stateChanges, partitionStateChange{start: start, state: state, objectKey: objectKey})
	return nil
}

func (t *txStore) CreateItem(ctx context.Context, item *model.Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	cp := *item
	t.items = append(t.items, &cp)
	return nil
}

func (t *txStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return t.base.GetItem(ctx, id)
}

func (t *txStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	t.customers = append(t.customers, &cp)
	return nil
}

func (t *txStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return t.base.GetCustomer(ctx, id)
}

func (t *txStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	t.customerUpdates = append(t.customerUpdates, &cp)
	return nil
}

func (t *txStore) ListCustomers(ctx context.Context, limit, offset int) ([]*model.Customer, error) {
	return t.base.ListCustomers(ctx, limit, offset)
}

func (t *txStore) UpsertLookupDigest(ctx context.Context, kind store.LookupKind, digest, customerID string) error {
	t.lookups = append(t.lookups, lookupDelta{kind: kind, digest: digest, customerID: customerID})
	return nil
}

func (t *txStore) GetCustomerIDByDigest(ctx context.Context, kind store.LookupKind, digest string) (string, error) {
	return t.base.GetCustomerIDByDigest(ctx, kind, digest)
}

// RunInTransaction on a txStore reuses the existing stage (no nesting).
func (t *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store.
func (t *txStore) Close() error { return nil }
