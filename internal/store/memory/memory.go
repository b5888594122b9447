// Package memory implements store.Store in process memory. It backs tests and
// local development, and it keeps the same contention profile as the SQL
// store: rollup keys are guarded by sharded fine-grained locks, so writers on
// the same key serialize while writers on different keys proceed in parallel.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

const rollupShards = 32

type rollupEntry struct {
	measures  model.Measures
	updatedAt time.Time
}

type rollupShard struct {
	mu   sync.Mutex
	rows map[string]*rollupEntry // family + "\x00" + key
}

// MemoryStore implements store.Store without external storage.
type MemoryStore struct {
	mu         sync.RWMutex
	facts      []*model.FactEvent
	factIDs    map[string]struct{}
	audit      []*model.AuditEntry
	auditSeq   int64
	partitions []*model.Partition
	items      map[string]*model.Item
	customers  map[string]*model.Customer
	lookup     map[store.LookupKind]map[string]string

	shards [rollupShards]rollupShard
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// New returns an empty in-memory store.
func New() *MemoryStore {
	s := &MemoryStore{
		factIDs:   make(map[string]struct{}),
		items:     make(map[string]*model.Item),
		customers: make(map[string]*model.Customer),
		lookup: map[store.LookupKind]map[string]string{
			store.LookupEmail: {},
			store.LookupPhone: {},
		},
	}
	for i := range s.shards {
		s.shards[i].rows = make(map[string]*rollupEntry)
	}
	return s
}

func rollupKey(family model.RollupFamily, key model.RollupKey) string {
	return family.Name + "\x00" + string(key)
}

func (s *MemoryStore) shardFor(k string) *rollupShard {
	h := fnv.New32a()
	h.Write([]byte(k))
	return &s.shards[h.Sum32()%rollupShards]
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) AppendFact(ctx context.Context, event *model.FactEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendFactLocked(event)
}

func (s *MemoryStore) appendFactLocked(event *model.FactEvent) error {
	if _, dup := s.factIDs[event.ID]; dup {
		var cv model.ConstraintViolation
		cv.Add("id", "duplicate fact id "+event.ID)
		return &cv
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	cp := *event
	s.factIDs[event.ID] = struct{}{}
	s.facts = append(s.facts, &cp)
	return nil
}

func (s *MemoryStore) ListFacts(ctx context.Context, filter model.FactFilter) ([]*model.FactEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.FactEvent
	for _, f := range s.facts {
		if !filter.From.IsZero() && f.OccurredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !f.OccurredAt.Before(filter.To) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountFacts(ctx context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, f := range s.facts {
		if !f.OccurredAt.Before(from) && f.OccurredAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteFactsInRange(ctx context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.facts[:0]
	var deleted int64
	for _, f := range s.facts {
		if !f.OccurredAt.Before(from) && f.OccurredAt.Before(to) {
			delete(s.factIDs, f.ID)
			deleted++
			continue
		}
		kept = append(kept, f)
	}
	s.facts = kept
	return deleted, nil
}

func (s *MemoryStore) UpsertRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey, delta model.Measures) error {
	s.upsertRollup(family, key, delta)
	return nil
}

// upsertRollup is the atomic insert-or-combine: the shard lock covers both
// the existence check and the merge, so two first-writers for a new key
// cannot race past each other.
func (s *MemoryStore) upsertRollup(family model.RollupFamily, key model.RollupKey, delta model.Measures) {
	k := rollupKey(family, key)
	shard := s.shardFor(k)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.rows[k]
	if !ok {
		entry = &rollupEntry{}
		shard.rows[k] = entry
	}
	family.Merge(&entry.measures, delta)
	entry.updatedAt = time.Now().UTC()
}

func (s *MemoryStore) GetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) (*model.RollupRow, error) {
	k := rollupKey(family, key)
	shard := s.shardFor(k)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.rows[k]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &model.RollupRow{
		Family:    family.Name,
		Key:       key,
		Measures:  entry.measures,
		UpdatedAt: entry.updatedAt,
	}, nil
}

func (s *MemoryStore) ListRollups(ctx context.Context, family model.RollupFamily, fromKey, toKey model.RollupKey, limit int) ([]*model.RollupRow, error) {
	prefix := family.Name + "\x00"

	var out []*model.RollupRow
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for k, entry := range shard.rows {
			if len(k) <= len(prefix) || k[:len(prefix)] != prefix {
				continue
			}
			key := model.RollupKey(k[len(prefix):])
			if fromKey != "" && key < fromKey {
				continue
			}
			if toKey != "" && key > toKey {
				continue
			}
			out = append(out, &model.RollupRow{
				Family:    family.Name,
				Key:       key,
				Measures:  entry.measures,
				UpdatedAt: entry.updatedAt,
			})
		}
		shard.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ResetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) error {
	k := rollupKey(family, key)
	shard := s.shardFor(k)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.rows[k]; !ok {
		return model.ErrNotFound
	}
	delete(shard.rows, k)
	return nil
}

func (s *MemoryStore) RecordAudit(ctx context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordAuditLocked(entry)
	return nil
}

func (s *MemoryStore) recordAuditLocked(entry *model.AuditEntry) {
	s.auditSeq++
	entry.ID = s.auditSeq
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	cp := *entry
	s.audit = append(s.audit, &cp)
}

func (s *MemoryStore) ListAudit(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.AuditEntry
	for _, e := range s.audit {
		if filter.Subject != "" && e.Subject != filter.Subject {
			continue
		}
		if !filter.From.IsZero() && e.At.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.At.Before(filter.To) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.audit[:0]
	var purged int64
	for _, e := range s.audit {
		if e.At.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return purged, nil
}

func (s *MemoryStore) CreatePartition(ctx context.Context, p *model.Partition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPartitionLocked(p)
}

func (s *MemoryStore) createPartitionLocked(p *model.Partition) error {
	for _, existing := range s.partitions {
		if existing.Start.Equal(p.Start) {
			return store.ErrPartitionExists
		}
		if existing.Overlaps(p) {
			return &model.PartitionBoundaryError{
				Start:  p.Start,
				End:    p.End,
				Reason: "range collides with an existing partition",
			}
		}
	}

	now := time.Now().UTC()
	cp := *p
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.partitions = append(s.partitions, &cp)
	sort.Slice(s.partitions, func(i, j int) bool {
		return s.partitions[i].Start.Before(s.partitions[j].Start)
	})
	return nil
}

func (s *MemoryStore) GetPartitionAt(ctx context.Context, at time.Time) (*model.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.partitions {
		if p.Contains(at) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *MemoryStore) ListPartitions(ctx context.Context) ([]*model.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Partition, 0, len(s.partitions))
	for _, p := range s.partitions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) UpdatePartitionState(ctx context.Context, start time.Time, state model.PartitionState, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.partitions {
		if p.Start.Equal(start) {
			now := time.Now().UTC()
			p.State = state
			p.UpdatedAt = now
			if objectKey != "" {
				p.ObjectKey = objectKey
			}
			if state.Retired() && p.ArchivedAt == nil {
				at := now
				p.ArchivedAt = &at
			}
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.items[item.ID]; dup {
		var cv model.ConstraintViolation
		cv.Add("id", "duplicate item id "+item.ID)
		return &cv
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.customers[c.ID]; dup {
		var cv model.ConstraintViolation
		cv.Add("id", "duplicate customer id "+c.ID)
		return &cv
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[c.ID]
	if !ok {
		return model.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) ListCustomers(ctx context.Context, limit, offset int) ([]*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*model.Customer, 0, len(ids))
	for _, id := range ids {
		cp := *s.customers[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) UpsertLookupDigest(ctx context.Context, kind store.LookupKind, digest, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.lookup[kind]
	if !ok {
		m = make(map[string]string)
		s.lookup[kind] = m
	}
	m[digest] = customerID
	return nil
}

func (s *MemoryStore) GetCustomerIDByDigest(ctx context.Context, kind store.LookupKind, digest string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.lookup[kind][digest]
	if !ok {
		return "", model.ErrNotFound
	}
	return id, nil
}
