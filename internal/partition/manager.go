// Package partition manages the lifecycle of fact partitions: creating
// periods ahead of the write head, advancing states as time passes, and
// retiring old periods to cold storage.
package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/tally/internal/archive"
	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// Config holds the partition maintenance policy.
type Config struct {
	// Width is the fixed period width for every partition.
	Width model.PartitionWidth
	// Ahead is how many future periods to keep pre-created.
	Ahead int
	// Retention is how long a period stays queryable after it ends before
	// it is retired.
	Retention time.Duration
	// ArchivePrefix prefixes archive object keys.
	ArchivePrefix string
}

// StateChange records one partition transition made by Advance.
type StateChange struct {
	Partition *model.Partition
	From      model.PartitionState
}

// RetireResult records one partition retired by Retire.
type RetireResult struct {
	Partition    *model.Partition
	ObjectKey    string
	FactsDropped int64
}

// Manager drives the partition state machine. A nil destination disables
// archiving; retired partitions are then dropped without an export.
type Manager struct {
	store  store.Store
	cfg    Config
	dest   archive.Destination
	logger *slog.Logger
}

func NewManager(s store.Store, cfg Config, dest archive.Destination, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Ahead < 1 {
		cfg.Ahead = 1
	}
	return &Manager{store: s, cfg: cfg, dest: dest, logger: logger}
}

// EnsureAhead creates the current period plus cfg.Ahead future periods if
// they do not exist yet. Safe to call repeatedly; existing periods are left
// untouched.
func (m *Manager) EnsureAhead(ctx context.Context, now time.Time) ([]*model.Partition, error) {
	now = now.UTC()
	var created []*model.Partition

	start := m.cfg.Width.PeriodStart(now)
	for i := 0; i <= m.cfg.Ahead; i++ {
		state := model.PartitionPending
		if i == 0 {
			state = model.PartitionActive
		}
		p := &model.Partition{
			Start: start,
			End:   m.cfg.Width.Next(start),
			State: state,
		}
		err := m.store.CreatePartition(ctx, p)
		switch {
		case err == nil:
			created = append(created, p)
			m.logger.Info("partition created",
				"start", p.Start.Format(time.RFC3339), "end", p.End.Format(time.RFC3339), "state", p.State)
		case errors.Is(err, store.ErrPartitionExists):
			// Already provisioned.
		default:
			return created, fmt.Errorf("create partition at %s: %w", start.Format(time.RFC3339), err)
		}
		start = m.cfg.Width.Next(start)
	}
	return created, nil
}

// Advance moves pending partitions whose period has arrived to active, and
// active or pending partitions whose period has passed to aging.
func (m *Manager) Advance(ctx context.Context, now time.Time) ([]StateChange, error) {
	now = now.UTC()
	partitions, err := m.store.ListPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	var changes []StateChange
	for _, p := range partitions {
		var next model.PartitionState
		switch {
		case !p.End.After(now) && (p.State == model.PartitionActive || p.State == model.PartitionPending):
			next = model.PartitionAging
		case p.State == model.PartitionPending && p.Contains(now):
			next = model.PartitionActive
		default:
			continue
		}
		from := p.State
		if err := m.store.UpdatePartitionState(ctx, p.Start, next, ""); err != nil {
			return changes, fmt.Errorf("advance partition %s: %w", p.Start.Format(time.RFC3339), err)
		}
		p.State = next
		changes = append(changes, StateChange{Partition: p, From: from})
		m.logger.Info("partition advanced",
			"start", p.Start.Format(time.RFC3339), "from", from, "to", next)
	}
	return changes, nil
}

// Retire archives and purges aging partitions that have aged past the
// retention window. With no destination configured the facts are dropped
// without an export. Rollups are never touched; retiring a period removes
// raw facts only.
func (m *Manager) Retire(ctx context.Context, now time.Time) ([]RetireResult, error) {
	now = now.UTC()
	partitions, err := m.store.ListPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	var results []RetireResult
	for _, p := range partitions {
		if p.State != model.PartitionAging || p.End.After(now.Add(-m.cfg.Retention)) {
			continue
		}
		res, err := m.retireOne(ctx, p)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *Manager) retireOne(ctx context.Context, p *model.Partition) (RetireResult, error) {
	res := RetireResult{Partition: p}

	if m.dest != nil {
		var buf bytes.Buffer
		if err := archive.ExportJSONL(ctx, m.store, p, &buf); err != nil {
			return res, fmt.Errorf("export partition %s: %w", p.Start.Format(time.RFC3339), err)
		}
		key := archive.ObjectKey(m.cfg.ArchivePrefix, p)
		if err := m.dest.Write(ctx, key, buf.Bytes()); err != nil {
			return res, fmt.Errorf("archive partition %s: %w", p.Start.Format(time.RFC3339), err)
		}
		// Mark archived before purging: if the purge fails, the export is
		// still on record and retiring can be retried.
		if err := m.store.UpdatePartitionState(ctx, p.Start, model.PartitionArchived, key); err != nil {
			return res, fmt.Errorf("mark archived %s: %w", p.Start.Format(time.RFC3339), err)
		}
		p.State = model.PartitionArchived
		p.ObjectKey = key
		res.ObjectKey = key
	} else {
		if err := m.store.UpdatePartitionState(ctx, p.Start, model.PartitionDropped, ""); err != nil {
			return res, fmt.Errorf("mark dropped %s: %w", p.Start.Format(time.RFC3339), err)
		}
		p.State = model.PartitionDropped
	}

	dropped, err := m.store.DeleteFactsInRange(ctx, p.Start, p.End)
	if err != nil {
		return res, fmt.Errorf("purge facts %s: %w", p.Start.Format(time.RFC3339), err)
	}
	res.FactsDropped = dropped

	m.logger.Info("partition retired",
		"start", p.Start.Format(time.RFC3339), "state", p.State,
		"object_key", res.ObjectKey, "facts_dropped", dropped)
	return res, nil
}
