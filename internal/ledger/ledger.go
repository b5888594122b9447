// Package ledger owns the append-only fact stream and the write path hooks
// that run inside every append transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/tally/internal/idgen"
	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// Hook runs inside the append transaction, after the fact row is inserted.
// Hooks fire in registration order; an error from any hook rolls the whole
// transaction back, fact included.
type Hook interface {
	Name() string
	OnAppend(ctx context.Context, tx store.Store, event *model.FactEvent) error
}

// PartitionMode controls what happens when a fact lands outside every
// existing partition.
type PartitionMode string

const (
	// PartitionOnDemand creates the covering partition inside the append
	// transaction.
	PartitionOnDemand PartitionMode = "on_demand"
	// PartitionStrict rejects the append with a boundary error.
	PartitionStrict PartitionMode = "strict"
)

// maxAppendRetries bounds how many times an append is retried after a
// serialization conflict before the error is returned to the caller.
const maxAppendRetries = 3

type Ledger struct {
	store  store.Store
	hooks  []Hook
	width  model.PartitionWidth
	mode   PartitionMode
	logger *slog.Logger
}

func New(s store.Store, width model.PartitionWidth, mode PartitionMode, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, width: width, mode: mode, logger: logger}
}

// Register adds a hook to the end of the dispatch order.
func (l *Ledger) Register(h Hook) {
	l.hooks = append(l.hooks, h)
}

// Append validates the event, assigns an id if missing, and commits the fact
// together with every hook's writes in one transaction. Serialization
// conflicts are retried with the same event, so retries stay idempotent from
// the caller's point of view.
func (l *Ledger) Append(ctx context.Context, event *model.FactEvent) (*model.FactEvent, error) {
	if err := model.ValidateFact(event); err != nil {
		return nil, err
	}
	if event.ID == "" {
		id, err := idgen.Fact()
		if err != nil {
			return nil, fmt.Errorf("generating fact id: %w", err)
		}
		event.ID = id
	}
	event.OccurredAt = event.OccurredAt.UTC()

	var committed model.FactEvent
	var err error
	for attempt := 0; ; attempt++ {
		err = l.store.RunInTransaction(ctx, func(tx store.Store) error {
			return l.appendInTx(ctx, tx, event, &committed)
		})
		var conflict *model.ConcurrencyConflict
		if err == nil || !errors.As(err, &conflict) || attempt+1 >= maxAppendRetries {
			break
		}
		l.logger.Warn("append conflict, retrying",
			"fact_id", event.ID, "attempt", attempt+1, "resource", conflict.Resource)
	}
	if err != nil {
		return nil, err
	}
	return &committed, nil
}

func (l *Ledger) appendInTx(ctx context.Context, tx store.Store, event *model.FactEvent, committed *model.FactEvent) error {
	if err := l.checkDimensions(ctx, tx, event); err != nil {
		return err
	}
	if err := l.resolvePartition(ctx, tx, event.OccurredAt); err != nil {
		return err
	}

	fact := *event
	if err := tx.AppendFact(ctx, &fact); err != nil {
		return err
	}

	// Hooks see the committed row, timestamps included, but each gets its
	// own copy so one hook cannot leak mutations into the next.
	for _, h := range l.hooks {
		snapshot := fact
		if err := h.OnAppend(ctx, tx, &snapshot); err != nil {
			return fmt.Errorf("hook %s: %w", h.Name(), err)
		}
	}

	*committed = fact
	return nil
}

// checkDimensions rejects facts that reference unknown customers or items.
func (l *Ledger) checkDimensions(ctx context.Context, tx store.Store, event *model.FactEvent) error {
	var cv model.ConstraintViolation
	if _, err := tx.GetItem(ctx, event.ItemID); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		cv.Add("item_id", "unknown item "+event.ItemID)
	}
	if _, err := tx.GetCustomer(ctx, event.CustomerID); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		cv.Add("customer_id", "unknown customer "+event.CustomerID)
	}
	if cv.HasErrors() {
		return &cv
	}
	return nil
}

// resolvePartition ensures a writable partition covers the event timestamp.
func (l *Ledger) resolvePartition(ctx context.Context, tx store.Store, at time.Time) error {
	p, err := tx.GetPartitionAt(ctx, at)
	if errors.Is(err, model.ErrNotFound) {
		if l.mode == PartitionStrict {
			start, end := l.width.PeriodFor(at)
			return &model.PartitionBoundaryError{
				At:     at,
				Start:  start,
				End:    end,
				Reason: "no partition covers this timestamp",
			}
		}
		return l.createOnDemand(ctx, tx, at)
	}
	if err != nil {
		return err
	}
	if !p.State.Writable() {
		return &model.PartitionBoundaryError{
			At:     at,
			Start:  p.Start,
			End:    p.End,
			Reason: fmt.Sprintf("partition is %s and no longer accepts writes", p.State),
		}
	}
	return nil
}

func (l *Ledger) createOnDemand(ctx context.Context, tx store.Store, at time.Time) error {
	start, end := l.width.PeriodFor(at)
	state := model.PartitionPending
	if now := time.Now().UTC(); !now.Before(start) && now.Before(end) {
		state = model.PartitionActive
	}
	p := &model.Partition{Start: start, End: end, State: state}
	err := tx.CreatePartition(ctx, p)
	if errors.Is(err, store.ErrPartitionExists) {
		// Lost the race; the winner's partition covers us.
		return nil
	}
	if err != nil {
		return err
	}
	l.logger.Info("partition created on demand",
		"start", p.Start.Format(time.RFC3339), "end", p.End.Format(time.RFC3339), "state", p.State)
	return nil
}

// Facts returns raw facts matching the filter, newest first per the store's
// ordering contract.
func (l *Ledger) Facts(ctx context.Context, filter model.FactFilter) ([]*model.FactEvent, error) {
	return l.store.ListFacts(ctx, filter)
}
