// Package audit records who changed what. Fact appends are audited through a
// write path hook so the entry commits or rolls back with the fact itself;
// dimension changes are recorded by the callers that make them.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// Recorder is the hook that writes one audit entry per appended fact.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Name() string { return "audit-recorder" }

// OnAppend serializes the event and records it under the customer subject.
// A failed audit write aborts the append; the ledger is not allowed to move
// ahead of its audit trail.
func (r *Recorder) OnAppend(ctx context.Context, tx store.Store, event *model.FactEvent) error {
	after, err := json.Marshal(event)
	if err != nil {
		return &model.AuditWriteError{Subject: event.CustomerID, Err: err}
	}
	entry := &model.AuditEntry{
		Subject: event.CustomerID,
		Action:  model.ActionFactAppended,
		After:   after,
		At:      event.CreatedAt,
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if err := tx.RecordAudit(ctx, entry); err != nil {
		return &model.AuditWriteError{Subject: event.CustomerID, Err: err}
	}
	return nil
}

// CustomerChange builds the entry for a customer create or update. before is
// nil for creates.
func CustomerChange(action string, before, after *model.Customer) (*model.AuditEntry, error) {
	entry := &model.AuditEntry{
		Subject: after.ID,
		Action:  action,
		At:      time.Now().UTC(),
	}
	if before != nil {
		b, err := json.Marshal(before)
		if err != nil {
			return nil, err
		}
		entry.Before = b
	}
	a, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	entry.After = a
	return entry, nil
}

// Purge removes audit entries older than the retention window and returns
// how many were dropped.
func Purge(ctx context.Context, s store.Store, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return s.PurgeAudit(ctx, cutoff)
}
