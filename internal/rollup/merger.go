package rollup

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// Merger is the write path hook that folds every appended fact into each
// maintained family inside the same transaction as the fact insert.
type Merger struct {
	families []Family
}

// NewMerger builds a merger over the given families. Pass Families() for the
// full maintained set.
func NewMerger(families []Family) *Merger {
	return &Merger{families: families}
}

func (m *Merger) Name() string { return "rollup-merger" }

// OnAppend projects the event onto each family and merges the delta through
// the transactional store. An error from any family aborts the whole append.
func (m *Merger) OnAppend(ctx context.Context, tx store.Store, event *model.FactEvent) error {
	for _, f := range m.families {
		key, delta := f.Project(event)
		if key == "" {
			continue
		}
		if err := tx.UpsertRollup(ctx, f.RollupFamily, key, delta); err != nil {
			return fmt.Errorf("merge %s/%s: %w", f.Name, key, err)
		}
	}
	return nil
}
