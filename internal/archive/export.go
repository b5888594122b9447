// Package archive exports retired partition data to cold storage.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	FactCount int       `json:"fact_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes every fact inside the partition's range as JSONL to w.
// Facts are sorted by occurrence time, then id, so repeated exports of the
// same range produce identical output.
func ExportJSONL(ctx context.Context, s store.Store, p *model.Partition, w io.Writer) error {
	facts, err := s.ListFacts(ctx, model.FactFilter{From: p.Start, To: p.End})
	if err != nil {
		return fmt.Errorf("list facts: %w", err)
	}

	sort.Slice(facts, func(i, j int) bool {
		if !facts[i].OccurredAt.Equal(facts[j].OccurredAt) {
			return facts[i].OccurredAt.Before(facts[j].OccurredAt)
		}
		return facts[i].ID < facts[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: time.Now().UTC(),
		Start:     p.Start,
		End:       p.End,
		FactCount: len(facts),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, f := range facts {
		if err := enc.Encode(record{Type: "fact", Data: f}); err != nil {
			return fmt.Errorf("encode fact %s: %w", f.ID, err)
		}
	}

	return nil
}

// ObjectKey names the archive object for a partition range.
func ObjectKey(prefix string, p *model.Partition) string {
	name := fmt.Sprintf("facts-%s-%s.jsonl", p.Start.Format("20060102"), p.End.Format("20060102"))
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
