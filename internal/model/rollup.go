package model

import (
	"time"
)

// RollupKey addresses one row within a rollup family. Keys are the string
// form of the family's dimension projection (a date, an item id, a customer
// id, or a composite joined with '|').
type RollupKey string

// Measures holds the accumulated values carried by every rollup row. Families
// declare which fields they use and how each one combines; unused fields stay
// zero.
type Measures struct {
	Count      int64     `json:"count"`
	Quantity   int64     `json:"quantity"`
	TotalCents int64     `json:"total_cents"`
	MaxCents   int64     `json:"max_cents"`
	LastAt     time.Time `json:"last_at"`
}

// RollupRow is one mutable aggregate: the fold of every fact that projected
// onto its key, as of the last committed append.
type RollupRow struct {
	Family    string    `json:"family"`
	Key       RollupKey `json:"key"`
	Measures  Measures  `json:"measures"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Combinator names how an incoming measure merges into the stored one.
type Combinator string

const (
	CombineSum  Combinator = "sum"  // stored + incoming
	CombineMax  Combinator = "max"  // greatest(stored, incoming)
	CombineLast Combinator = "last" // incoming wins
)

// IsValid checks whether the combinator is a known value.
func (c Combinator) IsValid() bool {
	switch c {
	case CombineSum, CombineMax, CombineLast:
		return true
	}
	return false
}

// Apply merges an incoming int64 measure into a stored one.
func (c Combinator) Apply(stored, incoming int64) int64 {
	switch c {
	case CombineMax:
		if incoming > stored {
			return incoming
		}
		return stored
	case CombineLast:
		return incoming
	default:
		return stored + incoming
	}
}

// ApplyTime merges an incoming timestamp measure into a stored one.
// Sum is meaningless for timestamps and falls back to last-write-wins.
func (c Combinator) ApplyTime(stored, incoming time.Time) time.Time {
	switch c {
	case CombineMax:
		if incoming.After(stored) {
			return incoming
		}
		return stored
	default:
		return incoming
	}
}

// MeasureField selects one field of Measures in a family declaration.
type MeasureField string

const (
	FieldCount      MeasureField = "count"
	FieldQuantity   MeasureField = "quantity"
	FieldTotalCents MeasureField = "total_cents"
	FieldMaxCents   MeasureField = "max_cents"
	FieldLastAt     MeasureField = "last_at"
)

// MeasureSpec binds one measure field to its storage column and combinator.
type MeasureSpec struct {
	Field   MeasureField
	Column  string
	Combine Combinator
}

// RollupFamily describes one keyed aggregate family: where its rows live and
// how each declared measure accumulates. The rollup package owns the family
// instances and their projections; stores only consume the declaration.
type RollupFamily struct {
	Name      string
	Table     string
	KeyColumn string
	Measures  []MeasureSpec
}

// Merge folds delta into m according to the family's declarations, in place.
func (f RollupFamily) Merge(m *Measures, delta Measures) {
	for _, spec := range f.Measures {
		switch spec.Field {
		case FieldCount:
			m.Count = spec.Combine.Apply(m.Count, delta.Count)
		case FieldQuantity:
			m.Quantity = spec.Combine.Apply(m.Quantity, delta.Quantity)
		case FieldTotalCents:
			m.TotalCents = spec.Combine.Apply(m.TotalCents, delta.TotalCents)
		case FieldMaxCents:
			m.MaxCents = spec.Combine.Apply(m.MaxCents, delta.MaxCents)
		case FieldLastAt:
			m.LastAt = spec.Combine.ApplyTime(m.LastAt, delta.LastAt)
		}
	}
}

// Value extracts the declared field's value from m for storage binding.
// Timestamps are returned as time.Time, everything else as int64.
func (s MeasureSpec) Value(m Measures) any {
	switch s.Field {
	case FieldCount:
		return m.Count
	case FieldQuantity:
		return m.Quantity
	case FieldTotalCents:
		return m.TotalCents
	case FieldMaxCents:
		return m.MaxCents
	case FieldLastAt:
		return m.LastAt
	}
	return nil
}
