package model

import (
	"time"
)

// PartitionState is the lifecycle state of one ledger partition.
type PartitionState string

const (
	// PartitionPending has a defined boundary but is not yet receiving writes.
	PartitionPending PartitionState = "pending"
	// PartitionActive is where current writes land.
	PartitionActive PartitionState = "active"
	// PartitionAging no longer receives writes but remains queryable.
	PartitionAging PartitionState = "aging"
	// PartitionArchived has been exported to cold storage and purged.
	PartitionArchived PartitionState = "archived"
	// PartitionDropped was purged without an export.
	PartitionDropped PartitionState = "dropped"
)

// String returns the string representation of the state.
func (s PartitionState) String() string {
	return string(s)
}

// IsValid checks whether the state is a known value.
func (s PartitionState) IsValid() bool {
	switch s {
	case PartitionPending, PartitionActive, PartitionAging, PartitionArchived, PartitionDropped:
		return true
	}
	return false
}

// Writable reports whether facts may land in a partition in this state.
func (s PartitionState) Writable() bool {
	return s == PartitionPending || s == PartitionActive
}

// Retired reports whether the partition's data has been purged.
func (s PartitionState) Retired() bool {
	return s == PartitionArchived || s == PartitionDropped
}

// Partition is a bounded, disjoint time range of the fact ledger. Start is
// the natural key: partitions are width-aligned, so two partitions with
// distinct starts can never overlap.
type Partition struct {
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"` // exclusive
	State      PartitionState `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
	ObjectKey  string         `json:"object_key,omitempty"` // cold-storage location once archived
}

// Contains reports whether t falls inside the partition's range.
func (p *Partition) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Overlaps reports whether the ranges of p and q intersect.
func (p *Partition) Overlaps(q *Partition) bool {
	return p.Start.Before(q.End) && q.Start.Before(p.End)
}

// PartitionWidth sets the fixed period covered by each partition.
type PartitionWidth string

const (
	WidthDay   PartitionWidth = "day"
	WidthWeek  PartitionWidth = "week"
	WidthMonth PartitionWidth = "month"
)

// IsValid checks whether the width is a known value.
func (w PartitionWidth) IsValid() bool {
	switch w {
	case WidthDay, WidthWeek, WidthMonth:
		return true
	}
	return false
}

// PeriodStart truncates t to the start of its period in UTC. Weeks start on
// Monday.
func (w PartitionWidth) PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	switch w {
	case WidthWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case WidthMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the period following the one containing t.
func (w PartitionWidth) Next(t time.Time) time.Time {
	start := w.PeriodStart(t)
	switch w {
	case WidthWeek:
		return start.AddDate(0, 0, 7)
	case WidthMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// PeriodFor returns the aligned partition boundaries containing t.
func (w PartitionWidth) PeriodFor(t time.Time) (start, end time.Time) {
	start = w.PeriodStart(t)
	return start, w.Next(t)
}
