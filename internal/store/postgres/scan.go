package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanFact scans a single row into a model.FactEvent.
// The row must contain columns in the order defined by factColumns.
func scanFact(row scannable) (*model.FactEvent, error) {
	var e model.FactEvent
	var actor sql.NullString

	err := row.Scan(
		&e.ID,
		&e.OccurredAt,
		&e.CustomerID,
		&e.ItemID,
		&e.Quantity,
		&e.AmountCents,
		&actor,
		&e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Actor = actor.String
	return &e, nil
}

func scanFacts(rows *sql.Rows) ([]*model.FactEvent, error) {
	var facts []*model.FactEvent
	for rows.Next() {
		e, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, e)
	}
	return facts, rows.Err()
}

// scanRollupRow scans key, the family's declared measure columns in order,
// then updated_at. Int measures scan through sql.NullInt64 and timestamps
// through sql.NullTime so fresh families tolerate NULL columns.
func scanRollupRow(row scannable, family model.RollupFamily) (*model.RollupRow, error) {
	r := model.RollupRow{Family: family.Name}

	var key string
	ints := make([]sql.NullInt64, len(family.Measures))
	times := make([]sql.NullTime, len(family.Measures))

	dest := make([]any, 0, len(family.Measures)+2)
	dest = append(dest, &key)
	for i, spec := range family.Measures {
		if spec.Field == model.FieldLastAt {
			dest = append(dest, &times[i])
		} else {
			dest = append(dest, &ints[i])
		}
	}
	dest = append(dest, &r.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	r.Key = model.RollupKey(key)
	for i, spec := range family.Measures {
		switch spec.Field {
		case model.FieldCount:
			r.Measures.Count = ints[i].Int64
		case model.FieldQuantity:
			r.Measures.Quantity = ints[i].Int64
		case model.FieldTotalCents:
			r.Measures.TotalCents = ints[i].Int64
		case model.FieldMaxCents:
			r.Measures.MaxCents = ints[i].Int64
		case model.FieldLastAt:
			if times[i].Valid {
				r.Measures.LastAt = times[i].Time
			}
		}
	}

	return &r, nil
}

func scanRollupRows(rows *sql.Rows, family model.RollupFamily) ([]*model.RollupRow, error) {
	var out []*model.RollupRow
	for rows.Next() {
		r, err := scanRollupRow(rows, family)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAuditEntry(row scannable) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var before, after []byte

	err := row.Scan(&e.ID, &e.Subject, &e.Action, &before, &after, &e.At)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(before) > 0 {
		e.Before = json.RawMessage(before)
	}
	if len(after) > 0 {
		e.After = json.RawMessage(after)
	}
	return &e, nil
}

func scanAuditEntries(rows *sql.Rows) ([]*model.AuditEntry, error) {
	var out []*model.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanPartition scans a row in partitionColumns order.
func scanPartition(row scannable) (*model.Partition, error) {
	var p model.Partition
	var archivedAt sql.NullTime
	var objectKey sql.NullString

	err := row.Scan(
		&p.Start,
		&p.End,
		&p.State,
		&p.CreatedAt,
		&p.UpdatedAt,
		&archivedAt,
		&objectKey,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if archivedAt.Valid {
		t := archivedAt.Time
		p.ArchivedAt = &t
	}
	p.ObjectKey = objectKey.String
	return &p, nil
}

func scanPartitions(rows *sql.Rows) ([]*model.Partition, error) {
	var out []*model.Partition
	for rows.Next() {
		p, err := scanPartition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanItem(row scannable) (*model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.Name, &it.PriceCents, &it.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func scanCustomer(row scannable) (*model.Customer, error) {
	var c model.Customer
	var email, phone sql.NullString

	err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}

func scanCustomers(rows *sql.Rows) ([]*model.Customer, error) {
	var out []*model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// nullString converts an empty string to a NULL-able value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTimePtr converts a *time.Time to a NULL-able value.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// jsonbBytes converts a json.RawMessage to a value suitable for a JSONB
// column, mapping empty payloads to NULL.
func jsonbBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
