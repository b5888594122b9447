package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// factColumns is the column list used for SELECT statements on the facts table.
const factColumns = `id, occurred_at, customer_id, item_id, quantity, amount_cents, actor, created_at`

// partitionColumns is the column list for SELECT statements on the partitions table.
const partitionColumns = `start_at, end_at, state, created_at, updated_at, archived_at, object_key`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryAppendFact(ctx context.Context, db executor, e *model.FactEvent) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO facts (id, occurred_at, customer_id, item_id, quantity, amount_cents, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		e.ID,
		e.OccurredAt,
		e.CustomerID,
		e.ItemID,
		e.Quantity,
		e.AmountCents,
		nullString(e.Actor),
	).Scan(&e.CreatedAt)
}

func queryListFacts(ctx context.Context, db executor, filter model.FactFilter) ([]*model.FactEvent, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if !filter.From.IsZero() {
		whereClauses = append(whereClauses, "occurred_at >= "+nextArg())
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		whereClauses = append(whereClauses, "occurred_at < "+nextArg())
		args = append(args, filter.To)
	}

	query := `SELECT ` + factColumns + ` FROM facts`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func queryCountFacts(ctx context.Context, db executor, from, to time.Time) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM facts WHERE occurred_at >= $1 AND occurred_at < $2`,
		from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count facts: %w", err)
	}
	return n, nil
}

func queryDeleteFactsInRange(ctx context.Context, db executor, from, to time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM facts WHERE occurred_at >= $1 AND occurred_at < $2`,
		from, to,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// upsertRollupSQL builds the single-statement insert-or-combine for a family.
// The statement is atomic: the row-level outcome is decided by the database,
// never by a read-then-branch in Go.
func upsertRollupSQL(family model.RollupFamily) string {
	cols := make([]string, 0, len(family.Measures)+2)
	placeholders := make([]string, 0, len(family.Measures)+1)
	updates := make([]string, 0, len(family.Measures)+1)

	cols = append(cols, family.KeyColumn)
	placeholders = append(placeholders, "$1")

	for i, spec := range family.Measures {
		cols = append(cols, spec.Column)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))

		qualified := family.Table + "." + spec.Column
		switch spec.Combine {
		case model.CombineMax:
			updates = append(updates, fmt.Sprintf("%s = GREATEST(%s, EXCLUDED.%s)", spec.Column, qualified, spec.Column))
		case model.CombineLast:
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", spec.Column, spec.Column))
		default: // sum
			updates = append(updates, fmt.Sprintf("%s = %s + EXCLUDED.%s", spec.Column, qualified, spec.Column))
		}
	}

	cols = append(cols, "updated_at")
	placeholders = append(placeholders, "NOW()")
	updates = append(updates, "updated_at = NOW()")

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		family.Table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		family.KeyColumn,
		strings.Join(updates, ", "),
	)
}

func queryUpsertRollup(ctx context.Context, db executor, family model.RollupFamily, key model.RollupKey, delta model.Measures) error {
	args := make([]any, 0, len(family.Measures)+1)
	args = append(args, string(key))
	for _, spec := range family.Measures {
		args = append(args, spec.Value(delta))
	}

	if _, err := db.ExecContext(ctx, upsertRollupSQL(family), args...); err != nil {
		return fmt.Errorf("upsert rollup %s[%s]: %w", family.Name, key, err)
	}
	return nil
}

func rollupSelectColumns(family model.RollupFamily) string {
	cols := make([]string, 0, len(family.Measures)+2)
	cols = append(cols, family.KeyColumn)
	for _, spec := range family.Measures {
		cols = append(cols, spec.Column)
	}
	cols = append(cols, "updated_at")
	return strings.Join(cols, ", ")
}

func queryGetRollup(ctx context.Context, db executor, family model.RollupFamily, key model.RollupKey) (*model.RollupRow, error) {
	row := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", rollupSelectColumns(family), family.Table, family.KeyColumn),
		string(key),
	)
	return scanRollupRow(row, family)
}

func queryListRollups(ctx context.Context, db executor, family model.RollupFamily, fromKey, toKey model.RollupKey, limit int) ([]*model.RollupRow, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if fromKey != "" {
		whereClauses = append(whereClauses, family.KeyColumn+" >= "+nextArg())
		args = append(args, string(fromKey))
	}
	if toKey != "" {
		whereClauses = append(whereClauses, family.KeyColumn+" <= "+nextArg())
		args = append(args, string(toKey))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", rollupSelectColumns(family), family.Table)
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY " + family.KeyColumn + " ASC"
	if limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rollups %s: %w", family.Name, err)
	}
	defer rows.Close()
	return scanRollupRows(rows, family)
}

func queryResetRollup(ctx context.Context, db executor, family model.RollupFamily, key model.RollupKey) error {
	res, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1", family.Table, family.KeyColumn),
		string(key),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func queryRecordAudit(ctx context.Context, db executor, e *model.AuditEntry) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO audit_log (subject, action, before_state, after_state, at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.Subject,
		e.Action,
		jsonbBytes(e.Before),
		jsonbBytes(e.After),
		e.At,
	).Scan(&e.ID)
}

func queryListAudit(ctx context.Context, db executor, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Subject != "" {
		whereClauses = append(whereClauses, "subject = "+nextArg())
		args = append(args, filter.Subject)
	}
	if !filter.From.IsZero() {
		whereClauses = append(whereClauses, "at >= "+nextArg())
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		whereClauses = append(whereClauses, "at < "+nextArg())
		args = append(args, filter.To)
	}

	query := `SELECT id, subject, action, before_state, after_state, at FROM audit_log`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	// The serial id is the commit order within a subject.
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func queryPurgeAudit(ctx context.Context, db executor, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM audit_log WHERE at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func queryCreatePartition(ctx context.Context, db executor, p *model.Partition) error {
	// The NOT EXISTS guard rejects any colliding range; the primary key on
	// start_at is the dedup key for repeated ensure runs.
	res, err := db.ExecContext(ctx, `
		INSERT INTO partitions (start_at, end_at, state)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM partitions WHERE start_at < $2 AND end_at > $1
		)`,
		p.Start, p.End, string(p.State),
	)
	if err != nil {
		// A concurrent create can pass the NOT EXISTS subquery under READ
		// COMMITTED and then hit the start_at primary key. That loss is the
		// same outcome as the idempotent path below: the winner's partition
		// covers the range.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return store.ErrPartitionExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing inserted: same boundary (idempotent ensure) or a real collision.
	var state string
	err = db.QueryRowContext(ctx, `SELECT state FROM partitions WHERE start_at = $1`, p.Start).Scan(&state)
	if err == nil {
		return store.ErrPartitionExists
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check partition: %w", err)
	}
	return &model.PartitionBoundaryError{
		Start:  p.Start,
		End:    p.End,
		Reason: fmt.Sprintf("range [%s, %s) collides with an existing partition", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02")),
	}
}

func queryGetPartitionAt(ctx context.Context, db executor, at time.Time) (*model.Partition, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+partitionColumns+` FROM partitions
		WHERE start_at <= $1 AND end_at > $1`,
		at,
	)
	return scanPartition(row)
}

func queryListPartitions(ctx context.Context, db executor) ([]*model.Partition, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+partitionColumns+` FROM partitions ORDER BY start_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()
	return scanPartitions(rows)
}

func queryUpdatePartitionState(ctx context.Context, db executor, start time.Time, state model.PartitionState, objectKey string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE partitions SET
			state = $2,
			object_key = COALESCE(NULLIF($3, ''), object_key),
			archived_at = CASE WHEN $2 IN ('archived', 'dropped') THEN NOW() ELSE archived_at END,
			updated_at = NOW()
		WHERE start_at = $1`,
		start, string(state), objectKey,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func queryCreateItem(ctx context.Context, db executor, it *model.Item) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO items (id, name, price_cents)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		it.ID, it.Name, it.PriceCents,
	).Scan(&it.CreatedAt)
}

func queryGetItem(ctx context.Context, db executor, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, created_at FROM items WHERE id = $1`, id)
	return scanItem(row)
}

func queryCreateCustomer(ctx context.Context, db executor, c *model.Customer) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, nullString(c.Email), nullString(c.Phone),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func queryGetCustomer(ctx context.Context, db executor, id string) (*model.Customer, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func queryUpdateCustomer(ctx context.Context, db executor, c *model.Customer) error {
	err := db.QueryRowContext(ctx, `
		UPDATE customers SET
			name = $2,
			email = $3,
			phone = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, nullString(c.Email), nullString(c.Phone),
	).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.ErrNotFound
	}
	return err
}

func queryListCustomers(ctx context.Context, db executor, limit, offset int) ([]*model.Customer, error) {
	var (
		args   []any
		argIdx int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	query := `SELECT id, name, email, phone, created_at, updated_at FROM customers ORDER BY id ASC`
	if limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, limit)
	}
	if offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func queryUpsertLookupDigest(ctx context.Context, db executor, kind store.LookupKind, digest, customerID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO customer_lookup (kind, digest, customer_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, digest) DO UPDATE SET customer_id = EXCLUDED.customer_id`,
		string(kind), digest, customerID,
	)
	return err
}

func queryGetCustomerIDByDigest(ctx context.Context, db executor, kind store.LookupKind, digest string) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, `
		SELECT customer_id FROM customer_lookup WHERE kind = $1 AND digest = $2`,
		string(kind), digest,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
