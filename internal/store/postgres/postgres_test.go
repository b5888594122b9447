package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// testFamily mirrors the daily rollup declaration without depending on the
// rollup package.
var testFamily = model.RollupFamily{
	Name:      "daily",
	Table:     "rollup_daily",
	KeyColumn: "day",
	Measures: []model.MeasureSpec{
		{Field: model.FieldCount, Column: "order_count", Combine: model.CombineSum},
		{Field: model.FieldTotalCents, Column: "revenue_cents", Combine: model.CombineSum},
		{Field: model.FieldMaxCents, Column: "max_ticket_cents", Combine: model.CombineMax},
		{Field: model.FieldLastAt, Column: "last_order_at", Combine: model.CombineLast},
	},
}

func TestUpsertRollupSQL(t *testing.T) {
	got := upsertRollupSQL(testFamily)
	want := "INSERT INTO rollup_daily (day, order_count, revenue_cents, max_ticket_cents, last_order_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $5, NOW()) " +
		"ON CONFLICT (day) DO UPDATE SET " +
		"order_count = rollup_daily.order_count + EXCLUDED.order_count, " +
		"revenue_cents = rollup_daily.revenue_cents + EXCLUDED.revenue_cents, " +
		"max_ticket_cents = GREATEST(rollup_daily.max_ticket_cents, EXCLUDED.max_ticket_cents), " +
		"last_order_at = EXCLUDED.last_order_at, " +
		"updated_at = NOW()"
	if got != want {
		t.Errorf("upsertRollupSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestQueryUpsertRollup(t *testing.T) {
	db, mock := newMockDB(t)

	last := time.Date(2026, 3, 1, 20, 15, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(upsertRollupSQL(testFamily))).
		WithArgs("2026-03-01", int64(1), int64(2450), int64(2450), last).
		WillReturnResult(sqlmock.NewResult(0, 1))

	delta := model.Measures{Count: 1, TotalCents: 2450, MaxCents: 2450, LastAt: last}
	if err := queryUpsertRollup(context.Background(), db, testFamily, "2026-03-01", delta); err != nil {
		t.Fatalf("queryUpsertRollup: %v", err)
	}
}

func TestQueryGetRollup(t *testing.T) {
	db, mock := newMockDB(t)

	updated := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	last := updated.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"day", "order_count", "revenue_cents", "max_ticket_cents", "last_order_at", "updated_at"}).
		AddRow("2026-03-01", 3, 6000, 3000, last, updated)
	mock.ExpectQuery(`SELECT day, order_count, revenue_cents, max_ticket_cents, last_order_at, updated_at FROM rollup_daily WHERE day = \$1`).
		WithArgs("2026-03-01").
		WillReturnRows(rows)

	r, err := queryGetRollup(context.Background(), db, testFamily, "2026-03-01")
	if err != nil {
		t.Fatalf("queryGetRollup: %v", err)
	}
	if r.Measures.Count != 3 || r.Measures.TotalCents != 6000 || r.Measures.MaxCents != 3000 {
		t.Errorf("measures = %+v", r.Measures)
	}
	if !r.Measures.LastAt.Equal(last) {
		t.Errorf("LastAt = %v, want %v", r.Measures.LastAt, last)
	}
	if r.Family != "daily" || r.Key != "2026-03-01" {
		t.Errorf("row identity = %s[%s]", r.Family, r.Key)
	}
}

func TestQueryGetRollup_NullMeasures(t *testing.T) {
	db, mock := newMockDB(t)

	updated := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"day", "order_count", "revenue_cents", "max_ticket_cents", "last_order_at", "updated_at"}).
		AddRow("2026-03-01", nil, nil, nil, nil, updated)
	mock.ExpectQuery(`SELECT .+ FROM rollup_daily WHERE day = \$1`).
		WithArgs("2026-03-01").
		WillReturnRows(rows)

	r, err := queryGetRollup(context.Background(), db, testFamily, "2026-03-01")
	if err != nil {
		t.Fatalf("queryGetRollup: %v", err)
	}
	if r.Measures.Count != 0 || !r.Measures.LastAt.IsZero() {
		t.Errorf("NULL measures should scan to zero values, got %+v", r.Measures)
	}
}

func TestQueryGetRollup_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM rollup_daily WHERE day = \$1`).
		WithArgs("2026-03-02").
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetRollup(context.Background(), db, testFamily, "2026-03-02")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryAppendFact(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO facts .+ RETURNING created_at`).
		WithArgs("ft-abc", now, "cus-1", "itm-1", int64(2), int64(2450), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	e := &model.FactEvent{
		ID: "ft-abc", OccurredAt: now, CustomerID: "cus-1", ItemID: "itm-1",
		Quantity: 2, AmountCents: 2450,
	}
	if err := queryAppendFact(context.Background(), db, e); err != nil {
		t.Fatalf("queryAppendFact: %v", err)
	}
	if !e.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, now)
	}
}

func TestQueryCreatePartition(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	p := &model.Partition{Start: start, End: end, State: model.PartitionPending}

	t.Run("created", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`INSERT INTO partitions`).
			WithArgs(start, end, "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := queryCreatePartition(context.Background(), db, p); err != nil {
			t.Fatalf("queryCreatePartition: %v", err)
		}
	})

	t.Run("same boundary is idempotent", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`INSERT INTO partitions`).
			WithArgs(start, end, "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT state FROM partitions WHERE start_at = \$1`).
			WithArgs(start).
			WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("active"))

		err := queryCreatePartition(context.Background(), db, p)
		if !errors.Is(err, store.ErrPartitionExists) {
			t.Errorf("err = %v, want ErrPartitionExists", err)
		}
	})

	t.Run("lost insert race maps to ErrPartitionExists", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`INSERT INTO partitions`).
			WithArgs(start, end, "pending").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "partitions_pkey"})

		err := queryCreatePartition(context.Background(), db, p)
		if !errors.Is(err, store.ErrPartitionExists) {
			t.Errorf("err = %v, want ErrPartitionExists", err)
		}
	})

	t.Run("range collision is rejected", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`INSERT INTO partitions`).
			WithArgs(start, end, "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT state FROM partitions WHERE start_at = \$1`).
			WithArgs(start).
			WillReturnError(sql.ErrNoRows)

		err := queryCreatePartition(context.Background(), db, p)
		var pbe *model.PartitionBoundaryError
		if !errors.As(err, &pbe) {
			t.Errorf("err = %v, want *model.PartitionBoundaryError", err)
		}
	})
}

func TestQueryListAudit_FilterBuilding(t *testing.T) {
	db, mock := newMockDB(t)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	at := from.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"id", "subject", "action", "before_state", "after_state", "at"}).
		AddRow(7, "cus-1", "fact.appended", nil, []byte(`{"id":"ft-1"}`), at)
	mock.ExpectQuery(`SELECT id, subject, action, before_state, after_state, at FROM audit_log WHERE subject = \$1 AND at >= \$2 AND at < \$3 ORDER BY id ASC LIMIT \$4`).
		WithArgs("cus-1", from, to, 10).
		WillReturnRows(rows)

	entries, err := queryListAudit(context.Background(), db, model.AuditFilter{
		Subject: "cus-1", From: from, To: to, Limit: 10,
	})
	if err != nil {
		t.Fatalf("queryListAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID != 7 || entries[0].Action != "fact.appended" {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].Before != nil {
		t.Errorf("Before should stay nil for NULL column")
	}
}

func TestRunInTransaction_CommitAndRollback(t *testing.T) {
	t.Run("commit on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := &PostgresStore{db: db}

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM audit_log WHERE at < \$1`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
			_, err := tx.PurgeAudit(context.Background(), time.Now())
			return err
		})
		if err != nil {
			t.Fatalf("RunInTransaction: %v", err)
		}
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := &PostgresStore{db: db}

		mock.ExpectBegin()
		mock.ExpectRollback()

		wantErr := errors.New("hook failed")
		err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
			return wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Errorf("err = %v, want %v", err, wantErr)
		}
	})
}

func TestClassifyTxError(t *testing.T) {
	serialization := &pq.Error{Code: "40001"}
	var cc *model.ConcurrencyConflict
	if !errors.As(classifyTxError(serialization), &cc) {
		t.Error("40001 should classify as ConcurrencyConflict")
	}
	deadlock := &pq.Error{Code: "40P01"}
	if !errors.As(classifyTxError(deadlock), &cc) {
		t.Error("40P01 should classify as ConcurrencyConflict")
	}
	other := errors.New("boom")
	if got := classifyTxError(other); got != other {
		t.Errorf("unrelated errors must pass through, got %v", got)
	}
}

func TestScanHelpers(t *testing.T) {
	// nullString
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("hello"); !ns.Valid || ns.String != "hello" {
		t.Errorf("nullString(\"hello\") = %v", ns)
	}

	// nullTimePtr
	if nullTimePtr(nil).Valid {
		t.Error("nullTimePtr(nil) should be invalid")
	}
	now := time.Now()
	if nt := nullTimePtr(&now); !nt.Valid || !nt.Time.Equal(now) {
		t.Errorf("nullTimePtr(now) = %v", nt)
	}

	// jsonbBytes
	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	if jsonbBytes(json.RawMessage{}) != nil {
		t.Error("jsonbBytes({}) should be nil")
	}
	input := json.RawMessage(`{"key":"value"}`)
	if string(jsonbBytes(input)) != `{"key":"value"}` {
		t.Errorf("jsonbBytes round trip = %q", jsonbBytes(input))
	}
}

func TestQueryGetPartitionAt(t *testing.T) {
	db, mock := newMockDB(t)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"start_at", "end_at", "state", "created_at", "updated_at", "archived_at", "object_key"}).
		AddRow(start, end, "active", now, now, nil, nil)
	mock.ExpectQuery(`SELECT .+ FROM partitions\s+WHERE start_at <= \$1 AND end_at > \$1`).
		WithArgs(start.Add(36 * time.Hour)).
		WillReturnRows(rows)

	p, err := queryGetPartitionAt(context.Background(), db, start.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("queryGetPartitionAt: %v", err)
	}
	if p.State != model.PartitionActive || !p.Start.Equal(start) {
		t.Errorf("partition = %+v", p)
	}
	if p.ArchivedAt != nil || p.ObjectKey != "" {
		t.Errorf("nullable fields should stay zero, got %+v", p)
	}
}
