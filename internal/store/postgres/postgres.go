// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) AppendFact(ctx context.Context, event *model.FactEvent) error {
	return queryAppendFact(ctx, s.db, event)
}

func (s *PostgresStore) ListFacts(ctx context.Context, filter model.FactFilter) ([]*model.FactEvent, error) {
	return queryListFacts(ctx, s.db, filter)
}

func (s *PostgresStore) CountFacts(ctx context.Context, from, to time.Time) (int64, error) {
	return queryCountFacts(ctx, s.db, from, to)
}

func (s *PostgresStore) DeleteFactsInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return queryDeleteFactsInRange(ctx, s.db, from, to)
}

func (s *PostgresStore) UpsertRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey, delta model.Measures) error {
	return queryUpsertRollup(ctx, s.db, family, key, delta)
}

func (s *PostgresStore) GetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) (*model.RollupRow, error) {
	return queryGetRollup(ctx, s.db, family, key)
}

func (s *PostgresStore) ListRollups(ctx context.Context, family model.RollupFamily, fromKey, toKey model.RollupKey, limit int) ([]*model.RollupRow, error) {
	return queryListRollups(ctx, s.db, family, fromKey, toKey, limit)
}

func (s *PostgresStore) ResetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) error {
	return queryResetRollup(ctx, s.db, family, key)
}

func (s *PostgresStore) RecordAudit(ctx context.Context, entry *model.AuditEntry) error {
	return queryRecordAudit(ctx, s.db, entry)
}

func (s *PostgresStore) ListAudit(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	return queryListAudit(ctx, s.db, filter)
}

func (s *PostgresStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	return queryPurgeAudit(ctx, s.db, before)
}

func (s *PostgresStore) CreatePartition(ctx context.Context, p *model.Partition) error {
	return queryCreatePartition(ctx, s.db, p)
}

func (s *PostgresStore) GetPartitionAt(ctx context.Context, at time.Time) (*model.Partition, error) {
	return queryGetPartitionAt(ctx, s.db, at)
}

func (s *PostgresStore) ListPartitions(ctx context.Context) ([]*model.Partition, error) {
	return queryListPartitions(ctx, s.db)
}

func (s *PostgresStore) UpdatePartitionState(ctx context.Context, start time.Time, state model.PartitionState, objectKey string) error {
	return queryUpdatePartitionState(ctx, s.db, start, state, objectKey)
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *model.Item) error {
	return queryCreateItem(ctx, s.db, item)
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return queryGetItem(ctx, s.db, id)
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	return queryCreateCustomer(ctx, s.db, c)
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return queryGetCustomer(ctx, s.db, id)
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	return queryUpdateCustomer(ctx, s.db, c)
}

func (s *PostgresStore) ListCustomers(ctx context.Context, limit, offset int) ([]*model.Customer, error) {
	return queryListCustomers(ctx, s.db, limit, offset)
}

func (s *PostgresStore) UpsertLookupDigest(ctx context.Context, kind store.LookupKind, digest, customerID string) error {
	return queryUpsertLookupDigest(ctx, s.db, kind, digest, customerID)
}

func (s *PostgresStore) GetCustomerIDByDigest(ctx context.Context, kind store.LookupKind, digest string) (string, error) {
	return queryGetCustomerIDByDigest(ctx, s.db, kind, digest)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
// Serialization failures and deadlocks surface as *model.ConcurrencyConflict
// so the append path can retry them.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return classifyTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyTxError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// classifyTxError maps retryable PostgreSQL error codes (serialization
// failure, deadlock) onto *model.ConcurrencyConflict.
func classifyTxError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return &model.ConcurrencyConflict{Resource: "transaction", Err: err}
		}
	}
	return err
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) AppendFact(ctx context.Context, event *model.FactEvent) error {
	return queryAppendFact(ctx, s.tx, event)
}

func (s *txStore) ListFacts(ctx context.Context, filter model.FactFilter) ([]*model.FactEvent, error) {
	return queryListFacts(ctx, s.tx, filter)
}

func (s *txStore) CountFacts(ctx context.Context, from, to time.Time) (int64, error) {
	return queryCountFacts(ctx, s.tx, from, to)
}

func (s *txStore) DeleteFactsInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return queryDeleteFactsInRange(ctx, s.tx, from, to)
}

func (s *txStore) UpsertRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey, delta model.Measures) error {
	return queryUpsertRollup(ctx, s.tx, family, key, delta)
}

func (s *txStore) GetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) (*model.RollupRow, error) {
	return queryGetRollup(ctx, s.tx, family, key)
}

func (s *txStore) ListRollups(ctx context.Context, family model.RollupFamily, fromKey, toKey model.RollupKey, limit int) ([]*model.RollupRow, error) {
	return queryListRollups(ctx, s.tx, family, fromKey, toKey, limit)
}

func (s *txStore) ResetRollup(ctx context.Context, family model.RollupFamily, key model.RollupKey) error {
	return queryResetRollup(ctx, s.tx, family, key)
}

func (s *txStore) RecordAudit(ctx context.Context, entry *model.AuditEntry) error {
	return queryRecordAudit(ctx, s.tx, entry)
}

func (s *txStore) ListAudit(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	return queryListAudit(ctx, s.tx, filter)
}

func (s *txStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	return queryPurgeAudit(ctx, s.tx, before)
}

func (s *txStore) CreatePartition(ctx context.Context, p *model.Partition) error {
	return queryCreatePartition(ctx, s.tx, p)
}

func (s *txStore) GetPartitionAt(ctx context.Context, at time.Time) (*model.Partition, error) {
	return queryGetPartitionAt(ctx, s.tx, at)
}

func (s *txStore) ListPartitions(ctx context.Context) ([]*model.Partition, error) {
	return queryListPartitions(ctx, s.tx)
}

func (s *txStore) UpdatePartitionState(ctx context.Context, start time.Time, state model.PartitionState, objectKey string) error {
	return queryUpdatePartitionState(ctx, s.tx, start, state, objectKey)
}

func (s *txStore) CreateItem(ctx context.Context, item *model.Item) error {
	return queryCreateItem(ctx, s.tx, item)
}

func (s *txStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return queryGetItem(ctx, s.tx, id)
}

func (s *txStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	return queryCreateCustomer(ctx, s.tx, c)
}

func (s *txStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return queryGetCustomer(ctx, s.tx, id)
}

func (s *txStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	return queryUpdateCustomer(ctx, s.tx, c)
}

func (s *txStore) ListCustomers(ctx context.Context, limit, offset int) ([]*model.Customer, error) {
	return queryListCustomers(ctx, s.tx, limit, offset)
}

func (s *txStore) UpsertLookupDigest(ctx context.Context, kind store.LookupKind, digest, customerID string) error {
	return queryUpsertLookupDigest(ctx, s.tx, kind, digest, customerID)
}

func (s *txStore) GetCustomerIDByDigest(ctx context.Context, kind store.LookupKind, digest string) (string, error) {
	return queryGetCustomerIDByDigest(ctx, s.tx, kind, digest)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
