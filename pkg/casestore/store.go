package casestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/casetrack/casetrack/pkg/telemetry"

	// Also registers the "sqlite" database/sql driver.
	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// noteTimeLayout is the wall-clock format used for note entries and for
// the created_at/updated_at columns. It matches SQLite's own
// CURRENT_TIMESTAMP output.
const noteTimeLayout = "2006-01-02 15:04:05"

// noteSeparator joins successive note entries in the append-only log.
const noteSeparator = " | "

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	cfg     Config
	log     *telemetry.Logger
	metrics *telemetry.Metrics
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Option configures optional store collaborators.
type Option func(*SQLiteStore)

// WithLogger injects the observability logger. The store never falls
// back to package-level logging state.
func WithLogger(log *telemetry.Logger) Option {
	return func(s *SQLiteStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics injects the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *SQLiteStore) {
		s.metrics = m
	}
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config, opts ...Option) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// An in-memory database exists per connection; the pool must be a
	// single connection or the schema and the data drift apart.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}

	s := &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
		log:  telemetry.NewDefaultLogger().NewComponentLogger("casestore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init opens the database, applies connection pragmas, and verifies the
// connection. Initialization failures are fatal for the store and are
// always propagated: a store that cannot open cannot serve any call.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		s.path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.log.WithField("path", s.path).Info("case store initialized")
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the cases and transactions tables. Running it again
// against an already-migrated store is a no-op, so initialization is
// safe to repeat.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// FindCaseByName retrieves a case by customer display name. The match is
// case-insensitive on the full stored value. When several cases share a
// name, the one with the lowest customer ID wins; callers should not
// read meaning into the choice beyond determinism.
//
// Storage failures degrade to absence: they are logged here and the
// caller sees the same (nil, false) as a genuine miss.
func (s *SQLiteStore) FindCaseByName(ctx context.Context, name string) (*CaseDetail, bool) {
	start := time.Now()
	query := `
		SELECT customer_id, name, card_last4, security_question, security_answer,
		       status, notes, created_at, updated_at
		FROM cases
		WHERE LOWER(name) = LOWER(?)
		ORDER BY customer_id ASC
		LIMIT 1
	`

	detail, err := s.scanCaseDetail(ctx, query, name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.WithError(err).WithField("name", name).Error("failed to fetch case by name")
			s.recordStoreError("find_by_name")
		}
		s.recordLookup("by_name", "miss", time.Since(start))
		return nil, false
	}

	s.recordLookup("by_name", "hit", time.Since(start))
	return detail, true
}

// FindCaseByID retrieves a case by its customer ID. Exact match, no case
// folding. Same degrade-to-absence policy as FindCaseByName.
func (s *SQLiteStore) FindCaseByID(ctx context.Context, customerID string) (*CaseDetail, bool) {
	start := time.Now()
	query := `
		SELECT customer_id, name, card_last4, security_question, security_answer,
		       status, notes, created_at, updated_at
		FROM cases
		WHERE customer_id = ?
	`

	detail, err := s.scanCaseDetail(ctx, query, customerID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.WithError(err).WithCustomerID(customerID).Error("failed to fetch case by ID")
			s.recordStoreError("find_by_id")
		}
		s.recordLookup("by_id", "miss", time.Since(start))
		return nil, false
	}

	s.recordLookup("by_id", "hit", time.Since(start))
	return detail, true
}

// scanCaseDetail runs a single-case query and attaches the most recent
// transaction for that customer.
func (s *SQLiteStore) scanCaseDetail(ctx context.Context, query string, arg any) (*CaseDetail, error) {
	detail := &CaseDetail{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&detail.CustomerID,
		&detail.Name,
		&detail.CardLast4,
		&detail.SecurityQuestion,
		&detail.SecurityAnswer,
		&detail.Status,
		&detail.Notes,
		&detail.CreatedAt,
		&detail.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx, err := s.latestTransaction(ctx, detail.CustomerID)
	if err != nil {
		return nil, err
	}
	detail.Transaction = tx
	return detail, nil
}

// latestTransaction returns the transaction with the highest insertion-
// order ID for the customer, or nil when none exists. Insertion order is
// the invariant; the timestamp column is opaque text and never used for
// ordering.
func (s *SQLiteStore) latestTransaction(ctx context.Context, customerID string) (*Transaction, error) {
	query := `
		SELECT id, customer_id, merchant, amount, location, timestamp
		FROM transactions
		WHERE customer_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	tx := &Transaction{}
	err := s.db.QueryRowContext(ctx, query, customerID).Scan(
		&tx.ID,
		&tx.CustomerID,
		&tx.Merchant,
		&tx.Amount,
		&tx.Location,
		&tx.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// AddCase inserts a new case and its first suspicious transaction as a
// single atomic unit: either both rows exist afterwards or neither does.
// The case starts with status "pending" and empty notes. A customer ID
// that already exists yields ErrDuplicateCase; no field of the existing
// case is touched. Nothing else is validated here — amount and timestamp
// are stored verbatim.
func (s *SQLiteStore) AddCase(ctx context.Context, nc NewCase) error {
	now := time.Now().UTC().Format(noteTimeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.WithError(err).WithCustomerID(nc.CustomerID).Error("failed to begin add-case transaction")
		s.recordStoreError("add_case")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (customer_id, name, card_last4, security_question, security_answer,
		                   status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nc.CustomerID,
		nc.Name,
		nc.CardLast4,
		nc.SecurityQuestion,
		nc.SecurityAnswer,
		StatusPending,
		"",
		now,
		now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			s.log.WithCustomerID(nc.CustomerID).Warn("case already exists")
			s.recordDuplicateCase()
			return ErrDuplicateCase
		}
		s.log.WithError(err).WithCustomerID(nc.CustomerID).Error("failed to insert case")
		s.recordStoreError("add_case")
		return fmt.Errorf("failed to insert case: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (customer_id, merchant, amount, location, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`,
		nc.CustomerID,
		nc.Merchant,
		nc.Amount,
		nc.Location,
		nc.Timestamp,
	)
	if err != nil {
		s.log.WithError(err).WithCustomerID(nc.CustomerID).Error("failed to insert transaction")
		s.recordStoreError("add_case")
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.log.WithError(err).WithCustomerID(nc.CustomerID).Error("failed to commit add-case transaction")
		s.recordStoreError("add_case")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithCustomerID(nc.CustomerID).Info("added new case")
	s.recordCaseCreated()
	return nil
}

// AddTransaction appends a later suspicious transaction to an existing
// case. It becomes the case's most recent transaction for read purposes.
// An unknown customer ID yields ErrNotFound (the foreign key rejects the
// insert).
func (s *SQLiteStore) AddTransaction(ctx context.Context, t Transaction) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (customer_id, merchant, amount, location, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`,
		t.CustomerID,
		t.Merchant,
		t.Amount,
		t.Location,
		t.Timestamp,
	)
	if err != nil {
		if isConstraintViolation(err) {
			s.log.WithCustomerID(t.CustomerID).Warn("transaction references unknown case")
			return ErrNotFound
		}
		s.log.WithError(err).WithCustomerID(t.CustomerID).Error("failed to insert transaction")
		s.recordStoreError("add_transaction")
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		s.log.WithCustomerID(t.CustomerID).WithField("transaction_id", id).Info("added transaction")
	}
	return nil
}

// UpdateStatus overwrites the case status and appends a timestamped note
// entry to the audit trail. The read of the old notes, the computation
// of the new value, and the write of status, notes, and updated_at
// happen in one database transaction, so concurrent updates on the same
// case cannot lose note entries.
//
// The status value is accepted verbatim; no allowed set is enforced at
// this layer.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, customerID, status, note string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.WithError(err).WithCustomerID(customerID).Error("failed to begin status-update transaction")
		s.recordStoreError("update_status")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingNotes string
	err = tx.QueryRowContext(ctx,
		"SELECT notes FROM cases WHERE customer_id = ?", customerID,
	).Scan(&existingNotes)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.WithCustomerID(customerID).Warn("customer ID not found")
		s.recordStatusUpdate("not_found")
		return ErrNotFound
	}
	if err != nil {
		s.log.WithError(err).WithCustomerID(customerID).Error("failed to read case notes")
		s.recordStoreError("update_status")
		return fmt.Errorf("failed to read case notes: %w", err)
	}

	now := time.Now().UTC()
	newNotes := appendNote(existingNotes, note, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE cases
		SET status = ?, notes = ?, updated_at = ?
		WHERE customer_id = ?
	`,
		status,
		newNotes,
		now.Format(noteTimeLayout),
		customerID,
	)
	if err != nil {
		s.log.WithError(err).WithCustomerID(customerID).Error("failed to update case status")
		s.recordStoreError("update_status")
		return fmt.Errorf("failed to update case status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.log.WithError(err).WithCustomerID(customerID).Error("failed to commit status update")
		s.recordStoreError("update_status")
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	s.log.WithCustomerID(customerID).WithCaseStatus(status).Info("updated case")
	s.recordStatusUpdate("ok")
	return nil
}

// appendNote formats a note entry as "[timestamp] note" and concatenates
// it onto existing notes with the " | " separator. The first entry
// carries no separator; the combined value is trimmed of surrounding
// whitespace.
func appendNote(existing, note string, at time.Time) string {
	entry := fmt.Sprintf("[%s] %s", at.Format(noteTimeLayout), note)
	if existing == "" {
		return strings.TrimSpace(entry)
	}
	return strings.TrimSpace(existing + noteSeparator + entry)
}

// ListAllCases returns every case as a reduced summary, most recently
// updated first; ties fall back to customer ID order. Both an empty
// store and a storage failure present as an empty listing — the failure
// is logged here, not surfaced.
func (s *SQLiteStore) ListAllCases(ctx context.Context) []CaseSummary {
	query := `
		SELECT customer_id, name, card_last4, status, updated_at
		FROM cases
		ORDER BY updated_at DESC, customer_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("failed to list cases")
		s.recordStoreError("list_all")
		return []CaseSummary{}
	}
	defer rows.Close()

	summaries := []CaseSummary{}
	for rows.Next() {
		var cs CaseSummary
		if err := rows.Scan(&cs.CustomerID, &cs.Name, &cs.CardLast4, &cs.Status, &cs.UpdatedAt); err != nil {
			s.log.WithError(err).Error("failed to scan case summary")
			s.recordStoreError("list_all")
			return []CaseSummary{}
		}
		summaries = append(summaries, cs)
	}

	if err := rows.Err(); err != nil {
		s.log.WithError(err).Error("error iterating cases")
		s.recordStoreError("list_all")
		return []CaseSummary{}
	}

	return summaries
}

// BackupTo writes a consistent snapshot of the database to destPath
// using VACUUM INTO. The destination must not already exist.
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// VACUUM INTO does not accept bound parameters for the target.
	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		s.log.WithError(err).WithField("dest", destPath).Error("failed to back up database")
		s.recordStoreError("backup")
		return fmt.Errorf("failed to back up database: %w", err)
	}

	s.log.WithField("dest", destPath).Info("database backed up")
	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// isConstraintViolation reports whether err is any SQLite constraint
// failure (primary key, unique, foreign key).
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
	}
	return false
}

func (s *SQLiteStore) recordLookup(method, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordLookup(method, outcome, d)
	}
}

func (s *SQLiteStore) recordCaseCreated() {
	if s.metrics != nil {
		s.metrics.RecordCaseCreated()
	}
}

func (s *SQLiteStore) recordDuplicateCase() {
	if s.metrics != nil {
		s.metrics.RecordDuplicateCase()
	}
}

func (s *SQLiteStore) recordStatusUpdate(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordStatusUpdate(outcome)
	}
}

func (s *SQLiteStore) recordStoreError(operation string) {
	if s.metrics != nil {
		s.metrics.RecordStoreError(operation)
	}
}
