/*
Package sqlite provides a SQLite-backed implementation of the payroll
storage interfaces.

PURPOSE:
  Implements payroll.RunStore, payroll.Directory, and
  payroll.LedgerStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  pay_groups:          Pay group configuration (JSON document)
  employees:           Employee master data (JSON document)
  payroll_runs:        One row per run; records and inputs travel in a
                       JSON payload, status and version as columns
  ledger_transactions: Immutable balance ledger (append-only)

APPEND-ONLY ENFORCEMENT:
  ledger_transactions has no UPDATE or DELETE path, and a UNIQUE index
  on idempotency_key rejects replayed finalize commits at the database
  level. Corrections happen via reversal transactions only.

OPTIMISTIC VERSIONING:
  payroll_runs.version backs the concurrency check: a save guarded by
  the expected version that affects zero rows surfaces
  payroll.ErrConcurrentModification.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// Store implements all payroll storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var (
	_ payroll.RunStore    = (*Store)(nil)
	_ payroll.Directory   = (*Store)(nil)
	_ payroll.LedgerStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pay_groups (
		id          TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id           TEXT PRIMARY KEY,
		pay_group_id TEXT NOT NULL,
		config_json  TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_employees_pay_group ON employees(pay_group_id);

	CREATE TABLE IF NOT EXISTS payroll_runs (
		id           TEXT PRIMARY KEY,
		pay_group_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end   TEXT NOT NULL,
		status       TEXT NOT NULL,
		version      INTEGER NOT NULL,
		payload_json TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_group_period ON payroll_runs(pay_group_id, period_end);

	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id              TEXT PRIMARY KEY,
		employee_id     TEXT NOT NULL,
		kind            TEXT NOT NULL,
		entry_type      TEXT NOT NULL,
		effective_at    TEXT NOT NULL,
		delta           TEXT NOT NULL,
		reference_id    TEXT,
		reason          TEXT,
		idempotency_key TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_idempotency
		ON ledger_transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_ledger_employee_kind_date
		ON ledger_transactions(employee_id, kind, effective_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

const timeLayout = time.RFC3339Nano

// =============================================================================
// RUN STORE
// =============================================================================

// SaveRun persists the run, guarded by its version. On success the
// run's version is incremented to the stored value.
func (s *Store) SaveRun(ctx context.Context, run *payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(timeLayout)

	var stored int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM payroll_runs WHERE id = ?`, string(run.ID)).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		run.Version++
		payload, merr := json.Marshal(run)
		if merr != nil {
			run.Version--
			return fmt.Errorf("serialize run %s: %w", run.ID, merr)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO payroll_runs (id, pay_group_id, period_start, period_end, status, version, payload_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(run.ID), string(run.PayGroupID),
			run.Period.Start.Format(timeLayout), run.Period.End.Format(timeLayout),
			string(run.Status), run.Version, string(payload), now)
		if err != nil {
			run.Version--
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load run version %s: %w", run.ID, err)
	}

	if stored != run.Version {
		return fmt.Errorf("run %s stored at version %d, have %d: %w",
			run.ID, stored, run.Version, payroll.ErrConcurrentModification)
	}
	run.Version++
	payload, merr := json.Marshal(run)
	if merr != nil {
		run.Version--
		return fmt.Errorf("serialize run %s: %w", run.ID, merr)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE payroll_runs SET status = ?, version = ?, payload_json = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(run.Status), run.Version, string(payload), now, string(run.ID), stored)
	if err != nil {
		run.Version--
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		run.Version--
		return fmt.Errorf("run %s: %w", run.ID, payroll.ErrConcurrentModification)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id payroll.RunID) (*payroll.PayrollRun, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM payroll_runs WHERE id = ?`, string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", payroll.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return decodeRun(id, payload)
}

// FindRunForPeriod returns the non-cancelled run covering the period,
// if one exists.
func (s *Store) FindRunForPeriod(ctx context.Context, group payroll.PayGroupID, period payroll.Period) (*payroll.PayrollRun, error) {
	var id, payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payload_json FROM payroll_runs
		WHERE pay_group_id = ? AND period_end = ? AND status != ?`,
		string(group), period.End.Format(timeLayout), string(payroll.StatusCancelled)).Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: group %s period %s", payroll.ErrRunNotFound, group, period)
	}
	if err != nil {
		return nil, fmt.Errorf("find run for %s %s: %w", group, period, err)
	}
	return decodeRun(payroll.RunID(id), payload)
}

// ListRuns returns all runs for a pay group, newest period first.
func (s *Store) ListRuns(ctx context.Context, group payroll.PayGroupID) ([]*payroll.PayrollRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload_json FROM payroll_runs
		WHERE pay_group_id = ? ORDER BY period_end DESC`, string(group))
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", group, err)
	}
	defer rows.Close()

	var runs []*payroll.PayrollRun
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := decodeRun(payroll.RunID(id), payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func decodeRun(id payroll.RunID, payload string) (*payroll.PayrollRun, error) {
	var run payroll.PayrollRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("deserialize run %s: %w", id, err)
	}
	return &run, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// SavePayGroup inserts or replaces a pay group document.
func (s *Store) SavePayGroup(ctx context.Context, group *payroll.PayGroup) error {
	raw, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("serialize pay group %s: %w", group.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pay_groups (id, config_json, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET config_json = excluded.config_json`,
		string(group.ID), string(raw), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save pay group %s: %w", group.ID, err)
	}
	return nil
}

// SaveEmployee inserts or replaces an employee document.
func (s *Store) SaveEmployee(ctx context.Context, emp *payroll.Employee) error {
	raw, err := json.Marshal(emp)
	if err != nil {
		return fmt.Errorf("serialize employee %s: %w", emp.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees (id, pay_group_id, config_json, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET pay_group_id = excluded.pay_group_id, config_json = excluded.config_json`,
		string(emp.ID), string(emp.PayGroupID), string(raw), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save employee %s: %w", emp.ID, err)
	}
	return nil
}

// Employee retrieves an employee by ID.
func (s *Store) Employee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM employees WHERE id = ?`, string(id)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", payroll.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load employee %s: %w", id, err)
	}
	var emp payroll.Employee
	if err := json.Unmarshal([]byte(raw), &emp); err != nil {
		return nil, fmt.Errorf("deserialize employee %s: %w", id, err)
	}
	return &emp, nil
}

// EmployeesInGroup lists all employees assigned to a pay group, ordered by ID.
func (s *Store) EmployeesInGroup(ctx context.Context, group payroll.PayGroupID) ([]*payroll.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT config_json FROM employees WHERE pay_group_id = ? ORDER BY id`, string(group))
	if err != nil {
		return nil, fmt.Errorf("list employees for %s: %w", group, err)
	}
	defer rows.Close()

	var employees []*payroll.Employee
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var emp payroll.Employee
		if err := json.Unmarshal([]byte(raw), &emp); err != nil {
			return nil, fmt.Errorf("deserialize employee: %w", err)
		}
		employees = append(employees, &emp)
	}
	return employees, rows.Err()
}

// PayGroup retrieves a pay group by ID.
func (s *Store) PayGroup(ctx context.Context, id payroll.PayGroupID) (*payroll.PayGroup, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM pay_groups WHERE id = ?`, string(id)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", payroll.ErrPayGroupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load pay group %s: %w", id, err)
	}
	var group payroll.PayGroup
	if err := json.Unmarshal([]byte(raw), &group); err != nil {
		return nil, fmt.Errorf("deserialize pay group %s: %w", id, err)
	}
	return &group, nil
}

// ListPayGroups lists all pay groups, ordered by ID.
func (s *Store) ListPayGroups(ctx context.Context) ([]*payroll.PayGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_json FROM pay_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pay groups: %w", err)
	}
	defer rows.Close()

	var groups []*payroll.PayGroup
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var group payroll.PayGroup
		if err := json.Unmarshal([]byte(raw), &group); err != nil {
			return nil, fmt.Errorf("deserialize pay group: %w", err)
		}
		groups = append(groups, &group)
	}
	return groups, rows.Err()
}

// =============================================================================
// LEDGER STORE - Append-only
// =============================================================================

// AppendLedger writes a batch of ledger transactions atomically.
// Any duplicate idempotency key fails the whole batch.
func (s *Store) AppendLedger(ctx context.Context, txs []payroll.LedgerTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger batch: %w", err)
	}
	defer dbTx.Rollback()

	// Check every key before writing so the batch is all-or-nothing.
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		var n int
		if err := dbTx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM ledger_transactions WHERE idempotency_key = ?`,
			tx.IdempotencyKey).Scan(&n); err != nil {
			return fmt.Errorf("check idempotency key: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%s: %w", tx.IdempotencyKey, payroll.ErrDuplicateIdempotencyKey)
		}
	}

	for _, tx := range txs {
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO ledger_transactions
				(id, employee_id, kind, entry_type, effective_at, delta, reference_id, reason, idempotency_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, string(tx.EmployeeID), string(tx.Kind), string(tx.Type),
			tx.EffectiveAt.Format(timeLayout), tx.Delta.String(),
			tx.ReferenceID, tx.Reason, nullable(tx.IdempotencyKey),
			tx.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("append ledger tx %s: %w", tx.ID, err)
		}
	}
	return dbTx.Commit()
}

// LoadLedger returns all transactions for an employee and kind,
// ordered by effective date.
func (s *Store) LoadLedger(ctx context.Context, emp payroll.EmployeeID, kind payroll.LedgerKind) ([]payroll.LedgerTx, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, kind, entry_type, effective_at, delta, reference_id, reason, idempotency_key, created_at
		FROM ledger_transactions
		WHERE employee_id = ? AND kind = ?
		ORDER BY effective_at, created_at, id`, string(emp), string(kind))
	if err != nil {
		return nil, fmt.Errorf("load ledger %s/%s: %w", emp, kind, err)
	}
	defer rows.Close()

	var txs []payroll.LedgerTx
	for rows.Next() {
		tx, err := scanLedgerTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// LedgerKeyExists reports whether an idempotency key has been used.
func (s *Store) LedgerKeyExists(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ledger_transactions WHERE idempotency_key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return n > 0, nil
}

func scanLedgerTx(rows *sql.Rows) (payroll.LedgerTx, error) {
	var tx payroll.LedgerTx
	var empID, kindStr, typeStr, effectiveAt, deltaStr, createdAt string
	var refID, reason, idemKey sql.NullString
	if err := rows.Scan(&tx.ID, &empID, &kindStr, &typeStr, &effectiveAt,
		&deltaStr, &refID, &reason, &idemKey, &createdAt); err != nil {
		return tx, err
	}
	tx.EmployeeID = payroll.EmployeeID(empID)
	tx.Kind = payroll.LedgerKind(kindStr)
	tx.Type = payroll.LedgerEntryType(typeStr)

	var err error
	if tx.EffectiveAt, err = time.Parse(timeLayout, effectiveAt); err != nil {
		return tx, fmt.Errorf("parse ledger timestamp: %w", err)
	}
	if tx.Delta, err = decimal.NewFromString(deltaStr); err != nil {
		return tx, fmt.Errorf("parse ledger delta: %w", err)
	}
	tx.ReferenceID = refID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idemKey.String
	if tx.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return tx, fmt.Errorf("parse ledger timestamp: %w", err)
	}
	return tx, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
