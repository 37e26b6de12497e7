/*
store.go - Persistence interfaces

PURPOSE:
  Defines the contracts between the engine and storage. Different
  implementations back these with SQLite (store/sqlite) or memory
  (payroll/store, for tests and development).

INTERFACES:
  RunStore:    PayrollRun persistence with optimistic versioning
  Directory:   Employee and pay-group master data (read-mostly)
  LedgerStore: Append-only ledger entry persistence

OPTIMISTIC VERSIONING:
  SaveRun must reject a run whose Version does not match the stored
  one with ErrConcurrentModification, then persist with Version+1.
  The engine's per-run locks serialize writers in-process; the version
  check protects multi-process deployments.
*/
package payroll

import "context"

// RunStore persists payroll runs.
type RunStore interface {
	// SaveRun inserts or updates a run. The stored Version must match
	// run.Version or ErrConcurrentModification is returned; on success
	// the persisted version is run.Version+1.
	SaveRun(ctx context.Context, run *PayrollRun) error

	// GetRun returns ErrRunNotFound for unknown IDs.
	GetRun(ctx context.Context, id RunID) (*PayrollRun, error)

	// FindRunForPeriod locates a non-cancelled run for the group whose
	// period end matches. Returns ErrRunNotFound when absent.
	FindRunForPeriod(ctx context.Context, group PayGroupID, period Period) (*PayrollRun, error)

	// ListRuns returns runs for a pay group, newest period first.
	ListRuns(ctx context.Context, group PayGroupID) ([]*PayrollRun, error)
}

// Directory serves employee and pay-group master data.
type Directory interface {
	Employee(ctx context.Context, id EmployeeID) (*Employee, error)
	EmployeesInGroup(ctx context.Context, group PayGroupID) ([]*Employee, error)
	PayGroup(ctx context.Context, id PayGroupID) (*PayGroup, error)
	ListPayGroups(ctx context.Context) ([]*PayGroup, error)
}

// LedgerStore persists ledger entries. Append-only: implementations
// expose no update or delete.
type LedgerStore interface {
	// AppendLedger writes a batch atomically. A duplicate idempotency
	// key anywhere in the batch fails the whole batch with
	// ErrDuplicateIdempotencyKey.
	AppendLedger(ctx context.Context, txs []LedgerTx) error

	// LoadLedger returns entries for employee+kind in EffectiveAt order.
	LoadLedger(ctx context.Context, emp EmployeeID, kind LedgerKind) ([]LedgerTx, error)

	// LedgerKeyExists checks a single idempotency key.
	LedgerKeyExists(ctx context.Context, key string) (bool, error)
}
