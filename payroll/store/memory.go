// Package store provides in-memory implementations of the payroll
// persistence interfaces, for tests and local development.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - Implements RunStore, Directory, and LedgerStore
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	runs      map[payroll.RunID][]byte // stored serialized, so reads are snapshots
	versions  map[payroll.RunID]int
	employees map[payroll.EmployeeID]*payroll.Employee
	groups    map[payroll.PayGroupID]*payroll.PayGroup

	ledger      map[ledgerKey][]payroll.LedgerTx
	idempotency map[string]bool
}

type ledgerKey struct {
	Employee payroll.EmployeeID
	Kind     payroll.LedgerKind
}

func NewMemory() *Memory {
	return &Memory{
		runs:        make(map[payroll.RunID][]byte),
		versions:    make(map[payroll.RunID]int),
		employees:   make(map[payroll.EmployeeID]*payroll.Employee),
		groups:      make(map[payroll.PayGroupID]*payroll.PayGroup),
		ledger:      make(map[ledgerKey][]payroll.LedgerTx),
		idempotency: make(map[string]bool),
	}
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run *payroll.PayrollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.versions[run.ID]; ok && stored != run.Version {
		return fmt.Errorf("run %s at version %d, have %d: %w",
			run.ID, stored, run.Version, payroll.ErrConcurrentModification)
	}
	run.Version++
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("serialize run %s: %w", run.ID, err)
	}
	m.runs[run.ID] = raw
	m.versions[run.ID] = run.Version
	return nil
}

func (m *Memory) GetRun(_ context.Context, id payroll.RunID) (*payroll.PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payroll.ErrRunNotFound, id)
	}
	var run payroll.PayrollRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("deserialize run %s: %w", id, err)
	}
	return &run, nil
}

func (m *Memory) FindRunForPeriod(ctx context.Context, group payroll.PayGroupID, period payroll.Period) (*payroll.PayrollRun, error) {
	runs, err := m.ListRuns(ctx, group)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Status != payroll.StatusCancelled && run.Period.End.Equal(period.End) {
			return run, nil
		}
	}
	return nil, fmt.Errorf("%w: group %s period %s", payroll.ErrRunNotFound, group, period)
}

func (m *Memory) ListRuns(_ context.Context, group payroll.PayGroupID) ([]*payroll.PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var runs []*payroll.PayrollRun
	for id, raw := range m.runs {
		var run payroll.PayrollRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, fmt.Errorf("deserialize run %s: %w", id, err)
		}
		if run.PayGroupID == group {
			runs = append(runs, &run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Period.End.After(runs[j].Period.End) })
	return runs, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) PutEmployee(emp *payroll.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
}

func (m *Memory) PutPayGroup(group *payroll.PayGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group.ID] = group
}

func (m *Memory) Employee(_ context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payroll.ErrEmployeeNotFound, id)
	}
	return emp, nil
}

func (m *Memory) EmployeesInGroup(_ context.Context, group payroll.PayGroupID) ([]*payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var employees []*payroll.Employee
	for _, emp := range m.employees {
		if emp.PayGroupID == group {
			employees = append(employees, emp)
		}
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	return employees, nil
}

func (m *Memory) PayGroup(_ context.Context, id payroll.PayGroupID) (*payroll.PayGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	group, ok := m.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payroll.ErrPayGroupNotFound, id)
	}
	return group, nil
}

func (m *Memory) ListPayGroups(_ context.Context) ([]*payroll.PayGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups := make([]*payroll.PayGroup, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) AppendLedger(_ context.Context, txs []payroll.LedgerTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all keys before writing anything (atomic batch).
	for _, tx := range txs {
		if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
			return fmt.Errorf("%s: %w", tx.IdempotencyKey, payroll.ErrDuplicateIdempotencyKey)
		}
	}
	for _, tx := range txs {
		k := ledgerKey{Employee: tx.EmployeeID, Kind: tx.Kind}
		m.ledger[k] = append(m.ledger[k], tx)
		if tx.IdempotencyKey != "" {
			m.idempotency[tx.IdempotencyKey] = true
		}
	}
	return nil
}

func (m *Memory) LoadLedger(_ context.Context, emp payroll.EmployeeID, kind payroll.LedgerKind) ([]payroll.LedgerTx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txs := m.ledger[ledgerKey{Employee: emp, Kind: kind}]
	out := make([]payroll.LedgerTx, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveAt.Before(out[j].EffectiveAt) })
	return out, nil
}

func (m *Memory) LedgerKeyExists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[key], nil
}
