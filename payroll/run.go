/*
run.go - PayrollRun aggregate and lifecycle state machine

PURPOSE:
  PayrollRun is the aggregate root: it exclusively owns its records and
  editable inputs, and carries the lifecycle status that gates every
  operation.

LIFECYCLE:
  (no run) --StartRun--> draft --Finalize--> pending_approval
                           ^                      |
                           +----RevertToDraft-----+
  pending_approval --Approve--> approved --MarkPaid--> paid
  draft / pending_approval --Cancel--> cancelled (terminal)

  Recalculate and input edits are legal only in draft. Every action
  not in the current status's transition set fails with an
  InvalidTransitionError naming the action and status.

SEE ALSO:
  - engine.go: Executes transitions and the calculation pipeline
  - errors.go: InvalidTransitionError, StateError
*/
package payroll

import (
	"sort"
	"time"
)

// =============================================================================
// STATUS AND ACTIONS
// =============================================================================

type RunStatus string

const (
	StatusDraft           RunStatus = "draft"
	StatusPendingApproval RunStatus = "pending_approval"
	StatusApproved        RunStatus = "approved"
	StatusPaid            RunStatus = "paid"
	StatusCancelled       RunStatus = "cancelled"
)

type RunAction string

const (
	ActionRecalculate   RunAction = "recalculate"
	ActionFinalize      RunAction = "finalize"
	ActionRevertToDraft RunAction = "revert_to_draft"
	ActionApprove       RunAction = "approve"
	ActionMarkPaid      RunAction = "mark_paid"
	ActionCancel        RunAction = "cancel"
)

// transitions is the exhaustive action table. Absence means illegal.
var transitions = map[RunStatus]map[RunAction]RunStatus{
	StatusDraft: {
		ActionRecalculate: StatusDraft,
		ActionFinalize:    StatusPendingApproval,
		ActionCancel:      StatusCancelled,
	},
	StatusPendingApproval: {
		ActionRevertToDraft: StatusDraft,
		ActionApprove:       StatusApproved,
		ActionCancel:        StatusCancelled,
	},
	StatusApproved: {
		ActionMarkPaid: StatusPaid,
	},
	StatusPaid:      {},
	StatusCancelled: {},
}

// Allows reports whether the action is legal from this status.
func (s RunStatus) Allows(a RunAction) bool {
	_, ok := transitions[s][a]
	return ok
}

// Next returns the status after applying the action, or an
// InvalidTransitionError.
func (s RunStatus) Next(a RunAction) (RunStatus, error) {
	next, ok := transitions[s][a]
	if !ok {
		return s, &InvalidTransitionError{Action: a, Status: s}
	}
	return next, nil
}

// Editable reports whether per-employee inputs may still be mutated.
func (s RunStatus) Editable() bool { return s == StatusDraft }

// =============================================================================
// PAYROLL RUN - Aggregate root
// =============================================================================

type PayrollRun struct {
	ID         RunID
	PayGroupID PayGroupID
	Period     Period
	PayDate    time.Time
	TaxYear    int

	Status RunStatus
	Totals RunTotals

	// Records and Inputs are exclusively owned by the run.
	Records map[EmployeeID]*PayrollRecord
	Inputs  map[EmployeeID]*EmployeePayrollInput

	// FinalizeSeq counts Finalize transitions, namespacing ledger
	// idempotency keys across revert/refinalize cycles.
	FinalizeSeq int

	// Version supports optimistic concurrency checks in stores.
	Version int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time
	ApprovedBy string
	PaidAt     *time.Time

	// Delivery holds paystub delivery results from Approve.
	Delivery []DeliveryResult
}

// SortedRecords returns records ordered by employee ID, the canonical
// ordering for aggregation, persistence, and display.
func (r *PayrollRun) SortedRecords() []*PayrollRecord {
	records := make([]*PayrollRecord, 0, len(r.Records))
	for _, rec := range r.Records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].EmployeeID < records[j].EmployeeID
	})
	return records
}

// ModifiedEmployees lists employees whose inputs changed since the
// last calculation, sorted for stable error messages.
func (r *PayrollRun) ModifiedEmployees() []EmployeeID {
	var ids []EmployeeID
	for id, rec := range r.Records {
		if rec.IsModified {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasModified reports whether any record awaits recalculation.
func (r *PayrollRun) HasModified() bool {
	for _, rec := range r.Records {
		if rec.IsModified {
			return true
		}
	}
	return false
}
