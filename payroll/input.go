/*
input.go - Per-employee period inputs and the input accumulator

PURPOSE:
  Collects and merges per-employee inputs for one run: worked hours,
  leave entries, holiday work, one-time adjustments, and vacation payout
  requests. Inputs are freely mutable while the run is in draft and
  frozen from pending_approval onward.

PATCH SEMANTICS:
  - Scalar fields (hours, overtime choice): last-write-wins
  - List fields (leave, adjustments, ...): addressed by entry ID; an add
    with an existing ID replaces that entry, an unknown remove is a
    no-op. Entries are never merged by value, so editing the same bonus
    twice cannot duplicate it.

VALIDATION:
  A patch is validated in full before any of it is applied. A rejected
  patch mutates nothing.

SEE ALSO:
  - earnings.go: Consumes the accumulated input
  - engine.go: Gates patches on run status and marks records modified
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY TYPES
// =============================================================================

type LeaveType string

const (
	LeaveVacation LeaveType = "vacation"
	LeaveSick     LeaveType = "sick"
)

func (t LeaveType) Valid() bool { return t == LeaveVacation || t == LeaveSick }

// LeaveEntry is leave taken during the period, in hours.
type LeaveEntry struct {
	ID    string
	Type  LeaveType
	Hours decimal.Decimal
}

// HolidayWorkEntry records hours worked on a statutory holiday,
// attracting the 1.5x holiday premium.
type HolidayWorkEntry struct {
	ID    string
	Date  time.Time
	Hours decimal.Decimal
}

type OvertimeChoice string

const (
	OvertimePayout   OvertimeChoice = "payout"
	OvertimeBankTime OvertimeChoice = "bank_time"
)

// =============================================================================
// ONE-TIME ADJUSTMENTS - Closed tagged union with taxability as data
// =============================================================================

type AdjustmentType string

const (
	AdjustmentBonus            AdjustmentType = "bonus"
	AdjustmentRetroPay         AdjustmentType = "retroactive_pay"
	AdjustmentTaxableBenefit   AdjustmentType = "taxable_benefit"
	AdjustmentReimbursement    AdjustmentType = "reimbursement"
	AdjustmentOneTimeDeduction AdjustmentType = "one_time_deduction"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentBonus, AdjustmentRetroPay, AdjustmentTaxableBenefit,
		AdjustmentReimbursement, AdjustmentOneTimeDeduction:
		return true
	}
	return false
}

// Taxable reports whether the adjustment enters taxable earnings.
func (t AdjustmentType) Taxable() bool {
	switch t {
	case AdjustmentBonus, AdjustmentRetroPay, AdjustmentTaxableBenefit:
		return true
	}
	return false
}

// Pensionable reports whether the adjustment enters the CPP base.
func (t AdjustmentType) Pensionable() bool { return t.Taxable() }

// DefaultEITreatment returns the EI base treatment implied by the type.
// Cash earnings are insurable; non-cash taxable benefits are not,
// unless the entry overrides it.
func (t AdjustmentType) DefaultEITreatment() EITreatment {
	switch t {
	case AdjustmentBonus, AdjustmentRetroPay:
		return EIInsurable
	default:
		return EINotInsurable
	}
}

type EITreatment string

const (
	EIInsurable    EITreatment = "insurable"
	EINotInsurable EITreatment = "not_insurable"
)

// OneTimeAdjustment is a signed one-off amount. Taxability and CPP
// applicability derive from Type; EITreatment defaults from Type and is
// only meaningful to override for taxable benefits.
type OneTimeAdjustment struct {
	ID          string
	Type        AdjustmentType
	Amount      Money
	Description string
	EITreatment EITreatment
}

// Insurable reports whether the adjustment enters the EI base.
func (a OneTimeAdjustment) Insurable() bool {
	treatment := a.EITreatment
	if treatment == "" {
		treatment = a.Type.DefaultEITreatment()
	}
	return treatment == EIInsurable
}

// =============================================================================
// VACATION PAYOUTS
// =============================================================================

type VacationPayoutReason string

const (
	PayoutScheduled   VacationPayoutReason = "scheduled"
	PayoutCashout     VacationPayoutReason = "cashout_request"
	PayoutTermination VacationPayoutReason = "termination"
)

func (r VacationPayoutReason) Valid() bool {
	switch r {
	case PayoutScheduled, PayoutCashout, PayoutTermination:
		return true
	}
	return false
}

// VacationPayoutEntry requests paying out accrued vacation hours.
// Only legal for accrual-method employees; the amount is derived at
// composition time from the employee's current rate.
type VacationPayoutEntry struct {
	ID     string
	Reason VacationPayoutReason
	Hours  decimal.Decimal
}

// =============================================================================
// EMPLOYEE PAYROLL INPUT - The accumulated per-run, per-employee state
// =============================================================================

type EmployeePayrollInput struct {
	EmployeeID EmployeeID

	RegularHours   decimal.Decimal
	OvertimeHours  decimal.Decimal
	OvertimeChoice OvertimeChoice

	Leave           []LeaveEntry
	HolidayWork     []HolidayWorkEntry
	Adjustments     []OneTimeAdjustment
	VacationPayouts []VacationPayoutEntry
}

// NewInput creates an empty input for an employee.
func NewInput(id EmployeeID) *EmployeePayrollInput {
	return &EmployeePayrollInput{EmployeeID: id, OvertimeChoice: OvertimePayout}
}

// TotalLeaveHours sums all leave entries.
func (in *EmployeePayrollInput) TotalLeaveHours() decimal.Decimal {
	total := decimal.Zero
	for _, l := range in.Leave {
		total = total.Add(l.Hours)
	}
	return total
}

// TotalHolidayWorkHours sums all holiday-work entries.
func (in *EmployeePayrollInput) TotalHolidayWorkHours() decimal.Decimal {
	total := decimal.Zero
	for _, h := range in.HolidayWork {
		total = total.Add(h.Hours)
	}
	return total
}

// =============================================================================
// INPUT PATCH - Partial update with add/remove list operations
// =============================================================================

// InputPatch is a partial update to an EmployeePayrollInput. Nil scalar
// pointers leave the field unchanged. List entries are added (or
// replaced, when the ID exists) and removed by ID.
type InputPatch struct {
	RegularHours   *decimal.Decimal
	OvertimeHours  *decimal.Decimal
	OvertimeChoice *OvertimeChoice

	AddLeave    []LeaveEntry
	RemoveLeave []string

	AddHolidayWork    []HolidayWorkEntry
	RemoveHolidayWork []string

	AddAdjustments    []OneTimeAdjustment
	RemoveAdjustments []string

	AddVacationPayouts    []VacationPayoutEntry
	RemoveVacationPayouts []string
}

// Validate rejects malformed patches before anything is applied.
func (p InputPatch) Validate() error {
	if p.RegularHours != nil && p.RegularHours.IsNegative() {
		return &ValidationError{Field: "regularHours", Message: "must not be negative"}
	}
	if p.OvertimeHours != nil && p.OvertimeHours.IsNegative() {
		return &ValidationError{Field: "overtimeHours", Message: "must not be negative"}
	}
	if p.OvertimeChoice != nil {
		switch *p.OvertimeChoice {
		case OvertimePayout, OvertimeBankTime:
		default:
			return &ValidationError{Field: "overtimeChoice", Message: fmt.Sprintf("unknown choice %q", *p.OvertimeChoice)}
		}
	}
	for _, l := range p.AddLeave {
		if l.ID == "" {
			return &ValidationError{Field: "leave", Message: "entry id required"}
		}
		if !l.Type.Valid() {
			return &ValidationError{Field: "leave", Message: fmt.Sprintf("unknown leave type %q", l.Type)}
		}
		if !l.Hours.IsPositive() {
			return &ValidationError{Field: "leave", Message: "hours must be positive"}
		}
	}
	for _, h := range p.AddHolidayWork {
		if h.ID == "" {
			return &ValidationError{Field: "holidayWork", Message: "entry id required"}
		}
		if !h.Hours.IsPositive() {
			return &ValidationError{Field: "holidayWork", Message: "hours must be positive"}
		}
	}
	for _, a := range p.AddAdjustments {
		if a.ID == "" {
			return &ValidationError{Field: "adjustments", Message: "entry id required"}
		}
		if !a.Type.Valid() {
			return &ValidationError{Field: "adjustments", Message: fmt.Sprintf("unknown adjustment type %q", a.Type)}
		}
		if a.Amount.IsNegative() {
			return &ValidationError{Field: "adjustments", Message: "amount must not be negative; deductions use the one_time_deduction type"}
		}
	}
	for _, v := range p.AddVacationPayouts {
		if v.ID == "" {
			return &ValidationError{Field: "vacationPayouts", Message: "entry id required"}
		}
		if !v.Reason.Valid() {
			return &ValidationError{Field: "vacationPayouts", Message: fmt.Sprintf("unknown payout reason %q", v.Reason)}
		}
		if !v.Hours.IsPositive() {
			return &ValidationError{Field: "vacationPayouts", Message: "hours must be positive"}
		}
	}
	return nil
}

// Apply merges the patch into the input. The patch must already be
// validated; Apply itself cannot fail.
func (in *EmployeePayrollInput) Apply(p InputPatch) {
	if p.RegularHours != nil {
		in.RegularHours = *p.RegularHours
	}
	if p.OvertimeHours != nil {
		in.OvertimeHours = *p.OvertimeHours
	}
	if p.OvertimeChoice != nil {
		in.OvertimeChoice = *p.OvertimeChoice
	}

	in.Leave = removeByID(in.Leave, p.RemoveLeave, func(e LeaveEntry) string { return e.ID })
	for _, e := range p.AddLeave {
		in.Leave = upsertByID(in.Leave, e, func(x LeaveEntry) string { return x.ID })
	}

	in.HolidayWork = removeByID(in.HolidayWork, p.RemoveHolidayWork, func(e HolidayWorkEntry) string { return e.ID })
	for _, e := range p.AddHolidayWork {
		in.HolidayWork = upsertByID(in.HolidayWork, e, func(x HolidayWorkEntry) string { return x.ID })
	}

	in.Adjustments = removeByID(in.Adjustments, p.RemoveAdjustments, func(e OneTimeAdjustment) string { return e.ID })
	for _, e := range p.AddAdjustments {
		in.Adjustments = upsertByID(in.Adjustments, e, func(x OneTimeAdjustment) string { return x.ID })
	}

	in.VacationPayouts = removeByID(in.VacationPayouts, p.RemoveVacationPayouts, func(e VacationPayoutEntry) string { return e.ID })
	for _, e := range p.AddVacationPayouts {
		in.VacationPayouts = upsertByID(in.VacationPayouts, e, func(x VacationPayoutEntry) string { return x.ID })
	}
}

// Empty reports whether the patch changes nothing.
func (p InputPatch) Empty() bool {
	return p.RegularHours == nil && p.OvertimeHours == nil && p.OvertimeChoice == nil &&
		len(p.AddLeave) == 0 && len(p.RemoveLeave) == 0 &&
		len(p.AddHolidayWork) == 0 && len(p.RemoveHolidayWork) == 0 &&
		len(p.AddAdjustments) == 0 && len(p.RemoveAdjustments) == 0 &&
		len(p.AddVacationPayouts) == 0 && len(p.RemoveVacationPayouts) == 0
}

func removeByID[T any](entries []T, ids []string, id func(T) string) []T {
	if len(ids) == 0 {
		return entries
	}
	drop := make(map[string]bool, len(ids))
	for _, i := range ids {
		drop[i] = true
	}
	kept := entries[:0]
	for _, e := range entries {
		if !drop[id(e)] {
			kept = append(kept, e)
		}
	}
	return kept
}

func upsertByID[T any](entries []T, entry T, id func(T) string) []T {
	for i, e := range entries {
		if id(e) == id(entry) {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}
