/*
Package payroll implements the payroll run engine.

PURPOSE:
  This package takes a population of employees plus period-scoped inputs
  (hours, leave, holiday work, one-time adjustments, vacation payouts)
  and produces a consistent, auditable set of per-employee and aggregate
  payroll results, under a strict run lifecycle
  (draft -> pending_approval -> approved -> paid).

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: master data snapshot consumed by the composers
  - PayGroup: the cohort configuration a run is scoped to
  - Compensation: salaried XOR hourly, exactly one rate active
  - VacationConfig: accrual vs pay-as-you-go vacation handling

DESIGN PRINCIPLES:
  1. Determinism: fixed inputs always produce byte-identical records
  2. Precision: integer cents for money, decimal.Decimal for rates/hours
  3. Immutability: calculated records are snapshots, never edited in place
  4. Auditability: every balance movement goes through the ledger

PIPELINE:
  input.go -> earnings.go -> deductions.go -> record.go -> aggregate.go,
  orchestrated by engine.go and gated by the lifecycle in run.go.

SEE ALSO:
  - money.go: Money representation and rounding policy
  - rates.go: External collaborator interfaces (rates, tax, holidays)
  - ledger.go: Append-only balance ledger (vacation, time bank, YTD)
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PayGroupID string
type RunID string

// Province is a two-letter Canadian province/territory code.
type Province string

const (
	ProvinceON Province = "ON"
	ProvinceBC Province = "BC"
	ProvinceAB Province = "AB"
	ProvinceQC Province = "QC"
	ProvinceMB Province = "MB"
	ProvinceSK Province = "SK"
	ProvinceNS Province = "NS"
	ProvinceNB Province = "NB"
)

// =============================================================================
// COMPENSATION - Salaried XOR hourly
// =============================================================================

// Compensation holds the single active pay rate. Exactly one of
// AnnualSalary/HourlyRate must be set.
type Compensation struct {
	AnnualSalary *Money
	HourlyRate   *Money
}

func (c Compensation) Salaried() bool { return c.AnnualSalary != nil }

func (c Compensation) Validate() error {
	if (c.AnnualSalary == nil) == (c.HourlyRate == nil) {
		return fmt.Errorf("%w: exactly one of annual salary or hourly rate must be set", ErrValidation)
	}
	return nil
}

// =============================================================================
// TAX CLAIMS AND VACATION CONFIGURATION
// =============================================================================

// TaxClaim is a statutory base amount (BPA) plus additional claims from
// the employee's TD1. A zero Base means "use the current-year BPA from
// the rate provider".
type TaxClaim struct {
	Base       Money
	Additional Money
}

type VacationPayoutMethod string

const (
	// VacationNone is the zero value: no vacation pay handling at all.
	VacationNone       VacationPayoutMethod = ""
	VacationAccrual    VacationPayoutMethod = "accrual"
	VacationPayAsYouGo VacationPayoutMethod = "pay_as_you_go"
)

// VacationConfig controls how vacation pay is handled. Rate is a
// fraction of vacationable earnings in [0, 1], e.g. 0.04 for 4%.
// The zero value is valid and means no vacation handling.
type VacationConfig struct {
	PayoutMethod VacationPayoutMethod
	Rate         decimal.Decimal
}

func (v VacationConfig) Validate() error {
	switch v.PayoutMethod {
	case VacationNone, VacationAccrual, VacationPayAsYouGo:
	default:
		return fmt.Errorf("%w: unknown vacation payout method %q", ErrValidation, v.PayoutMethod)
	}
	if v.PayoutMethod == VacationNone && v.Rate.IsPositive() {
		return fmt.Errorf("%w: vacation rate set without a payout method", ErrValidation)
	}
	if v.Rate.IsNegative() || v.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: vacation rate %s outside [0,1]", ErrValidation, v.Rate)
	}
	return nil
}

// =============================================================================
// RECURRING DEDUCTIONS
// =============================================================================

// RecurringDeduction is a fixed per-period deduction (RRSP, union dues,
// group benefits). ReducesTaxBase marks pre-tax treatment for income
// tax only: recurring deductions NEVER reduce the CPP or EI base.
type RecurringDeduction struct {
	ID             string
	Name           string
	Amount         Money
	ReducesTaxBase bool
}

// =============================================================================
// EMPLOYEE - Master data (read-mostly, external)
// =============================================================================

type Employee struct {
	ID       EmployeeID
	Name     string
	Email    string
	Province Province

	PayGroupID   PayGroupID
	Compensation Compensation

	FederalClaim    TaxClaim
	ProvincialClaim TaxClaim

	CPPExempt  bool
	CPP2Exempt bool
	EIExempt   bool

	RecurringDeductions []RecurringDeduction
	Vacation            VacationConfig

	HireDate time.Time

	// PriorYTD carries contributions withheld by a previous employer in
	// the hire year, seeded into the YTD snapshot so annual caps are
	// respected from day one. Nil for continuing employees.
	PriorYTD *YTDSnapshot
}

func (e *Employee) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: employee id required", ErrValidation)
	}
	if err := e.Compensation.Validate(); err != nil {
		return fmt.Errorf("employee %s: %w", e.ID, err)
	}
	if err := e.Vacation.Validate(); err != nil {
		return fmt.Errorf("employee %s: %w", e.ID, err)
	}
	return nil
}

// =============================================================================
// PAY GROUP - Cohort configuration (external)
// =============================================================================

// OvertimePolicy configures overtime treatment for a pay group.
// BankTimeAllowed enables the bank-time disposition, which converts
// overtime into time-bank hours instead of cash.
type OvertimePolicy struct {
	Multiplier      decimal.Decimal
	BankTimeAllowed bool
}

type PayGroup struct {
	ID             PayGroupID
	Name           string
	Frequency      PayFrequency
	EmploymentType string

	LeavePolicyEnabled bool
	Overtime           OvertimePolicy

	// DefaultDeductions apply to every member unless the employee
	// carries a recurring deduction with the same ID.
	DefaultDeductions []RecurringDeduction

	// Statutory exemption defaults for new members; employee flags win.
	CPPExemptDefault bool
	EIExemptDefault  bool
}

func (g *PayGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("%w: pay group id required", ErrValidation)
	}
	if !g.Frequency.Valid() {
		return fmt.Errorf("%w: unknown pay frequency %q", ErrValidation, g.Frequency)
	}
	if g.Overtime.Multiplier.IsNegative() {
		return fmt.Errorf("%w: negative overtime multiplier", ErrValidation)
	}
	return nil
}
