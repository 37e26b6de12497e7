/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every monetary field appears twice: *_cents as the exact integer and
  the bare name as a display string ("2307.69"). Clients doing math use
  the cents field; clients rendering use the string.

VALIDATION:
  Validation is done in handlers and the domain, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/run.go, payroll/record.go: Domain types being projected
*/
package api

import (
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// StartRunRequest starts a payroll run for a pay group.
type StartRunRequest struct {
	PeriodEnd string `json:"period_end"`         // YYYY-MM-DD
	PayDate   string `json:"pay_date,omitempty"` // YYYY-MM-DD, defaults to period end
}

// ApproveRunRequest carries the approver identity.
type ApproveRunRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PayGroupDTO represents a pay group in API responses.
type PayGroupDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Frequency          string `json:"frequency"`
	EmploymentType     string `json:"employment_type,omitempty"`
	LeavePolicyEnabled bool   `json:"leave_policy_enabled"`
	BankTimeAllowed    bool   `json:"bank_time_allowed"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Province   string `json:"province"`
	PayGroupID string `json:"pay_group_id"`
	Salaried   bool   `json:"salaried"`
	HireDate   string `json:"hire_date"`
}

// RunDTO is the run summary returned by list and detail endpoints.
type RunDTO struct {
	ID          string     `json:"id"`
	PayGroupID  string     `json:"pay_group_id"`
	PeriodStart string     `json:"period_start"`
	PeriodEnd   string     `json:"period_end"`
	PayDate     string     `json:"pay_date"`
	TaxYear     int        `json:"tax_year"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	Totals      TotalsDTO  `json:"totals"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TotalsDTO is the run-level aggregate.
type TotalsDTO struct {
	GrossCents        int64  `json:"gross_cents"`
	Gross             string `json:"gross"`
	DeductionsCents   int64  `json:"deductions_cents"`
	Deductions        string `json:"deductions"`
	NetCents          int64  `json:"net_cents"`
	Net               string `json:"net"`
	EmployerCPPCents  int64  `json:"employer_cpp_cents"`
	EmployerEICents   int64  `json:"employer_ei_cents"`
	EmployerCostCents int64  `json:"employer_cost_cents"`
	EmployerCost      string `json:"employer_cost"`
	RecordCount       int    `json:"record_count"`
	ModifiedCount     int    `json:"modified_count"`
}

// RecordDTO is one employee's computed pay for a run.
type RecordDTO struct {
	RunID        string             `json:"run_id"`
	EmployeeID   string             `json:"employee_id"`
	EmployeeName string             `json:"employee_name"`
	Province     string             `json:"province"`
	GrossCents   int64              `json:"gross_cents"`
	Gross        string             `json:"gross"`
	DeductCents  int64              `json:"deductions_cents"`
	Deductions   string             `json:"deductions"`
	NetCents     int64              `json:"net_cents"`
	Net          string             `json:"net"`
	IsModified   bool               `json:"is_modified"`
	Warnings     []string           `json:"warnings,omitempty"`
	Earnings     []EarningsItemDTO  `json:"earnings"`
	DeductItems  []DeductionItemDTO `json:"deduction_items"`
	YTD          YTDDTO             `json:"ytd"`
	CalculatedAt time.Time          `json:"calculated_at"`
}

// EarningsItemDTO is one earnings line.
type EarningsItemDTO struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Hours       string `json:"hours,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Taxable     bool   `json:"taxable"`
}

// DeductionItemDTO is one deduction line.
type DeductionItemDTO struct {
	Type                string `json:"type"`
	Description         string `json:"description"`
	AmountCents         int64  `json:"amount_cents"`
	Amount              string `json:"amount"`
	EmployerAmountCents int64  `json:"employer_amount_cents,omitempty"`
	PreTax              bool   `json:"pre_tax"`
	Capped              bool   `json:"capped"`
}

// YTDDTO is the year-to-date snapshot used for the record.
type YTDDTO struct {
	TaxYear    int    `json:"tax_year"`
	CPPCents   int64  `json:"cpp_cents"`
	CPP2Cents  int64  `json:"cpp2_cents"`
	EICents    int64  `json:"ei_cents"`
	GrossCents int64  `json:"gross_cents"`
	Gross      string `json:"gross"`
}

// BalancesDTO is an employee's committed ledger balances.
type BalancesDTO struct {
	EmployeeID      string `json:"employee_id"`
	AsOf            string `json:"as_of"`
	VacationHours   string `json:"vacation_hours"`
	VacationDollars string `json:"vacation_dollars"`
	TimeBankHours   string `json:"time_bank_hours"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

const dateLayout = "2006-01-02"

func toPayGroupDTO(g *payroll.PayGroup) PayGroupDTO {
	return PayGroupDTO{
		ID:                 string(g.ID),
		Name:               g.Name,
		Frequency:          string(g.Frequency),
		EmploymentType:     g.EmploymentType,
		LeavePolicyEnabled: g.LeavePolicyEnabled,
		BankTimeAllowed:    g.Overtime.BankTimeAllowed,
	}
}

func toEmployeeDTO(e *payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Email:      e.Email,
		Province:   string(e.Province),
		PayGroupID: string(e.PayGroupID),
		Salaried:   e.Compensation.Salaried(),
		HireDate:   e.HireDate.Format(dateLayout),
	}
}

func toRunDTO(run *payroll.PayrollRun) RunDTO {
	return RunDTO{
		ID:          string(run.ID),
		PayGroupID:  string(run.PayGroupID),
		PeriodStart: run.Period.Start.Format(dateLayout),
		PeriodEnd:   run.Period.End.Format(dateLayout),
		PayDate:     run.PayDate.Format(dateLayout),
		TaxYear:     run.TaxYear,
		Status:      string(run.Status),
		Version:     run.Version,
		Totals:      toTotalsDTO(run.Totals),
		ApprovedBy:  run.ApprovedBy,
		ApprovedAt:  run.ApprovedAt,
		PaidAt:      run.PaidAt,
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
	}
}

func toTotalsDTO(t payroll.RunTotals) TotalsDTO {
	return TotalsDTO{
		GrossCents:        t.Gross.Cents(),
		Gross:             t.Gross.String(),
		DeductionsCents:   t.TotalDeductions.Cents(),
		Deductions:        t.TotalDeductions.String(),
		NetCents:          t.Net.Cents(),
		Net:               t.Net.String(),
		EmployerCPPCents:  t.EmployerCPP.Cents(),
		EmployerEICents:   t.EmployerEI.Cents(),
		EmployerCostCents: t.EmployerCost.Cents(),
		EmployerCost:      t.EmployerCost.String(),
		RecordCount:       t.RecordCount,
		ModifiedCount:     t.ModifiedCount,
	}
}

func toRecordDTO(rec *payroll.PayrollRecord) RecordDTO {
	dto := RecordDTO{
		RunID:        string(rec.RunID),
		EmployeeID:   string(rec.EmployeeID),
		EmployeeName: rec.Employee.Name,
		Province:     string(rec.Employee.Province),
		GrossCents:   rec.GrossTotal.Cents(),
		Gross:        rec.GrossTotal.String(),
		DeductCents:  rec.TotalDeductions.Cents(),
		Deductions:   rec.TotalDeductions.String(),
		NetCents:     rec.NetPay.Cents(),
		Net:          rec.NetPay.String(),
		IsModified:   rec.IsModified,
		Warnings:     rec.Warnings,
		YTD: YTDDTO{
			TaxYear:    rec.YTD.TaxYear,
			CPPCents:   rec.YTD.CPP.Cents(),
			CPP2Cents:  rec.YTD.CPP2.Cents(),
			EICents:    rec.YTD.EI.Cents(),
			GrossCents: rec.YTD.Gross.Cents(),
			Gross:      rec.YTD.Gross.String(),
		},
		CalculatedAt: rec.CalculatedAt,
	}
	for _, it := range rec.Earnings.Items {
		e := EarningsItemDTO{
			Type:        string(it.Type),
			Description: it.Description,
			AmountCents: it.Amount.Cents(),
			Amount:      it.Amount.String(),
			Taxable:     it.Taxable,
		}
		if !it.Hours.IsZero() {
			e.Hours = it.Hours.String()
		}
		dto.Earnings = append(dto.Earnings, e)
	}
	for _, it := range rec.Deductions.Items {
		dto.DeductItems = append(dto.DeductItems, DeductionItemDTO{
			Type:                string(it.Type),
			Description:         it.Description,
			AmountCents:         it.Amount.Cents(),
			Amount:              it.Amount.String(),
			EmployerAmountCents: it.EmployerAmount.Cents(),
			PreTax:              it.PreTax,
			Capped:              it.Capped,
		})
	}
	return dto
}

func toBalancesDTO(b payroll.EmployeeBalances) BalancesDTO {
	return BalancesDTO{
		EmployeeID:      string(b.EmployeeID),
		AsOf:            b.AsOf.Format(dateLayout),
		VacationHours:   b.VacationHours.String(),
		VacationDollars: b.VacationDollars.String(),
		TimeBankHours:   b.TimeBankHours.String(),
	}
}
