/*
record.go - Immutable per-employee payroll record

PURPOSE:
  Combines earnings + deductions + a point-in-time YTD snapshot into
  the PayrollRecord for one employee in one run. Records are rebuilt
  wholesale on every (re)calculation and become immutable once the
  owning run reaches pending_approval.

INVARIANTS:
  - NetPay = TaxableEarnings + NonTaxableCash - TotalDeductions
  - GrossTotal includes non-taxable reimbursements (cash paid) even
    though they are excluded from every statutory base
  - The YTD snapshot reflects contributions BEFORE this period

SEE ALSO:
  - aggregate.go: Folds records into run totals
  - ledger.go: Source of the YTD snapshot
*/
package payroll

import "time"

// =============================================================================
// YTD SNAPSHOT
// =============================================================================

// YTDSnapshot is the employee's cumulative statutory position for a
// tax year, taken at calculation time (prior periods only). Used to
// respect annual maximums and preserved on the record for audit.
type YTDSnapshot struct {
	TaxYear int
	CPP     Money
	CPP2    Money
	EI      Money
	Gross   Money
}

func (s YTDSnapshot) Add(o YTDSnapshot) YTDSnapshot {
	return YTDSnapshot{
		TaxYear: s.TaxYear,
		CPP:     s.CPP.Add(o.CPP),
		CPP2:    s.CPP2.Add(o.CPP2),
		EI:      s.EI.Add(o.EI),
		Gross:   s.Gross.Add(o.Gross),
	}
}

// =============================================================================
// EMPLOYEE SNAPSHOT - Denormalized master data frozen into the record
// =============================================================================

type EmployeeSnapshot struct {
	ID       EmployeeID
	Name     string
	Province Province
	Salaried bool

	// AnnualSalary or HourlyRate, whichever mode is active.
	Rate Money
}

func snapshotEmployee(emp *Employee) EmployeeSnapshot {
	s := EmployeeSnapshot{
		ID:       emp.ID,
		Name:     emp.Name,
		Province: emp.Province,
		Salaried: emp.Compensation.Salaried(),
	}
	if s.Salaried {
		s.Rate = *emp.Compensation.AnnualSalary
	} else {
		s.Rate = *emp.Compensation.HourlyRate
	}
	return s
}

// =============================================================================
// PAYROLL RECORD
// =============================================================================

type PayrollRecord struct {
	RunID      RunID
	EmployeeID EmployeeID
	Employee   EmployeeSnapshot

	Earnings   EarningsBreakdown
	Deductions DeductionBreakdown
	YTD        YTDSnapshot

	GrossTotal      Money // cash total paid: taxable + non-taxable
	TotalDeductions Money
	NetPay          Money

	// IsModified marks inputs changed since the last calculation.
	IsModified bool

	Warnings     []string
	CalculatedAt time.Time
}

// AssembleRecord builds the immutable record for one employee.
func AssembleRecord(
	runID RunID,
	emp *Employee,
	earnings *EarningsBreakdown,
	deductions *DeductionBreakdown,
	ytd YTDSnapshot,
	at time.Time,
) *PayrollRecord {
	gross := earnings.TaxableEarnings.Add(earnings.NonTaxableCash)
	warnings := append([]string{}, deductions.Warnings...)
	return &PayrollRecord{
		RunID:           runID,
		EmployeeID:      emp.ID,
		Employee:        snapshotEmployee(emp),
		Earnings:        *earnings,
		Deductions:      *deductions,
		YTD:             ytd,
		GrossTotal:      gross,
		TotalDeductions: deductions.Total,
		NetPay:          gross.Sub(deductions.Total),
		Warnings:        warnings,
		CalculatedAt:    at,
	}
}

// ThisPeriodYTD returns the record's own statutory contributions as a
// snapshot delta, appended to the ledger at Finalize.
func (r *PayrollRecord) ThisPeriodYTD() YTDSnapshot {
	delta := YTDSnapshot{TaxYear: r.YTD.TaxYear, Gross: r.GrossTotal}
	for _, d := range r.Deductions.Items {
		switch d.Type {
		case DeductionCPP:
			delta.CPP = delta.CPP.Add(d.Amount)
		case DeductionCPP2:
			delta.CPP2 = delta.CPP2.Add(d.Amount)
		case DeductionEI:
			delta.EI = delta.EI.Add(d.Amount)
		}
	}
	return delta
}
