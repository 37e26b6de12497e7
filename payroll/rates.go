/*
rates.go - External collaborator interfaces

PURPOSE:
  The engine treats statutory constants, tax-bracket formulas, holiday
  rules, and paystub delivery as external collaborators behind small
  interfaces. Tax tables are versioned configuration data, not
  algorithmic logic; this package only consumes them.

COLLABORATORS:
  RateProvider:    CPP/CPP2/EI rates and maximums, BPA amounts
  TaxEvaluator:    Federal/provincial withholding as a pure function
  HolidayProvider: Statutory holidays and holiday pay per province
  PaystubService:  Paystub generation/delivery on Approve

FAILURE CONTRACT:
  Rate lookups are fast, cacheable, synchronous reads. When a lookup
  fails, the error must wrap ErrRateProviderUnavailable so the engine
  can abort a recalculation without partially committing.

SEE ALSO:
  - rates/ (sibling package): default implementations with 2025 tables
  - deductions.go: Sole consumer of RateProvider and TaxEvaluator
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUTORY RATES
// =============================================================================

// StatutoryRates holds the constants needed for one tax year and
// province. All rates are fractions (0.0595, not 5.95).
type StatutoryRates struct {
	TaxYear  int
	Province Province

	CPPRate            decimal.Decimal
	CPPBasicExemption  Money // annual, prorated per period
	CPPMaxPensionable  Money // YMPE
	CPPMaxContribution Money // annual employee maximum

	CPP2Rate            decimal.Decimal
	CPP2MaxPensionable  Money // YAMPE
	CPP2MaxContribution Money

	EIRate               decimal.Decimal
	EIMaxInsurable       Money
	EIMaxPremium         Money // annual employee maximum
	EIEmployerMultiplier decimal.Decimal

	FederalBPA    Money
	ProvincialBPA Money
}

// RateProvider supplies statutory rates for a tax year and province.
type RateProvider interface {
	StatutoryRates(ctx context.Context, taxYear int, province Province) (StatutoryRates, error)
}

// =============================================================================
// TAX BRACKET EVALUATOR
// =============================================================================

// Jurisdiction selects a bracket table: "federal" or a province code.
type Jurisdiction string

const JurisdictionFederal Jurisdiction = "federal"

func JurisdictionFor(p Province) Jurisdiction { return Jurisdiction(p) }

// TaxEvaluator computes per-period withholding for one jurisdiction.
// Pure function collaborator: same inputs, same output.
type TaxEvaluator interface {
	ComputeTax(ctx context.Context, taxYear int, taxable Money, claim Money,
		frequency PayFrequency, jurisdiction Jurisdiction) (Money, error)
}

// =============================================================================
// HOLIDAY / PROVINCE-RULE PROVIDER
// =============================================================================

// Holiday is a statutory holiday date.
type Holiday struct {
	Date time.Time
	Name string
}

// HolidayProvider answers which holidays fall in a period and how much
// statutory holiday pay an employee receives for each.
type HolidayProvider interface {
	HolidaysInPeriod(ctx context.Context, province Province, period Period) ([]Holiday, error)
	HolidayPay(ctx context.Context, emp *Employee, frequency PayFrequency, holiday Holiday) (Money, error)
}

// NoHolidays is a provider for pay groups without statutory holiday
// handling (contractors, some employment types).
type NoHolidays struct{}

func (NoHolidays) HolidaysInPeriod(context.Context, Province, Period) ([]Holiday, error) {
	return nil, nil
}

func (NoHolidays) HolidayPay(context.Context, *Employee, PayFrequency, Holiday) (Money, error) {
	return Money{}, nil
}

// =============================================================================
// PAYSTUB / NOTIFICATION SERVICE
// =============================================================================

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryResult reports paystub delivery for one employee, enabling
// partial-failure reporting back to the caller.
type DeliveryResult struct {
	EmployeeID EmployeeID
	Status     DeliveryStatus
	Detail     string
}

// PaystubService generates and delivers paystubs when a run is
// approved. Delivery failures do not block approval.
type PaystubService interface {
	GenerateAndSend(ctx context.Context, records []*PayrollRecord) ([]DeliveryResult, error)
}

// NoopPaystubs reports every record as sent without doing anything.
// Used in tests and local development.
type NoopPaystubs struct{}

func (NoopPaystubs) GenerateAndSend(_ context.Context, records []*PayrollRecord) ([]DeliveryResult, error) {
	results := make([]DeliveryResult, len(records))
	for i, r := range records {
		results[i] = DeliveryResult{EmployeeID: r.EmployeeID, Status: DeliverySent}
	}
	return results, nil
}
