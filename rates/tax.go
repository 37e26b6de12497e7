/*
tax.go - Periodic-method tax bracket evaluator

PURPOSE:
  Implements payroll.TaxEvaluator over per-jurisdiction bracket tables.
  Withholding uses the simple periodic method: annualize the period's
  taxable earnings, apply brackets, subtract the lowest-rate credit on
  the claim amount, de-annualize, round half-to-even to the cent.

PURITY:
  Same inputs always produce the same output; there is no state beyond
  the tables, so evaluation is safe to call concurrently.
*/
package rates

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// BRACKET TABLES
// =============================================================================

// Bracket taxes annual income above Threshold at Rate, up to the next
// bracket's threshold. Tables are ordered ascending by Threshold and
// must start at zero.
type Bracket struct {
	Threshold payroll.Money
	Rate      decimal.Decimal
}

type bracketKey struct {
	year         int
	jurisdiction payroll.Jurisdiction
}

// Evaluator is the bracket-table tax evaluator.
type Evaluator struct {
	mu     sync.RWMutex
	tables map[bracketKey][]Bracket
}

var _ payroll.TaxEvaluator = (*Evaluator)(nil)

// NewEvaluator2025 returns an evaluator with the 2025 federal and
// provincial bracket tables.
func NewEvaluator2025() *Evaluator {
	e := &Evaluator{tables: make(map[bracketKey][]Bracket)}

	set := func(j payroll.Jurisdiction, brackets []Bracket) {
		e.tables[bracketKey{year: 2025, jurisdiction: j}] = brackets
	}

	set(payroll.JurisdictionFederal, []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.15)},
		{payroll.MustParseMoney("57375"), decimal.NewFromFloat(0.205)},
		{payroll.MustParseMoney("114750"), decimal.NewFromFloat(0.26)},
		{payroll.MustParseMoney("177882"), decimal.NewFromFloat(0.29)},
		{payroll.MustParseMoney("253414"), decimal.NewFromFloat(0.33)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceON), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.0505)},
		{payroll.MustParseMoney("52886"), decimal.NewFromFloat(0.0915)},
		{payroll.MustParseMoney("105775"), decimal.NewFromFloat(0.1116)},
		{payroll.MustParseMoney("150000"), decimal.NewFromFloat(0.1216)},
		{payroll.MustParseMoney("220000"), decimal.NewFromFloat(0.1316)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceBC), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.0506)},
		{payroll.MustParseMoney("49279"), decimal.NewFromFloat(0.077)},
		{payroll.MustParseMoney("98560"), decimal.NewFromFloat(0.105)},
		{payroll.MustParseMoney("113158"), decimal.NewFromFloat(0.1229)},
		{payroll.MustParseMoney("137407"), decimal.NewFromFloat(0.147)},
		{payroll.MustParseMoney("186306"), decimal.NewFromFloat(0.168)},
		{payroll.MustParseMoney("259829"), decimal.NewFromFloat(0.205)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceAB), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.10)},
		{payroll.MustParseMoney("151234"), decimal.NewFromFloat(0.12)},
		{payroll.MustParseMoney("181481"), decimal.NewFromFloat(0.13)},
		{payroll.MustParseMoney("241974"), decimal.NewFromFloat(0.14)},
		{payroll.MustParseMoney("362961"), decimal.NewFromFloat(0.15)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceQC), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.14)},
		{payroll.MustParseMoney("53255"), decimal.NewFromFloat(0.19)},
		{payroll.MustParseMoney("106495"), decimal.NewFromFloat(0.24)},
		{payroll.MustParseMoney("129590"), decimal.NewFromFloat(0.2575)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceMB), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.108)},
		{payroll.MustParseMoney("47564"), decimal.NewFromFloat(0.1275)},
		{payroll.MustParseMoney("101200"), decimal.NewFromFloat(0.174)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceSK), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.105)},
		{payroll.MustParseMoney("53463"), decimal.NewFromFloat(0.125)},
		{payroll.MustParseMoney("148734"), decimal.NewFromFloat(0.145)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceNS), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.0879)},
		{payroll.MustParseMoney("30507"), decimal.NewFromFloat(0.1495)},
		{payroll.MustParseMoney("61015"), decimal.NewFromFloat(0.1667)},
		{payroll.MustParseMoney("95883"), decimal.NewFromFloat(0.175)},
		{payroll.MustParseMoney("154650"), decimal.NewFromFloat(0.21)},
	})
	set(payroll.JurisdictionFor(payroll.ProvinceNB), []Bracket{
		{payroll.MustParseMoney("0"), decimal.NewFromFloat(0.094)},
		{payroll.MustParseMoney("51306"), decimal.NewFromFloat(0.14)},
		{payroll.MustParseMoney("102614"), decimal.NewFromFloat(0.16)},
		{payroll.MustParseMoney("190060"), decimal.NewFromFloat(0.195)},
	})

	return e
}

// SetTable installs or replaces a bracket table.
func (e *Evaluator) SetTable(year int, jurisdiction payroll.Jurisdiction, brackets []Bracket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[bracketKey{year: year, jurisdiction: jurisdiction}] = brackets
}

// =============================================================================
// EVALUATION
// =============================================================================

// ComputeTax implements payroll.TaxEvaluator.
func (e *Evaluator) ComputeTax(
	_ context.Context,
	taxYear int,
	taxable payroll.Money,
	claim payroll.Money,
	frequency payroll.PayFrequency,
	jurisdiction payroll.Jurisdiction,
) (payroll.Money, error) {
	e.mu.RLock()
	brackets, ok := e.tables[bracketKey{year: taxYear, jurisdiction: jurisdiction}]
	e.mu.RUnlock()
	if !ok {
		return payroll.Money{}, fmt.Errorf("no %s bracket table for %d: %w",
			jurisdiction, taxYear, payroll.ErrRateProviderUnavailable)
	}
	if !frequency.Valid() {
		return payroll.Money{}, fmt.Errorf("unknown pay frequency %q: %w", frequency, payroll.ErrValidation)
	}
	if !taxable.IsPositive() {
		return payroll.Money{}, nil
	}

	periods := decimal.NewFromInt(int64(frequency.PeriodsPerYear()))
	annualIncome := taxable.Decimal().Mul(periods)

	annualTax := bracketTax(brackets, annualIncome)
	credit := claim.Decimal().Mul(brackets[0].Rate)
	annualTax = annualTax.Sub(credit)
	if annualTax.IsNegative() {
		return payroll.Money{}, nil
	}

	return payroll.MoneyFromDecimal(annualTax.Div(periods)), nil
}

// bracketTax applies the marginal brackets to an annual income.
func bracketTax(brackets []Bracket, income decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero
	for i, b := range brackets {
		lower := b.Threshold.Decimal()
		if income.LessThanOrEqual(lower) {
			break
		}
		upper := income
		if i+1 < len(brackets) {
			next := brackets[i+1].Threshold.Decimal()
			if next.LessThan(upper) {
				upper = next
			}
		}
		tax = tax.Add(upper.Sub(lower).Mul(b.Rate))
	}
	return tax
}
