package rates_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rates"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by the other rates test files.

func money(s string) payroll.Money { return payroll.MustParseMoney(s) }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func computeTax(t *testing.T, taxable, claim payroll.Money, j payroll.Jurisdiction) payroll.Money {
	t.Helper()
	e := rates.NewEvaluator2025()
	tax, err := e.ComputeTax(context.Background(), 2025, taxable, claim, payroll.FrequencyBiweekly, j)
	if err != nil {
		t.Fatalf("compute tax: %v", err)
	}
	return tax
}

// =============================================================================
// BRACKET EVALUATION
// =============================================================================

func TestTax_Federal_PeriodicMethod(t *testing.T) {
	// GIVEN: Bi-weekly taxable earnings of $2,307.69 with the 2025 BPA
	// WHEN: Federal withholding is computed
	// THEN: Annualized income of $59,999.94 lands in the second bracket
	//   and the per-period tax is $258.65
	tax := computeTax(t, money("2307.69"), money("16129.00"), payroll.JurisdictionFederal)

	if tax.String() != "258.65" {
		t.Errorf("expected 258.65, got %s", tax)
	}
}

func TestTax_Provincial_UsesProvinceTable(t *testing.T) {
	// Same earnings against the ON table with the ON BPA: $103.00.
	tax := computeTax(t, money("2307.69"), money("12747.00"),
		payroll.JurisdictionFor(payroll.ProvinceON))

	if tax.String() != "103.00" {
		t.Errorf("expected 103.00, got %s", tax)
	}
}

func TestTax_MarginalBracketsAreCumulative(t *testing.T) {
	// GIVEN: A two-bracket table, 10% to $50,000 and 20% above
	// WHEN: $52,000 of annual income is taxed ($1,000 weekly)
	// THEN: Tax is 50000*0.10 + 2000*0.20 = 5400, or 103.85 per week
	e := rates.NewEvaluator2025()
	e.SetTable(2025, "test", []rates.Bracket{
		{Threshold: money("0"), Rate: dec("0.10")},
		{Threshold: money("50000"), Rate: dec("0.20")},
	})

	tax, err := e.ComputeTax(context.Background(), 2025, money("1000.00"), payroll.Money{},
		payroll.FrequencyWeekly, "test")
	if err != nil {
		t.Fatalf("compute tax: %v", err)
	}
	if tax.String() != "103.85" {
		t.Errorf("expected 103.85, got %s", tax)
	}
}

// =============================================================================
// CREDITS AND EDGE CASES
// =============================================================================

func TestTax_ClaimCreditAtLowestRate(t *testing.T) {
	// The claim credit can drive withholding to zero but never below.
	tax := computeTax(t, money("100.00"), money("16129.00"), payroll.JurisdictionFederal)

	if !tax.IsZero() {
		t.Errorf("expected zero, credit exceeds tax, got %s", tax)
	}
}

func TestTax_NonPositiveTaxableIsZero(t *testing.T) {
	for _, taxable := range []payroll.Money{{}, money("-50.00")} {
		tax := computeTax(t, taxable, money("16129.00"), payroll.JurisdictionFederal)
		if !tax.IsZero() {
			t.Errorf("taxable %s: expected zero, got %s", taxable, tax)
		}
	}
}

func TestTax_MissingTableUnavailable(t *testing.T) {
	e := rates.NewEvaluator2025()

	_, err := e.ComputeTax(context.Background(), 2030, money("2000.00"), payroll.Money{},
		payroll.FrequencyBiweekly, payroll.JurisdictionFederal)
	if !errors.Is(err, payroll.ErrRateProviderUnavailable) {
		t.Errorf("expected ErrRateProviderUnavailable, got %v", err)
	}
}

func TestTax_InvalidFrequencyRejected(t *testing.T) {
	e := rates.NewEvaluator2025()

	_, err := e.ComputeTax(context.Background(), 2025, money("2000.00"), payroll.Money{},
		payroll.PayFrequency("fortnightly"), payroll.JurisdictionFederal)
	if !errors.Is(err, payroll.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
