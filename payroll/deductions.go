/*
deductions.go - Statutory and voluntary deduction composition

PURPOSE:
  Given the earnings subtotals, employee exemptions, a YTD contribution
  snapshot, and the rate provider, computes CPP/CPP2/EI/federal tax/
  provincial tax plus recurring and one-time deductions.

BASE DISCIPLINE (the classic bug lives here):
  Each statutory computation applies ONLY the reductions that belong to
  its own base:
    - CPP base:  pensionable earnings minus the per-period basic
                 exemption. RRSP does NOT reduce it.
    - EI base:   insurable earnings. NO exemption, NO RRSP reduction.
    - Tax base:  taxable earnings minus pre-tax recurring deductions
                 (RRSP, union dues) minus one-time pre-tax deductions.

CAPS:
  Annual maximums clamp, never error. A contribution that would cross
  the annual max is truncated to exactly reach it, and the clamp is
  recorded as a warning for display.

SEE ALSO:
  - rates.go: RateProvider / TaxEvaluator contracts
  - record.go: YTDSnapshot definition
*/
package payroll

import (
	"context"
	"fmt"
)

// =============================================================================
// DEDUCTION ITEMS
// =============================================================================

type DeductionType string

const (
	DeductionCPP           DeductionType = "cpp"
	DeductionCPP2          DeductionType = "cpp2"
	DeductionEI            DeductionType = "ei"
	DeductionFederalTax    DeductionType = "federal_tax"
	DeductionProvincialTax DeductionType = "provincial_tax"
	DeductionRecurring     DeductionType = "recurring"
	DeductionOneTime       DeductionType = "one_time"
)

// DeductionItem is one deduction line. EmployerAmount carries the
// mirrored employer cost for CPP/CPP2/EI and is zero elsewhere.
type DeductionItem struct {
	Type           DeductionType
	Description    string
	Amount         Money
	EmployerAmount Money
	PreTax         bool
	Capped         bool
}

// DeductionBreakdown is the composer output.
type DeductionBreakdown struct {
	Items []DeductionItem

	Total       Money // employee-side sum
	EmployerCPP Money // base + additional tier
	EmployerEI  Money
	TaxBase     Money // taxable earnings after pre-tax reductions
	Warnings    []string
}

func (b *DeductionBreakdown) add(item DeductionItem) {
	b.Items = append(b.Items, item)
	b.Total = b.Total.Add(item.Amount)
}

// =============================================================================
// DEDUCTION COMPOSER
// =============================================================================

type DeductionComposer struct {
	Rates RateProvider
	Tax   TaxEvaluator
}

// Compose computes all deductions for one employee. earnings carries
// the statutory bases; ytd carries contributions already withheld this
// tax year (including prior-employer amounts for new hires).
func (c *DeductionComposer) Compose(
	ctx context.Context,
	emp *Employee,
	group *PayGroup,
	earnings *EarningsBreakdown,
	ytd YTDSnapshot,
	taxYear int,
) (*DeductionBreakdown, error) {
	rates, err := c.Rates.StatutoryRates(ctx, taxYear, emp.Province)
	if err != nil {
		return nil, fmt.Errorf("statutory rates for %d/%s: %w", taxYear, emp.Province, err)
	}

	b := &DeductionBreakdown{}
	periods := group.Frequency.PeriodsPerYear()

	// --- CPP (employee + employer, mirrored) ---
	if !emp.CPPExempt {
		exemption := rates.CPPBasicExemption.DivInt(periods)
		base := earnings.PensionableEarnings.Sub(exemption).ClampNonNegative()
		contribution := base.MulRate(rates.CPPRate)
		contribution, capped := clampToAnnualMax(contribution, ytd.CPP, rates.CPPMaxContribution)
		if capped {
			b.Warnings = append(b.Warnings, "CPP annual maximum reached; contribution truncated")
		}
		b.add(DeductionItem{
			Type:           DeductionCPP,
			Description:    "CPP",
			Amount:         contribution,
			EmployerAmount: contribution,
			Capped:         capped,
		})
		b.EmployerCPP = b.EmployerCPP.Add(contribution)
	}

	// --- CPP2 (additional tier above YMPE) ---
	if !emp.CPPExempt && !emp.CPP2Exempt {
		periodYMPE := rates.CPPMaxPensionable.DivInt(periods)
		base := earnings.PensionableEarnings.Sub(periodYMPE).ClampNonNegative()
		periodYAMPE := rates.CPP2MaxPensionable.DivInt(periods)
		if ceiling := periodYAMPE.Sub(periodYMPE); base.GreaterThan(ceiling) {
			base = ceiling.ClampNonNegative()
		}
		if base.IsPositive() || ytd.CPP2.IsPositive() {
			contribution := base.MulRate(rates.CPP2Rate)
			contribution, capped := clampToAnnualMax(contribution, ytd.CPP2, rates.CPP2MaxContribution)
			if capped {
				b.Warnings = append(b.Warnings, "CPP2 annual maximum reached; contribution truncated")
			}
			if contribution.IsPositive() {
				b.add(DeductionItem{
					Type:           DeductionCPP2,
					Description:    "CPP additional",
					Amount:         contribution,
					EmployerAmount: contribution,
					Capped:         capped,
				})
				b.EmployerCPP = b.EmployerCPP.Add(contribution)
			}
		}
	}

	// --- EI (employee + employer multiplier) ---
	if !emp.EIExempt {
		// No per-period exemption, no pre-tax reductions: the base is
		// insurable earnings, full stop.
		premium := earnings.InsurableEarnings.MulRate(rates.EIRate)
		premium, capped := clampToAnnualMax(premium, ytd.EI, rates.EIMaxPremium)
		if capped {
			b.Warnings = append(b.Warnings, "EI annual maximum reached; premium truncated")
		}
		employer := premium.MulRate(rates.EIEmployerMultiplier)
		b.add(DeductionItem{
			Type:           DeductionEI,
			Description:    "EI",
			Amount:         premium,
			EmployerAmount: employer,
			Capped:         capped,
		})
		b.EmployerEI = employer
	}

	// --- Pre-tax reductions for the income tax base only ---
	taxBase := earnings.TaxableEarnings
	recurring := mergeRecurring(group.DefaultDeductions, emp.RecurringDeductions)
	for _, d := range recurring {
		if d.ReducesTaxBase {
			taxBase = taxBase.Sub(d.Amount)
		}
	}
	for _, adj := range earnings.PreTaxOneTime {
		taxBase = taxBase.Sub(adj.Amount)
	}
	if taxBase.IsNegative() {
		b.Warnings = append(b.Warnings,
			fmt.Sprintf("pre-tax deductions exceed taxable earnings by %s; tax base clamped to zero", taxBase.Neg()))
		taxBase = Money{}
	}
	b.TaxBase = taxBase

	// --- Federal and provincial income tax ---
	federalClaim := claimAmount(emp.FederalClaim, rates.FederalBPA)
	federal, err := c.Tax.ComputeTax(ctx, taxYear, taxBase, federalClaim, group.Frequency, JurisdictionFederal)
	if err != nil {
		return nil, fmt.Errorf("federal tax for %s: %w", emp.ID, err)
	}
	b.add(DeductionItem{Type: DeductionFederalTax, Description: "federal income tax", Amount: federal})

	provincialClaim := claimAmount(emp.ProvincialClaim, rates.ProvincialBPA)
	provincial, err := c.Tax.ComputeTax(ctx, taxYear, taxBase, provincialClaim, group.Frequency, JurisdictionFor(emp.Province))
	if err != nil {
		return nil, fmt.Errorf("provincial tax for %s: %w", emp.ID, err)
	}
	b.add(DeductionItem{Type: DeductionProvincialTax, Description: "provincial income tax", Amount: provincial})

	// --- Recurring deductions (RRSP, union dues, benefits) ---
	for _, d := range recurring {
		b.add(DeductionItem{
			Type:        DeductionRecurring,
			Description: d.Name,
			Amount:      d.Amount,
			PreTax:      d.ReducesTaxBase,
		})
	}

	// --- One-time deductions ---
	for _, adj := range earnings.PreTaxOneTime {
		b.add(DeductionItem{
			Type:        DeductionOneTime,
			Description: adj.Description,
			Amount:      adj.Amount,
			PreTax:      true,
		})
	}

	return b, nil
}

// clampToAnnualMax truncates a contribution so ytd + contribution
// never exceeds the annual maximum. Returns the clamped value and
// whether clamping occurred.
func clampToAnnualMax(contribution, ytd, annualMax Money) (Money, bool) {
	room := annualMax.Sub(ytd).ClampNonNegative()
	if contribution.GreaterThan(room) {
		return room, true
	}
	return contribution, false
}

// claimAmount composes the statutory base (falling back to the
// current-year BPA when unset) plus additional TD1 claims.
func claimAmount(claim TaxClaim, bpa Money) Money {
	base := claim.Base
	if base.IsZero() {
		base = bpa
	}
	return base.Add(claim.Additional)
}

// mergeRecurring overlays employee deductions on group defaults;
// an employee entry with the same ID replaces the group's.
func mergeRecurring(defaults, own []RecurringDeduction) []RecurringDeduction {
	merged := make([]RecurringDeduction, 0, len(defaults)+len(own))
	overridden := make(map[string]bool, len(own))
	for _, d := range own {
		overridden[d.ID] = true
	}
	for _, d := range defaults {
		if !overridden[d.ID] {
			merged = append(merged, d)
		}
	}
	return append(merged, own...)
}
