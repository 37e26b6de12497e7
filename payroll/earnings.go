/*
earnings.go - Earnings composition

PURPOSE:
  Turns an EmployeePayrollInput plus employee master data into a tagged
  list of earnings line items and the subtotals every downstream stage
  needs: taxable earnings, non-taxable cash, and the CPP/EI bases.

LINE ITEMS:
  regular, overtime, holiday, holiday_premium, leave, vacation_pay
  (pay-as-you-go), vacation_payout, bonus, retroactive_pay,
  taxable_benefit, reimbursement

RECLASSIFICATION:
  Hourly regular hours exclude hours already recorded as leave or
  holiday work; those hours are paid by their own line items, so a
  substitution leaves gross unchanged. Salaried regular pay is reduced
  by leave pay for the same reason.

BANK TIME:
  Overtime with the bank_time disposition produces NO cash item. The
  hours (times the multiplier) are reported in BankedHours and credited
  to the time-bank ledger when the run is finalized.

VACATION:
  Vacation leave decrements the balance; accrual-method employees also
  earn vacationRate x vacationable earnings. Both movements are
  computed here but only committed to the ledger at Finalize, so
  repeated recalculation never double-deducts.

SEE ALSO:
  - deductions.go: Consumes the subtotals and pre-tax carry-through
  - engine.go: Supplies the vacation balance and commits ledger deltas
*/
package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EARNINGS ITEMS
// =============================================================================

type EarningsType string

const (
	EarningRegular        EarningsType = "regular"
	EarningOvertime       EarningsType = "overtime"
	EarningHoliday        EarningsType = "holiday"
	EarningHolidayPremium EarningsType = "holiday_premium"
	EarningLeave          EarningsType = "leave"
	EarningVacationPay    EarningsType = "vacation_pay"
	EarningVacationPayout EarningsType = "vacation_payout"
	EarningBonus          EarningsType = "bonus"
	EarningRetroPay       EarningsType = "retroactive_pay"
	EarningTaxableBenefit EarningsType = "taxable_benefit"
	EarningReimbursement  EarningsType = "reimbursement"
)

// EarningsItem is one tagged earnings line. Taxable/Pensionable/
// Insurable control which statutory bases the amount enters.
type EarningsItem struct {
	Type        EarningsType
	Description string
	Hours       decimal.Decimal
	Amount      Money
	Taxable     bool
	Pensionable bool
	Insurable   bool
}

// =============================================================================
// EARNINGS BREAKDOWN
// =============================================================================

// EarningsBreakdown is the composer output: line items, the statutory
// subtotals, and the deferred ledger movements Finalize will commit.
type EarningsBreakdown struct {
	Items []EarningsItem

	TaxableEarnings     Money
	NonTaxableCash      Money
	PensionableEarnings Money
	InsurableEarnings   Money

	// One-time pre-tax deductions carried to the deduction composer.
	// These reduce the income tax base only, never CPP or EI.
	PreTaxOneTime []OneTimeAdjustment

	// Overtime hours (x multiplier) to credit to the time bank.
	BankedHours decimal.Decimal

	// Vacation movements, committed at Finalize.
	VacationTakenHours    decimal.Decimal
	VacationTakenAmount   Money
	VacationPayoutHours   decimal.Decimal
	VacationAccruedHours  decimal.Decimal
	VacationAccruedAmount Money
}

// vacationPayoutAmount sums the vacation payout line items, needed
// when the finalize commit derives the dollar-side ledger movement.
func (b *EarningsBreakdown) vacationPayoutAmount() Money {
	var total Money
	for _, item := range b.Items {
		if item.Type == EarningVacationPayout {
			total = total.Add(item.Amount)
		}
	}
	return total
}

func (b *EarningsBreakdown) add(item EarningsItem) {
	b.Items = append(b.Items, item)
	if item.Taxable {
		b.TaxableEarnings = b.TaxableEarnings.Add(item.Amount)
	} else {
		b.NonTaxableCash = b.NonTaxableCash.Add(item.Amount)
	}
	if item.Pensionable {
		b.PensionableEarnings = b.PensionableEarnings.Add(item.Amount)
	}
	if item.Insurable {
		b.InsurableEarnings = b.InsurableEarnings.Add(item.Amount)
	}
}

// =============================================================================
// EARNINGS COMPOSER
// =============================================================================

type EarningsComposer struct {
	Holidays HolidayProvider
}

// HourlyRateEquivalent returns the employee's effective hourly rate
// for the frequency: the actual rate for hourly employees, period
// salary over standard period hours for salaried ones. Unrounded so
// products keep full scale until the final cent rounding.
func HourlyRateEquivalent(emp *Employee, frequency PayFrequency) decimal.Decimal {
	if emp.Compensation.Salaried() {
		periodSalary := emp.Compensation.AnnualSalary.DivInt(frequency.PeriodsPerYear())
		return periodSalary.DivHours(frequency.StandardHoursPerPeriod())
	}
	return emp.Compensation.HourlyRate.Decimal()
}

// Compose builds the earnings breakdown for one employee.
// vacationBalanceHours is the employee's committed vacation balance as
// of the period end, used to validate payout requests.
func (c *EarningsComposer) Compose(
	ctx context.Context,
	emp *Employee,
	group *PayGroup,
	in *EmployeePayrollInput,
	period Period,
	vacationBalanceHours decimal.Decimal,
) (*EarningsBreakdown, error) {
	if !group.LeavePolicyEnabled && len(in.Leave) > 0 {
		return nil, &ValidationError{EmployeeID: emp.ID, Field: "leave",
			Message: fmt.Sprintf("pay group %s has leave disabled", group.ID)}
	}

	b := &EarningsBreakdown{}
	rateEquiv := HourlyRateEquivalent(emp, group.Frequency)
	leaveHours := in.TotalLeaveHours()
	holidayWorkHours := in.TotalHolidayWorkHours()

	// --- Leave pay (computed first: salaried regular is reduced by it) ---
	var leavePay Money
	leaveItems := make([]EarningsItem, 0, len(in.Leave))
	for _, l := range in.Leave {
		amount := MoneyFromDecimal(rateEquiv.Mul(l.Hours))
		leavePay = leavePay.Add(amount)
		leaveItems = append(leaveItems, EarningsItem{
			Type:        EarningLeave,
			Description: string(l.Type) + " leave",
			Hours:       l.Hours,
			Amount:      amount,
			Taxable:     true,
			Pensionable: true,
			Insurable:   true,
		})
		if l.Type == LeaveVacation {
			b.VacationTakenHours = b.VacationTakenHours.Add(l.Hours)
			b.VacationTakenAmount = b.VacationTakenAmount.Add(amount)
		}
	}

	// --- Regular pay ---
	var regular EarningsItem
	if emp.Compensation.Salaried() {
		periodSalary := emp.Compensation.AnnualSalary.DivInt(group.Frequency.PeriodsPerYear())
		// Leave substitutes for salary; gross stays constant.
		regular = EarningsItem{
			Type:        EarningRegular,
			Description: "salary",
			Hours:       group.Frequency.StandardHoursPerPeriod().Sub(leaveHours),
			Amount:      periodSalary.Sub(leavePay).ClampNonNegative(),
			Taxable:     true,
			Pensionable: true,
			Insurable:   true,
		}
	} else {
		// Hours already reclassified as leave or holiday work are paid
		// by their own line items.
		effectiveHours := in.RegularHours.Sub(leaveHours).Sub(holidayWorkHours)
		if effectiveHours.IsNegative() {
			effectiveHours = decimal.Zero
		}
		regular = EarningsItem{
			Type:        EarningRegular,
			Description: "regular hours",
			Hours:       effectiveHours,
			Amount:      MoneyFromDecimal(rateEquiv.Mul(effectiveHours)),
			Taxable:     true,
			Pensionable: true,
			Insurable:   true,
		}
	}
	b.add(regular)

	// --- Overtime ---
	if in.OvertimeHours.IsPositive() {
		multiplier := group.Overtime.Multiplier
		if in.OvertimeChoice == OvertimeBankTime {
			if !group.Overtime.BankTimeAllowed {
				return nil, &ValidationError{EmployeeID: emp.ID, Field: "overtimeChoice",
					Message: fmt.Sprintf("pay group %s does not allow bank time", group.ID)}
			}
			// No cash this period; hours land in the time bank.
			b.BankedHours = in.OvertimeHours.Mul(multiplier)
		} else {
			b.add(EarningsItem{
				Type:        EarningOvertime,
				Description: "overtime",
				Hours:       in.OvertimeHours,
				Amount:      MoneyFromDecimal(rateEquiv.Mul(in.OvertimeHours).Mul(multiplier)),
				Taxable:     true,
				Pensionable: true,
				Insurable:   true,
			})
		}
	}

	// --- Statutory holiday pay (province rules, external) ---
	// Holiday pay is an additional line on top of the period's regular
	// pay; regular hours and salary are not reduced for the stat day.
	// Operators who pay the stat day in place of worked hours must trim
	// the input's regular hours by the holiday hours themselves.
	holidays, err := c.holidaysInPeriod(ctx, emp.Province, period)
	if err != nil {
		return nil, err
	}
	for _, h := range holidays {
		pay, err := c.Holidays.HolidayPay(ctx, emp, group.Frequency, h)
		if err != nil {
			return nil, fmt.Errorf("holiday pay for %s: %w", emp.ID, err)
		}
		if pay.IsZero() {
			continue
		}
		b.add(EarningsItem{
			Type:        EarningHoliday,
			Description: h.Name,
			Amount:      pay,
			Taxable:     true,
			Pensionable: true,
			Insurable:   true,
		})
	}

	// --- Holiday work premium: 1.5x for hours worked on a holiday ---
	for _, hw := range in.HolidayWork {
		b.add(EarningsItem{
			Type:        EarningHolidayPremium,
			Description: "worked " + hw.Date.Format("2006-01-02"),
			Hours:       hw.Hours,
			Amount:      MoneyFromDecimal(rateEquiv.Mul(hw.Hours).Mul(holidayPremiumMultiplier)),
			Taxable:     true,
			Pensionable: true,
			Insurable:   true,
		})
	}

	// --- Leave items (after regular so the statement reads naturally) ---
	for _, item := range leaveItems {
		b.add(item)
	}

	// --- Vacation pay / accrual on vacationable earnings so far ---
	vacationable := b.TaxableEarnings
	if emp.Vacation.Rate.IsPositive() {
		earned := vacationable.MulRate(emp.Vacation.Rate)
		switch emp.Vacation.PayoutMethod {
		case VacationPayAsYouGo:
			b.add(EarningsItem{
				Type:        EarningVacationPay,
				Description: "vacation pay",
				Amount:      earned,
				Taxable:     true,
				Pensionable: true,
				Insurable:   true,
			})
		case VacationAccrual:
			b.VacationAccruedAmount = earned
			if rateEquiv.IsPositive() {
				b.VacationAccruedHours = earned.Decimal().Div(rateEquiv)
			}
		}
	}

	// --- Vacation payout requests (accrual method only) ---
	if len(in.VacationPayouts) > 0 {
		if emp.Vacation.PayoutMethod != VacationAccrual {
			return nil, &ValidationError{EmployeeID: emp.ID, Field: "vacationPayouts",
				Message: "vacation payouts require the accrual payout method"}
		}
		requested := decimal.Zero
		for _, v := range in.VacationPayouts {
			requested = requested.Add(v.Hours)
		}
		available := vacationBalanceHours.Sub(b.VacationTakenHours)
		if requested.GreaterThan(available) {
			return nil, &InsufficientBalanceError{
				EmployeeID:     emp.ID,
				AvailableHours: available.String(),
				RequestedHours: requested.String(),
				ShortfallHours: requested.Sub(available).String(),
			}
		}
		for _, v := range in.VacationPayouts {
			b.add(EarningsItem{
				Type:        EarningVacationPayout,
				Description: "vacation payout (" + string(v.Reason) + ")",
				Hours:       v.Hours,
				Amount:      MoneyFromDecimal(rateEquiv.Mul(v.Hours)),
				Taxable:     true,
				Pensionable: true,
				Insurable:   true,
			})
		}
		b.VacationPayoutHours = requested
	}

	// --- One-time adjustments ---
	for _, adj := range in.Adjustments {
		switch adj.Type {
		case AdjustmentOneTimeDeduction:
			// Emitted as a pre-tax input to the deduction composer,
			// not an earnings item.
			b.PreTaxOneTime = append(b.PreTaxOneTime, adj)
		case AdjustmentReimbursement:
			b.add(EarningsItem{
				Type:        EarningReimbursement,
				Description: adj.Description,
				Amount:      adj.Amount,
			})
		default:
			b.add(EarningsItem{
				Type:        adjustmentEarningType(adj.Type),
				Description: adj.Description,
				Amount:      adj.Amount,
				Taxable:     adj.Type.Taxable(),
				Pensionable: adj.Type.Pensionable(),
				Insurable:   adj.Insurable(),
			})
		}
	}

	return b, nil
}

var holidayPremiumMultiplier = decimal.NewFromFloat(1.5)

func (c *EarningsComposer) holidaysInPeriod(ctx context.Context, province Province, period Period) ([]Holiday, error) {
	if c.Holidays == nil {
		return nil, nil
	}
	holidays, err := c.Holidays.HolidaysInPeriod(ctx, province, period)
	if err != nil {
		return nil, fmt.Errorf("holiday lookup: %w", err)
	}
	return holidays, nil
}

func adjustmentEarningType(t AdjustmentType) EarningsType {
	switch t {
	case AdjustmentBonus:
		return EarningBonus
	case AdjustmentRetroPay:
		return EarningRetroPay
	case AdjustmentTaxableBenefit:
		return EarningTaxableBenefit
	default:
		return EarningsType(t)
	}
}
