package payroll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by the other payroll test files.

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func money(s string) payroll.Money { return payroll.MustParseMoney(s) }

func biweeklyGroup() *payroll.PayGroup {
	return &payroll.PayGroup{
		ID:                 "grp-biweekly",
		Name:               "Bi-weekly",
		Frequency:          payroll.FrequencyBiweekly,
		LeavePolicyEnabled: true,
		Overtime: payroll.OvertimePolicy{
			Multiplier:      dec("1.5"),
			BankTimeAllowed: true,
		},
	}
}

func salariedEmployee(id string, annual string) *payroll.Employee {
	salary := money(annual)
	return &payroll.Employee{
		ID:           payroll.EmployeeID(id),
		Name:         "Test " + id,
		Province:     payroll.ProvinceON,
		PayGroupID:   "grp-biweekly",
		Compensation: payroll.Compensation{AnnualSalary: &salary},
		HireDate:     payroll.NewDate(2022, time.January, 10),
	}
}

func hourlyEmployee(id string, rate string) *payroll.Employee {
	hourly := money(rate)
	return &payroll.Employee{
		ID:           payroll.EmployeeID(id),
		Name:         "Test " + id,
		Province:     payroll.ProvinceON,
		PayGroupID:   "grp-biweekly",
		Compensation: payroll.Compensation{HourlyRate: &hourly},
		HireDate:     payroll.NewDate(2022, time.January, 10),
	}
}

func june2025Period() payroll.Period {
	return payroll.PeriodEnding(payroll.FrequencyBiweekly, payroll.NewDate(2025, time.June, 13))
}

func compose(t *testing.T, emp *payroll.Employee, group *payroll.PayGroup, in *payroll.EmployeePayrollInput) *payroll.EarningsBreakdown {
	t.Helper()
	c := &payroll.EarningsComposer{Holidays: payroll.NoHolidays{}}
	b, err := c.Compose(context.Background(), emp, group, in, june2025Period(), decimal.Zero)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return b
}

// =============================================================================
// REGULAR PAY
// =============================================================================

func TestEarnings_Salaried_BiweeklyPeriodSalary(t *testing.T) {
	// GIVEN: A $60,000 salary paid bi-weekly
	// THEN: Regular pay is exactly 60000 / 26 = 2307.69
	emp := salariedEmployee("emp-1", "60000.00")
	in := payroll.NewInput(emp.ID)

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2307.69" {
		t.Errorf("expected 2307.69, got %s", b.TaxableEarnings)
	}
}

func TestEarnings_Hourly_RateTimesHours(t *testing.T) {
	// 80 hours at $25/h = $2,000.00
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2000.00" {
		t.Errorf("expected 2000.00, got %s", b.TaxableEarnings)
	}
}

// =============================================================================
// LEAVE
// =============================================================================

func TestEarnings_SalariedLeave_SubstitutesForSalary(t *testing.T) {
	// GIVEN: A salaried employee taking 8 hours of vacation
	// WHEN: Earnings are composed
	// THEN: Gross is unchanged; the leave item replaces part of salary
	emp := salariedEmployee("emp-1", "60000.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual}
	in := payroll.NewInput(emp.ID)
	in.Leave = []payroll.LeaveEntry{{ID: "l1", Type: payroll.LeaveVacation, Hours: dec("8")}}

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2307.69" {
		t.Errorf("gross should stay constant, got %s", b.TaxableEarnings)
	}
	if !b.VacationTakenHours.Equal(dec("8")) {
		t.Errorf("expected 8 vacation hours taken, got %s", b.VacationTakenHours)
	}
	if b.VacationTakenAmount.IsZero() {
		t.Error("vacation taken amount should be priced at the hourly equivalent")
	}
}

func TestEarnings_HourlyLeave_ReplacesRegularHours(t *testing.T) {
	// 80 input hours with 8 hours sick leave: 72 regular + 8 leave,
	// both at $25, still $2,000 gross.
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.Leave = []payroll.LeaveEntry{{ID: "l1", Type: payroll.LeaveSick, Hours: dec("8")}}

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2000.00" {
		t.Errorf("expected 2000.00, got %s", b.TaxableEarnings)
	}
	var regularHours decimal.Decimal
	for _, item := range b.Items {
		if item.Type == payroll.EarningRegular {
			regularHours = item.Hours
		}
	}
	if !regularHours.Equal(dec("72")) {
		t.Errorf("expected 72 regular hours, got %s", regularHours)
	}
}

func TestEarnings_LeaveDisabledGroup_Rejected(t *testing.T) {
	group := biweeklyGroup()
	group.LeavePolicyEnabled = false
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.Leave = []payroll.LeaveEntry{{ID: "l1", Type: payroll.LeaveVacation, Hours: dec("8")}}

	c := &payroll.EarningsComposer{Holidays: payroll.NoHolidays{}}
	_, err := c.Compose(context.Background(), emp, group, in, june2025Period(), decimal.Zero)
	if !errors.Is(err, payroll.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// =============================================================================
// OVERTIME
// =============================================================================

func TestEarnings_Overtime_Payout(t *testing.T) {
	// 10 OT hours at $25 x 1.5 = $375.00
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.OvertimeHours = dec("10")

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2375.00" {
		t.Errorf("expected 2375.00, got %s", b.TaxableEarnings)
	}
}

func TestEarnings_Overtime_BankTime_NoCash(t *testing.T) {
	// GIVEN: 10 OT hours banked instead of paid
	// THEN: No overtime cash; 15 hours (10 x 1.5) land in the bank
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.OvertimeHours = dec("10")
	in.OvertimeChoice = payroll.OvertimeBankTime

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2000.00" {
		t.Errorf("banked overtime must not pay cash, got %s", b.TaxableEarnings)
	}
	if !b.BankedHours.Equal(dec("15")) {
		t.Errorf("expected 15 banked hours, got %s", b.BankedHours)
	}
}

func TestEarnings_Overtime_BankTimeNotAllowed(t *testing.T) {
	group := biweeklyGroup()
	group.Overtime.BankTimeAllowed = false
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.OvertimeHours = dec("10")
	in.OvertimeChoice = payroll.OvertimeBankTime

	c := &payroll.EarningsComposer{Holidays: payroll.NoHolidays{}}
	_, err := c.Compose(context.Background(), emp, group, in, june2025Period(), decimal.Zero)
	if !errors.Is(err, payroll.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// =============================================================================
// HOLIDAY WORK
// =============================================================================

func TestEarnings_HolidayWork_PremiumRate(t *testing.T) {
	// 8 holiday hours at $25 x 1.5 = $300; those 8 hours leave the
	// regular bucket, so gross is 72x25 + 300 = 2100.
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.HolidayWork = []payroll.HolidayWorkEntry{
		{ID: "h1", Date: payroll.NewDate(2025, time.June, 2), Hours: dec("8")},
	}

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2100.00" {
		t.Errorf("expected 2100.00, got %s", b.TaxableEarnings)
	}
}

// =============================================================================
// VACATION
// =============================================================================

func TestEarnings_VacationPayAsYouGo_AddsItem(t *testing.T) {
	// 4% of $2,000 paid out every period = $80.00
	emp := hourlyEmployee("emp-1", "25.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationPayAsYouGo, Rate: dec("0.04")}
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2080.00" {
		t.Errorf("expected 2080.00, got %s", b.TaxableEarnings)
	}
	if !b.VacationAccruedAmount.IsZero() {
		t.Error("pay-as-you-go must not accrue")
	}
}

func TestEarnings_VacationAccrual_NoCashThisPeriod(t *testing.T) {
	emp := hourlyEmployee("emp-1", "25.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: dec("0.04")}
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2000.00" {
		t.Errorf("accrual must not pay cash, got %s", b.TaxableEarnings)
	}
	if b.VacationAccruedAmount.String() != "80.00" {
		t.Errorf("expected 80.00 accrued, got %s", b.VacationAccruedAmount)
	}
	// $80 at a $25 equivalent is 3.2 hours.
	if !b.VacationAccruedHours.Equal(dec("3.2")) {
		t.Errorf("expected 3.2 accrued hours, got %s", b.VacationAccruedHours)
	}
}

func TestEarnings_VacationPayout_InsufficientBalance(t *testing.T) {
	// GIVEN: A 10-hour committed balance and a 16-hour payout request
	// THEN: The request fails with the shortfall reported
	emp := hourlyEmployee("emp-1", "25.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: dec("0.04")}
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.VacationPayouts = []payroll.VacationPayoutEntry{
		{ID: "v1", Reason: payroll.PayoutCashout, Hours: dec("16")},
	}

	c := &payroll.EarningsComposer{Holidays: payroll.NoHolidays{}}
	_, err := c.Compose(context.Background(), emp, biweeklyGroup(), in, june2025Period(), dec("10"))

	var insufficient *payroll.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.ShortfallHours != "6" {
		t.Errorf("expected shortfall of 6 hours, got %s", insufficient.ShortfallHours)
	}
}

func TestEarnings_VacationPayout_WithinBalance(t *testing.T) {
	emp := hourlyEmployee("emp-1", "25.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: dec("0.04")}
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.VacationPayouts = []payroll.VacationPayoutEntry{
		{ID: "v1", Reason: payroll.PayoutCashout, Hours: dec("8")},
	}

	c := &payroll.EarningsComposer{Holidays: payroll.NoHolidays{}}
	b, err := c.Compose(context.Background(), emp, biweeklyGroup(), in, june2025Period(), dec("40"))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// 2000 regular + 8x25 payout
	if b.TaxableEarnings.String() != "2200.00" {
		t.Errorf("expected 2200.00, got %s", b.TaxableEarnings)
	}
	if !b.VacationPayoutHours.Equal(dec("8")) {
		t.Errorf("expected 8 payout hours, got %s", b.VacationPayoutHours)
	}
}

func TestEarnings_VacationPayout_RequiresAccrualMethod(t *testing.T) {
	emp := hourlyEmployee("emp-1", "25.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationPayAsYouGo, Rate: dec("0.04")}
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.VacationPayouts = []payroll.VacationPayoutEntry{
		{ID: "v1", Reason: payroll.PayoutTermination, Hours: dec("8")},
	}

	c := &payroll.EarningsComposer{Holidays: payroll.NoHolidays{}}
	_, err := c.Compose(context.Background(), emp, biweeklyGroup(), in, june2025Period(), dec("40"))
	if !errors.Is(err, payroll.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func TestEarnings_Adjustments_BasesFollowType(t *testing.T) {
	// GIVEN: A bonus, a non-cash taxable benefit, and a reimbursement
	// THEN: Taxable includes bonus+benefit, EI base excludes the
	//       benefit, cash excludes nothing but the benefit
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.Adjustments = []payroll.OneTimeAdjustment{
		{ID: "a1", Type: payroll.AdjustmentBonus, Amount: money("500.00"), Description: "spot bonus"},
		{ID: "a2", Type: payroll.AdjustmentTaxableBenefit, Amount: money("100.00"), Description: "parking"},
		{ID: "a3", Type: payroll.AdjustmentReimbursement, Amount: money("75.00"), Description: "travel"},
	}

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2600.00" {
		t.Errorf("taxable: expected 2600.00, got %s", b.TaxableEarnings)
	}
	if b.InsurableEarnings.String() != "2500.00" {
		t.Errorf("insurable: expected 2500.00 (benefit excluded), got %s", b.InsurableEarnings)
	}
	if b.NonTaxableCash.String() != "75.00" {
		t.Errorf("non-taxable cash: expected 75.00, got %s", b.NonTaxableCash)
	}
	if b.PensionableEarnings.String() != "2600.00" {
		t.Errorf("pensionable: expected 2600.00, got %s", b.PensionableEarnings)
	}
}

func TestEarnings_OneTimeDeduction_NotAnEarningsItem(t *testing.T) {
	emp := hourlyEmployee("emp-1", "25.00")
	in := payroll.NewInput(emp.ID)
	in.RegularHours = dec("80")
	in.Adjustments = []payroll.OneTimeAdjustment{
		{ID: "a1", Type: payroll.AdjustmentOneTimeDeduction, Amount: money("200.00"), Description: "equipment"},
	}

	b := compose(t, emp, biweeklyGroup(), in)

	if b.TaxableEarnings.String() != "2000.00" {
		t.Errorf("one-time deduction must not change earnings, got %s", b.TaxableEarnings)
	}
	if len(b.PreTaxOneTime) != 1 {
		t.Fatalf("expected 1 pre-tax one-time entry, got %d", len(b.PreTaxOneTime))
	}
}
