/*
seed.go - Demo fixture population

PURPOSE:
  Seeds the database with a small set of pay groups and employees so a
  fresh server has something to run payroll against. Enabled with the
  -seed flag; idempotent because saves are upserts.

FIXTURES:
  eng-biweekly:  salaried bi-weekly group in ON with leave policy,
                 overtime banking enabled
  ops-hourly:    hourly weekly group in BC, pay-as-you-go vacation

SEE ALSO:
  - main.go: Invokes seeding before the server starts
*/
package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func seedFixtures(ctx context.Context, store *sqlite.Store) error {
	salary60k := payroll.MustParseMoney("60000.00")
	salary95k := payroll.MustParseMoney("95000.00")
	rate25 := payroll.MustParseMoney("25.00")
	rate32 := payroll.MustParseMoney("32.50")

	groups := []*payroll.PayGroup{
		{
			ID:                 "eng-biweekly",
			Name:               "Engineering (bi-weekly)",
			Frequency:          payroll.FrequencyBiweekly,
			EmploymentType:     "full_time",
			LeavePolicyEnabled: true,
			Overtime: payroll.OvertimePolicy{
				Multiplier:      decimal.NewFromFloat(1.5),
				BankTimeAllowed: true,
			},
			DefaultDeductions: []payroll.RecurringDeduction{
				{ID: "benefits", Name: "Group benefits", Amount: payroll.MustParseMoney("45.00")},
			},
		},
		{
			ID:             "ops-hourly",
			Name:           "Operations (hourly, weekly)",
			Frequency:      payroll.FrequencyWeekly,
			EmploymentType: "hourly",
			Overtime: payroll.OvertimePolicy{
				Multiplier: decimal.NewFromFloat(1.5),
			},
		},
	}

	employees := []*payroll.Employee{
		{
			ID:           "emp-alice",
			Name:         "Alice Tremblay",
			Email:        "alice@example.com",
			Province:     payroll.ProvinceON,
			PayGroupID:   "eng-biweekly",
			Compensation: payroll.Compensation{AnnualSalary: &salary60k},
			RecurringDeductions: []payroll.RecurringDeduction{
				{ID: "rrsp", Name: "Group RRSP", Amount: payroll.MustParseMoney("150.00"), ReducesTaxBase: true},
			},
			Vacation: payroll.VacationConfig{
				PayoutMethod: payroll.VacationAccrual,
				Rate:         decimal.NewFromFloat(0.04),
			},
			HireDate: time.Date(2022, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:           "emp-bastien",
			Name:         "Bastien Roy",
			Email:        "bastien@example.com",
			Province:     payroll.ProvinceON,
			PayGroupID:   "eng-biweekly",
			Compensation: payroll.Compensation{AnnualSalary: &salary95k},
			Vacation: payroll.VacationConfig{
				PayoutMethod: payroll.VacationAccrual,
				Rate:         decimal.NewFromFloat(0.06),
			},
			HireDate: time.Date(2019, 9, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:           "emp-carmen",
			Name:         "Carmen Diaz",
			Email:        "carmen@example.com",
			Province:     payroll.ProvinceBC,
			PayGroupID:   "ops-hourly",
			Compensation: payroll.Compensation{HourlyRate: &rate25},
			Vacation: payroll.VacationConfig{
				PayoutMethod: payroll.VacationPayAsYouGo,
				Rate:         decimal.NewFromFloat(0.04),
			},
			HireDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:           "emp-devi",
			Name:         "Devi Krishnan",
			Email:        "devi@example.com",
			Province:     payroll.ProvinceBC,
			PayGroupID:   "ops-hourly",
			Compensation: payroll.Compensation{HourlyRate: &rate32},
			Vacation: payroll.VacationConfig{
				PayoutMethod: payroll.VacationPayAsYouGo,
				Rate:         decimal.NewFromFloat(0.04),
			},
			HireDate: time.Date(2023, 1, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return err
		}
		if err := store.SavePayGroup(ctx, g); err != nil {
			return err
		}
	}
	for _, e := range employees {
		if err := e.Validate(); err != nil {
			return err
		}
		if err := store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
