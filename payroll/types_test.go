package payroll_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// Note: money and dec helpers are defined in earnings_test.go.

func TestEmployee_Validate_NoVacationConfig(t *testing.T) {
	// GIVEN: An employee with no vacation handling configured
	// THEN: The zero-value vacation config is valid master data
	rate := money("25.00")
	emp := &payroll.Employee{
		ID:           "emp-1",
		Name:         "Carmen",
		Province:     payroll.ProvinceBC,
		PayGroupID:   "grp-1",
		Compensation: payroll.Compensation{HourlyRate: &rate},
	}

	if err := emp.Validate(); err != nil {
		t.Errorf("employee without vacation config must validate, got %v", err)
	}
}

func TestVacationConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		config payroll.VacationConfig
		ok     bool
	}{
		{"zero value", payroll.VacationConfig{}, true},
		{"accrual", payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: dec("0.04")}, true},
		{"pay as you go", payroll.VacationConfig{PayoutMethod: payroll.VacationPayAsYouGo, Rate: dec("0.04")}, true},
		{"accrual at zero rate", payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual}, true},
		{"unknown method", payroll.VacationConfig{PayoutMethod: "lump_sum"}, false},
		{"rate without method", payroll.VacationConfig{Rate: dec("0.04")}, false},
		{"negative rate", payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: dec("-0.01")}, false},
		{"rate above one", payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: decimal.NewFromInt(2)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, payroll.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCompensation_Validate_ExactlyOneRate(t *testing.T) {
	salary := money("60000.00")
	rate := money("25.00")

	cases := []struct {
		name string
		comp payroll.Compensation
		ok   bool
	}{
		{"salaried", payroll.Compensation{AnnualSalary: &salary}, true},
		{"hourly", payroll.Compensation{HourlyRate: &rate}, true},
		{"neither", payroll.Compensation{}, false},
		{"both", payroll.Compensation{AnnualSalary: &salary, HourlyRate: &rate}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.comp.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, payroll.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}
