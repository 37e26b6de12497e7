/*
Package rates supplies the default implementations of the payroll
engine's external collaborators: the statutory rate provider, the tax
bracket evaluator, and the holiday provider.

PURPOSE:
  Tax tables are versioned configuration data, not algorithmic logic.
  This package ships the 2025 Canadian tables and a JSON loader so
  operators can swap in new years without code changes.

DATA SOURCES:
  CPP/CPP2/EI figures follow the CRA published values for 2025; BPA
  and bracket thresholds are the TD1 amounts per jurisdiction. Update
  yearly via the JSON config or a new built-in table.

SEE ALSO:
  - tax.go: Bracket evaluator over the same tables
  - holidays.go: Statutory holiday calendar
*/
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// STATIC PROVIDER - In-memory year tables
// =============================================================================

// Static serves statutory rates from in-memory year tables. Lookups
// are cheap reads behind an RWMutex; missing years or provinces fail
// with ErrRateProviderUnavailable.
type Static struct {
	mu    sync.RWMutex
	years map[int]yearTable
}

type yearTable struct {
	cppRate            decimal.Decimal
	cppBasicExemption  payroll.Money
	cppMaxPensionable  payroll.Money
	cppMaxContribution payroll.Money

	cpp2Rate            decimal.Decimal
	cpp2MaxPensionable  payroll.Money
	cpp2MaxContribution payroll.Money

	eiRate               decimal.Decimal
	eiMaxInsurable       payroll.Money
	eiMaxPremium         payroll.Money
	eiEmployerMultiplier decimal.Decimal

	federalBPA     payroll.Money
	provincialBPAs map[payroll.Province]payroll.Money
}

// NewStatic2025 returns a provider loaded with the 2025 tables.
func NewStatic2025() *Static {
	s := &Static{years: make(map[int]yearTable)}
	s.years[2025] = yearTable{
		cppRate:            decimal.NewFromFloat(0.0595),
		cppBasicExemption:  payroll.MustParseMoney("3500.00"),
		cppMaxPensionable:  payroll.MustParseMoney("71300.00"),
		cppMaxContribution: payroll.MustParseMoney("4034.10"),

		cpp2Rate:            decimal.NewFromFloat(0.04),
		cpp2MaxPensionable:  payroll.MustParseMoney("81200.00"),
		cpp2MaxContribution: payroll.MustParseMoney("396.00"),

		eiRate:               decimal.NewFromFloat(0.0164),
		eiMaxInsurable:       payroll.MustParseMoney("65700.00"),
		eiMaxPremium:         payroll.MustParseMoney("1077.48"),
		eiEmployerMultiplier: decimal.NewFromFloat(1.4),

		federalBPA: payroll.MustParseMoney("16129.00"),
		provincialBPAs: map[payroll.Province]payroll.Money{
			payroll.ProvinceON: payroll.MustParseMoney("12747.00"),
			payroll.ProvinceBC: payroll.MustParseMoney("12932.00"),
			payroll.ProvinceAB: payroll.MustParseMoney("22323.00"),
			payroll.ProvinceQC: payroll.MustParseMoney("18571.00"),
			payroll.ProvinceMB: payroll.MustParseMoney("15780.00"),
			payroll.ProvinceSK: payroll.MustParseMoney("18991.00"),
			payroll.ProvinceNS: payroll.MustParseMoney("11744.00"),
			payroll.ProvinceNB: payroll.MustParseMoney("13396.00"),
		},
	}
	return s
}

var _ payroll.RateProvider = (*Static)(nil)

// StatutoryRates implements payroll.RateProvider.
func (s *Static) StatutoryRates(_ context.Context, taxYear int, province payroll.Province) (payroll.StatutoryRates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.years[taxYear]
	if !ok {
		return payroll.StatutoryRates{}, fmt.Errorf("no rate table for %d: %w", taxYear, payroll.ErrRateProviderUnavailable)
	}
	bpa, ok := table.provincialBPAs[province]
	if !ok {
		return payroll.StatutoryRates{}, fmt.Errorf("no BPA for province %s in %d: %w", province, taxYear, payroll.ErrRateProviderUnavailable)
	}

	return payroll.StatutoryRates{
		TaxYear:  taxYear,
		Province: province,

		CPPRate:            table.cppRate,
		CPPBasicExemption:  table.cppBasicExemption,
		CPPMaxPensionable:  table.cppMaxPensionable,
		CPPMaxContribution: table.cppMaxContribution,

		CPP2Rate:            table.cpp2Rate,
		CPP2MaxPensionable:  table.cpp2MaxPensionable,
		CPP2MaxContribution: table.cpp2MaxContribution,

		EIRate:               table.eiRate,
		EIMaxInsurable:       table.eiMaxInsurable,
		EIMaxPremium:         table.eiMaxPremium,
		EIEmployerMultiplier: table.eiEmployerMultiplier,

		FederalBPA:    table.federalBPA,
		ProvincialBPA: bpa,
	}, nil
}

// =============================================================================
// JSON CONFIGURATION - Operator-supplied year tables
// =============================================================================

// YearJSON is the wire format for one tax year's statutory constants.
// All money fields are dollar strings, rates are fractions.
type YearJSON struct {
	TaxYear int `json:"tax_year"`

	CPPRate            string `json:"cpp_rate"`
	CPPBasicExemption  string `json:"cpp_basic_exemption"`
	CPPMaxPensionable  string `json:"cpp_max_pensionable"`
	CPPMaxContribution string `json:"cpp_max_contribution"`

	CPP2Rate            string `json:"cpp2_rate"`
	CPP2MaxPensionable  string `json:"cpp2_max_pensionable"`
	CPP2MaxContribution string `json:"cpp2_max_contribution"`

	EIRate               string `json:"ei_rate"`
	EIMaxInsurable       string `json:"ei_max_insurable"`
	EIMaxPremium         string `json:"ei_max_premium"`
	EIEmployerMultiplier string `json:"ei_employer_multiplier"`

	FederalBPA     string            `json:"federal_bpa"`
	ProvincialBPAs map[string]string `json:"provincial_bpas"`
}

// LoadYear parses a YearJSON document and installs it, replacing any
// existing table for that year.
func (s *Static) LoadYear(raw []byte) error {
	var cfg YearJSON
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse rate table: %w", err)
	}
	if cfg.TaxYear == 0 {
		return fmt.Errorf("rate table missing tax_year")
	}

	table := yearTable{provincialBPAs: make(map[payroll.Province]payroll.Money, len(cfg.ProvincialBPAs))}
	var err error
	if table.cppRate, err = parseRate(cfg.CPPRate, "cpp_rate"); err != nil {
		return err
	}
	if table.cpp2Rate, err = parseRate(cfg.CPP2Rate, "cpp2_rate"); err != nil {
		return err
	}
	if table.eiRate, err = parseRate(cfg.EIRate, "ei_rate"); err != nil {
		return err
	}
	if table.eiEmployerMultiplier, err = parseRate(cfg.EIEmployerMultiplier, "ei_employer_multiplier"); err != nil {
		return err
	}
	if table.cppBasicExemption, err = parseMoney(cfg.CPPBasicExemption, "cpp_basic_exemption"); err != nil {
		return err
	}
	if table.cppMaxPensionable, err = parseMoney(cfg.CPPMaxPensionable, "cpp_max_pensionable"); err != nil {
		return err
	}
	if table.cppMaxContribution, err = parseMoney(cfg.CPPMaxContribution, "cpp_max_contribution"); err != nil {
		return err
	}
	if table.cpp2MaxPensionable, err = parseMoney(cfg.CPP2MaxPensionable, "cpp2_max_pensionable"); err != nil {
		return err
	}
	if table.cpp2MaxContribution, err = parseMoney(cfg.CPP2MaxContribution, "cpp2_max_contribution"); err != nil {
		return err
	}
	if table.eiMaxInsurable, err = parseMoney(cfg.EIMaxInsurable, "ei_max_insurable"); err != nil {
		return err
	}
	if table.eiMaxPremium, err = parseMoney(cfg.EIMaxPremium, "ei_max_premium"); err != nil {
		return err
	}
	if table.federalBPA, err = parseMoney(cfg.FederalBPA, "federal_bpa"); err != nil {
		return err
	}
	for prov, amount := range cfg.ProvincialBPAs {
		bpa, err := parseMoney(amount, "provincial_bpas."+prov)
		if err != nil {
			return err
		}
		table.provincialBPAs[payroll.Province(prov)] = bpa
	}

	s.mu.Lock()
	s.years[cfg.TaxYear] = table
	s.mu.Unlock()
	return nil
}

func parseRate(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate table field %s: %w", field, err)
	}
	return d, nil
}

func parseMoney(raw, field string) (payroll.Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return payroll.Money{}, fmt.Errorf("rate table field %s: %w", field, err)
	}
	return payroll.MoneyFromDecimal(d), nil
}
