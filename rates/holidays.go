/*
holidays.go - Statutory holiday calendar and holiday pay

PURPOSE:
  Implements payroll.HolidayProvider for Canadian statutory holidays.
  National holidays apply everywhere; Family Day and Boxing Day only in
  the provinces that observe them. Movable feasts (Good Friday,
  Victoria Day, Labour Day, Thanksgiving) are stored per year.

HOLIDAY PAY:
  A flat day's wage at the hourly-rate equivalent times the standard
  8-hour day. Province-specific averaging formulas (e.g. ON's 4-week
  average) belong in a richer provider behind the same interface.
*/
package rates

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// CALENDAR
// =============================================================================

type statHoliday struct {
	month     time.Month
	day       int
	name      string
	provinces []payroll.Province // nil = national
}

// Fixed-date holidays, same month/day every year.
var fixedHolidays = []statHoliday{
	{time.January, 1, "New Year's Day", nil},
	{time.July, 1, "Canada Day", nil},
	{time.December, 25, "Christmas Day", nil},
	{time.December, 26, "Boxing Day", []payroll.Province{payroll.ProvinceON}},
}

// Movable holidays, dated per year.
var movableHolidays = map[int][]struct {
	date      time.Time
	name      string
	provinces []payroll.Province
}{
	2025: {
		{payroll.NewDate(2025, time.February, 17), "Family Day", []payroll.Province{
			payroll.ProvinceON, payroll.ProvinceBC, payroll.ProvinceAB, payroll.ProvinceSK, payroll.ProvinceNB}},
		{payroll.NewDate(2025, time.April, 18), "Good Friday", nil},
		{payroll.NewDate(2025, time.May, 19), "Victoria Day", nil},
		{payroll.NewDate(2025, time.September, 1), "Labour Day", nil},
		{payroll.NewDate(2025, time.October, 13), "Thanksgiving", nil},
	},
	2026: {
		{payroll.NewDate(2026, time.February, 16), "Family Day", []payroll.Province{
			payroll.ProvinceON, payroll.ProvinceBC, payroll.ProvinceAB, payroll.ProvinceSK, payroll.ProvinceNB}},
		{payroll.NewDate(2026, time.April, 3), "Good Friday", nil},
		{payroll.NewDate(2026, time.May, 18), "Victoria Day", nil},
		{payroll.NewDate(2026, time.September, 7), "Labour Day", nil},
		{payroll.NewDate(2026, time.October, 12), "Thanksgiving", nil},
	},
}

// Calendar implements payroll.HolidayProvider.
type Calendar struct{}

var _ payroll.HolidayProvider = Calendar{}

func NewCalendar() Calendar { return Calendar{} }

// HolidaysInPeriod returns the statutory holidays a province observes
// within the period, in date order.
func (Calendar) HolidaysInPeriod(_ context.Context, province payroll.Province, period payroll.Period) ([]payroll.Holiday, error) {
	var holidays []payroll.Holiday

	for year := period.Start.Year(); year <= period.End.Year(); year++ {
		for _, h := range fixedHolidays {
			date := payroll.NewDate(year, h.month, h.day)
			if period.Contains(date) && observes(h.provinces, province) {
				holidays = append(holidays, payroll.Holiday{Date: date, Name: h.name})
			}
		}
		for _, h := range movableHolidays[year] {
			if period.Contains(h.date) && observes(h.provinces, province) {
				holidays = append(holidays, payroll.Holiday{Date: h.date, Name: h.name})
			}
		}
	}

	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date.Before(holidays[j].Date) })
	return holidays, nil
}

// HolidayPay pays a standard 8-hour day at the hourly-rate equivalent.
func (Calendar) HolidayPay(_ context.Context, emp *payroll.Employee, frequency payroll.PayFrequency, _ payroll.Holiday) (payroll.Money, error) {
	rate := payroll.HourlyRateEquivalent(emp, frequency)
	return payroll.MoneyFromDecimal(rate.Mul(standardDayHours)), nil
}

var standardDayHours = decimal.NewFromInt(8)

func observes(provinces []payroll.Province, province payroll.Province) bool {
	if len(provinces) == 0 {
		return true
	}
	for _, p := range provinces {
		if p == province {
			return true
		}
	}
	return false
}
