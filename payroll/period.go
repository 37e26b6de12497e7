package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY FREQUENCY - Determines the periods-per-year divisor
// =============================================================================

type PayFrequency string

const (
	FrequencyWeekly      PayFrequency = "weekly"
	FrequencyBiweekly    PayFrequency = "bi-weekly"
	FrequencySemiMonthly PayFrequency = "semi-monthly"
	FrequencyMonthly     PayFrequency = "monthly"
)

// PeriodsPerYear returns the annual divisor for the frequency.
func (f PayFrequency) PeriodsPerYear() int {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyBiweekly:
		return 26
	case FrequencySemiMonthly:
		return 24
	case FrequencyMonthly:
		return 12
	default:
		return 0
	}
}

func (f PayFrequency) Valid() bool { return f.PeriodsPerYear() > 0 }

// standardAnnualHours is the 40-hour-week baseline used to derive the
// hourly-rate equivalent for salaried employees.
var standardAnnualHours = decimal.NewFromInt(2080)

// StandardHoursPerPeriod returns the full-time hours in one period
// (40/week baseline): 40 weekly, 80 bi-weekly, 86.6r semi-monthly.
func (f PayFrequency) StandardHoursPerPeriod() decimal.Decimal {
	return standardAnnualHours.Div(decimal.NewFromInt(int64(f.PeriodsPerYear())))
}

// =============================================================================
// PERIOD - One pay period, date-granular, inclusive on both ends
// =============================================================================

type Period struct {
	Start time.Time
	End   time.Time
}

// NewDate builds a UTC date at day granularity.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p Period) Valid() bool { return !p.End.Before(p.Start) }

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// PeriodEnding derives the period that ends on the given date for a
// frequency. Weekly and bi-weekly periods have fixed lengths; the
// semi-monthly split is 1st-15th / 16th-EOM; monthly is the calendar
// month containing the end date.
func PeriodEnding(f PayFrequency, end time.Time) Period {
	end = NewDate(end.Year(), end.Month(), end.Day())
	switch f {
	case FrequencyWeekly:
		return Period{Start: end.AddDate(0, 0, -6), End: end}
	case FrequencyBiweekly:
		return Period{Start: end.AddDate(0, 0, -13), End: end}
	case FrequencySemiMonthly:
		if end.Day() <= 15 {
			return Period{Start: NewDate(end.Year(), end.Month(), 1), End: end}
		}
		return Period{Start: NewDate(end.Year(), end.Month(), 16), End: end}
	case FrequencyMonthly:
		return Period{Start: NewDate(end.Year(), end.Month(), 1), End: end}
	default:
		return Period{Start: end, End: end}
	}
}

// YearSpan returns the calendar-year period used for YTD lookups.
func YearSpan(year int) Period {
	return Period{Start: NewDate(year, time.January, 1), End: NewDate(year, time.December, 31)}
}
