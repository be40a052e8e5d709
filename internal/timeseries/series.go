// Package timeseries holds the calendar-month series type shared by the
// forecasting, planning and scoring packages.
package timeseries

import (
	"fmt"
	"sort"
	"time"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "2006-01" month string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("parsing period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

// Start returns midnight UTC on the first day of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the period n months later (n may be negative).
func (p Period) AddMonths(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// After reports whether p is strictly later than o.
func (p Period) After(o Period) bool { return o.Before(p) }

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// MonthsUntil returns the number of whole months from p to o.
func (p Period) MonthsUntil(o Period) int {
	return (o.Year-p.Year)*12 + int(o.Month-p.Month)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalText encodes the period as "2006-01".
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a "2006-01" period.
func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Point is one monthly observation.
type Point struct {
	Period Period  `json:"period"`
	Value  float64 `json:"value"`
}

// Series is an ordered sequence of monthly points with strictly increasing,
// unique periods.
type Series []Point

// FromMap builds a sorted series from per-period totals. Negative totals are
// treated as spend magnitudes.
func FromMap(totals map[Period]float64) Series {
	s := make(Series, 0, len(totals))
	for p, v := range totals {
		if v < 0 {
			v = -v
		}
		s = append(s, Point{Period: p, Value: v})
	}
	sort.Slice(s, func(i, j int) bool {
		return s[i].Period.Before(s[j].Period)
	})
	return s
}

// Validate checks the ordering invariant.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i-1].Period.Before(s[i].Period) {
			return fmt.Errorf("series periods out of order at index %d: %s then %s",
				i, s[i-1].Period, s[i].Period)
		}
	}
	return nil
}

// Values returns the point values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the final point. It panics on an empty series.
func (s Series) Last() Point {
	return s[len(s)-1]
}

// Tail returns the last n points (all of them when n >= len(s)).
func (s Series) Tail(n int) Series {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return Series{}
	}
	return s[len(s)-n:]
}

// Until returns the points whose period is not after p.
func (s Series) Until(p Period) Series {
	i := sort.Search(len(s), func(i int) bool { return s[i].Period.After(p) })
	return s[:i]
}

// ValueAt returns the value recorded for p, or 0 when absent.
func (s Series) ValueAt(p Period) float64 {
	for _, pt := range s {
		if pt.Period == p {
			return pt.Value
		}
	}
	return 0
}

// DayOffsets expresses each point as whole days since the first point, which
// keeps regression inputs independent of month-length irregularities.
func (s Series) DayOffsets() []float64 {
	if len(s) == 0 {
		return nil
	}
	origin := s[0].Period.Start()
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = DaysBetween(origin, p.Period.Start())
	}
	return out
}

// DaysBetween returns the number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
