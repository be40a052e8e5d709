// Package pipeline turns raw spend records into the monthly aggregates the
// engine works on, and ingests upstream feed files into the store.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/timeseries"
)

// Uncategorized labels records that arrive without a category.
const Uncategorized = "uncategorized"

// AccountSeries is the per-account monthly view of the spend history up to
// and including the reference month.
type AccountSeries struct {
	Account model.Account
	Series  timeseries.Series

	// Current is the total spent in the reference month.
	Current float64

	// InstallmentRatio and SharedRatio are shares of spend (by amount)
	// across the whole history.
	InstallmentRatio float64
	SharedRatio      float64
}

// History returns the months strictly before ref.
func (a AccountSeries) History(ref timeseries.Period) timeseries.Series {
	return a.Series.Until(ref.AddMonths(-1))
}

// Utilization is reference-month spend over the credit limit, as a ratio.
func (a AccountSeries) Utilization() float64 {
	limit := a.Account.Limit()
	if limit <= 0 {
		return 0
	}
	return a.Current / limit
}

// MonthSummary aggregates every account for one calendar month.
type MonthSummary struct {
	Period           timeseries.Period
	Total            float64
	InstallmentTotal float64
	SharedTotal      float64
	Categories       map[string]float64
	ByAccount        map[string]float64
	CategoryAccounts map[string][]string
}

// Aggregate groups records by account and calendar month, ignoring anything
// after ref and any record whose account is unknown. Accounts appear in the
// order given, including those with no spend.
func Aggregate(snap model.Snapshot, ref timeseries.Period) []AccountSeries {
	type acc struct {
		totals      map[timeseries.Period]float64
		sum         float64
		installment float64
		shared      float64
	}
	byAccount := make(map[string]*acc, len(snap.Accounts))
	for _, a := range snap.Accounts {
		byAccount[a.ID] = &acc{totals: make(map[timeseries.Period]float64)}
	}

	for _, r := range snap.Records {
		a, ok := byAccount[r.AccountID]
		if !ok {
			continue
		}
		p := timeseries.PeriodOf(r.Date)
		if p.After(ref) {
			continue
		}
		amount := r.Amount.InexactFloat64()
		a.totals[p] += amount
		a.sum += amount
		if r.Installment {
			a.installment += amount
		}
		if r.Shared {
			a.shared += amount
		}
	}

	out := make([]AccountSeries, 0, len(snap.Accounts))
	for _, account := range snap.Accounts {
		a := byAccount[account.ID]
		series := timeseries.FromMap(a.totals)
		as := AccountSeries{
			Account: account,
			Series:  series,
			Current: series.ValueAt(ref),
		}
		if a.sum > 0 {
			as.InstallmentRatio = a.installment / a.sum
			as.SharedRatio = a.shared / a.sum
		}
		out = append(out, as)
	}
	return out
}

// Summarize aggregates all records that fall in period p.
func Summarize(records []model.SpendRecord, p timeseries.Period) MonthSummary {
	ms := MonthSummary{
		Period:           p,
		Categories:       make(map[string]float64),
		ByAccount:        make(map[string]float64),
		CategoryAccounts: make(map[string][]string),
	}
	seen := make(map[string]map[string]struct{})

	for _, r := range FilterByPeriod(records, p) {
		amount := r.Amount.InexactFloat64()
		cat := CategoryOf(r)

		ms.Total += amount
		ms.Categories[cat] += amount
		ms.ByAccount[r.AccountID] += amount
		if r.Installment {
			ms.InstallmentTotal += amount
		}
		if r.Shared {
			ms.SharedTotal += amount
		}

		if seen[cat] == nil {
			seen[cat] = make(map[string]struct{})
		}
		if _, ok := seen[cat][r.AccountID]; !ok {
			seen[cat][r.AccountID] = struct{}{}
			ms.CategoryAccounts[cat] = append(ms.CategoryAccounts[cat], r.AccountID)
		}
	}
	for _, ids := range ms.CategoryAccounts {
		sort.Strings(ids)
	}
	return ms
}

// MonthlyTotals sums all accounts per month for the months in [from, to].
// Months without spend are reported as zero so the result is contiguous.
func MonthlyTotals(records []model.SpendRecord, from, to timeseries.Period) timeseries.Series {
	totals := make(map[timeseries.Period]float64)
	for p := from; !p.After(to); p = p.AddMonths(1) {
		totals[p] = 0
	}
	for _, r := range FilterByTime(records, from.Start(), to.AddMonths(1).Start()) {
		totals[timeseries.PeriodOf(r.Date)] += r.Amount.InexactFloat64()
	}
	return timeseries.FromMap(totals)
}

// FilterByTime returns records whose date falls within [since, until).
func FilterByTime(records []model.SpendRecord, since, until time.Time) []model.SpendRecord {
	if since.IsZero() && until.IsZero() {
		return records
	}

	var result []model.SpendRecord
	for _, r := range records {
		if !since.IsZero() && r.Date.Before(since) {
			continue
		}
		if !until.IsZero() && !r.Date.Before(until) {
			continue
		}
		result = append(result, r)
	}
	return result
}

// FilterByPeriod returns records dated in calendar month p.
func FilterByPeriod(records []model.SpendRecord, p timeseries.Period) []model.SpendRecord {
	var result []model.SpendRecord
	for _, r := range records {
		if timeseries.PeriodOf(r.Date) == p {
			result = append(result, r)
		}
	}
	return result
}

// FilterByAccount returns records for accounts whose ID or name contains the
// given substring.
func FilterByAccount(snap model.Snapshot, filter string) model.Snapshot {
	if filter == "" {
		return snap
	}
	keep := make(map[string]struct{})
	out := model.Snapshot{TakenAt: snap.TakenAt}
	for _, a := range snap.Accounts {
		if containsIgnoreCase(a.ID, filter) || containsIgnoreCase(a.Name, filter) {
			keep[a.ID] = struct{}{}
			out.Accounts = append(out.Accounts, a)
		}
	}
	for _, r := range snap.Records {
		if _, ok := keep[r.AccountID]; ok {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// CategoryOf normalizes a record's category label.
func CategoryOf(r model.SpendRecord) string {
	c := strings.ToLower(strings.TrimSpace(r.Category))
	if c == "" {
		return Uncategorized
	}
	return c
}

// LatestPeriod returns the month of the most recent record, or the zero
// period when there are none.
func LatestPeriod(records []model.SpendRecord) timeseries.Period {
	var latest time.Time
	for _, r := range records {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	if latest.IsZero() {
		return timeseries.Period{}
	}
	return timeseries.PeriodOf(latest)
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
