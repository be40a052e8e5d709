package pipeline

import (
	"sort"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/timeseries"
)

// CategoryStats holds one category's spend over a window.
type CategoryStats struct {
	Category     string
	Total        float64
	SharePercent float64
	Accounts     []string
}

// AggregateCategories computes per-category totals for month p, sorted by
// total descending (ties broken by name so output is deterministic).
func AggregateCategories(records []model.SpendRecord, p timeseries.Period) []CategoryStats {
	ms := Summarize(records, p)

	cats := make([]CategoryStats, 0, len(ms.Categories))
	for name, total := range ms.Categories {
		cs := CategoryStats{
			Category: name,
			Total:    total,
			Accounts: ms.CategoryAccounts[name],
		}
		if ms.Total > 0 {
			cs.SharePercent = total / ms.Total * 100
		}
		cats = append(cats, cs)
	}

	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Total != cats[j].Total {
			return cats[i].Total > cats[j].Total
		}
		return cats[i].Category < cats[j].Category
	})
	return cats
}

// CountCategories returns how many distinct categories had positive spend in p.
func CountCategories(records []model.SpendRecord, p timeseries.Period) int {
	n := 0
	for _, total := range Summarize(records, p).Categories {
		if total > 0 {
			n++
		}
	}
	return n
}
