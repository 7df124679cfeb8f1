package epi

import (
	"sort"
	"time"

	"github.com/sahel-analytics/epicast/internal/epiweek"
	"github.com/sahel-analytics/epicast/internal/model"
)

// AggregateByPeriod counts case records into (district, period) cells.
// Only observed cells appear; zero-filling against the full period grid
// happens at fusion time.
func AggregateByPeriod(records []model.EpiRecord, g model.Granularity) *model.CaseTable {
	table := &model.CaseTable{
		Granularity: g,
		Counts:      make(map[model.PeriodKey]int),
	}
	for _, r := range records {
		table.Counts[periodKey(r, g)]++
	}
	return table
}

func periodKey(r model.EpiRecord, g model.Granularity) model.PeriodKey {
	if g == model.Monthly {
		return model.PeriodKey{District: r.District, Year: r.Date.Year(), Period: int(r.Date.Month())}
	}
	w := epiweek.FromDate(r.Date)
	return model.PeriodKey{District: r.District, Year: w.Year, Period: w.Week}
}

// AffectedDistricts returns the sorted unique district names appearing
// in the records. Used to scope extraction to districts that actually
// report cases.
func AffectedDistricts(records []model.EpiRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		seen[r.District] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DateSpan returns the earliest and latest record dates. ok is false for
// an empty record set.
func DateSpan(records []model.EpiRecord) (start, end time.Time, ok bool) {
	if len(records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = records[0].Date, records[0].Date
	for _, r := range records[1:] {
		if r.Date.Before(start) {
			start = r.Date
		}
		if r.Date.After(end) {
			end = r.Date
		}
	}
	return start, end, true
}
