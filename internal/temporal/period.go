package temporal

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sahel-analytics/epicast/internal/epiweek"
	"github.com/sahel-analytics/epicast/internal/model"
)

// Period is one slot of the temporal grid: an epi week or a calendar
// month, with its inclusive date span.
type Period struct {
	Year  int
	Index int // epi week 1..53 or month 1..12
	Start time.Time
	End   time.Time
}

// Periods expands [start, end] into the contiguous run of periods that
// contain it, at the given granularity.
func Periods(g model.Granularity, start, end time.Time) ([]Period, error) {
	if end.Before(start) {
		return nil, eris.Errorf("temporal: range end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	switch g {
	case model.Weekly:
		weeks := epiweek.Range(start, end)
		out := make([]Period, 0, len(weeks))
		for _, w := range weeks {
			out = append(out, Period{Year: w.Year, Index: w.Week, Start: w.Start(), End: w.End()})
		}
		return out, nil
	case model.Monthly:
		var out []Period
		cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		for !cur.After(last) {
			next := cur.AddDate(0, 1, 0)
			out = append(out, Period{
				Year:  cur.Year(),
				Index: int(cur.Month()),
				Start: cur,
				End:   next.AddDate(0, 0, -1),
			})
			cur = next
		}
		return out, nil
	}
	return nil, eris.Errorf("temporal: unknown granularity %q", g)
}
