package epiweek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStartOfWeek_SundayAligned(t *testing.T) {
	// 2024-01-01 is a Monday; its week starts Sunday 2023-12-31.
	assert.Equal(t, date(2023, time.December, 31), StartOfWeek(date(2024, time.January, 1)))
	// A Sunday is its own week start.
	assert.Equal(t, date(2023, time.December, 31), StartOfWeek(date(2023, time.December, 31)))
	// A Saturday belongs to the week starting six days earlier.
	assert.Equal(t, date(2023, time.December, 31), StartOfWeek(date(2024, time.January, 6)))
}

func TestFromDate_WeekOneBoundary(t *testing.T) {
	// MMWR week 1 of 2024 runs Sun 2023-12-31 .. Sat 2024-01-06.
	w := FromDate(date(2024, time.January, 1))
	assert.Equal(t, Week{Year: 2024, Week: 1}, w)
	assert.Equal(t, date(2023, time.December, 31), w.Start())
	assert.Equal(t, date(2024, time.January, 6), w.End())

	// Dec 31 2023 falls in 2024 week 1, not a 2023 week.
	assert.Equal(t, Week{Year: 2024, Week: 1}, FromDate(date(2023, time.December, 31)))
}

func TestFromDate_LateDecemberSpill(t *testing.T) {
	// 2025-01-01 is a Wednesday, so week 1 of 2025 starts Sun 2024-12-29.
	w := FromDate(date(2024, time.December, 30))
	assert.Equal(t, Week{Year: 2025, Week: 1}, w)
	assert.Equal(t, date(2024, time.December, 29), w.Start())
}

func TestWeek_StartEndRoundTrip(t *testing.T) {
	for _, d := range []time.Time{
		date(2014, time.October, 31),
		date(2023, time.June, 15),
		date(2024, time.February, 29),
		date(2024, time.November, 30),
	} {
		w := FromDate(d)
		start, end := w.Start(), w.End()
		require.Equal(t, time.Sunday, start.Weekday())
		require.Equal(t, time.Saturday, end.Weekday())
		assert.False(t, d.Before(start), "date %s before week start %s", d, start)
		assert.False(t, d.After(end), "date %s after week end %s", d, end)
		// Every day of the week maps back to the same week.
		for i := 0; i < 7; i++ {
			assert.Equal(t, w, FromDate(start.AddDate(0, 0, i)))
		}
	}
}

func TestWeek_Next(t *testing.T) {
	w := FromDate(date(2023, time.December, 20))
	n := w.Next()
	assert.Equal(t, w.End().AddDate(0, 0, 1), n.Start())
	assert.True(t, w.Before(n))
	assert.False(t, n.Before(w))
}

func TestRange_ContiguousAndInclusive(t *testing.T) {
	start := date(2024, time.June, 3)
	end := date(2024, time.July, 20)
	weeks := Range(start, end)
	require.NotEmpty(t, weeks)

	assert.Equal(t, FromDate(start), weeks[0])
	assert.Equal(t, FromDate(end), weeks[len(weeks)-1])
	for i := 1; i < len(weeks); i++ {
		assert.Equal(t, weeks[i-1].Next(), weeks[i], "gap at index %d", i)
	}
}

func TestRange_SingleWeekAndEmpty(t *testing.T) {
	d := date(2024, time.March, 5)
	assert.Len(t, Range(d, d), 1)
	assert.Nil(t, Range(d, d.AddDate(0, 0, -10)))
}

func TestRange_TwoWeekScenario(t *testing.T) {
	// A two-week window produces exactly two grid periods.
	start := date(2024, time.August, 4) // a Sunday
	weeks := Range(start, start.AddDate(0, 0, 13))
	require.Len(t, weeks, 2)
	assert.Equal(t, weeks[0].Week+1, weeks[1].Week)
}
