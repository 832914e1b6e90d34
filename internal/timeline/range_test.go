package timeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/timeline"
)

func Test_Resolve_Week_Starts_On_Monday_Midnight(t *testing.T) {
	t.Parallel()

	loc := time.UTC

	testCases := []struct {
		name      string
		anchor    time.Time
		wantStart time.Time
	}{
		{
			name:      "MidWeekWednesday",
			anchor:    time.Date(2024, 3, 6, 15, 30, 0, 0, loc),
			wantStart: time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
		},
		{
			name:      "AnchorIsMonday",
			anchor:    time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
		},
		{
			name:      "AnchorIsSunday",
			anchor:    time.Date(2024, 3, 10, 23, 59, 0, 0, loc),
			wantStart: time.Date(2024, 3, 4, 0, 0, 0, 0, loc),
		},
		{
			name:      "WeekSpansMonthBoundary",
			anchor:    time.Date(2024, 3, 1, 8, 0, 0, 0, loc),
			wantStart: time.Date(2024, 2, 26, 0, 0, 0, 0, loc),
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			iv, err := timeline.Resolve(timeline.RangeWeek, testCase.anchor, loc)
			require.NoError(t, err)

			assert.Equal(t, time.Monday, iv.Start.Weekday(), "week must start on Monday")
			assert.True(t, iv.Start.Equal(testCase.wantStart), "start = %v, want %v", iv.Start, testCase.wantStart)
			assert.Equal(t, 7*24*time.Hour, iv.End.Sub(iv.Start), "week must be exactly 7 days")

			hh, mm, ss := iv.Start.Clock()
			assert.Zero(t, hh+mm+ss, "week start must be midnight")
		})
	}
}

func Test_Resolve_Day_Month_Year_Boundaries(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	anchor := time.Date(2024, 3, 15, 13, 45, 12, 0, loc)

	testCases := []struct {
		name      string
		kind      timeline.RangeKind
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "Day",
			kind:      timeline.RangeDay,
			wantStart: time.Date(2024, 3, 15, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 3, 16, 0, 0, 0, 0, loc),
		},
		{
			name:      "Month",
			kind:      timeline.RangeMonth,
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2024, 4, 1, 0, 0, 0, 0, loc),
		},
		{
			name:      "Year",
			kind:      timeline.RangeYear,
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
			wantEnd:   time.Date(2025, 1, 1, 0, 0, 0, 0, loc),
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			iv, err := timeline.Resolve(testCase.kind, anchor, loc)
			require.NoError(t, err)
			assert.True(t, iv.Start.Equal(testCase.wantStart), "start = %v, want %v", iv.Start, testCase.wantStart)
			assert.True(t, iv.End.Equal(testCase.wantEnd), "end = %v, want %v", iv.End, testCase.wantEnd)
		})
	}
}

func Test_Resolve_Month_End_Rolls_Over_December(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
	iv, err := timeline.Resolve(timeline.RangeMonth, anchor, time.UTC)
	require.NoError(t, err)

	assert.True(t, iv.End.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func Test_Resolve_Returns_Error_For_Unknown_Kind(t *testing.T) {
	t.Parallel()

	_, err := timeline.Resolve(timeline.RangeKind("fortnight"), time.Now(), time.UTC)
	require.Error(t, err)
}

func Test_Interval_Days_Enumerates_Every_Day_Once(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	iv, err := timeline.Resolve(timeline.RangeMonth, time.Date(2024, 2, 10, 0, 0, 0, 0, loc), loc)
	require.NoError(t, err)

	days := iv.Days()
	require.Len(t, days, 29, "February 2024 is a leap month")

	seen := make(map[time.Time]bool, len(days))
	for _, d := range days {
		assert.False(t, seen[d], "day %v enumerated twice", d)
		seen[d] = true
	}
}
