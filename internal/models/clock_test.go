package models

import (
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinuteOfDay(t *testing.T) {
	assert.Equal(t, 0, MinuteOfDay("00:00"))
	assert.Equal(t, 540, MinuteOfDay("09:00"))
	assert.Equal(t, 1439, MinuteOfDay("23:59"))
	assert.Equal(t, 540, MinuteOfDay(" 09:00 "))

	for _, bad := range []string{"", "9", "24:00", "09:60", "ab:cd", "-1:00"} {
		assert.Equal(t, -1, MinuteOfDay(bad), bad)
	}
}

func TestClockFromMinute(t *testing.T) {
	assert.Equal(t, "00:00", ClockFromMinute(0))
	assert.Equal(t, "09:05", ClockFromMinute(545))
	assert.Equal(t, "23:59", ClockFromMinute(1439))
}

func TestTimeRangeContains(t *testing.T) {
	window := TimeRange{Start: "09:00", End: "13:00"}
	assert.True(t, window.Contains("09:00", "13:00"))
	assert.True(t, window.Contains("10:00", "11:00"))
	assert.False(t, window.Contains("08:00", "10:00"))
	assert.False(t, window.Contains("12:00", "13:30"))

	assert.True(t, window.Valid())
	assert.False(t, TimeRange{Start: "13:00", End: "09:00"}.Valid())
	assert.False(t, TimeRange{Start: "nope", End: "09:00"}.Valid())
}

func TestWeekStartOf(t *testing.T) {
	cases := map[string]string{
		"2026-08-31": "2026-08-31", // Monday maps to itself
		"2026-09-02": "2026-08-31",
		"2026-09-06": "2026-08-31", // Sunday belongs to the preceding Monday
		"2026-09-07": "2026-09-07",
	}
	for date, want := range cases {
		got, err := WeekStartOf(date)
		require.NoError(t, err)
		assert.Equal(t, want, got, date)
	}

	_, err := WeekStartOf("not-a-date")
	assert.Error(t, err)
}

func TestSessionStart(t *testing.T) {
	start, err := SessionStart("2026-08-31", "10:30")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31T10:30:00Z", start.Format("2006-01-02T15:04:05Z07:00"))
}

func TestParseWeeklyHours(t *testing.T) {
	hours, err := ParseWeeklyHours(types.JSONText(`{"1":[{"start":"08:00","end":"12:00"},{"start":"14:00","end":"17:00"}],"5":[{"start":"08:00","end":"10:00"}]}`))
	require.NoError(t, err)
	require.Len(t, hours[1], 2)
	assert.Equal(t, TimeRange{Start: "14:00", End: "17:00"}, hours[1][1])
	require.Len(t, hours[5], 1)
	assert.Empty(t, hours[3])

	_, err = ParseWeeklyHours(types.JSONText(`{"8":[{"start":"08:00","end":"12:00"}]}`))
	assert.Error(t, err)

	_, err = ParseWeeklyHours(types.JSONText(`{"1":[{"start":"12:00","end":"08:00"}]}`))
	assert.Error(t, err)

	empty, err := ParseWeeklyHours(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
