package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/weekend-course-api/internal/models"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		raw     string
		minutes int
		wantErr bool
	}{
		{raw: "07:00", minutes: 420},
		{raw: "21:00", minutes: 1260},
		{raw: "00:00", minutes: 0},
		{raw: "23:59", minutes: 1439},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "9am", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseClock(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.minutes, got, tc.raw)
	}
}

func TestSameDay(t *testing.T) {
	saturday := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)

	assert.True(t, sameDay(saturday, models.SessionDaySaturday))
	assert.False(t, sameDay(saturday, models.SessionDaySunday))
	assert.True(t, sameDay(sunday, models.SessionDaySunday))
	assert.False(t, sameDay(sunday, models.SessionDay("MONDAY")))
}

func TestWithinWindowBoundaries(t *testing.T) {
	// Session 09:00-11:00 with 30 minutes early entry and 15 minutes late entry.
	start, err := parseClock("09:00")
	require.NoError(t, err)
	end, err := parseClock("11:00")
	require.NoError(t, err)

	at := func(clock string) time.Time {
		parsed, perr := time.Parse("15:04", clock)
		require.NoError(t, perr)
		return time.Date(2026, time.March, 7, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	}

	assert.True(t, withinWindow(at("08:30"), start, end, 30, 15), "earliest admissible minute")
	assert.False(t, withinWindow(at("08:29"), start, end, 30, 15))
	assert.True(t, withinWindow(at("09:00"), start, end, 30, 15))
	assert.True(t, withinWindow(at("11:15"), start, end, 30, 15), "latest admissible minute")
	assert.False(t, withinWindow(at("11:16"), start, end, 30, 15))
}

func TestRangesOverlap(t *testing.T) {
	// Touching boundaries do not conflict.
	assert.False(t, rangesOverlap(540, 600, 600, 660))
	assert.False(t, rangesOverlap(600, 660, 540, 600))

	assert.True(t, rangesOverlap(540, 601, 600, 660))
	assert.True(t, rangesOverlap(540, 660, 560, 580), "containment")
	assert.True(t, rangesOverlap(560, 580, 540, 660))
	assert.False(t, rangesOverlap(420, 480, 500, 560))
}
