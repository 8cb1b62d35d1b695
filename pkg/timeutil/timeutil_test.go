package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	SetLocation(loc)
	t.Cleanup(func() { SetLocation(nil) })
	return loc
}

func TestCalendarDay_KeepsCalendarDaysWestOfUTC(t *testing.T) {
	useLocation(t, "America/New_York")

	day, err := ParseDate("2024-03-07")
	require.NoError(t, err)

	assert.Equal(t, Date(2024, time.March, 7), CalendarDay(day))
	assert.Equal(t, Date(2024, time.March, 7), CalendarDay(CalendarDay(day)))
	assert.Equal(t, "2024-03-07", FormatDay(CalendarDay(day)))

	today := Today()
	assert.Equal(t, today, CalendarDay(today))
}

func TestCalendarDay_ResolvesInstantsInSchoolTimezone(t *testing.T) {
	loc := useLocation(t, "America/New_York")

	evening := time.Date(2024, time.March, 7, 21, 30, 0, 0, loc)
	assert.Equal(t, Date(2024, time.March, 7), CalendarDay(evening))

	morning := time.Date(2024, time.March, 8, 7, 0, 0, 0, loc)
	assert.True(t, IsSameDay(morning, Date(2024, time.March, 8)))
	assert.Equal(t, 1, DaysBetween(evening, morning))
}

func TestCalendarDay_EastOfUTC(t *testing.T) {
	loc := useLocation(t, "Asia/Almaty")

	early := time.Date(2024, time.March, 8, 2, 0, 0, 0, loc)
	assert.Equal(t, Date(2024, time.March, 8), CalendarDay(early))
	assert.Equal(t, Date(2024, time.March, 8), CalendarDay(Date(2024, time.March, 8)))
}

func TestIsCalendarDay(t *testing.T) {
	assert.True(t, IsCalendarDay(Date(2024, time.January, 1)))
	assert.False(t, IsCalendarDay(time.Date(2024, time.January, 1, 0, 0, 1, 0, time.UTC)))
	assert.False(t, IsCalendarDay(time.Time{}))
}
