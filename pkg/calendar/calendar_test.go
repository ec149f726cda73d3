package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddBusinessDays_SkipsSundayOnly(t *testing.T) {
	cal := New(time.UTC)

	// Понедельник 6 января 2025 + 7 рабочих дней: суббота считается, воскресенье нет.
	got := cal.AddBusinessDays(date(2025, time.January, 6), 7)
	assert.Equal(t, date(2025, time.January, 14), got)
}

func TestAddBusinessDays_SkipsHolidays(t *testing.T) {
	cal := New(time.UTC, DefaultHolidays...)

	// 31.12 (1), 01.01 праздник, 02.01 (2), 03.01 (3)
	got := cal.AddBusinessDays(date(2024, time.December, 30), 3)
	assert.Equal(t, date(2025, time.January, 3), got)
}

func TestSubtractBusinessDays(t *testing.T) {
	cal := New(time.UTC, DefaultHolidays...)

	assert.Equal(t, date(2025, time.January, 6), cal.SubtractBusinessDays(date(2025, time.January, 14), 7))
	// 02.01 -> 31.12 (01.01 пропускается)
	assert.Equal(t, date(2024, time.December, 31), cal.SubtractBusinessDays(date(2025, time.January, 2), 1))
}

func TestZeroDaysReturnsDate(t *testing.T) {
	cal := New(time.UTC)
	start := time.Date(2025, time.March, 3, 17, 45, 0, 0, time.UTC)

	assert.Equal(t, date(2025, time.March, 3), cal.AddBusinessDays(start, 0))
	assert.Equal(t, date(2025, time.March, 3), cal.SubtractBusinessDays(start, 0))
}

func TestEmptyHolidaySetIsTotal(t *testing.T) {
	cal := New(nil)
	assert.NotPanics(t, func() {
		cal.AddBusinessDays(date(2025, time.December, 24), 30)
		cal.SubtractBusinessDays(date(2025, time.January, 2), 30)
	})
	assert.True(t, cal.IsBusinessDay(date(2025, time.January, 1)))
}

func TestNeverLandsOnExcludedDay(t *testing.T) {
	cal := New(time.UTC, DefaultHolidays...)
	start := date(2024, time.January, 1)

	for i := 0; i < 400; i++ {
		d := start.AddDate(0, 0, i)
		for _, n := range []int{1, 2, 7, 10, 59} {
			fwd := cal.AddBusinessDays(d, n)
			back := cal.SubtractBusinessDays(d, n)
			require.True(t, cal.IsBusinessDay(fwd), "add(%s, %d) = %s", d, n, fwd)
			require.True(t, cal.IsBusinessDay(back), "sub(%s, %d) = %s", d, n, back)
		}
	}
}

func TestRoundTripCountsSameDays(t *testing.T) {
	cal := New(time.UTC, DefaultHolidays...)
	start := date(2024, time.January, 1)

	for i := 0; i < 400; i++ {
		d := start.AddDate(0, 0, i)
		for _, n := range []int{0, 1, 2, 7, 10, 59} {
			back := cal.SubtractBusinessDays(d, n)
			again := cal.AddBusinessDays(back, n)

			assert.False(t, again.Before(d), "add(sub(%s,%d)) = %s", d, n, again)
			if cal.IsBusinessDay(d) {
				assert.Equal(t, d, again)
			}
			assert.Equal(t, n, cal.CountBusinessDays(d, cal.AddBusinessDays(d, n)))
			// [back, d) содержит ровно n рабочих дней
			assert.Equal(t, n, cal.CountBusinessDays(back.AddDate(0, 0, -1), d.AddDate(0, 0, -1)))
		}
	}
}

func TestCalendarDaysBetween(t *testing.T) {
	loc, err := time.LoadLocation("America/Guayaquil")
	require.NoError(t, err)
	cal := New(loc)

	from := time.Date(2025, time.March, 1, 23, 0, 0, 0, loc)
	to := time.Date(2025, time.March, 8, 1, 0, 0, 0, loc)
	assert.Equal(t, 7, cal.CalendarDaysBetween(from, to))
	assert.Equal(t, -7, cal.CalendarDaysBetween(to, from))
}

func TestFromConfig(t *testing.T) {
	cal, err := FromConfig("UTC", []string{"07-04"})
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(date(2025, time.July, 4)))
	assert.False(t, cal.IsHoliday(date(2025, time.January, 1)))

	_, err = FromConfig("UTC", []string{"13-40"})
	assert.Error(t, err)

	_, err = FromConfig("Mars/Olympus", nil)
	assert.Error(t, err)
}

func TestCivilKeepsDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Guayaquil")
	require.NoError(t, err)
	cal := New(loc)

	fromDB := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	got := cal.Civil(fromDB)
	assert.Equal(t, 10, got.Day())
	assert.Equal(t, loc, got.Location())
	// Date() переводит момент в пояс календаря и сдвигает день назад.
	assert.Equal(t, 9, cal.Date(fromDB).Day())
}
