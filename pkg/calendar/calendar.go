// Package calendar считает рабочие дни для сроков резервирования.
//
// Рабочим считается любой день, кроме воскресенья и фиксированных праздников
// (суббота - рабочий день). Все функции работают с гражданскими датами:
// время суток отбрасывается в часовом поясе календаря.
package calendar

import (
	"fmt"
	"time"
)

// MonthDay - праздник, повторяющийся каждый год в один и тот же день.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// ParseMonthDay разбирает строку вида "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("неверный формат праздника %q, ожидается MM-DD: %w", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// DefaultHolidays - фиксированные государственные праздники.
var DefaultHolidays = []MonthDay{
	{time.January, 1},
	{time.May, 1},
	{time.May, 24},
	{time.August, 10},
	{time.October, 9},
	{time.November, 2},
	{time.November, 3},
	{time.December, 25},
}

type Calendar struct {
	holidays map[MonthDay]struct{}
	loc      *time.Location
}

// New создает календарь. Пустой набор праздников допустим.
func New(loc *time.Location, holidays ...MonthDay) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	set := make(map[MonthDay]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}
	return &Calendar{holidays: set, loc: loc}
}

// FromConfig собирает календарь из названия часового пояса и списка "MM-DD".
// Пустой список означает DefaultHolidays.
func FromConfig(timezone string, holidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", timezone, err)
	}
	if len(holidays) == 0 {
		return New(loc, DefaultHolidays...), nil
	}
	parsed := make([]MonthDay, 0, len(holidays))
	for _, h := range holidays {
		md, err := ParseMonthDay(h)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, md)
	}
	return New(loc, parsed...), nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Date отбрасывает время суток в часовом поясе календаря.
func (c *Calendar) Date(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// Civil переносит дату из колонки DATE (полночь UTC) в часовой пояс календаря
// без сдвига дня.
func (c *Calendar) Civil(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
}

// Today - текущая гражданская дата для момента now.
func (c *Calendar) Today(now time.Time) time.Time {
	return c.Date(now)
}

func (c *Calendar) IsHoliday(d time.Time) bool {
	d = d.In(c.loc)
	_, ok := c.holidays[MonthDay{Month: d.Month(), Day: d.Day()}]
	return ok
}

func (c *Calendar) IsBusinessDay(d time.Time) bool {
	d = d.In(c.loc)
	return d.Weekday() != time.Sunday && !c.IsHoliday(d)
}

// AddBusinessDays идет вперед от start, пока не насчитает n рабочих дней.
// Сам start не считается.
func (c *Calendar) AddBusinessDays(start time.Time, n int) time.Time {
	return c.walk(start, n, 1)
}

// SubtractBusinessDays идет назад от from, пока не насчитает n рабочих дней.
func (c *Calendar) SubtractBusinessDays(from time.Time, n int) time.Time {
	return c.walk(from, n, -1)
}

func (c *Calendar) walk(start time.Time, n int, step int) time.Time {
	d := c.Date(start)
	for counted := 0; counted < n; {
		d = d.AddDate(0, 0, step)
		if c.IsBusinessDay(d) {
			counted++
		}
	}
	return d
}

// CountBusinessDays - число рабочих дней в полуинтервале (from, to].
func (c *Calendar) CountBusinessDays(from, to time.Time) int {
	a, b := c.Date(from), c.Date(to)
	count := 0
	for d := a.AddDate(0, 0, 1); !d.After(b); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// CalendarDaysBetween - разница в календарных днях (to - from).
func (c *Calendar) CalendarDaysBetween(from, to time.Time) int {
	a, b := c.Date(from), c.Date(to)
	// Полдень защищает от сдвигов при переходе на летнее время.
	a = time.Date(a.Year(), a.Month(), a.Day(), 12, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 12, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
