// Package calendar answers whether a given date is a Japanese non-working
// day: a weekend or a national holiday under the Public Holiday Law,
// including substitute holidays.
package calendar

import "time"

// BusinessCalendar is the oracle consulted by the notification dispatcher
// before starting a daily run.
type BusinessCalendar struct{}

func New() *BusinessCalendar {
	return &BusinessCalendar{}
}

// IsNonWorkingDay reports whether d is a Saturday, Sunday or national
// holiday.
func (c *BusinessCalendar) IsNonWorkingDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return IsNationalHoliday(d)
}

// IsNationalHoliday reports whether d is a Japanese national holiday,
// counting substitute holidays observed on the Monday (or later) after a
// holiday that falls on a Sunday.
func IsNationalHoliday(d time.Time) bool {
	d = dateOnly(d)
	if isListedHoliday(d) {
		return true
	}
	// Substitute holiday: the first non-holiday day after a holiday Sunday.
	if d.Weekday() != time.Sunday {
		prev := d.AddDate(0, 0, -1)
		for isListedHoliday(prev) {
			if prev.Weekday() == time.Sunday {
				return true
			}
			prev = prev.AddDate(0, 0, -1)
		}
	}
	// Citizen's holiday: a weekday sandwiched between two holidays
	// (in practice the September silver-week gap).
	if d.Weekday() != time.Sunday &&
		isListedHoliday(d.AddDate(0, 0, -1)) && isListedHoliday(d.AddDate(0, 0, 1)) {
		return true
	}
	return false
}

func isListedHoliday(d time.Time) bool {
	y, m, day := d.Year(), d.Month(), d.Day()
	switch m {
	case time.January:
		return day == 1 || d.Equal(nthMonday(y, time.January, 2)) // 元日, 成人の日
	case time.February:
		return day == 11 || (day == 23 && y >= 2020) // 建国記念の日, 天皇誕生日
	case time.March:
		return day == vernalEquinoxDay(y) // 春分の日
	case time.April:
		return day == 29 // 昭和の日
	case time.May:
		return day == 3 || day == 4 || day == 5 // 憲法記念日, みどりの日, こどもの日
	case time.July:
		return d.Equal(nthMonday(y, time.July, 3)) // 海の日
	case time.August:
		return day == 11 && y >= 2016 // 山の日
	case time.September:
		return d.Equal(nthMonday(y, time.September, 3)) || day == autumnalEquinoxDay(y) // 敬老の日, 秋分の日
	case time.October:
		return d.Equal(nthMonday(y, time.October, 2)) // スポーツの日
	case time.November:
		return day == 3 || day == 23 // 文化の日, 勤労感謝の日
	}
	return false
}

// nthMonday returns the nth Monday of the month as a date-only value.
func nthMonday(year int, month time.Month, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// Equinox day approximations, valid for 2000-2099.
func vernalEquinoxDay(year int) int {
	return equinoxDay(20.69115, year)
}

func autumnalEquinoxDay(year int) int {
	return equinoxDay(23.09, year)
}

func equinoxDay(base float64, year int) int {
	y := year - 2000
	return int(base + 0.242194*float64(y) - float64(y/4))
}

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
