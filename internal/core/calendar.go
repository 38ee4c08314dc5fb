package core

import "time"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether US equity markets are open on t's date.
func IsTradingDay(t time.Time) bool {
	d := Day(t)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !isMarketHoliday(d)
}

// AddTradingDays returns the date n trading days after t. A negative n walks backwards.
func AddTradingDays(t time.Time, n int) time.Time {
	d := Day(t)
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if IsTradingDay(d) {
			n--
		}
	}
	return d
}

// TradingDaysBetween counts trading days in (from, to].
func TradingDaysBetween(from, to time.Time) int {
	a, b := Day(from), Day(to)
	n := 0
	for d := a.AddDate(0, 0, 1); !d.After(b); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			n++
		}
	}
	return n
}

// NextExpiryFriday returns the first weekly expiry on or after t. When the
// Friday is a holiday the contract expires the preceding Thursday.
func NextExpiryFriday(t time.Time) time.Time {
	d := Day(t)
	for {
		for d.Weekday() != time.Friday {
			d = d.AddDate(0, 0, 1)
		}
		if IsTradingDay(d) {
			return d
		}
		if thu := d.AddDate(0, 0, -1); !thu.Before(Day(t)) && IsTradingDay(thu) {
			return thu
		}
		d = d.AddDate(0, 0, 1)
	}
}

func isMarketHoliday(d time.Time) bool {
	for _, h := range marketHolidays(d.Year()) {
		if h.Equal(d) {
			return true
		}
	}
	return false
}

func marketHolidays(year int) []time.Time {
	date := func(m time.Month, day int) time.Time {
		return time.Date(year, m, day, 0, 0, 0, 0, time.UTC)
	}
	hs := []time.Time{
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		easter(year).AddDate(0, 0, -2),
		lastWeekday(year, time.May, time.Monday),
		observed(date(time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(date(time.December, 25)),
	}
	// A Saturday New Year's Day is not observed on the prior Friday.
	if ny := date(time.January, 1); ny.Weekday() != time.Saturday {
		hs = append(hs, observed(ny))
	}
	if year >= 2022 {
		hs = append(hs, observed(date(time.June, 19)))
	}
	return hs
}

func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, m time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, m time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// easter computes Western Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
