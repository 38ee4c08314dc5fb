package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"regular wednesday", date(2022, 6, 15), true},
		{"saturday", date(2022, 6, 18), false},
		{"sunday", date(2022, 6, 19), false},
		{"juneteenth observed", date(2022, 6, 20), false},
		{"good friday", date(2022, 4, 15), false},
		{"new year observed monday", date(2023, 1, 2), false},
		{"saturday new year not observed friday", date(2021, 12, 31), true},
		{"christmas observed", date(2022, 12, 26), false},
		{"thanksgiving", date(2022, 11, 24), false},
		{"day after thanksgiving", date(2022, 11, 25), true},
		{"memorial day", date(2020, 5, 25), false},
		{"independence day", date(2023, 7, 4), false},
		{"juneteenth before 2022", date(2021, 6, 18), true},
		{"labor day", date(2008, 9, 1), false},
		{"mlk day", date(2020, 1, 20), false},
		{"presidents day", date(2020, 2, 17), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTradingDay(tt.day); got != tt.want {
				t.Errorf("IsTradingDay(%s) = %v, want %v", tt.day.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestAddTradingDays(t *testing.T) {
	start := date(2022, 6, 15)
	got := AddTradingDays(start, 7)
	if want := date(2022, 6, 27); !got.Equal(want) {
		t.Errorf("AddTradingDays = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
	if back := AddTradingDays(got, -7); !back.Equal(start) {
		t.Errorf("AddTradingDays negative = %s, want %s", back.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if same := AddTradingDays(start, 0); !same.Equal(start) {
		t.Errorf("AddTradingDays zero should return start, got %s", same)
	}
}

func TestTradingDaysBetween(t *testing.T) {
	if n := TradingDaysBetween(date(2022, 6, 15), date(2022, 6, 27)); n != 7 {
		t.Errorf("TradingDaysBetween = %d, want 7", n)
	}
	if n := TradingDaysBetween(date(2022, 6, 27), date(2022, 6, 15)); n != 0 {
		t.Errorf("reversed range should be 0, got %d", n)
	}
}

func TestNextExpiryFriday(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"monday to friday", date(2022, 6, 13), date(2022, 6, 17)},
		{"friday itself", date(2022, 6, 17), date(2022, 6, 17)},
		{"saturday rolls forward", date(2022, 6, 18), date(2022, 6, 24)},
		{"good friday moves to thursday", date(2022, 4, 11), date(2022, 4, 14)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextExpiryFriday(tt.from); !got.Equal(tt.want) {
				t.Errorf("NextExpiryFriday = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	in := time.Date(2022, 6, 15, 22, 30, 0, 0, loc)
	if got := Day(in); !got.Equal(date(2022, 6, 16)) {
		t.Errorf("Day should normalize to the UTC date, got %s", got)
	}
}
