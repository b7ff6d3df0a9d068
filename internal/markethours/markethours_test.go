package markethours

import (
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"mid session tuesday", ist(2026, time.January, 27, 11, 0), true},
		{"one minute before open", ist(2026, time.January, 27, 9, 14), false},
		{"exactly at open", ist(2026, time.January, 27, 9, 15), true},
		{"last minute of session", ist(2026, time.January, 27, 15, 29), true},
		{"exactly at close", ist(2026, time.January, 27, 15, 30), false},
		{"saturday", ist(2026, time.January, 24, 11, 0), false},
		{"republic day holiday", ist(2026, time.January, 26, 11, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMarketOpen(tc.t); got != tc.want {
				t.Errorf("IsMarketOpen(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestIsMarketOpenConvertsToIST(t *testing.T) {
	// 06:00 UTC is 11:30 IST, inside the session.
	utc := time.Date(2026, time.January, 27, 6, 0, 0, 0, time.UTC)
	if !IsMarketOpen(utc) {
		t.Error("expected open for 06:00 UTC on a trading day")
	}
}

func TestNextOpen(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			"early morning same day",
			ist(2026, time.January, 27, 7, 0),
			ist(2026, time.January, 27, 9, 15),
		},
		{
			"after close rolls to next day",
			ist(2026, time.January, 27, 16, 0),
			ist(2026, time.January, 28, 9, 15),
		},
		{
			"friday evening skips weekend and republic day",
			ist(2026, time.January, 23, 18, 0),
			ist(2026, time.January, 27, 9, 15),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextOpen(tc.from); !got.Equal(tc.want) {
				t.Errorf("NextOpen(%v) = %v, want %v", tc.from, got, tc.want)
			}
		})
	}
}

func TestWSConnectTime(t *testing.T) {
	open := ist(2026, time.January, 27, 9, 15)
	want := ist(2026, time.January, 27, 9, 14)
	if got := WSConnectTime(open); !got.Equal(want) {
		t.Errorf("WSConnectTime = %v, want %v", got, want)
	}
}

func TestIsHolidayUnknownYear(t *testing.T) {
	// 2031 is not in the table; weekday dates report no holiday.
	if IsHoliday(ist(2031, time.January, 27, 11, 0)) {
		t.Error("year without table entries should report no holidays")
	}
}

func TestTimeUntilClose(t *testing.T) {
	if d := TimeUntilClose(ist(2026, time.January, 27, 15, 0)); d != 30*time.Minute {
		t.Errorf("expected 30m, got %v", d)
	}
	if d := TimeUntilClose(ist(2026, time.January, 27, 16, 0)); d != 0 {
		t.Errorf("expected 0 after close, got %v", d)
	}
}
