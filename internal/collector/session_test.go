package collector

import (
	"testing"
	"time"
)

func shanghaiTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	// 2026-02-13 is a Friday
	return time.Date(2026, 2, 13, hour, min, 0, 0, shanghaiTZ)
}

func TestIsMarketOpenBoundaries(t *testing.T) {
	cases := []struct {
		hour, min int
		want      bool
	}{
		{9, 29, false},
		{9, 30, true},
		{11, 30, true},
		{11, 31, false},
		{12, 59, false},
		{13, 0, true},
		{15, 0, true},
		{15, 1, false},
	}
	for _, tc := range cases {
		now := shanghaiTime(t, tc.hour, tc.min)
		if got := IsMarketOpen(now); got != tc.want {
			t.Errorf("IsMarketOpen(%02d:%02d) = %v, want %v", tc.hour, tc.min, got, tc.want)
		}
	}
}

func TestIsMarketOpenWeekend(t *testing.T) {
	// 2026-02-14 is a Saturday
	sat := time.Date(2026, 2, 14, 10, 0, 0, 0, shanghaiTZ)
	if IsMarketOpen(sat) {
		t.Error("market must be closed on Saturday")
	}
	sun := sat.AddDate(0, 0, 1)
	if IsMarketOpen(sun) {
		t.Error("market must be closed on Sunday")
	}
}

func TestIsMarketOpenConvertsZones(t *testing.T) {
	// 02:00 UTC on a Friday is 10:00 in Shanghai, inside the morning session.
	utc := time.Date(2026, 2, 13, 2, 0, 0, 0, time.UTC)
	if !IsMarketOpen(utc) {
		t.Error("UTC instant inside the Shanghai session should report open")
	}
}

func TestMinuteStamp(t *testing.T) {
	now := time.Date(2026, 2, 13, 10, 5, 42, 123456789, shanghaiTZ)
	if got := MinuteStamp(now); got != "2026-02-13 10:05:00" {
		t.Errorf("MinuteStamp = %q", got)
	}
}
