package hijri

import (
	"testing"
	"time"
)

func TestJulianDay(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545},
		{time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), 2461100},
	}
	for _, tt := range tests {
		if got := JulianDay(tt.date); got != tt.want {
			t.Errorf("JulianDay(%s) = %d, want %d", tt.date.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestToHijri_KnownDates(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		wantDay   int
		wantMonth int
		wantYear  int
	}{
		{"1 Ramadan 1445", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), 1, 9, 1445},
		{"1 Ramadan 1447", time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC), 1, 9, 1447},
		{"mid Ramadan 1447", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), 11, 9, 1447},
		{"Y2K", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), 24, 9, 1420},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToHijri(tt.date)
			if got.Day != tt.wantDay || got.Month != tt.wantMonth || got.Year != tt.wantYear {
				t.Errorf("ToHijri(%s) = %d/%d/%d, want %d/%d/%d",
					tt.date.Format("2006-01-02"), got.Day, got.Month, got.Year,
					tt.wantDay, tt.wantMonth, tt.wantYear)
			}
			if got.MonthName != MonthNames[got.Month-1] {
				t.Errorf("MonthName = %q, want %q", got.MonthName, MonthNames[got.Month-1])
			}
		})
	}
}

func TestToHijri_ConsecutiveDays(t *testing.T) {
	// 2026-02-20..22 sits inside Ramadan 1447.
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	prev := ToHijri(start)
	for i := 1; i < 3; i++ {
		got := ToHijri(start.AddDate(0, 0, i))
		if got.Month != prev.Month || got.Year != prev.Year {
			t.Fatalf("window crossed a month boundary: %v -> %v", prev, got)
		}
		if got.Day != prev.Day+1 {
			t.Errorf("day %d: got %d, want %d", i, got.Day, prev.Day+1)
		}
		prev = got
	}
}

func TestToHijri_AlwaysInRange(t *testing.T) {
	d := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	for d.Before(end) {
		h := ToHijri(d)
		if h.Day < 1 || h.Day > 30 || h.Month < 1 || h.Month > 12 {
			t.Fatalf("ToHijri(%s) out of range: %+v", d.Format("2006-01-02"), h)
		}
		d = d.AddDate(0, 0, 13)
	}
}

func TestToHijri_UsesCivilDateOfLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2026-02-27 20:00 UTC is already 2026-02-28 in Tokyo.
	utc := time.Date(2026, 2, 27, 20, 0, 0, 0, time.UTC)
	if a, b := ToHijri(utc), ToHijri(utc.In(tokyo)); a.Day == b.Day {
		t.Errorf("expected different Hijri days for UTC and JST views, both %d", a.Day)
	}
}

func TestFormat(t *testing.T) {
	d := Date{Day: 11, Month: 9, MonthName: "Ramadan", Year: 1447}
	if got, want := d.Format(), "11 Ramadan 1447 AH"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
