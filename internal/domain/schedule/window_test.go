package schedule

import (
	"errors"
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", name, err)
	}
	return loc
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil {
		t.Fatalf("empty name: %v", err)
	}
	if loc.String() != DefaultTimezone {
		t.Errorf("empty name resolved to %q, want %q", loc.String(), DefaultTimezone)
	}
	if _, err := LoadLocation("Mars/Olympus"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestLocalDateString(t *testing.T) {
	tests := []struct {
		name string
		zone string
		at   time.Time
		want string
	}{
		{"kiev before midnight utc", "Europe/Kiev", time.Date(2024, 3, 9, 22, 30, 0, 0, time.UTC), "2024-03-10"},
		{"kiev summer", "Europe/Kiev", time.Date(2024, 7, 1, 20, 59, 0, 0, time.UTC), "2024-07-01"},
		{"kiev summer after local midnight", "Europe/Kiev", time.Date(2024, 7, 1, 21, 0, 0, 0, time.UTC), "2024-07-02"},
		{"new york behind utc", "America/New_York", time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC), "2023-12-31"},
		{"kolkata half hour offset", "Asia/Kolkata", time.Date(2024, 1, 1, 18, 29, 0, 0, time.UTC), "2024-01-01"},
		{"kolkata crosses", "Asia/Kolkata", time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC), "2024-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := mustLoad(t, tt.zone)
			got := LocalDateString(loc, tt.at)
			if got != tt.want {
				t.Fatalf("LocalDateString = %s, want %s", got, tt.want)
			}
			parsed, err := time.ParseInLocation(DateLayout, got, loc)
			if err != nil {
				t.Fatalf("parse back: %v", err)
			}
			ref := tt.at.In(loc)
			if parsed.Year() != ref.Year() || parsed.YearDay() != ref.YearDay() {
				t.Errorf("round trip day mismatch: %v vs %v", parsed, ref)
			}
		})
	}
}

func TestStartOfLocalDayAcrossDST(t *testing.T) {
	loc := mustLoad(t, "Europe/Kiev")

	// 2024-03-31 is the spring-forward day in Kyiv: 23 hours long.
	springDay := time.Date(2024, 3, 31, 12, 0, 0, 0, loc)
	start := StartOfLocalDay(loc, springDay)
	next := StartOfLocalDay(loc, springDay.Add(24*time.Hour))
	if got := next.Sub(start); got != 23*time.Hour {
		t.Errorf("spring day length = %v, want 23h", got)
	}
	if want := time.Date(2024, 3, 30, 22, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("spring start = %v, want %v", start.UTC(), want)
	}

	// 2024-10-27 is the fall-back day: 25 hours long.
	fallDay := time.Date(2024, 10, 27, 12, 0, 0, 0, loc)
	start = StartOfLocalDay(loc, fallDay)
	next = StartOfLocalDay(loc, fallDay.Add(26*time.Hour))
	if got := next.Sub(start); got != 25*time.Hour {
		t.Errorf("fall day length = %v, want 25h", got)
	}
}

func TestNextExpectedTrigger(t *testing.T) {
	loc := mustLoad(t, "Europe/Kiev")
	midnight := time.Date(2024, 5, 10, 0, 0, 0, 0, loc)

	tests := []struct {
		name     string
		interval time.Duration
		now      time.Time
		want     time.Time
	}{
		{"at midnight", 2 * time.Hour, midnight, midnight},
		{"inside first slot", 2 * time.Hour, midnight.Add(119 * time.Minute), midnight},
		{"exact boundary", 2 * time.Hour, midnight.Add(2 * time.Hour), midnight.Add(2 * time.Hour)},
		{"late in second slot", 2 * time.Hour, midnight.Add(239 * time.Minute), midnight.Add(2 * time.Hour)},
		{"odd interval", 90 * time.Minute, midnight.Add(200 * time.Minute), midnight.Add(180 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextExpectedTrigger(tt.interval, loc, tt.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextExpectedTriggerIdempotentWithinSlot(t *testing.T) {
	loc := mustLoad(t, "Asia/Tokyo")
	now := time.Date(2024, 8, 1, 13, 17, 42, 0, loc)
	a, err := NextExpectedTrigger(45*time.Minute, loc, now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NextExpectedTrigger(45*time.Minute, loc, now)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatalf("not idempotent: %v vs %v", a, b)
	}
	c, _ := NextExpectedTrigger(45*time.Minute, loc, a.Add(44*time.Minute))
	if !a.Equal(c) {
		t.Errorf("later in same slot returned %v, want %v", c, a)
	}
}

func TestNextExpectedTriggerRejectsZero(t *testing.T) {
	loc := mustLoad(t, "UTC")
	for _, d := range []time.Duration{0, -time.Minute} {
		if _, err := NextExpectedTrigger(d, loc, time.Now()); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("interval %v: err = %v, want ErrInvalidInterval", d, err)
		}
	}
}

func TestIsWithinFireWindow(t *testing.T) {
	expected := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exact", expected, true},
		{"20s early", expected.Add(-20 * time.Second), true},
		{"20s late", expected.Add(20 * time.Second), true},
		{"at tolerance", expected.Add(30 * time.Second), true},
		{"past tolerance", expected.Add(31 * time.Second), false},
		{"far early", expected.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithinFireWindow(expected, tt.now, 30*time.Second); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDateOffsets(t *testing.T) {
	got, err := AddDays("2024-03-01", -1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024-02-29" {
		t.Errorf("AddDays leap = %s", got)
	}
	if _, err := AddDays("not-a-date", 1); err == nil {
		t.Error("expected parse error")
	}

	loc := mustLoad(t, "Europe/Kiev")
	at := time.Date(2024, 3, 31, 21, 30, 0, 0, time.UTC) // 00:30 local on April 1
	if got := LocalDateOffset(loc, at, -1); got != "2024-03-31" {
		t.Errorf("LocalDateOffset(-1) = %s", got)
	}
	if got := LocalDateOffset(loc, at, -7); got != "2024-03-25" {
		t.Errorf("LocalDateOffset(-7) = %s", got)
	}
}

func TestClockAt(t *testing.T) {
	loc := mustLoad(t, "Europe/Kiev")
	c := ClockAt(loc, time.Date(2024, 5, 12, 21, 1, 30, 0, time.UTC)) // Monday 00:01 local
	if c.Date != "2024-05-13" || c.Hour != 0 || c.Minute != 1 || c.Weekday != time.Monday {
		t.Fatalf("unexpected clock %+v", c)
	}
	if !c.InMidnightWindow() {
		t.Error("00:01 should be inside the midnight window")
	}
	if c.IsMidnight() {
		t.Error("00:01 is not the exact midnight minute")
	}

	late := ClockAt(loc, time.Date(2024, 5, 12, 20, 10, 0, 0, time.UTC)) // 23:10 local
	if got := late.MinutesUntilMidnight(); got != 50 {
		t.Errorf("MinutesUntilMidnight = %d, want 50", got)
	}
	if late.InMidnightWindow() {
		t.Error("23:10 is not in the midnight window")
	}
}
