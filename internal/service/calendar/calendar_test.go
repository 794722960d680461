package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	xlogger "kisquote/pkg/logger"
)

var kst = time.FixedZone("KST", 9*60*60)

func testCalendar() *Calendar {
	return New(map[int][]string{
		2024: {"2024-12-25"},
		2025: {"2025-01-01"},
	})
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, kst)
}

func TestIsOpenWeekday(t *testing.T) {
	c := testCalendar()
	// 2025-01-03 is a Friday
	if !c.IsOpen(at(2025, 1, 3, 10, 0)) {
		t.Fatalf("expected open during session")
	}
	if c.IsOpen(at(2025, 1, 3, 8, 59)) {
		t.Fatalf("expected closed before open")
	}
	if !c.IsOpen(at(2025, 1, 3, 9, 0)) {
		t.Fatalf("open boundary is inclusive")
	}
	if c.IsOpen(at(2025, 1, 3, 15, 30)) {
		t.Fatalf("close boundary is exclusive")
	}
}

func TestIsOpenWeekendAndHoliday(t *testing.T) {
	c := testCalendar()
	// 2025-01-04 Saturday, 2025-01-05 Sunday
	if c.IsOpen(at(2025, 1, 4, 10, 0)) || c.IsOpen(at(2025, 1, 5, 10, 0)) {
		t.Fatalf("expected closed on weekend")
	}
	if c.IsOpen(at(2025, 1, 1, 10, 0)) {
		t.Fatalf("expected closed on listed holiday")
	}
}

func TestNextOpenSkipsHoliday(t *testing.T) {
	c := testCalendar()
	// Dec 31 2024 is a Tuesday trading day; Jan 1 is the only blocking day.
	got := c.NextOpen(at(2024, 12, 31, 16, 0))
	want := at(2025, 1, 2, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("next open = %v, want %v", got, want)
	}
}

func TestNextOpenSameDay(t *testing.T) {
	c := testCalendar()
	got := c.NextOpen(at(2025, 1, 3, 7, 30))
	want := at(2025, 1, 3, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("next open = %v, want %v", got, want)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := testCalendar()
	open := at(2025, 1, 3, 10, 0)
	if got, want := c.CacheExpiry(open), open.Add(60*time.Second); !got.Equal(want) {
		t.Fatalf("intraday expiry = %v, want %v", got, want)
	}
	closed := at(2025, 1, 3, 16, 0)
	if got, want := c.CacheExpiry(closed), c.NextOpen(closed); !got.Equal(want) {
		t.Fatalf("closed expiry = %v, want %v", got, want)
	}
	if !c.CacheExpiry(closed).After(closed) {
		t.Fatalf("expiry must be after write time")
	}
}

func TestPreviousBusinessDay(t *testing.T) {
	c := testCalendar()
	// Monday Jan 6 -> Friday Jan 3
	got, err := c.PreviousBusinessDay(at(2025, 1, 6, 12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Format("2006-01-02") != "2025-01-03" {
		t.Fatalf("previous business day = %v", got)
	}
	// Jan 2 -> Dec 31 (Jan 1 is a holiday)
	got, err = c.PreviousBusinessDay(at(2025, 1, 2, 12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Format("2006-01-02") != "2024-12-31" {
		t.Fatalf("previous business day = %v", got)
	}
}

func TestPreviousBusinessDayBounded(t *testing.T) {
	// Every scanned day listed as a holiday: the scan must fail, not loop.
	days := make([]string, 0, 31)
	for d := 1; d <= 31; d++ {
		days = append(days, time.Date(2025, 1, d, 0, 0, 0, 0, kst).Format("2006-01-02"))
	}
	c := New(map[int][]string{2025: days})
	if _, err := c.PreviousBusinessDay(at(2025, 1, 31, 12, 0)); err == nil {
		t.Fatalf("expected lookback bound error")
	}
}

func TestBusinessDaysBetween(t *testing.T) {
	c := testCalendar()
	d := at(2025, 1, 6, 0, 0)
	if got := c.BusinessDaysBetween(d, d); got != 0 {
		t.Fatalf("same day = %d, want 0", got)
	}
	// Fri Jan 3 -> Tue Jan 7: Mon + Tue
	if got := c.BusinessDaysBetween(at(2025, 1, 3, 0, 0), at(2025, 1, 7, 0, 0)); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}

func TestUnlistedYearDegradesToWeekendOnly(t *testing.T) {
	c := testCalendar()
	// 2030-01-02 is a Wednesday; no table for 2030.
	if !c.IsOpen(time.Date(2030, 1, 2, 10, 0, 0, 0, kst)) {
		t.Fatalf("unlisted year should degrade to weekend-only checks")
	}
	if c.IsOpen(time.Date(2030, 1, 5, 10, 0, 0, 0, kst)) {
		t.Fatalf("weekend stays closed in an unlisted year")
	}
}

func TestUnlistedYearWarnsOncePerYear(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "calendar.log")
	l, err := xlogger.New(&xlogger.Config{Level: "warn", Format: "json", Output: logPath})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := New(map[int][]string{2025: {"2025-01-01"}}, WithLogger(l))

	// 2030-03-04 is a Monday; hammer the same unlisted year.
	for i := 0; i < 5; i++ {
		c.IsOpen(time.Date(2030, 3, 4, 10, i, 0, 0, kst))
	}
	// 2031-03-03 is a Monday; a different unlisted year warns on its own.
	c.IsOpen(time.Date(2031, 3, 3, 10, 0, 0, 0, kst))
	c.IsOpen(time.Date(2031, 3, 3, 11, 0, 0, 0, kst))

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Count(string(b), "holiday table missing year"); got != 2 {
		t.Fatalf("warning logged %d times, want once per unlisted year (2)\nlog:\n%s", got, b)
	}
}
