package calendar

import (
	"fmt"
	"sync"
	"time"

	xlogger "kisquote/pkg/logger"
)

const (
	// Intraday entries go stale quickly while the market trades.
	intradayTTL = 60 * time.Second

	// PreviousBusinessDay gives up after this many steps so a broken
	// holiday table surfaces as an error instead of an endless scan.
	maxLookbackDays = 14
)

// Calendar classifies instants against the exchange trading schedule:
// weekends plus a per-year holiday table, between fixed open and close
// times in the exchange local zone. The zone has no daylight saving, so
// minute-of-day arithmetic is safe.
type Calendar struct {
	loc      *time.Location
	openMin  int // minutes from local midnight, inclusive
	closeMin int // minutes from local midnight, exclusive
	holidays map[int]map[string]struct{}
	logger   *xlogger.Logger

	mu     sync.Mutex
	warned map[int]bool
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithTradingHours overrides the session window, minutes from midnight.
func WithTradingHours(openMin, closeMin int) Option {
	return func(c *Calendar) {
		c.openMin = openMin
		c.closeMin = closeMin
	}
}

// WithLocation overrides the exchange time zone.
func WithLocation(loc *time.Location) Option {
	return func(c *Calendar) {
		c.loc = loc
	}
}

// WithLogger sets the logger used for the degraded-year warning.
func WithLogger(l *xlogger.Logger) Option {
	return func(c *Calendar) {
		c.logger = l
	}
}

// New creates a Calendar over the given holiday table (year -> ISO dates).
// Defaults: KST, 09:00-15:30 session.
func New(holidays map[int][]string, opts ...Option) *Calendar {
	c := &Calendar{
		loc:      time.FixedZone("KST", 9*60*60),
		openMin:  9 * 60,
		closeMin: 15*60 + 30,
		holidays: make(map[int]map[string]struct{}, len(holidays)),
		warned:   make(map[int]bool),
	}
	for year, dates := range holidays {
		set := make(map[string]struct{}, len(dates))
		for _, d := range dates {
			set[d] = struct{}{}
		}
		c.holidays[year] = set
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the calendar's market timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsOpen reports whether the market trades at t: a trading day and local
// time-of-day within [open, close).
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	if !c.isTradingDay(local) {
		return false
	}
	min := local.Hour()*60 + local.Minute()
	return min >= c.openMin && min < c.closeMin
}

// NextOpen returns the next session-open instant strictly governing t: if t
// is before today's open on a trading day, today's open; otherwise the open
// of the next trading day.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	min := local.Hour()*60 + local.Minute()
	if c.isTradingDay(local) && min < c.openMin {
		return c.openOf(local)
	}
	day := local.AddDate(0, 0, 1)
	for !c.isTradingDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return c.openOf(day)
}

// CacheExpiry derives the cache deadline for an entry written at t. Open
// market means a tight intraday TTL; closed market means the entry holds
// until the next open.
func (c *Calendar) CacheExpiry(t time.Time) time.Time {
	if c.IsOpen(t) {
		return t.Add(intradayTTL)
	}
	return c.NextOpen(t)
}

// PreviousBusinessDay returns the last trading day strictly before d,
// normalized to local midnight. It fails after maxLookbackDays steps.
func (c *Calendar) PreviousBusinessDay(d time.Time) (time.Time, error) {
	day := c.midnightOf(d.In(c.loc))
	for i := 0; i < maxLookbackDays; i++ {
		day = day.AddDate(0, 0, -1)
		if c.isTradingDay(day) {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("calendar: no business day within %d days before %s",
		maxLookbackDays, d.In(c.loc).Format("2006-01-02"))
}

// BusinessDaysBetween counts trading days strictly after start up to and
// including end. Returns 0 when end does not fall after start's date.
func (c *Calendar) BusinessDaysBetween(start, end time.Time) int {
	day := c.midnightOf(start.In(c.loc))
	last := c.midnightOf(end.In(c.loc))
	n := 0
	for day.Before(last) {
		day = day.AddDate(0, 0, 1)
		if c.isTradingDay(day) {
			n++
		}
	}
	return n
}

func (c *Calendar) isTradingDay(local time.Time) bool {
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	year := local.Year()
	set, ok := c.holidays[year]
	if !ok {
		c.warnUnlistedYear(year)
		return true
	}
	_, holiday := set[local.Format("2006-01-02")]
	return !holiday
}

// warnUnlistedYear logs once per year per process. An unlisted year degrades
// to weekend-only checking rather than failing quote lookups.
func (c *Calendar) warnUnlistedYear(year int) {
	c.mu.Lock()
	already := c.warned[year]
	c.warned[year] = true
	c.mu.Unlock()
	if already || c.logger == nil {
		return
	}
	c.logger.Warn("holiday table missing year, weekend-only checks in effect",
		xlogger.Int("year", year))
}

func (c *Calendar) openOf(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(),
		c.openMin/60, c.openMin%60, 0, 0, c.loc)
}

func (c *Calendar) midnightOf(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}
