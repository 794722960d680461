package calendar

// KRXHolidays is the exchange closure table, maintained by hand from the
// yearly KRX notice. Weekends are excluded implicitly by the calendar.
// Dec 31 is a market closure, not a public holiday.
var KRXHolidays = map[int][]string{
	2024: {
		"2024-01-01",
		"2024-02-09", "2024-02-12",
		"2024-03-01",
		"2024-04-10",
		"2024-05-01", "2024-05-06", "2024-05-15",
		"2024-06-06",
		"2024-08-15",
		"2024-09-16", "2024-09-17", "2024-09-18",
		"2024-10-01", "2024-10-03", "2024-10-09",
		"2024-12-25", "2024-12-31",
	},
	2025: {
		"2025-01-01",
		"2025-01-27", "2025-01-28", "2025-01-29", "2025-01-30",
		"2025-03-03",
		"2025-05-01", "2025-05-05", "2025-05-06",
		"2025-06-03", "2025-06-06",
		"2025-08-15",
		"2025-10-03", "2025-10-06", "2025-10-07", "2025-10-08", "2025-10-09",
		"2025-12-25", "2025-12-31",
	},
	2026: {
		"2026-01-01",
		"2026-02-16", "2026-02-17", "2026-02-18",
		"2026-03-02",
		"2026-05-01", "2026-05-05", "2026-05-25",
		"2026-08-17",
		"2026-09-24", "2026-09-25",
		"2026-10-05",
		"2026-12-25", "2026-12-31",
	},
}
