package services

import "time"

// lateFeeCents computes the fine for a late return.
//
// The overdue span is measured in whole calendar days (midnight-to-midnight,
// UTC), not fractional elapsed time: a return the morning after an evening
// due date is one day late, a late return on the due date itself is zero
// days late and costs nothing.
func lateFeeCents(dueAt, returnedAt time.Time, dailyFineCents int64) int64 {
	if !returnedAt.After(dueAt) {
		return 0
	}
	days := calendarDaysBetween(dueAt, returnedAt)
	return int64(days) * dailyFineCents
}

// calendarDaysBetween returns the date-only difference to - from in days.
func calendarDaysBetween(from, to time.Time) int {
	from = from.UTC()
	to = to.UTC()
	fromDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate).Hours() / 24)
}
