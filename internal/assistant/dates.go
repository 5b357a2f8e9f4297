package assistant

import "time"

const day = 24 * time.Hour

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// addDays moves a start-of-day by calendar days so DST shifts keep midnight aligned.
func addDays(dayStart time.Time, n int) time.Time {
	return dayStart.AddDate(0, 0, n)
}

// within reports whether t lies in [from, to).
func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// daysLate is floor((now - deadline) / 24h), never negative.
func daysLate(now, deadline time.Time) int {
	gap := now.Sub(deadline)
	if gap <= 0 {
		return 0
	}
	return int(gap / day)
}
