package calibration

import "time"

// DueStatus is the three-tier schedule classification of a gage.
type DueStatus string

const (
	DueStatusUnknown    DueStatus = "unknown"
	DueStatusOverdue    DueStatus = "overdue"
	DueStatusDueSoon    DueStatus = "due_soon"
	DueStatusOnSchedule DueStatus = "on_schedule"
)

// DefaultDueSoonWindowDays is the canonical due-soon window. The original
// system disagreed with itself (7 days on the dashboard, 30 on exports);
// there is exactly one window here and it is configurable.
const DefaultDueSoonWindowDays = 30

// NextDueDate computes a gage's next due date from its most recent
// calibration. The calibration's time of day is kept, not truncated.
// A gage that has never been calibrated is due immediately.
func NextDueDate(lastCalibratedAt *time.Time, frequencyDays int, now time.Time) time.Time {
	if lastCalibratedAt == nil {
		return now
	}
	return lastCalibratedAt.AddDate(0, 0, frequencyDays)
}

// DaysUntilDue returns the signed whole-day distance from now to the due
// date, negative when the due date is in the past. Both instants are
// compared at calendar-day resolution in UTC.
func DaysUntilDue(nextDue, now time.Time) int {
	due := truncateToDay(nextDue)
	today := truncateToDay(now)
	return int(due.Sub(today).Hours() / 24)
}

// ClassifyStatus maps a due date to its schedule status relative to now.
// dueSoonWindowDays <= 0 falls back to the default window.
func ClassifyStatus(nextDue *time.Time, now time.Time, dueSoonWindowDays int) DueStatus {
	if nextDue == nil {
		return DueStatusUnknown
	}
	if dueSoonWindowDays <= 0 {
		dueSoonWindowDays = DefaultDueSoonWindowDays
	}
	days := DaysUntilDue(*nextDue, now)
	switch {
	case days < 0:
		return DueStatusOverdue
	case days <= dueSoonWindowDays:
		return DueStatusDueSoon
	default:
		return DueStatusOnSchedule
	}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
