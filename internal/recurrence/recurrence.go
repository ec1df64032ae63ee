// Package recurrence computes the next execution instant for a recurring
// schedule. All functions are pure: they derive everything from the schedule
// and the reference instant passed in.
package recurrence

import (
	"strconv"
	"strings"
	"time"

	"finance_ledger/internal/domain"
)

const defaultHour = 9

// ParseClock parses an "HH:MM" execute time. Empty or malformed input falls
// back to 09:00 so a bad stored value degrades instead of halting the
// scheduler.
func ParseClock(executeTime string) (hour, minute int) {
	parts := strings.SplitN(executeTime, ":", 2)
	if len(parts) != 2 {
		return defaultHour, 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return defaultHour, 0
	}
	return h, m
}

// NextRun returns the first occurrence of the schedule strictly after ref.
//
// Monthly and yearly anchors that overflow their month (day 31 in February)
// roll forward during normalization and are then clamped back to the last
// valid day of the intended month, never into the following one.
func NextRun(s domain.Schedule, ref time.Time) time.Time {
	hour, minute := ParseClock(s.ExecuteTime)

	switch s.Frequency {
	case domain.FrequencyDaily:
		next := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
		if !next.After(ref) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case domain.FrequencyWeekly:
		next := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
		daysUntil := int(s.Weekday - next.Weekday())
		if daysUntil < 0 || (daysUntil == 0 && !next.After(ref)) {
			daysUntil += 7
		}
		return next.AddDate(0, 0, daysUntil)

	case domain.FrequencyMonthly:
		next := monthAnchored(ref.Year(), ref.Month(), s.DayOfMonth, hour, minute, ref.Location())
		if !next.After(ref) {
			next = monthAnchored(ref.Year(), ref.Month()+1, s.DayOfMonth, hour, minute, ref.Location())
		}
		return next

	case domain.FrequencyYearly:
		next := monthAnchored(ref.Year(), s.MonthOfYear, s.DayOfMonth, hour, minute, ref.Location())
		if !next.After(ref) {
			next = monthAnchored(ref.Year()+1, s.MonthOfYear, s.DayOfMonth, hour, minute, ref.Location())
		}
		return next
	}

	// Unknown frequency: never due.
	return time.Time{}
}

// monthAnchored builds the anchor day in the given month, letting the
// overflow normalize forward and then clamping back to day zero of the
// overshot month, which resolves to the intended month's last valid day.
func monthAnchored(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	next := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if next.Day() != day {
		next = time.Date(next.Year(), next.Month(), 0, hour, minute, 0, 0, loc)
	}
	return next
}

// NextMonthlyRun is the single-anchor helper used by auto-payments and
// auto-incomes, which only support monthly cycles.
func NextMonthlyRun(dayOfMonth int, executeTime string, ref time.Time) time.Time {
	return NextRun(domain.Schedule{
		Frequency:   domain.FrequencyMonthly,
		DayOfMonth:  dayOfMonth,
		ExecuteTime: executeTime,
	}, ref)
}

// SameTimeTomorrow implements the RETRY_NEXT_DAY policy: the schedule's
// execute time on the day after ref.
func SameTimeTomorrow(executeTime string, ref time.Time) time.Time {
	hour, minute := ParseClock(executeTime)
	next := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	return next.AddDate(0, 0, 1)
}

// FirstRun computes the initial NextRunAt for a definition whose start date
// may still be in the future. A future start date is aligned onto the
// schedule's anchors; otherwise the next occurrence after now is used.
func FirstRun(s domain.Schedule, startDate, now time.Time) time.Time {
	hour, minute := ParseClock(s.ExecuteTime)
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), hour, minute, 0, 0, now.Location())

	if start.After(now) {
		// NextRun from just before the start picks the first occurrence
		// at or after it.
		return NextRun(s, start.Add(-time.Second))
	}
	return NextRun(s, now)
}
