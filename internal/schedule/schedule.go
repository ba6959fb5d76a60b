// Package schedule computes the next execution time for recurring
// batch definitions. It is pure: re-enqueueing the run belongs to the
// scheduler's tick loop.
package schedule

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sentinelhq/domainwatch/internal/model"
)

// NextRun returns when the schedule should fire next, strictly relative
// to from. Weekly schedules whose day-of-week equals from's weekday
// advance a full week — a schedule never re-fires on the day it just
// ran.
func NextRun(s *model.Schedule, from time.Time) time.Time {
	loc := s.Location()
	from = from.In(loc)

	switch s.Frequency {
	case model.FrequencyOnce:
		return from

	case model.FrequencyHourly:
		return from.Add(time.Hour)

	case model.FrequencyDaily:
		next := from.AddDate(0, 0, 1)
		return atScheduleTime(next, s)

	case model.FrequencyWeekly:
		offset := (int(s.DayOfWeek) - int(from.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		next := from.AddDate(0, 0, offset)
		return atScheduleTime(next, s)

	case model.FrequencyMonthly:
		next := from.AddDate(0, 1, 0)
		if s.DayOfMonth > 0 {
			next = clampDayOfMonth(next, s.DayOfMonth)
		}
		return atScheduleTime(next, s)

	case model.FrequencyQuarterly:
		return atScheduleTime(from.AddDate(0, 3, 0), s)

	case model.FrequencyYearly:
		return atScheduleTime(from.AddDate(1, 0, 0), s)

	case model.FrequencyCustom:
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		expr, err := parser.Parse(s.Expression)
		if err != nil {
			// Degraded but safe default rather than a silent no-op
			slog.Warn("Unparsable custom schedule, falling back to hourly",
				"expression", s.Expression,
				"error", err,
			)
			return from.Add(time.Hour)
		}
		return expr.Next(from)

	default:
		return from.Add(time.Hour)
	}
}

// atScheduleTime pins the clock of t to the schedule's anchor time,
// when one is set
func atScheduleTime(t time.Time, s *model.Schedule) time.Time {
	if s.Hour == 0 && s.Minute == 0 {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, t.Location())
}

// clampDayOfMonth moves t to the requested day of its month, clamped to
// the month's length
func clampDayOfMonth(t time.Time, day int) time.Time {
	lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), 0, 0, t.Location())
}
