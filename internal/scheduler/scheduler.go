package scheduler

import (
	"time"

	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/teambition/rrule-go"
)

// DueOneTime reports whether m's date has passed. Stores use it to answer the
// one-time due query, so it looks at the date alone and ignores days.
func DueOneTime(m *model.ScheduledMessage, now time.Time) bool {
	return m.Date != nil && !m.Date.IsZero() && !m.Date.After(now)
}

// DueRecurring reports whether m recurs on day. Like DueOneTime it is the raw
// store query and does not apply mode precedence.
func DueRecurring(m *model.ScheduledMessage, day model.Weekday) bool {
	return m.HasDay(day)
}

// Due applies mode precedence: a message with a date is only ever due as a
// one-time message, even if it also carries days.
func Due(m *model.ScheduledMessage, now time.Time, day model.Weekday) bool {
	switch m.Mode() {
	case model.ModeOneTime:
		return DueOneTime(m, now)
	case model.ModeRecurring:
		return DueRecurring(m, day)
	default:
		return false
	}
}

var rruleDays = map[model.Weekday]rrule.Weekday{
	model.Sunday:    rrule.SU,
	model.Monday:    rrule.MO,
	model.Tuesday:   rrule.TU,
	model.Wednesday: rrule.WE,
	model.Thursday:  rrule.TH,
	model.Friday:    rrule.FR,
	model.Saturday:  rrule.SA,
}

// Next returns when m is next due, evaluated in loc. Recurring messages have no
// time of day, so their next occurrence is the start of the next matching day,
// or now when today matches. The second result is false when m is never due.
func Next(m *model.ScheduledMessage, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	switch m.Mode() {
	case model.ModeOneTime:
		return m.Date.In(loc), true
	case model.ModeRecurring:
		local := now.In(loc)
		if m.HasDay(model.WeekdayOf(local.Weekday())) {
			return local, true
		}

		var byDay []rrule.Weekday
		for _, d := range m.Days {
			if wd, ok := rruleDays[d]; ok {
				byDay = append(byDay, wd)
			}
		}
		if len(byDay) == 0 {
			return time.Time{}, false
		}

		year, month, day := local.Date()
		start := time.Date(year, month, day, 0, 0, 0, 0, loc)
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: byDay,
			Dtstart:   start,
		})
		if err != nil {
			return time.Time{}, false
		}
		next := rule.After(start, false)
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	default:
		return time.Time{}, false
	}
}
