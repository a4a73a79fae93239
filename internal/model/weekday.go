package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the tag stored in a recurring message's days.
type Weekday string

const (
	Sunday    Weekday = "SUNDAY"
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
)

// Weekdays is indexed by time.Weekday, 0 = Sunday.
var Weekdays = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf maps a time.Weekday onto its tag.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekdays[int(d)%7]
}

// Valid reports whether w is one of the seven tags.
func (w Weekday) Valid() bool {
	_, ok := w.index()
	return ok
}

// Time returns the time.Weekday for w.
func (w Weekday) Time() time.Weekday {
	i, _ := w.index()
	return time.Weekday(i)
}

func (w Weekday) index() (int, bool) {
	for i, d := range Weekdays {
		if d == w {
			return i, true
		}
	}
	return 0, false
}

// ParseWeekday accepts full names and three-letter abbreviations in any case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, d := range Weekdays {
		if string(d) == s || string(d)[:3] == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown weekday %q", ErrInvalidMessage, s)
}

// ParseWeekdays parses a comma separated list such as "mon,wed,fri".
func ParseWeekdays(s string) ([]Weekday, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var days []Weekday
	for _, part := range strings.Split(s, ",") {
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}
