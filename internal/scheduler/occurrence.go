package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Occurrence is one weekly slot: a weekday and a time of day.
type Occurrence struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func (o Occurrence) String() string {
	return fmt.Sprintf("%s %02d:%02d", strings.ToLower(o.Weekday.String()[:3]), o.Hour, o.Minute)
}

func (o Occurrence) matches(t time.Time) bool {
	return t.Weekday() == o.Weekday && t.Hour() == o.Hour && t.Minute() == o.Minute
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseOccurrence parses "<weekday> HH:MM", e.g. "mon 08:15" or "Friday 17:00".
func ParseOccurrence(s string) (Occurrence, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Occurrence{}, fmt.Errorf("scheduler: occurrence %q: want \"<weekday> HH:MM\"", s)
	}
	day, ok := weekdays[strings.ToLower(fields[0])]
	if !ok {
		return Occurrence{}, fmt.Errorf("scheduler: occurrence %q: unknown weekday %q", s, fields[0])
	}
	hour, minute, err := parseClock(fields[1])
	if err != nil {
		return Occurrence{}, fmt.Errorf("scheduler: occurrence %q: %w", s, err)
	}
	return Occurrence{Weekday: day, Hour: hour, Minute: minute}, nil
}

// ParseOccurrences parses every entry and rejects duplicates.
func ParseOccurrences(specs []string) ([]Occurrence, error) {
	out := make([]Occurrence, 0, len(specs))
	seen := make(map[Occurrence]bool, len(specs))
	for _, s := range specs {
		o, err := ParseOccurrence(s)
		if err != nil {
			return nil, err
		}
		if seen[o] {
			return nil, fmt.Errorf("scheduler: duplicate occurrence %q", o)
		}
		seen[o] = true
		out = append(out, o)
	}
	return out, nil
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %q out of range", h)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %q out of range", m)
	}
	return hour, minute, nil
}
