package cronexpr

import (
	"fmt"
	"time"
)

// horizonYears bounds the forward search so impossible-but-well-formed
// schedules fail instead of spinning.
const horizonYears = 4

// Next returns the first instant strictly after ref that matches the
// expression, truncated to minute resolution, in ref's location.
//
// Matching follows the wall clock of ref's location. Around zone transitions
// that means a spring-forward hour never matches and an autumn repeated wall
// time can match on its first occurrence only per call.
//
// It returns ErrUnreachable when no match exists within the horizon.
func (e *Expression) Next(ref time.Time) (time.Time, error) {
	loc := ref.Location()

	t := ref.Truncate(time.Minute).Add(time.Minute)
	horizon := t.AddDate(horizonYears, 0, 0)

	for !t.After(horizon) {
		if !e.month.match(int(t.Month())) {
			nt := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
			t = forward(t, nt)
			continue
		}
		if !e.dayMatches(t) {
			nt := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
			t = forward(t, nt)
			continue
		}
		if !e.hour.match(t.Hour()) {
			nt := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Add(time.Hour)
			t = forward(t, nt)
			continue
		}
		if !e.minute.match(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q matches nothing within %d years of %s",
		ErrUnreachable, e.src, horizonYears, ref.Format(time.RFC3339))
}

// dayMatches applies the standard cron day rule: when both day-of-month and
// day-of-week are restricted (neither contains a "*" term) the date matches
// if either field does; otherwise both fields constrain, with a bare "*"
// imposing nothing.
func (e *Expression) dayMatches(t time.Time) bool {
	domOK := e.dom.match(t.Day())
	dowOK := e.dow.match(int(t.Weekday()))
	if e.dom.star || e.dow.star {
		return domOK && dowOK
	}
	return domOK || dowOK
}

// forward guards the scan's progress. Zone transitions can make a
// field-boundary jump land at or before t; fall back to a minute step so the
// scan always moves.
func forward(t, nt time.Time) time.Time {
	if nt.After(t) {
		return nt
	}
	return t.Add(time.Minute)
}
