package usecase

import (
	"regexp"
	"strings"
	"time"
)

var (
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	preciseTimeRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

	// Weekday names in the backend's Monday-first order.
	weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

	// Layouts tried for free-form dates the classifier passes through verbatim.
	looseDateLayouts = []string{
		"2006-01-02T15:04:05",
		"2006/01/02",
		"01/02/2006",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 January 2006",
	}
)

// NormalizeDate turns a loosely-specified date expression into a canonical
// YYYY-MM-DD string. Weekday names resolve to the next occurrence strictly
// after now's date ("next Friday" semantics: a Friday request on a Friday
// rolls forward a week). When nothing matches, the raw input is returned
// unchanged with resolved=false so callers can fall back to first-available
// handling instead of trusting a date that was never understood.
func NormalizeDate(raw string, now time.Time) (date string, resolved bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw, false
	}
	if isoDateRe.MatchString(trimmed) {
		return trimmed, true
	}

	lower := strings.ToLower(trimmed)
	for i, name := range weekdayNames {
		if strings.Contains(lower, name) {
			return nextWeekday(now, i).Format("2006-01-02"), true
		}
	}

	for _, layout := range looseDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format("2006-01-02"), true
		}
	}

	return raw, false
}

// IsPreciseTime reports whether a time string can be trusted as an exact
// slot start: H:MM or HH:MM, nothing else. Partial or decorated values
// ("4pm", "around 10") are treated as absent rather than half-parsed.
func IsPreciseTime(t string) bool {
	return preciseTimeRe.MatchString(strings.TrimSpace(t))
}

// nextWeekday returns the next calendar date after now whose weekday matches
// target (0=Monday ... 6=Sunday).
func nextWeekday(now time.Time, target int) time.Time {
	today := DayOfWeek(now)
	ahead := (target - today + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return now.AddDate(0, 0, ahead)
}
