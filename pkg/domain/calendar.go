package domain

import "time"

// DateLayout is the wire format of board dates.
const DateLayout = "2006-01-02"

// StartOfWeek returns the Monday of the week containing t, at midnight.
func StartOfWeek(t time.Time) time.Time {
	w := int(t.Weekday())
	if w == 0 {
		w = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-w+1, 0, 0, 0, 0, t.Location())
}

// WeekDates lists every date of the board window: weeks full weeks starting on
// the Monday of anchor's week. Non-positive weeks fall back to DefaultVisibleWeeks.
func WeekDates(anchor time.Time, weeks int) []string {
	if weeks <= 0 {
		weeks = DefaultVisibleWeeks
	}
	start := StartOfWeek(anchor)
	out := make([]string, 0, weeks*7)
	for i := 0; i < weeks*7; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return out
}
