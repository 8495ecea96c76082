package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical wire/storage format for session dates.
const DateLayout = "2006-01-02"

// ClockLayout is the canonical wire/storage format for times of day.
const ClockLayout = "15:04"

// MinuteOfDay converts an "HH:MM" clock string into minutes since midnight.
// Returns -1 for unparseable input.
func MinuteOfDay(clock string) int {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return -1
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return -1
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return -1
	}
	return hours*60 + minutes
}

// ClockFromMinute renders minutes since midnight as "HH:MM".
func ClockFromMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// TimeRange is a half-open [Start, End) window within one day.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Valid reports whether both bounds parse and the range is non-empty.
func (r TimeRange) Valid() bool {
	start := MinuteOfDay(r.Start)
	end := MinuteOfDay(r.End)
	return start >= 0 && end >= 0 && start < end
}

// Contains reports whether [start, end) fits inside the range.
func (r TimeRange) Contains(start, end string) bool {
	return MinuteOfDay(r.Start) <= MinuteOfDay(start) && MinuteOfDay(end) <= MinuteOfDay(r.End)
}

// SessionStart combines a session date and start clock into a UTC instant.
func SessionStart(date, clock string) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, time.UTC)
}

// WeekStartOf returns the ISO week Monday for the given date string.
func WeekStartOf(date string) (string, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset).Format(DateLayout), nil
}
