package validation

import (
	"math"
	"strings"
	"time"
)

// MinDurationMinutes is the shortest activity that can be scheduled
const MinDurationMinutes = 15

// Schedule is a validated half-open window [StartsAt, EndsAt)
type Schedule struct {
	StartsAt        time.Time
	EndsAt          time.Time
	DurationMinutes int64
}

// ParseInstant parses an RFC 3339 timestamp
func ParseInstant(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}

// DurationMinutes returns the length of [start, end) rounded to whole minutes
func DurationMinutes(start, end time.Time) int64 {
	return int64(math.Round(end.Sub(start).Minutes()))
}

// ParseSchedule parses both bounds and enforces the minimum duration.
// Bounds are stored in UTC at second precision so every database
// compares them the same way.
func ParseSchedule(startsAt, endsAt string) (Schedule, error) {
	start, err := ParseInstant("startsAt", startsAt)
	if err != nil {
		return Schedule{}, err
	}
	end, err := ParseInstant("endsAt", endsAt)
	if err != nil {
		return Schedule{}, err
	}

	minutes := DurationMinutes(start, end)
	if minutes < MinDurationMinutes {
		return Schedule{}, ValidationError{Field: "endsAt", Message: "minimum duration is 15 minutes"}
	}

	return Schedule{
		StartsAt:        NormalizeTime(start),
		EndsAt:          NormalizeTime(end),
		DurationMinutes: minutes,
	}, nil
}

// NormalizeTime converts t to UTC and drops sub-second precision
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Windows that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
