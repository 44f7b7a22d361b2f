// Package availability resolves a doctor's recurring weekly template
// against concrete datetimes. It is pure: absence of a matching slot is
// "not available", never an error.
package availability

import (
	"time"

	"github.com/hackgods/clinic-queue/internal/directory"
)

// IsAvailableAt reports whether some enabled slot covers the weekday and
// time-of-day of at. Bounds are inclusive. Times are fixed-width
// zero-padded "HH:MM", so string comparison is chronological.
func IsAvailableAt(slots []directory.AvailabilitySlot, at time.Time) bool {
	tod := at.Format("15:04")
	for _, s := range slots {
		if !s.Enabled || s.Weekday != at.Weekday() {
			continue
		}
		if s.Start <= tod && tod <= s.End {
			return true
		}
	}
	return false
}

// NextAvailableSlot scans the 7 calendar days starting at from's day and
// returns the start of the first candidate strictly after from, or nil.
// Per day only the first enabled slot in declared order is considered,
// even when a later-declared slot on the same day starts earlier;
// callers must not assume the result is the earliest possible time.
func NextAvailableSlot(slots []directory.AvailabilitySlot, from time.Time) *time.Time {
	for off := 0; off < 7; off++ {
		day := from.AddDate(0, 0, off)
		for _, s := range slots {
			if !s.Enabled || s.Weekday != day.Weekday() {
				continue
			}
			hh, mm, ok := ParseClock(s.Start)
			if !ok {
				break
			}
			candidate := time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, from.Location())
			if candidate.After(from) {
				return &candidate
			}
			break
		}
	}
	return nil
}

// ParseClock splits a "HH:MM" string into hour and minute.
func ParseClock(s string) (hour, minute int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, false
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// AddMinutes advances a "HH:MM" clock value, wrapping past midnight.
func AddMinutes(clock string, minutes int) (string, bool) {
	hh, mm, ok := ParseClock(clock)
	if !ok {
		return "", false
	}
	total := (hh*60 + mm + minutes) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}
	return FormatClock(total/60, total%60), true
}

// FormatClock renders an hour/minute pair as zero-padded "HH:MM".
func FormatClock(hour, minute int) string {
	buf := []byte("00:00")
	buf[0] = byte('0' + hour/10)
	buf[1] = byte('0' + hour%10)
	buf[3] = byte('0' + minute/10)
	buf[4] = byte('0' + minute%10)
	return string(buf)
}
