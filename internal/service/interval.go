package service

import (
	"strings"
	"time"

	"plant-care-bot/internal/config"
)

// defaultIntervalDays is used whenever a watering benchmark is missing or
// unparseable.
const defaultIntervalDays = 7

// minLeadTime is the shortest distance in the future a reminder may be
// scheduled at. Anything closer is skipped rather than fired immediately.
const minLeadTime = time.Minute

// ParseInterval extracts a day interval from a free-form benchmark value such
// as "7" or "7-10" (range values take the lower bound). Total: garbage input
// yields the default.
func ParseInterval(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultIntervalDays
	}
	if i := strings.IndexByte(raw, '-'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	days, ok := leadingInt(raw)
	if !ok || days <= 0 {
		return defaultIntervalDays
	}
	return days
}

// leadingInt parses the leading digit run of s.
func leadingInt(s string) (int, bool) {
	n := 0
	i := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<30 {
			return 0, false
		}
	}
	if i == 0 {
		return 0, false
	}
	return n, true
}

// GenerateSeries produces ceil(horizonDays/intervalDays) due dates, the first
// at anchor normalized to the reminder time of day, each subsequent exactly
// intervalDays later. If the normalized anchor already passed (or is within
// the minimum lead of now), the whole series rolls forward by one day so the
// first reminder is never rejected as being in the past. Deterministic: no
// hidden clock reads.
func GenerateSeries(intervalDays, horizonDays int, anchor time.Time, at config.ReminderTime, now time.Time) []time.Time {
	if intervalDays < 1 || horizonDays < 1 {
		return nil
	}

	first := NormalizeTrigger(anchor, at)
	if !first.After(now.Add(minLeadTime)) {
		first = first.AddDate(0, 0, 1)
	}

	count := (horizonDays + intervalDays - 1) / intervalDays
	dates := make([]time.Time, count)
	step := time.Duration(intervalDays) * 24 * time.Hour
	for i := range dates {
		dates[i] = first.Add(time.Duration(i) * step)
	}
	return dates
}

// NormalizeTrigger pins a due date to the configured reminder time of day,
// keeping all of a plant's reminders in one daily slot.
func NormalizeTrigger(due time.Time, at config.ReminderTime) time.Time {
	year, month, day := due.Date()
	return time.Date(year, month, day, at.Hour, at.Minute, 0, 0, due.Location())
}
