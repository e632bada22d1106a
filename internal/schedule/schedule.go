package schedule

import "time"

// NextDaily returns the next occurrence of hour:min (UTC) strictly
// after now. Used to fire the broadcast and snapshot jobs once a day.
func NextDaily(now time.Time, hour, min int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
