package utils

import (
	"time"
)

// UnixTimeToTime converts a Unix timestamp to a UTC time.Time
func UnixTimeToTime(unixTime int64) time.Time {
	return time.Unix(unixTime, 0).UTC()
}

// Remaining is how long until the unix timestamp ends, zero once it has passed.
func Remaining(ends int64, now time.Time) time.Duration {
	d := UnixTimeToTime(ends).Sub(now)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}
