package agent

import "time"

// HourOfWeekIndex computes the bitmap index spec §4.1 stage 2 and §8
// property 2 define: dayOfWeek*24 + hourUTC, Sunday=0.
func HourOfWeekIndex(t time.Time) int {
	u := t.UTC()
	return int(u.Weekday())*24 + u.Hour()
}

// IsIncludedHour reports whether t's hour-of-week bit is set.
func IsIncludedHour(bitmap [168]bool, t time.Time) bool {
	return bitmap[HourOfWeekIndex(t)]
}
