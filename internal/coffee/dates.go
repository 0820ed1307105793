package coffee

import "time"

// NextFriday returns the date (midnight, in now's location) of the next
// match day. When called on a Friday it returns the Friday a week ahead:
// sign-ups on match day itself roll over to the following round.
func NextFriday(now time.Time) time.Time {
	diff := int(time.Friday) - int(now.Weekday())
	if diff <= 0 {
		diff += 7
	}
	day := now.AddDate(0, 0, diff)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}

// Tomorrow returns tomorrow's date at midnight in now's location. Used by
// the day-before reminder to find the upcoming match date.
func Tomorrow(now time.Time) time.Time {
	day := now.AddDate(0, 0, 1)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}

// Today returns now truncated to its date.
func Today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
