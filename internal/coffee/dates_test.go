package coffee_test

import (
	"testing"
	"time"

	"github.com/henzerboss/evsi-store/internal/coffee"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextFriday(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday", date(2026, time.August, 31), date(2026, time.September, 4)},
		{"thursday", date(2026, time.September, 3), date(2026, time.September, 4)},
		{"friday rolls to next week", date(2026, time.September, 4), date(2026, time.September, 11)},
		{"saturday", date(2026, time.September, 5), date(2026, time.September, 11)},
		{"sunday", date(2026, time.September, 6), date(2026, time.September, 11)},
		{"midweek with clock time", time.Date(2026, time.September, 1, 17, 45, 3, 0, time.UTC), date(2026, time.September, 4)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := coffee.NextFriday(c.now)
			if !got.Equal(c.want) {
				t.Errorf("NextFriday(%s) = %s, want %s", c.now, got, c.want)
			}
			if got.Weekday() != time.Friday {
				t.Errorf("NextFriday(%s) fell on %s", c.now, got.Weekday())
			}
		})
	}
}

func TestNextFriday_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	now := time.Date(2026, time.September, 2, 12, 0, 0, 0, loc)
	got := coffee.NextFriday(now)
	if got.Location() != loc {
		t.Errorf("NextFriday location = %v, want %v", got.Location(), loc)
	}
}

func TestTomorrow(t *testing.T) {
	got := coffee.Tomorrow(time.Date(2026, time.September, 3, 23, 50, 0, 0, time.UTC))
	if !got.Equal(date(2026, time.September, 4)) {
		t.Errorf("Tomorrow = %s", got)
	}
}

func TestToday(t *testing.T) {
	got := coffee.Today(time.Date(2026, time.September, 4, 10, 0, 0, 0, time.UTC))
	if !got.Equal(date(2026, time.September, 4)) {
		t.Errorf("Today = %s", got)
	}
}
