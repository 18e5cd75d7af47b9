package kitchen

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidServings = errors.New("servings must be >= 1")
	ErrExceedsCapacity = errors.New("order exceeds daily capacity")
	ErrInvalidCapacity = errors.New("daily capacity must be positive")
)

// Day returns the calendar date of t as seen in loc, encoded as midnight
// UTC. Delivery dates are always carried in this form.
func Day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Tomorrow is the first date an order placed at now can be delivered on.
func Tomorrow(now time.Time, loc *time.Location) time.Time {
	return Day(now, loc).AddDate(0, 0, 1)
}

// CommittedFunc reports the servings already committed on day by
// non-cancelled orders. The caller is expected to hold whatever lock keeps
// that figure stable until the new order is written.
type CommittedFunc func(day time.Time) (int, error)

// EarliestDeliveryDate walks forward one day at a time from start and
// returns the first day whose committed servings leave room for servings.
// Days are visited in increasing order, so locks taken inside committed
// are always acquired in the same order.
func EarliestDeliveryDate(start time.Time, servings, capacity int, committed CommittedFunc) (time.Time, error) {
	if capacity <= 0 {
		return time.Time{}, ErrInvalidCapacity
	}
	if servings < 1 {
		return time.Time{}, ErrInvalidServings
	}
	if servings > capacity {
		return time.Time{}, fmt.Errorf("%w: %d servings, capacity %d", ErrExceedsCapacity, servings, capacity)
	}

	for day := start; ; day = day.AddDate(0, 0, 1) {
		used, err := committed(day)
		if err != nil {
			return time.Time{}, fmt.Errorf("committed servings for %s: %w", day.Format(time.DateOnly), err)
		}
		if used+servings <= capacity {
			return day, nil
		}
	}
}
