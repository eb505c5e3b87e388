// Package availability derives per-day room occupancy from the set of
// bookings overlapping a date range. It is pure: the storage layer
// supplies the bookings, this package only computes.
package availability

import (
	"errors"
	"time"

	"hotelier/internal/models"
)

var ErrInvalidRange = errors.New("invalid date range")

// Calendar emits one entry per calendar day in [from, to] inclusive.
// A day is unavailable when any booking's half-open interval
// [check_in, check_out) covers it; the check-out day itself is free.
// Callers must pass only bookings in occupying statuses for one room.
func Calendar(bookings []*models.Booking, from, to time.Time) ([]models.DayAvailability, error) {
	if from.IsZero() || to.IsZero() {
		return nil, ErrInvalidRange
	}

	from = models.DateOnly(from)
	to = models.DateOnly(to)
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	occupied := occupiedDates(bookings)

	days := int(to.Sub(from).Hours()/24) + 1
	calendar := make([]models.DayAvailability, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		_, taken := occupied[d]
		calendar = append(calendar, models.DayAvailability{
			Date:      d,
			Available: !taken,
		})
	}
	return calendar, nil
}

// Overlaps reports whether a booking's half-open stay interval
// intersects the inclusive query range [from, to].
func Overlaps(b *models.Booking, from, to time.Time) bool {
	checkIn := models.DateOnly(b.CheckInDate)
	checkOut := models.DateOnly(b.CheckOutDate)
	return checkIn.Before(models.DateOnly(to).AddDate(0, 0, 1)) && checkOut.After(models.DateOnly(from))
}

func occupiedDates(bookings []*models.Booking) map[time.Time]struct{} {
	occupied := make(map[time.Time]struct{})
	for _, b := range bookings {
		if !b.Status.Occupies() {
			continue
		}
		checkOut := models.DateOnly(b.CheckOutDate)
		for d := models.DateOnly(b.CheckInDate); d.Before(checkOut); d = d.AddDate(0, 0, 1) {
			occupied[d] = struct{}{}
		}
	}
	return occupied
}
