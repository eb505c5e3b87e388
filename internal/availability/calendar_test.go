package availability

import (
	"testing"
	"time"

	"hotelier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalendarHalfOpenInterval(t *testing.T) {
	// Booking for [2024-06-10, 2024-06-13): nights of 10, 11, 12.
	bookings := []*models.Booking{{
		RoomID:       1,
		Status:       models.StatusBooked,
		CheckInDate:  day(2024, 6, 10),
		CheckOutDate: day(2024, 6, 13),
	}}

	calendar, err := Calendar(bookings, day(2024, 6, 9), day(2024, 6, 13))
	require.NoError(t, err)
	require.Len(t, calendar, 5)

	expected := []struct {
		date      time.Time
		available bool
	}{
		{day(2024, 6, 9), true},
		{day(2024, 6, 10), false},
		{day(2024, 6, 11), false},
		{day(2024, 6, 12), false},
		{day(2024, 6, 13), true}, // check-out day is free
	}
	for i, e := range expected {
		assert.Equal(t, e.date, calendar[i].Date)
		assert.Equal(t, e.available, calendar[i].Available, "date %s", e.date)
	}
}

func TestCalendarEntryCount(t *testing.T) {
	from := day(2024, 1, 1)
	for _, days := range []int{0, 1, 6, 30, 364} {
		to := from.AddDate(0, 0, days)
		calendar, err := Calendar(nil, from, to)
		require.NoError(t, err)
		assert.Len(t, calendar, days+1)
		assert.Equal(t, from, calendar[0].Date)
		assert.Equal(t, to, calendar[len(calendar)-1].Date)
	}
}

func TestCalendarInvalidRange(t *testing.T) {
	_, err := Calendar(nil, day(2024, 6, 13), day(2024, 6, 9))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Calendar(nil, time.Time{}, day(2024, 6, 9))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Calendar(nil, day(2024, 6, 9), time.Time{})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCalendarSingleDayRange(t *testing.T) {
	calendar, err := Calendar(nil, day(2024, 6, 9), day(2024, 6, 9))
	require.NoError(t, err)
	require.Len(t, calendar, 1)
	assert.True(t, calendar[0].Available)
}

func TestCalendarIgnoresNonOccupyingStatuses(t *testing.T) {
	mk := func(status models.BookingStatus) *models.Booking {
		return &models.Booking{
			Status:       status,
			CheckInDate:  day(2024, 6, 10),
			CheckOutDate: day(2024, 6, 12),
		}
	}
	bookings := []*models.Booking{
		mk(models.StatusCancelled),
		mk(models.StatusNoShow),
		mk(models.StatusCompleted),
	}

	calendar, err := Calendar(bookings, day(2024, 6, 10), day(2024, 6, 11))
	require.NoError(t, err)
	for _, d := range calendar {
		assert.True(t, d.Available, "date %s", d.Date)
	}
}

func TestCalendarOverlappingBookingsUnion(t *testing.T) {
	bookings := []*models.Booking{
		{Status: models.StatusBooked, CheckInDate: day(2024, 6, 10), CheckOutDate: day(2024, 6, 12)},
		{Status: models.StatusActive, CheckInDate: day(2024, 6, 12), CheckOutDate: day(2024, 6, 14)},
	}

	calendar, err := Calendar(bookings, day(2024, 6, 10), day(2024, 6, 14))
	require.NoError(t, err)
	// Back-to-back bookings: 10..13 occupied, 14 free.
	for i := 0; i < 4; i++ {
		assert.False(t, calendar[i].Available, "date %s", calendar[i].Date)
	}
	assert.True(t, calendar[4].Available)
}

func TestOverlaps(t *testing.T) {
	b := &models.Booking{CheckInDate: day(2024, 6, 10), CheckOutDate: day(2024, 6, 13)}

	assert.True(t, Overlaps(b, day(2024, 6, 9), day(2024, 6, 10)))
	assert.True(t, Overlaps(b, day(2024, 6, 12), day(2024, 6, 20)))
	assert.False(t, Overlaps(b, day(2024, 6, 13), day(2024, 6, 20)), "check-out day does not overlap")
	assert.False(t, Overlaps(b, day(2024, 6, 1), day(2024, 6, 9)))
}
