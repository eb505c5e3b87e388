package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"hotelier/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testBooking(roomID int64, checkIn, checkOut string) *models.Booking {
	in, _ := time.Parse(dateLayout, checkIn)
	out, _ := time.Parse(dateLayout, checkOut)
	return &models.Booking{
		Reference:     fmt.Sprintf("HB-%s-%d", checkIn, roomID),
		RoomID:        roomID,
		GuestID:       42,
		GuestName:     "Ada Lovelace",
		GuestEmail:    "ada@example.com",
		CheckInDate:   in,
		CheckOutDate:  out,
		Status:        models.StatusBooked,
		PricePerNight: decimal.NewFromInt(100),
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := testBooking(1, "2024-06-10", "2024-06-13")
	require.NoError(t, db.CreateBookingWithLock(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)
	assert.Equal(t, models.StatusBooked, got.Status)
	assert.True(t, got.CheckInDate.Equal(b.CheckInDate))
	assert.True(t, got.CheckOutDate.Equal(b.CheckOutDate))
	assert.Nil(t, got.ActualCheckOutDate)
	assert.True(t, decimal.NewFromInt(100).Equal(got.PricePerNight))

	byRef, err := db.GetBookingByReference(ctx, b.Reference)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byRef.ID)
}

func TestGetBookingNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetBooking(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBookingOverlapRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBookingWithLock(ctx, testBooking(1, "2024-06-10", "2024-06-13")))

	cases := []struct {
		name             string
		checkIn, checkOut string
		wantErr          error
	}{
		{"identical range", "2024-06-10", "2024-06-13", ErrRoomNotAvailable},
		{"starts inside", "2024-06-12", "2024-06-15", ErrRoomNotAvailable},
		{"ends inside", "2024-06-08", "2024-06-11", ErrRoomNotAvailable},
		{"contains", "2024-06-09", "2024-06-14", ErrRoomNotAvailable},
		{"back to back after", "2024-06-13", "2024-06-15", nil},
		{"back to back before", "2024-06-08", "2024-06-10", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := testBooking(1, tc.checkIn, tc.checkOut)
			err := db.CreateBookingWithLock(ctx, b)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateBookingOtherRoomUnaffected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBookingWithLock(ctx, testBooking(1, "2024-06-10", "2024-06-13")))
	assert.NoError(t, db.CreateBookingWithLock(ctx, testBooking(2, "2024-06-10", "2024-06-13")))
}

func TestCancelledBookingFreesRoom(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := testBooking(1, "2024-06-10", "2024-06-13")
	require.NoError(t, db.CreateBookingWithLock(ctx, b))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusCancelled))

	again := testBooking(1, "2024-06-10", "2024-06-13")
	again.Reference = "HB-retry"
	assert.NoError(t, db.CreateBookingWithLock(ctx, again))
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := testBooking(1, "2024-06-10", "2024-06-13")
	require.NoError(t, db.CreateBookingWithLock(ctx, b))

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusActive))

	// Stale version loses.
	err := db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestCompleteBookingStampsActualCheckOut(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := testBooking(1, "2024-06-10", "2024-06-13")
	require.NoError(t, db.CreateBookingWithLock(ctx, b))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusActive))

	actual, _ := time.Parse(dateLayout, "2024-06-13")
	require.NoError(t, db.CompleteBookingWithVersion(ctx, b.ID, 2, actual))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.ActualCheckOutDate)
	assert.True(t, got.ActualCheckOutDate.Equal(actual))
}

func TestListBookingsFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b1 := testBooking(1, "2024-06-10", "2024-06-13")
	b2 := testBooking(2, "2024-06-20", "2024-06-22")
	b2.GuestID = 7
	require.NoError(t, db.CreateBookingWithLock(ctx, b1))
	require.NoError(t, db.CreateBookingWithLock(ctx, b2))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b2.ID, 1, models.StatusCancelled))

	all, err := db.ListBookings(ctx, models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byRoom, err := db.ListBookings(ctx, models.BookingFilter{RoomID: 1})
	require.NoError(t, err)
	require.Len(t, byRoom, 1)
	assert.Equal(t, b1.ID, byRoom[0].ID)

	byGuest, err := db.ListBookings(ctx, models.BookingFilter{GuestID: 7})
	require.NoError(t, err)
	require.Len(t, byGuest, 1)
	assert.Equal(t, b2.ID, byGuest[0].ID)

	cancelled, err := db.ListBookings(ctx, models.BookingFilter{Status: models.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)

	from, _ := time.Parse(dateLayout, "2024-06-15")
	upcoming, err := db.ListBookings(ctx, models.BookingFilter{From: from})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, b2.ID, upcoming[0].ID)
}

func TestGetRoomBookingsOverlapOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	occupied := testBooking(1, "2024-06-10", "2024-06-13")
	require.NoError(t, db.CreateBookingWithLock(ctx, occupied))

	cancelled := testBooking(1, "2024-06-15", "2024-06-18")
	require.NoError(t, db.CreateBookingWithLock(ctx, cancelled))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, cancelled.ID, 1, models.StatusCancelled))

	from, _ := time.Parse(dateLayout, "2024-06-01")
	to, _ := time.Parse(dateLayout, "2024-07-01")
	bookings, err := db.GetRoomBookings(ctx, 1, from, to)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, occupied.ID, bookings[0].ID)

	// Range ending exactly at check-in does not overlap.
	bookings, err = db.GetRoomBookings(ctx, 1, mustDate(t, "2024-06-01"), mustDate(t, "2024-06-10"))
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestMarkNoShows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	overdue := testBooking(1, "2024-06-08", "2024-06-12")
	today := testBooking(2, "2024-06-10", "2024-06-12")
	arrived := testBooking(3, "2024-06-07", "2024-06-12")
	require.NoError(t, db.CreateBookingWithLock(ctx, overdue))
	require.NoError(t, db.CreateBookingWithLock(ctx, today))
	require.NoError(t, db.CreateBookingWithLock(ctx, arrived))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, arrived.ID, 1, models.StatusActive))

	marked, err := db.MarkNoShows(ctx, mustDate(t, "2024-06-10"))
	require.NoError(t, err)
	require.Len(t, marked, 1)
	assert.Equal(t, overdue.ID, marked[0].ID)
	assert.Equal(t, models.StatusNoShow, marked[0].Status)

	got, err := db.GetBooking(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, got.Status)

	// Second sweep finds nothing.
	marked, err = db.MarkNoShows(ctx, mustDate(t, "2024-06-10"))
	require.NoError(t, err)
	assert.Empty(t, marked)

	stillBooked, err := db.GetBooking(ctx, today.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBooked, stillBooked.Status)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	require.NoError(t, err)
	return d
}
