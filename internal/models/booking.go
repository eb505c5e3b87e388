package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusBooked    BookingStatus = "BOOKED"
	StatusActive    BookingStatus = "ACTIVE"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusNoShow    BookingStatus = "NO_SHOW"
)

// transitions is the single source of truth for booking lifecycle legality.
// NO_SHOW -> ACTIVE is the recovery path: a no-show guest may still check in.
var transitions = map[BookingStatus][]BookingStatus{
	StatusBooked:    {StatusActive, StatusCancelled, StatusNoShow},
	StatusActive:    {StatusCompleted},
	StatusNoShow:    {StatusActive},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Occupies reports whether a booking in this status blocks the room
// for its date range. Cancelled, no-show and completed bookings free
// the inventory.
func (s BookingStatus) Occupies() bool {
	return s == StatusBooked || s == StatusActive
}

// OccupyingStatuses are the statuses the availability engine counts.
func OccupyingStatuses() []BookingStatus {
	return []BookingStatus{StatusBooked, StatusActive}
}

func ValidBookingStatus(s string) bool {
	switch BookingStatus(s) {
	case StatusBooked, StatusActive, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	ID                 int64           `json:"id"`
	Reference          string          `json:"reference"`
	RoomID             int64           `json:"room_id"`
	GuestID            int64           `json:"guest_id"`
	GuestName          string          `json:"guest_name"`
	GuestEmail         string          `json:"guest_email"`
	CheckInDate        time.Time       `json:"check_in_date"`
	CheckOutDate       time.Time       `json:"check_out_date"`
	ActualCheckOutDate *time.Time      `json:"actual_check_out_date,omitempty"`
	Status             BookingStatus   `json:"status"`
	PricePerNight      decimal.Decimal `json:"price_per_night"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int64           `json:"version"`
}

// Nights returns the booked stay length in nights. The check-out day
// itself is not occupied, so [check_in, check_out) guarantees >= 1 when
// the creation invariant check_out > check_in holds.
func (b *Booking) Nights() int64 {
	return int64(b.CheckOutDate.Sub(b.CheckInDate).Hours() / 24)
}

// StayTotal is the base price of the whole booked stay.
func (b *Booking) StayTotal() decimal.Decimal {
	return b.PricePerNight.Mul(decimal.NewFromInt(b.Nights()))
}

// DateOnly truncates t to calendar-day granularity. All lifecycle date
// comparisons happen at this granularity.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BookingFilter narrows booking listings. Zero values mean "any". From
// and To select bookings whose stay range touches [From, To].
type BookingFilter struct {
	RoomID  int64
	GuestID int64
	Status  BookingStatus
	From    time.Time
	To      time.Time
}
