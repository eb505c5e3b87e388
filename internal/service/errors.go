package service

import "errors"

var (
	// ErrInvalidState is returned when an operation is not legal from
	// the booking's current status.
	ErrInvalidState = errors.New("operation is not allowed in the current booking status")

	// ErrTooEarly is returned when check-in is attempted before the
	// booked check-in date.
	ErrTooEarly = errors.New("check-in date has not arrived yet")

	// ErrTooLate is returned when an operation's date window has
	// already passed.
	ErrTooLate = errors.New("the date window for this operation has passed")

	// ErrConflictingPayment is returned when the guest already has an
	// outstanding pending payment on any booking.
	ErrConflictingPayment = errors.New("guest has an outstanding pending payment")

	// ErrUnknownSession is returned when a provider event references a
	// checkout session the system does not know.
	ErrUnknownSession = errors.New("no payment matches this checkout session")

	// ErrPaymentProvider wraps checkout session creation failures.
	ErrPaymentProvider = errors.New("payment provider request failed")

	// ErrRoomNotFound is returned when a booking references a room
	// missing from the inventory.
	ErrRoomNotFound = errors.New("room not found")
)
