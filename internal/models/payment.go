package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	KindStay            PaymentKind = "STAY"
	KindCancellationFee PaymentKind = "CANCELLATION_FEE"
	KindNoShowFee       PaymentKind = "NO_SHOW_FEE"
	KindOverstayFee     PaymentKind = "OVERSTAY_FEE"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
)

// Payment is a fee obligation tied to a booking: a priceable charge the
// guest must settle through an external checkout session. At most one
// PENDING payment of a given kind exists per booking.
type Payment struct {
	ID         int64           `json:"id"`
	BookingID  int64           `json:"booking_id"`
	Kind       PaymentKind     `json:"kind"`
	Status     PaymentStatus   `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	SessionID  string          `json:"session_id,omitempty"`
	SessionURL string          `json:"session_url,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ConfirmationResult describes what a confirmed checkout session did to
// the payment and its booking.
type ConfirmationResult struct {
	Payment        *Payment
	Booking        *Booking
	AlreadyPaid    bool
	PreviousStatus BookingStatus
	StatusChanged  bool
}

// NextStatusOnPayment decides which lifecycle transition a confirmed
// payment drives. Returns false when the current booking status does not
// admit a transition for this payment kind; reconciliation then leaves
// the booking untouched.
func NextStatusOnPayment(kind PaymentKind, current BookingStatus) (BookingStatus, bool) {
	switch kind {
	case KindCancellationFee:
		if current == StatusBooked {
			return StatusCancelled, true
		}
	case KindStay, KindNoShowFee:
		if current == StatusBooked || current == StatusNoShow {
			return StatusActive, true
		}
	case KindOverstayFee:
		if current == StatusActive {
			return StatusCompleted, true
		}
	}
	return current, false
}
