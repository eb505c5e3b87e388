// Package fees prices the charges a booking can incur. Everything here
// is pure so amounts can be previewed for hypothetical dates.
package fees

import (
	"fmt"
	"time"

	"hotelier/internal/models"

	"github.com/shopspring/decimal"
)

const DefaultCancellationHours = 24

// Policy holds the configured fee parameters.
//
// CancellationFlat and NoShowFlat take precedence over their rate-based
// fallbacks when positive. OverstayMultiplier scales the nightly rate
// for each excess night; zero means 1.
type Policy struct {
	CancellationHours    int
	CancellationFraction decimal.Decimal
	CancellationFlat     decimal.Decimal
	NoShowFlat           decimal.Decimal
	OverstayMultiplier   decimal.Decimal
}

// DefaultPolicy: late window of 24h, cancellation fee of half the stay,
// no-show fee of one night, overstay at the plain nightly rate.
func DefaultPolicy() Policy {
	return Policy{
		CancellationHours:    DefaultCancellationHours,
		CancellationFraction: decimal.NewFromFloat(0.5),
		OverstayMultiplier:   decimal.NewFromInt(1),
	}
}

// Amount returns what the guest owes for a fee of the given kind,
// evaluated as of asOf (date granularity). asOf only matters for
// OVERSTAY_FEE, where it is treated as the actual checkout date.
func (p Policy) Amount(b *models.Booking, kind models.PaymentKind, asOf time.Time) (decimal.Decimal, error) {
	switch kind {
	case models.KindStay:
		return b.StayTotal(), nil

	case models.KindCancellationFee:
		if p.CancellationFlat.IsPositive() {
			return p.CancellationFlat, nil
		}
		return b.StayTotal().Mul(p.CancellationFraction), nil

	case models.KindNoShowFee:
		if p.NoShowFlat.IsPositive() {
			return p.NoShowFlat, nil
		}
		return b.PricePerNight, nil

	case models.KindOverstayFee:
		excess := excessNights(b, asOf)
		if excess < 1 {
			excess = 1
		}
		multiplier := p.OverstayMultiplier
		if multiplier.IsZero() {
			multiplier = decimal.NewFromInt(1)
		}
		return b.PricePerNight.Mul(decimal.NewFromInt(excess)).Mul(multiplier), nil
	}

	return decimal.Zero, fmt.Errorf("unknown payment kind: %s", kind)
}

// IsLateCancellation reports whether cancelling as of today falls inside
// the fee-bearing window before check-in. Whole hours at date
// granularity: check-in tomorrow is 24 hours away.
func (p Policy) IsLateCancellation(b *models.Booking, today time.Time) bool {
	threshold := p.CancellationHours
	if threshold <= 0 {
		threshold = DefaultCancellationHours
	}
	return p.HoursToCheckIn(b, today) <= int64(threshold)
}

// HoursToCheckIn returns the whole hours from today to the booking's
// check-in date. Negative when check-in is already past.
func (p Policy) HoursToCheckIn(b *models.Booking, today time.Time) int64 {
	diff := models.DateOnly(b.CheckInDate).Sub(models.DateOnly(today))
	return int64(diff.Hours())
}

// IsOverstay reports whether checking out on the given date is later
// than the booked check-out date.
func IsOverstay(b *models.Booking, checkout time.Time) bool {
	return models.DateOnly(checkout).After(models.DateOnly(b.CheckOutDate))
}

func excessNights(b *models.Booking, actualCheckout time.Time) int64 {
	diff := models.DateOnly(actualCheckout).Sub(models.DateOnly(b.CheckOutDate))
	return int64(diff.Hours() / 24)
}
