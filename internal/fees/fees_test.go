package fees

import (
	"testing"
	"time"

	"hotelier/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func booking(nights int) *models.Booking {
	return &models.Booking{
		CheckInDate:   day(2024, 6, 10),
		CheckOutDate:  day(2024, 6, 10).AddDate(0, 0, nights),
		PricePerNight: decimal.NewFromInt(100),
	}
}

func TestStayAmount(t *testing.T) {
	p := DefaultPolicy()

	for _, nights := range []int{1, 2, 7, 30} {
		amount, err := p.Amount(booking(nights), models.KindStay, day(2024, 6, 10))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(int64(nights*100)).Equal(amount), "nights=%d got %s", nights, amount)
	}
}

func TestCancellationFeeFractionAndFlat(t *testing.T) {
	b := booking(4) // stay total 400

	p := DefaultPolicy()
	amount, err := p.Amount(b, models.KindCancellationFee, day(2024, 6, 9))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(amount), "got %s", amount)

	p.CancellationFlat = decimal.NewFromInt(75)
	amount, err = p.Amount(b, models.KindCancellationFee, day(2024, 6, 9))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(75).Equal(amount))
}

func TestNoShowFee(t *testing.T) {
	b := booking(3)

	p := DefaultPolicy()
	amount, err := p.Amount(b, models.KindNoShowFee, day(2024, 6, 11))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(amount), "defaults to one night")

	p.NoShowFlat = decimal.NewFromInt(50)
	amount, err = p.Amount(b, models.KindNoShowFee, day(2024, 6, 11))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(amount))
}

func TestOverstayFee(t *testing.T) {
	b := booking(2) // check-out 2024-06-12

	p := DefaultPolicy()

	amount, err := p.Amount(b, models.KindOverstayFee, day(2024, 6, 13))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(amount), "one excess night")

	amount, err = p.Amount(b, models.KindOverstayFee, day(2024, 6, 15))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(amount), "three excess nights")

	p.OverstayMultiplier = decimal.NewFromFloat(1.5)
	amount, err = p.Amount(b, models.KindOverstayFee, day(2024, 6, 13))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(amount))
}

func TestUnknownKind(t *testing.T) {
	p := DefaultPolicy()
	_, err := p.Amount(booking(1), models.PaymentKind("TIP"), day(2024, 6, 10))
	assert.Error(t, err)
}

func TestIsLateCancellation(t *testing.T) {
	p := DefaultPolicy()
	b := booking(2) // check-in 2024-06-10

	assert.True(t, p.IsLateCancellation(b, day(2024, 6, 9)), "24h before check-in is late")
	assert.True(t, p.IsLateCancellation(b, day(2024, 6, 10)), "check-in day is late")
	assert.False(t, p.IsLateCancellation(b, day(2024, 6, 8)), "48h before check-in is not late")

	p.CancellationHours = 48
	assert.True(t, p.IsLateCancellation(b, day(2024, 6, 8)))
}

func TestIsOverstay(t *testing.T) {
	b := booking(2) // check-out 2024-06-12
	assert.False(t, IsOverstay(b, day(2024, 6, 11)))
	assert.False(t, IsOverstay(b, day(2024, 6, 12)), "leaving on the check-out day is not an overstay")
	assert.True(t, IsOverstay(b, day(2024, 6, 13)))
}
