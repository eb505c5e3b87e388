// Package payment integrates the Stripe hosted checkout flow.
package payment

import (
	"context"
	"fmt"

	"hotelier/internal/config"
	"hotelier/internal/domain"
	"hotelier/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// StripeProvider opens hosted checkout sessions. It satisfies
// domain.CheckoutProvider.
type StripeProvider struct {
	currency   string
	successURL string
	cancelURL  string
	logger     *zerolog.Logger
}

func NewStripeProvider(cfg config.StripeConfig, logger *zerolog.Logger) *StripeProvider {
	stripe.Key = cfg.SecretKey

	return &StripeProvider{
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logger:     logger,
	}
}

// OpenSession creates a Stripe checkout session for the payment.
func (p *StripeProvider) OpenSession(ctx context.Context, payment *models.Payment, booking *models.Booking) (domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.currency),
					UnitAmount: stripe.Int64(AmountToMinorUnits(payment.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(SessionLabel(payment.Kind, booking.Reference)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(booking.Reference),
	}
	if p.successURL != "" {
		params.SuccessURL = stripe.String(p.successURL)
	}
	if p.cancelURL != "" {
		params.CancelURL = stripe.String(p.cancelURL)
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.logger.Info().
		Int64("payment_id", payment.ID).
		Str("session_id", s.ID).
		Str("kind", string(payment.Kind)).
		Msg("checkout session opened")

	return domain.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// AmountToMinorUnits converts a decimal money amount into the integer
// minor units (cents) Stripe expects.
func AmountToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// SessionLabel is the line item name the guest sees on the checkout
// page.
func SessionLabel(kind models.PaymentKind, reference string) string {
	switch kind {
	case models.KindStay:
		return fmt.Sprintf("Stay payment for booking %s", reference)
	case models.KindCancellationFee:
		return fmt.Sprintf("Cancellation fee for booking %s", reference)
	case models.KindNoShowFee:
		return fmt.Sprintf("No-show fee for booking %s", reference)
	case models.KindOverstayFee:
		return fmt.Sprintf("Overstay fee for booking %s", reference)
	}
	return fmt.Sprintf("Payment for booking %s", reference)
}
