package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const eventCheckoutCompleted = "checkout.session.completed"

// VerifyCheckoutCompleted verifies a Stripe webhook signature and, for
// checkout.session.completed events, extracts the session ID. The
// second return value is false for event types we do not handle.
func VerifyCheckoutCompleted(payload []byte, signatureHeader, secret string) (string, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", false, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	if event.Type != eventCheckoutCompleted {
		return "", false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", false, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	if session.ID == "" {
		return "", false, fmt.Errorf("checkout session has no id")
	}

	return session.ID, true, nil
}
