// Package billing creates Stripe checkout sessions for premium upgrades.
// Webhook handling and entitlement sync live outside this service.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// ErrNotConfigured is returned when the Stripe credentials are absent.
var ErrNotConfigured = errors.New("billing is not configured")

// Session is the subset of a checkout session the API exposes.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Checkout builds subscription checkout sessions for the premium price.
type Checkout struct {
	priceID string
	baseURL string
}

// NewCheckout configures the Stripe client. Returns nil when no secret key is
// set, which the API layer treats as billing disabled.
func NewCheckout(secretKey, priceID, baseURL string) *Checkout {
	if secretKey == "" || priceID == "" {
		return nil
	}
	stripe.Key = secretKey
	return &Checkout{priceID: priceID, baseURL: baseURL}
}

// CreateSession opens a subscription checkout for the given profile. The
// profile id travels in session metadata so the webhook processor can map the
// subscription back to the account.
func (c *Checkout) CreateSession(ctx context.Context, profileID, email string) (Session, error) {
	if c == nil {
		return Session{}, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.baseURL + "/premium/success"),
		CancelURL:  stripe.String(c.baseURL + "/premium/cancelled"),
	}
	params.Context = ctx
	params.AddMetadata("profile_id", profileID)

	created, err := session.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: created.ID, URL: created.URL}, nil
}
