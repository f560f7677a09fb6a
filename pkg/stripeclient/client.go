/**
 * @description
 * This package provides a thin client for the Stripe operations the engine
 * needs: retrieving a connected account's capability flags. The app layer
 * depends on an interface, so this wrapper stays free of business logic.
 */
package stripeclient

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"

	"github.com/fanforge/engine-service/internal/domain"
)

// Client is a client for the Stripe API.
type Client struct{}

// NewClient creates a new Stripe client using the given secret key.
func NewClient(secretKey string) *Client {
	stripe.Key = secretKey
	return &Client{}
}

// GetAccount retrieves a connected account's capability flags.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.StripeAccount, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve stripe account: %w", err)
	}

	return &domain.StripeAccount{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}, nil
}
