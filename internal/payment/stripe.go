package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// IntentRequest carries the amount in whole currency units; conversion to minor units
// happens here, never at the caller.
type IntentRequest struct {
	Amount         int
	FullName       string
	Email          string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type Options struct {
	Currency  string
	EventName string
	// APIURL overrides the provider endpoint; empty means production.
	APIURL string
}

type Service struct {
	client    paymentintent.Client
	currency  string
	eventName string
}

func NewStripeService(secretKey string, opts Options) *Service {
	backend := stripe.GetBackend(stripe.APIBackend)
	if opts.APIURL != "" {
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(opts.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
	}
	currency := opts.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Service{
		client:    paymentintent.Client{B: backend, Key: secretKey},
		currency:  currency,
		eventName: opts.EventName,
	}
}

func MinorUnits(amount int) int64 {
	return int64(amount) * 100
}

func (s *Service) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if req.Amount <= 0 {
		return Intent{}, errors.Newf("amount must be positive, got %d", req.Amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(req.Amount)),
		Currency:    stripe.String(s.currency),
		Description: stripe.String(s.eventName + " - Vendor Registration for " + req.FullName),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("customer_name", req.FullName)
	params.AddMetadata("customer_email", req.Email)
	params.AddMetadata("event", s.eventName)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.client.New(params)
	if err != nil {
		return Intent{}, errors.Wrap(err, "create payment intent")
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (s *Service) Retrieve(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.client.Get(id, params)
	if err != nil {
		return Intent{}, errors.Wrapf(err, "retrieve payment intent %s", id)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}
