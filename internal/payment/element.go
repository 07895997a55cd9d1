package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/stripe/stripe-go/v82"
)

// Element is the embeddable payment form. It owns card data; the workflow only learns
// whether confirmation succeeded.
type Element interface {
	Mount(container string) error
	Confirm(ctx context.Context) error
}

type Retriever interface {
	Retrieve(ctx context.Context, id string) (Intent, error)
}

// Outcome is what the browser's payment form reported.
type Outcome struct {
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error"`
}

var ErrNotSettled = errors.New("payment not settled yet")

// VerifiedElement accepts a reported success only once the provider agrees the intent
// has succeeded.
type VerifiedElement struct {
	intents   Retriever
	intentID  string
	outcome   Outcome
	container string
}

func NewVerifiedElement(intents Retriever, intentID string, outcome Outcome) *VerifiedElement {
	return &VerifiedElement{intents: intents, intentID: intentID, outcome: outcome}
}

func (e *VerifiedElement) Mount(container string) error {
	if e.intentID == "" {
		return errors.New("no payment intent to mount")
	}
	e.container = container
	return nil
}

func (e *VerifiedElement) Confirm(ctx context.Context) error {
	if e.container == "" {
		return errors.New("payment element not mounted")
	}
	if !e.outcome.Succeeded {
		msg := e.outcome.Error
		if msg == "" {
			msg = "Payment failed"
		}
		return &domain.DeclinedError{Message: msg}
	}

	intent, err := e.intents.Retrieve(ctx, e.intentID)
	if err != nil {
		return domain.NewIntegrationError(domain.StagePaymentIntent, err)
	}

	switch stripe.PaymentIntentStatus(intent.Status) {
	case stripe.PaymentIntentStatusSucceeded:
		return nil
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return ErrNotSettled
	case stripe.PaymentIntentStatusCanceled:
		return &domain.DeclinedError{Message: "Payment was canceled"}
	default:
		return &domain.DeclinedError{Message: "Payment was not completed"}
	}
}
