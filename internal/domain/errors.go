package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidTransition    = errors.New("invalid status transition")

	ErrValidation        = errors.New("validation failed")
	ErrIntegration       = errors.New("integration failure")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrReconciliationGap = errors.New("payment captured but registration not persisted")
)

// ValidationError is detected before anything leaves the process.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type Stage string

const (
	StageIntake        Stage = "intake"
	StagePaymentIntent Stage = "payment_intent"
	StageStore         Stage = "store"
	StageEmail         Stage = "email"
)

// IntegrationError reports a failed call to an outside collaborator.
type IntegrationError struct {
	Stage Stage
	Err   error
}

func NewIntegrationError(stage Stage, err error) error {
	return &IntegrationError{Stage: stage, Err: err}
}

func (e *IntegrationError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *IntegrationError) Unwrap() error { return e.Err }

func (e *IntegrationError) Is(target error) bool { return target == ErrIntegration }

// DeclinedError carries the provider's message for a refused payment.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string { return "payment declined: " + e.Message }

func (e *DeclinedError) Is(target error) bool { return target == ErrPaymentDeclined }

// StageOf returns the integration stage that err failed at, if any.
func StageOf(err error) (Stage, bool) {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Stage, true
	}
	return "", false
}
