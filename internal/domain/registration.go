package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierEarlyBird Tier = "early-bird"
	TierRegular   Tier = "regular"
	TierDayOf     Tier = "day-of"
)

var Tiers = []Tier{TierEarlyBird, TierRegular, TierDayOf}

func (t Tier) Valid() bool {
	switch t {
	case TierEarlyBird, TierRegular, TierDayOf:
		return true
	}
	return false
}

// Title is the human form used in receipts, e.g. "Day Of".
func (t Tier) Title() string {
	words := strings.Split(string(t), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Label is the option text the registrant picked, sent to the intake endpoint.
func (t Tier) Label() string {
	switch t {
	case TierEarlyBird:
		return "Early Bird - $20 (First 20 vendors)"
	case TierRegular:
		return "Regular - $30"
	case TierDayOf:
		return "Day Of - $40"
	}
	return string(t)
}

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether an operator may move a row from s to next.
// Only pending rows move, and only to a terminal status.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == StatusPending && (next == StatusCompleted || next == StatusFailed)
}

type Registration struct {
	ID               uuid.UUID     `json:"id"`
	FullName         string        `json:"full_name"`
	Phone            string        `json:"phone"`
	Email            string        `json:"email"`
	Address          string        `json:"address"`
	Tier             Tier          `json:"registration_type"`
	Spaces           int           `json:"number_of_spaces"`
	ItemsDescription string        `json:"items_description"`
	Amount           int           `json:"total_amount"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentIntentID  string        `json:"stripe_payment_intent_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewCompletedRegistration builds the row written once the provider reports a successful payment.
func NewCompletedRegistration(form Form, amount int, paymentIntentID string) Registration {
	return Registration{
		ID:               uuid.New(),
		FullName:         form.FullName,
		Phone:            form.Phone,
		Email:            form.Email,
		Address:          form.Address,
		Tier:             form.RegistrationType,
		Spaces:           ParseSpaces(string(form.NumberOfSpaces)),
		ItemsDescription: form.ItemsDescription,
		Amount:           amount,
		PaymentStatus:    StatusCompleted,
		PaymentIntentID:  paymentIntentID,
	}
}
