package domain

import "time"

// Escalation records a payment the provider captured but the store never persisted.
// Support resolves it by hand; nothing re-charges automatically.
type Escalation struct {
	ID              string     `json:"id" bson:"_id"`
	SessionID       string     `json:"session_id" bson:"session_id"`
	PaymentIntentID string     `json:"payment_intent_id" bson:"payment_intent_id"`
	FullName        string     `json:"full_name" bson:"full_name"`
	Email           string     `json:"email" bson:"email"`
	Amount          int        `json:"amount" bson:"amount"`
	Reason          string     `json:"reason" bson:"reason"`
	Resolved        bool       `json:"resolved" bson:"resolved"`
	RegistrationID  string     `json:"registration_id,omitempty" bson:"registration_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}
