package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

type State string

const (
	StateCollectingInput  State = "collecting_input"
	StateSubmittingIntake State = "submitting_intake"
	StateRequestingIntent State = "requesting_payment_intent"
	StateAwaitingPayment  State = "awaiting_payment"
	StateFinalizing       State = "finalizing"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// InFlight reports whether a step of the workflow is running against an outside system.
func (s State) InFlight() bool {
	switch s {
	case StateSubmittingIntake, StateRequestingIntent, StateFinalizing:
		return true
	}
	return false
}

type MessageKind string

const (
	MessageError   MessageKind = "error"
	MessageInfo    MessageKind = "info"
	MessageSuccess MessageKind = "success"
)

type Failure string

const (
	FailureNone              Failure = ""
	FailureIntake            Failure = "intake"
	FailurePaymentIntent     Failure = "payment_intent"
	FailureDeclined          Failure = "payment_declined"
	FailureReconciliationGap Failure = "reconciliation_gap"
)

// Session is one registrant's workflow instance. State is the only source of truth for
// where the registrant is; the other fields are data carried between steps.
type Session struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	Form             domain.Form  `json:"form"`
	Quote            domain.Quote `json:"quote"`
	Fingerprint      string       `json:"fingerprint,omitempty"`
	IntentGeneration int          `json:"intent_generation"`

	ClientSecret    string `json:"client_secret,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	RegistrationID  string `json:"registration_id,omitempty"`

	Failure          Failure     `json:"failure,omitempty"`
	Message          string      `json:"message,omitempty"`
	MessageKind      MessageKind `json:"message_kind,omitempty"`
	MessageExpiresAt time.Time   `json:"message_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Retryable is false once money may have moved without a stored row.
func (s *Session) Retryable() bool {
	return s.State == StateFailed && s.Failure != FailureReconciliationGap
}

// VisibleMessage hides banners whose display window has passed.
func (s *Session) VisibleMessage(now time.Time) (string, MessageKind) {
	if s.Message == "" || (!s.MessageExpiresAt.IsZero() && !now.Before(s.MessageExpiresAt)) {
		return "", ""
	}
	return s.Message, s.MessageKind
}

// KV is the byte store sessions live in. Get returns domain.ErrNotFound for absent keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

const (
	sessionPrefix = "session:"
	lockPrefix    = "session-lock:"
	lockTTL       = 30 * time.Second
)

// DefaultPaymentTTL bounds how long a session holding a payable intent is kept.
const DefaultPaymentTTL = 7 * 24 * time.Hour

type Sessions struct {
	kv         KV
	ttl        time.Duration
	paymentTTL time.Duration
}

type SessionOption func(*Sessions)

// WithPaymentTTL sets the lifetime of sessions whose intent may still be paid.
func WithPaymentTTL(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.paymentTTL = d
		}
	}
}

func NewSessions(kv KV, ttl time.Duration, opts ...SessionOption) *Sessions {
	s := &Sessions{kv: kv, ttl: ttl, paymentTTL: DefaultPaymentTTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.paymentTTL < ttl {
		s.paymentTTL = ttl
	}
	return s
}

// ttlFor keeps a session alive as long as its client secret can still move money:
// the payment form confirms against the provider before the outcome reaches us.
func (s *Sessions) ttlFor(sess *Session) time.Duration {
	switch {
	case sess.State == StateAwaitingPayment, sess.State == StateFinalizing:
		return s.paymentTTL
	case sess.State == StateFailed && !sess.Retryable():
		return s.paymentTTL
	}
	return s.ttl
}

func (s *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.kv.Get(ctx, sessionPrefix+id)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	return &sess, nil
}

func (s *Sessions) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrapf(s.kv.Set(ctx, sessionPrefix+sess.ID, raw, s.ttlFor(sess)), "save session %s", sess.ID)
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, sessionPrefix+id)
}

// Lock serializes mutations of one session. A held lock yields domain.ErrConflict.
func (s *Sessions) Lock(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	ok, err := s.kv.AcquireLock(ctx, lockPrefix+id, token, lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquire session lock")
	}
	if !ok {
		return nil, errors.Wrapf(domain.ErrConflict, "session %s is busy", id)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = s.kv.ReleaseLock(ctx, lockPrefix+id, token)
	}, nil
}
