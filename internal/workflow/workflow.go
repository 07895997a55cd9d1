package workflow

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
	"github.com/robertarktes/yard-sale-vendors/internal/notify"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/payment"
	"github.com/robertarktes/yard-sale-vendors/internal/validator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MsgIntakeFailed   = "Registration submission failed. Please try again."
	MsgIntentFailed   = "Could not start payment. Please try again."
	MsgPaymentFailed  = "Payment failed: "
	MsgNotSettled     = "Your payment is still processing. Please wait a moment."
	MsgContactSupport = "Registration failed. Please contact support."
	MsgConfirmed      = "Payment successful! Registration confirmed. Check your email for details."
	MsgBadSpaces      = "Number of spaces must be 1, 2, or 3."

	paymentContainer = "payment-element"
	finalizeTimeout  = 30 * time.Second
)

type Intake interface {
	Submit(ctx context.Context, form domain.Form, quote domain.Quote) error
}

type PaymentIntents interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error)
}

// Store persists completed registrations. Insert is idempotent on the payment intent id.
type Store interface {
	Insert(ctx context.Context, reg domain.Registration) (domain.Registration, error)
}

type Escalations interface {
	Record(ctx context.Context, e domain.Escalation) error
}

// ElementFactory builds the payment form boundary for one confirmation attempt.
type ElementFactory func(intentID string, outcome payment.Outcome) payment.Element

type Options struct {
	Sessions          *Sessions
	Intake            Intake
	Intents           PaymentIntents
	Elements          ElementFactory
	Store             Store
	Notifier          notify.Notifier
	Escalations       Escalations
	Logger            observability.Logger
	StatusClearAfter  time.Duration
	SuccessClearAfter time.Duration
	Now               func() time.Time
}

type Workflow struct {
	sessions     *Sessions
	intake       Intake
	intents      PaymentIntents
	elements     ElementFactory
	store        Store
	notifier     notify.Notifier
	escalations  Escalations
	logger       observability.Logger
	statusClear  time.Duration
	successClear time.Duration
	now          func() time.Time
	tracer       trace.Tracer
}

func New(opts Options) *Workflow {
	w := &Workflow{
		sessions:     opts.Sessions,
		intake:       opts.Intake,
		intents:      opts.Intents,
		elements:     opts.Elements,
		store:        opts.Store,
		notifier:     opts.Notifier,
		escalations:  opts.Escalations,
		logger:       opts.Logger,
		statusClear:  opts.StatusClearAfter,
		successClear: opts.SuccessClearAfter,
		now:          opts.Now,
		tracer:       otel.Tracer("workflow"),
	}
	if w.logger == nil {
		w.logger = observability.NewNopLogger()
	}
	if w.escalations == nil {
		w.escalations = NewLogEscalations(w.logger)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.statusClear <= 0 {
		w.statusClear = 3 * time.Second
	}
	if w.successClear <= 0 {
		w.successClear = 4 * time.Second
	}
	return w
}

func (w *Workflow) Now() time.Time { return w.now() }

// Start opens a fresh session in collecting_input.
func (w *Workflow) Start(ctx context.Context) (*Session, error) {
	now := w.now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     StateCollectingInput,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	observability.WorkflowTransitions.WithLabelValues(string(StateCollectingInput)).Inc()
	return sess, nil
}

func (w *Workflow) Load(ctx context.Context, id string) (*Session, error) {
	return w.sessions.Get(ctx, id)
}

// Submit drives a session from collecting_input to awaiting_payment. An empty sessionID
// starts a new session. Posting unchanged input to a session already awaiting payment
// returns it as is, so no second intake submission or intent is made.
func (w *Workflow) Submit(ctx context.Context, sessionID string, form domain.Form) (*Session, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.Submit")
	defer span.End()

	if sessionID == "" {
		sess, err := w.Start(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = sess.ID
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	release, err := w.sessions.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	form.Normalize()
	fingerprint := Fingerprint(form)

	switch sess.State {
	case StateCollectingInput:
	case StateAwaitingPayment:
		if sess.Fingerprint == fingerprint {
			return sess, nil
		}
		w.restart(sess)
	case StateFailed:
		if !sess.Retryable() {
			return sess, errors.Wrap(domain.ErrInvalidTransition, "session needs support")
		}
		w.restart(sess)
	case StateDone:
		return sess, errors.Wrap(domain.ErrInvalidTransition, "registration already completed")
	default:
		return sess, errors.Wrapf(domain.ErrConflict, "session is %s", sess.State)
	}

	sess.Form = form
	if err := w.validate(ctx, form); err != nil {
		w.setMessage(sess, MessageError, userMessage(err))
		if serr := w.save(ctx, sess); serr != nil {
			return sess, serr
		}
		span.SetStatus(codes.Error, "validation")
		return sess, err
	}

	sess.Quote = domain.QuoteFor(form.RegistrationType, string(form.NumberOfSpaces))
	sess.Fingerprint = fingerprint

	if err := w.transition(ctx, sess, StateSubmittingIntake); err != nil {
		return sess, err
	}
	if err := w.intake.Submit(ctx, form, sess.Quote); err != nil {
		span.RecordError(err)
		return sess, w.fail(ctx, sess, FailureIntake, MsgIntakeFailed, domain.NewIntegrationError(domain.StageIntake, err))
	}

	if err := w.transition(ctx, sess, StateRequestingIntent); err != nil {
		return sess, err
	}
	intent, err := w.intents.CreateIntent(ctx, payment.IntentRequest{
		Amount:         sess.Quote.Amount,
		FullName:       form.FullName,
		Email:          form.Email,
		IdempotencyKey: intentKey(sess),
	})
	if err != nil {
		span.RecordError(err)
		// a fresh key for the next attempt, so a cached provider error is not replayed
		sess.IntentGeneration++
		return sess, w.fail(ctx, sess, FailurePaymentIntent, MsgIntentFailed, domain.NewIntegrationError(domain.StagePaymentIntent, err))
	}

	sess.ClientSecret = intent.ClientSecret
	sess.PaymentIntentID = intent.ID
	w.clearMessage(sess)
	return sess, w.transition(ctx, sess, StateAwaitingPayment)
}

// ConfirmPayment accepts the payment form's single outcome for a session awaiting payment.
func (w *Workflow) ConfirmPayment(ctx context.Context, sessionID string, outcome payment.Outcome) (*Session, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.ConfirmPayment", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	release, err := w.sessions.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != StateAwaitingPayment {
		return sess, errors.Wrapf(domain.ErrInvalidTransition, "no payment expected in state %s", sess.State)
	}

	el := w.elements(sess.PaymentIntentID, outcome)
	if err := el.Mount(paymentContainer); err != nil {
		return sess, errors.Wrap(err, "mount payment element")
	}
	err = el.Confirm(ctx)
	switch {
	case err == nil:
		return w.finalize(ctx, sess)
	case errors.Is(err, domain.ErrPaymentDeclined):
		var declined *domain.DeclinedError
		msg := err.Error()
		if errors.As(err, &declined) {
			msg = declined.Message
		}
		return sess, w.fail(ctx, sess, FailureDeclined, MsgPaymentFailed+msg, err)
	case errors.Is(err, payment.ErrNotSettled):
		w.setMessage(sess, MessageInfo, MsgNotSettled)
		if serr := w.save(ctx, sess); serr != nil {
			return sess, serr
		}
		return sess, errors.Mark(err, domain.ErrConflict)
	default:
		span.RecordError(err)
		return sess, err
	}
}

// Cancel discards a session whose payment dialog was dismissed. Nothing is written and
// the intent is left for the provider to expire.
func (w *Workflow) Cancel(ctx context.Context, sessionID string) error {
	release, err := w.sessions.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	sess, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State.InFlight() {
		return errors.Wrapf(domain.ErrConflict, "session is %s", sess.State)
	}
	if err := w.sessions.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete session")
	}
	w.logger.WithFields(map[string]interface{}{"session_id": sess.ID, "state": sess.State}).Info("session cancelled")
	return nil
}

// finalize runs detached from the caller's context: the payment is already captured.
func (w *Workflow) finalize(ctx context.Context, sess *Session) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := w.transition(ctx, sess, StateFinalizing); err != nil {
		return sess, err
	}

	reg := domain.NewCompletedRegistration(sess.Form, sess.Quote.Amount, sess.PaymentIntentID)
	saved, err := w.store.Insert(ctx, reg)
	if err != nil {
		gap := errors.Mark(domain.NewIntegrationError(domain.StageStore, err), domain.ErrReconciliationGap)
		w.escalate(ctx, sess, err)
		return sess, w.fail(ctx, sess, FailureReconciliationGap, MsgContactSupport, gap)
	}
	sess.RegistrationID = saved.ID.String()

	if err := w.notifier.Notify(ctx, notify.ConfirmationFor(saved)); err != nil {
		w.logger.WithError(err).WithFields(map[string]interface{}{
			"session_id":      sess.ID,
			"registration_id": sess.RegistrationID,
		}).Warn("confirmation email failed")
		observability.NotificationsTotal.WithLabelValues("failed").Inc()
	} else {
		observability.NotificationsTotal.WithLabelValues("dispatched").Inc()
	}

	sess.Form = domain.Form{}
	w.setMessage(sess, MessageSuccess, MsgConfirmed)
	return sess, w.transition(ctx, sess, StateDone)
}

func (w *Workflow) escalate(ctx context.Context, sess *Session, cause error) {
	e := domain.Escalation{
		ID:              uuid.NewString(),
		SessionID:       sess.ID,
		PaymentIntentID: sess.PaymentIntentID,
		FullName:        sess.Form.FullName,
		Email:           sess.Form.Email,
		Amount:          sess.Quote.Amount,
		Reason:          cause.Error(),
		CreatedAt:       w.now(),
	}
	log := w.logger.WithError(cause).WithFields(map[string]interface{}{
		"session_id":        sess.ID,
		"payment_intent_id": sess.PaymentIntentID,
		"amount":            sess.Quote.Amount,
	})
	log.Error("payment captured but registration not stored")
	if err := w.escalations.Record(ctx, e); err != nil {
		log.WithField("record_error", err.Error()).Error("failed to record support escalation")
	}
}

func (w *Workflow) validate(ctx context.Context, form domain.Form) error {
	if err := validator.Validate(ctx, form); err != nil {
		return err
	}
	spaces := domain.ParseSpaces(string(form.NumberOfSpaces))
	if spaces < domain.MinSpaces || spaces > domain.MaxSpaces {
		return &domain.ValidationError{Field: "numberOfSpaces", Message: MsgBadSpaces}
	}
	return nil
}

// restart returns a session to collecting_input, keeping the key generation so a retry
// with unchanged input reuses the provider's existing intent.
func (w *Workflow) restart(sess *Session) {
	sess.State = StateCollectingInput
	sess.Failure = FailureNone
	sess.ClientSecret = ""
	sess.PaymentIntentID = ""
	w.clearMessage(sess)
}

func (w *Workflow) fail(ctx context.Context, sess *Session, failure Failure, msg string, cause error) error {
	sess.Failure = failure
	w.setMessage(sess, MessageError, msg)
	if err := w.transition(ctx, sess, StateFailed); err != nil {
		return errors.CombineErrors(cause, err)
	}
	return cause
}

func (w *Workflow) transition(ctx context.Context, sess *Session, to State) error {
	from := sess.State
	sess.State = to
	if err := w.save(ctx, sess); err != nil {
		return err
	}
	observability.WorkflowTransitions.WithLabelValues(string(to)).Inc()
	trace.SpanFromContext(ctx).AddEvent("transition", trace.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	w.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"from":       from,
		"state":      to,
	}).Info("workflow transition")
	return nil
}

func (w *Workflow) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = w.now()
	return w.sessions.Save(ctx, sess)
}

func (w *Workflow) setMessage(sess *Session, kind MessageKind, msg string) {
	ttl := w.statusClear
	if kind == MessageSuccess {
		ttl = w.successClear
	}
	sess.Message = msg
	sess.MessageKind = kind
	sess.MessageExpiresAt = w.now().Add(ttl)
}

func (w *Workflow) clearMessage(sess *Session) {
	sess.Message = ""
	sess.MessageKind = ""
	sess.MessageExpiresAt = time.Time{}
}

// Fingerprint identifies a submission by its normalized values.
func Fingerprint(form domain.Form) string {
	return idempotency.Key("form",
		form.FullName,
		form.Phone,
		form.Email,
		form.Address,
		string(form.RegistrationType),
		string(form.NumberOfSpaces),
		form.ItemsDescription,
		strconv.FormatBool(form.AgreeToRules),
		strconv.FormatBool(form.BringOwnSupplies),
	)
}

func intentKey(sess *Session) string {
	return idempotency.Key(sess.ID, sess.Fingerprint, strconv.Itoa(sess.IntentGeneration))
}

func userMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		if ve.Field == "" || ve.Message != validator.ErrFieldRequired {
			return ve.Message
		}
		return "Please fill in all required fields."
	}
	return err.Error()
}
