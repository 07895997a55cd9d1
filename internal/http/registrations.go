package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/payment"
	"github.com/robertarktes/yard-sale-vendors/internal/workflow"
)

type submitRequest struct {
	SessionID string `json:"sessionId"`
	domain.Form
}

type sessionView struct {
	SessionID       string               `json:"sessionId"`
	State           workflow.State       `json:"state"`
	Amount          int                  `json:"amount"`
	BasePrice       int                  `json:"basePrice"`
	NumberOfSpaces  int                  `json:"numberOfSpaces"`
	ClientSecret    string               `json:"clientSecret,omitempty"`
	PaymentIntentID string               `json:"paymentIntentId,omitempty"`
	PublishableKey  string               `json:"publishableKey,omitempty"`
	RegistrationID  string               `json:"registrationId,omitempty"`
	Message         string               `json:"message,omitempty"`
	MessageKind     workflow.MessageKind `json:"messageKind,omitempty"`
	Retryable       bool                 `json:"retryable"`
	Error           string               `json:"error,omitempty"`
}

func (h *Handlers) view(sess *workflow.Session) sessionView {
	msg, kind := sess.VisibleMessage(h.workflow.Now())
	v := sessionView{
		SessionID:       sess.ID,
		State:           sess.State,
		Amount:          sess.Quote.Amount,
		BasePrice:       sess.Quote.UnitPrice,
		NumberOfSpaces:  sess.Quote.Spaces,
		PaymentIntentID: sess.PaymentIntentID,
		RegistrationID:  sess.RegistrationID,
		Message:         msg,
		MessageKind:     kind,
		Retryable:       sess.Retryable(),
	}
	if sess.State == workflow.StateAwaitingPayment {
		v.ClientSecret = sess.ClientSecret
		v.PublishableKey = h.cfg.StripePublishableKey
	}
	return v
}

// respondSession writes the session view, with the error status when the step failed.
func (h *Handlers) respondSession(w http.ResponseWriter, r *http.Request, sess *workflow.Session, err error, okStatus int) {
	if err == nil {
		writeJSON(w, okStatus, h.view(sess))
		return
	}

	status := statusFor(err)
	log := observability.LoggerFromContext(r.Context(), h.logger).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("registration step failed")
	} else {
		log.Info("registration step rejected")
	}

	if sess == nil {
		writeError(w, status, publicMessage(err))
		return
	}
	v := h.view(sess)
	v.Error = sess.Message
	if v.Error == "" {
		v.Error = publicMessage(err)
	}
	writeJSON(w, status, v)
}

// CreateRegistration handles POST /api/registrations
func (h *Handlers) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	status := http.StatusOK
	if req.SessionID == "" {
		status = http.StatusCreated
	}
	sess, err := h.workflow.Submit(r.Context(), req.SessionID, req.Form)
	h.respondSession(w, r, sess, err, status)
}

// GetRegistration handles GET /api/registrations/{sessionID}
func (h *Handlers) GetRegistration(w http.ResponseWriter, r *http.Request) {
	sess, err := h.workflow.Load(r.Context(), chi.URLParam(r, "sessionID"))
	h.respondSession(w, r, sess, err, http.StatusOK)
}

// ConfirmPayment handles POST /api/registrations/{sessionID}/payment
// The body is the payment form's outcome; a reported success is checked with the provider.
func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var outcome payment.Outcome
	if err := decodeJSON(w, r, &outcome); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sess, err := h.workflow.ConfirmPayment(r.Context(), chi.URLParam(r, "sessionID"), outcome)
	h.respondSession(w, r, sess, err, http.StatusOK)
}

// CancelRegistration handles DELETE /api/registrations/{sessionID}
func (h *Handlers) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Cancel(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondSession(w, r, nil, err, http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
