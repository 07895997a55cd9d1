package http

import (
	"net/http"

	"github.com/robertarktes/yard-sale-vendors/internal/notify"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/payment"
)

type createIntentRequest struct {
	Amount   int    `json:"amount"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type createIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreatePaymentIntent handles POST /functions/v1/create-payment-intent
// Amount is in whole currency units. Idempotency-Key is forwarded to the provider.
func (h *Handlers) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive whole number")
		return
	}

	intent, err := h.intents.CreateIntent(r.Context(), payment.IntentRequest{
		Amount:         req.Amount,
		FullName:       req.FullName,
		Email:          req.Email,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Error("create payment intent failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, createIntentResponse{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID})
}

type sendEmailResponse struct {
	Success bool   `json:"success"`
	EmailID string `json:"emailId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendConfirmationEmail handles POST /functions/v1/send-confirmation-email
func (h *Handlers) SendConfirmationEmail(w http.ResponseWriter, r *http.Request) {
	var c notify.Confirmation
	if err := decodeJSON(w, r, &c); err != nil {
		writeJSON(w, http.StatusBadRequest, sendEmailResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	id, err := h.receipts.Send(r.Context(), c)
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Warn("confirmation email failed")
		observability.NotificationsTotal.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusInternalServerError, sendEmailResponse{Error: err.Error()})
		return
	}
	observability.NotificationsTotal.WithLabelValues("sent").Inc()
	writeJSON(w, http.StatusOK, sendEmailResponse{Success: true, EmailID: id})
}
