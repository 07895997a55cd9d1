package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/adminauth"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps the error taxonomy onto HTTP statuses. A reconciliation gap is checked
// before integration failures because it is also one.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrReconciliationGap):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrIntegration):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, adminauth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, adminauth.ErrInvalidToken), errors.Is(err, adminauth.ErrTokenExpired):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func publicMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	switch statusFor(err) {
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "conflict, try again"
	case http.StatusBadGateway:
		return "upstream service unavailable"
	}
	return "internal error"
}
