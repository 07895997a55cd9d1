package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/memory"
	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/adminauth"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
	"github.com/robertarktes/yard-sale-vendors/internal/notify"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/payment"
	"github.com/robertarktes/yard-sale-vendors/internal/rateLimit"
	"github.com/robertarktes/yard-sale-vendors/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "admin-secret-for-tests"

type stubIntake struct{ err error }

func (s *stubIntake) Submit(ctx context.Context, form domain.Form, quote domain.Quote) error {
	return s.err
}

type stubIntents struct {
	mu    sync.Mutex
	calls int
	keys  []string
	err   error
}

func (s *stubIntents) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.keys = append(s.keys, req.IdempotencyKey)
	if s.err != nil {
		return payment.Intent{}, s.err
	}
	return payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

type stubElement struct{ err error }

func (e *stubElement) Mount(string) error { return nil }

func (e *stubElement) Confirm(ctx context.Context) error { return e.err }

type stubStore struct {
	mu   sync.Mutex
	rows []domain.Registration
}

func (s *stubStore) Insert(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg.CreatedAt = time.Now()
	s.rows = append(s.rows, reg)
	return reg, nil
}

func (s *stubStore) ListAll(ctx context.Context) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Registration(nil), s.rows...), nil
}

func (s *stubStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID != id {
			continue
		}
		if !r.PaymentStatus.CanTransitionTo(status) {
			return domain.Registration{}, domain.ErrInvalidTransition
		}
		s.rows[i].PaymentStatus = status
		return s.rows[i], nil
	}
	return domain.Registration{}, domain.ErrNotFound
}

type stubNotifier struct{}

func (stubNotifier) Notify(ctx context.Context, c notify.Confirmation) error { return nil }

type stubReceipts struct {
	got notify.Confirmation
	err error
}

func (s *stubReceipts) Send(ctx context.Context, c notify.Confirmation) (string, error) {
	s.got = c
	if s.err != nil {
		return "", s.err
	}
	return "email_123", nil
}

type server struct {
	t        *testing.T
	srv      *httptest.Server
	intents  *stubIntents
	element  *stubElement
	store    *stubStore
	receipts *stubReceipts
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		t:        t,
		intents:  &stubIntents{},
		element:  &stubElement{},
		store:    &stubStore{},
		receipts: &stubReceipts{},
	}
	cache := memory.NewCache(time.Minute)
	logger := observability.NewNopLogger()

	wf := workflow.New(workflow.Options{
		Sessions: workflow.NewSessions(cache, 30*time.Minute),
		Intake:   &stubIntake{},
		Intents:  s.intents,
		Elements: func(string, payment.Outcome) payment.Element { return s.element },
		Store:    s.store,
		Notifier: stubNotifier{},
		Logger:   logger,
	})
	cfg := &config.Config{AdminJWTSecret: testSecret, StripePublishableKey: "pk_test_123"}
	h := NewHandlers(cfg, wf, admin.NewService(s.store, admin.NewLogAuditor(logger), logger), s.intents, s.receipts, nil, logger)
	router := SetupRouter(h, logger, rateLimit.NewRateLimiter(cache, logger), idempotency.NewIdempotency(memory.NewIdempotency(cache), time.Hour))

	s.srv = httptest.NewServer(router)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *server) do(method, path string, body any, header map[string]string) (*http.Response, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func formBody() map[string]any {
	return map[string]any{
		"fullName":         "Jane Vendor",
		"phone":            "303-555-0100",
		"email":            "jane@example.com",
		"address":          "123 Main St",
		"registrationType": "early-bird",
		"numberOfSpaces":   "3",
		"itemsDescription": "Records",
		"agreeToRules":     true,
		"bringOwnSupplies": true,
	}
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := adminauth.Issue(testSecret, "ops@example.com", time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRegistration_FullFlow(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(http.MethodPost, "/api/registrations", formBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "awaiting_payment", body["state"])
	assert.EqualValues(t, 60, body["amount"])
	assert.EqualValues(t, 20, body["basePrice"])
	assert.Equal(t, "pi_test_secret", body["clientSecret"])
	assert.Equal(t, "pk_test_123", body["publishableKey"])
	id := body["sessionId"].(string)

	resp, body = s.do(http.MethodGet, "/api/registrations/"+id, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "awaiting_payment", body["state"])

	resp, body = s.do(http.MethodPost, "/api/registrations/"+id+"/payment", map[string]any{"succeeded": true}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", body["state"])
	assert.Equal(t, workflow.MsgConfirmed, body["message"])
	assert.NotEmpty(t, body["registrationId"])
	assert.Nil(t, body["clientSecret"])

	require.Len(t, s.store.rows, 1)
	assert.Equal(t, 60, s.store.rows[0].Amount)
	assert.Equal(t, "pi_test", s.store.rows[0].PaymentIntentID)

	resp, _ = s.do(http.MethodPost, "/api/registrations/"+id+"/payment", map[string]any{"succeeded": true}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, s.store.rows, 1)
}

func TestRegistration_ValidationError(t *testing.T) {
	s := newServer(t)
	form := formBody()
	form["agreeToRules"] = false

	resp, body := s.do(http.MethodPost, "/api/registrations", form, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "collecting_input", body["state"])
	assert.NotEmpty(t, body["error"])
	assert.Zero(t, s.intents.calls)
}

func TestRegistration_UnknownFieldRejected(t *testing.T) {
	s := newServer(t)
	form := formBody()
	form["coupon"] = "FREE"

	resp, _ := s.do(http.MethodPost, "/api/registrations", form, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegistration_Declined(t *testing.T) {
	s := newServer(t)
	s.element.err = &domain.DeclinedError{Message: "Your card was declined."}

	_, body := s.do(http.MethodPost, "/api/registrations", formBody(), nil)
	id := body["sessionId"].(string)

	resp, body := s.do(http.MethodPost, "/api/registrations/"+id+"/payment", map[string]any{"succeeded": false, "error": "Your card was declined."}, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, workflow.MsgPaymentFailed+"Your card was declined.", body["error"])
	assert.Equal(t, true, body["retryable"])
	assert.Empty(t, s.store.rows)
}

func TestRegistration_IntentFailure(t *testing.T) {
	s := newServer(t)
	s.intents.err = errors.New("stripe down")

	resp, body := s.do(http.MethodPost, "/api/registrations", formBody(), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, workflow.MsgIntentFailed, body["error"])
}

func TestRegistration_Cancel(t *testing.T) {
	s := newServer(t)
	_, body := s.do(http.MethodPost, "/api/registrations", formBody(), nil)
	id := body["sessionId"].(string)

	resp, _ := s.do(http.MethodDelete, "/api/registrations/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/registrations/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, s.store.rows)
}

func TestCreatePaymentIntent(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(http.MethodPost, "/functions/v1/create-payment-intent",
		map[string]any{"amount": 30, "fullName": "Jane", "email": "jane@example.com"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pi_test_secret", body["clientSecret"])
	assert.Equal(t, "pi_test", body["paymentIntentId"])

	resp, _ = s.do(http.MethodPost, "/functions/v1/create-payment-intent", map[string]any{"amount": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/functions/v1/create-payment-intent", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCreatePaymentIntent_ReplaysIdempotentRequest(t *testing.T) {
	s := newServer(t)
	header := map[string]string{"Idempotency-Key": "checkout-0123456789abcdef"}
	req := map[string]any{"amount": 30, "fullName": "Jane", "email": "jane@example.com"}

	first, body1 := s.do(http.MethodPost, "/functions/v1/create-payment-intent", req, header)
	second, body2 := s.do(http.MethodPost, "/functions/v1/create-payment-intent", req, header)

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, body1, body2)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, 1, s.intents.calls)
	assert.Equal(t, []string{"checkout-0123456789abcdef"}, s.intents.keys)

	resp, _ := s.do(http.MethodPost, "/functions/v1/create-payment-intent", req, map[string]string{"Idempotency-Key": "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentIntent_ProviderError(t *testing.T) {
	s := newServer(t)
	s.intents.err = errors.New("invalid api key")

	resp, body := s.do(http.MethodPost, "/functions/v1/create-payment-intent",
		map[string]any{"amount": 30, "fullName": "Jane", "email": "jane@example.com"}, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "invalid api key", body["error"])
}

func TestSendConfirmationEmail(t *testing.T) {
	s := newServer(t)
	c := map[string]any{
		"email":            "jane@example.com",
		"fullName":         "Jane",
		"registrationType": "regular",
		"numberOfSpaces":   2,
		"totalAmount":      60,
	}

	resp, body := s.do(http.MethodPost, "/functions/v1/send-confirmation-email", c, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "email_123", body["emailId"])
	assert.Equal(t, 60, s.receipts.got.TotalAmount)

	s.receipts.err = errors.New("provider rejected")
	resp, body = s.do(http.MethodPost, "/functions/v1/send-confirmation-email", c, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "provider rejected", body["error"])
}

func TestAdmin_RequiresToken(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(http.MethodGet, "/admin/registrations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/admin/registrations", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := adminauth.Issue(testSecret, "ops@example.com", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	resp, body := s.do(http.MethodGet, "/admin/registrations", nil, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token expired", body["error"])
}

func TestAdmin_ListSetStatusExport(t *testing.T) {
	s := newServer(t)
	auth := map[string]string{"Authorization": adminToken(t)}

	pending := domain.NewCompletedRegistration(domain.Form{
		FullName: "Bob, Jr.", Phone: "1", Email: "bob@example.com", Address: "1 Elm",
		RegistrationType: domain.TierDayOf, NumberOfSpaces: "1",
	}, 40, "pi_bob")
	pending.PaymentStatus = domain.StatusPending
	_, err := s.store.Insert(context.Background(), pending)
	require.NoError(t, err)

	resp, body := s.do(http.MethodGet, "/admin/registrations", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 1, stats["pending"])

	path := "/admin/registrations/" + pending.ID.String() + "/status"
	resp, body = s.do(http.MethodPost, path, map[string]any{"status": "completed"}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats = body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["completed"])
	assert.EqualValues(t, 40, stats["totalRevenue"])

	resp, _ = s.do(http.MethodPost, path, map[string]any{"status": "failed"}, auth)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, path, map[string]any{"status": "refunded"}, auth)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/admin/registrations/"+uuid.NewString()+"/status", map[string]any{"status": "failed"}, auth)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/admin/registrations/not-a-uuid/status", map[string]any{"status": "failed"}, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/admin/registrations/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", auth["Authorization"])
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), `filename="yard-sale-vendors-`)
	var csvBody bytes.Buffer
	_, err = csvBody.ReadFrom(res.Body)
	require.NoError(t, err)
	assert.Contains(t, csvBody.String(), `"Bob, Jr."`)
}

func TestReadyz(t *testing.T) {
	logger := observability.NewNopLogger()
	h := NewHandlers(&config.Config{}, nil, nil, nil, nil, map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, logger)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &domain.ValidationError{Field: "email", Message: "Field is required"}, http.StatusUnprocessableEntity},
		{"declined", &domain.DeclinedError{Message: "no"}, http.StatusPaymentRequired},
		{"integration", domain.NewIntegrationError(domain.StageIntake, errors.New("boom")), http.StatusBadGateway},
		{"gap", errors.Mark(domain.NewIntegrationError(domain.StageStore, errors.New("boom")), domain.ErrReconciliationGap), http.StatusInternalServerError},
		{"conflict", errors.Wrap(domain.ErrConflict, "locked"), http.StatusConflict},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"forbidden", adminauth.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("?"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
