package http

import (
	"context"
	"net/http"
	"time"

	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	"github.com/robertarktes/yard-sale-vendors/internal/notify"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/payment"
	"github.com/robertarktes/yard-sale-vendors/internal/workflow"
)

type IntentCreator interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error)
}

type ReceiptSender interface {
	Send(ctx context.Context, c notify.Confirmation) (string, error)
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Handlers struct {
	cfg      *config.Config
	workflow *workflow.Workflow
	admin    *admin.Service
	intents  IntentCreator
	receipts ReceiptSender
	checks   map[string]Check
	logger   observability.Logger
}

func NewHandlers(cfg *config.Config, wf *workflow.Workflow, adminSvc *admin.Service, intents IntentCreator, receipts ReceiptSender, checks map[string]Check, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		workflow: wf,
		admin:    adminSvc,
		intents:  intents,
		receipts: receipts,
		checks:   checks,
		logger:   logger,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		observability.LoggerFromContext(r.Context(), h.logger).WithField("failed", failed).Warn("not ready")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
