package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"golang.org/x/sync/errgroup"
)

const sweepConcurrency = 4

type Escalations interface {
	ListOpen(ctx context.Context) ([]domain.Escalation, error)
	Resolve(ctx context.Context, id, registrationID string, at time.Time) error
}

type Store interface {
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (domain.Registration, error)
}

type Result struct {
	Resolved int
	Open     int
}

// Reconciler closes escalations once support has stored the missing row. It never
// charges and never writes registrations.
type Reconciler struct {
	escalations Escalations
	store       Store
	logger      observability.Logger
	now         func() time.Time
}

func New(escalations Escalations, store Store, logger observability.Logger) *Reconciler {
	return &Reconciler{escalations: escalations, store: store, logger: logger, now: time.Now}
}

func (r *Reconciler) Sweep(ctx context.Context) (Result, error) {
	open, err := r.escalations.ListOpen(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "list open escalations")
	}

	var resolved, pending atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, e := range open {
		g.Go(func() error {
			reg, err := r.store.FindByPaymentIntent(gctx, e.PaymentIntentID)
			if errors.Is(err, domain.ErrNotFound) {
				pending.Add(1)
				r.logger.WithFields(map[string]interface{}{
					"escalation_id":     e.ID,
					"payment_intent_id": e.PaymentIntentID,
					"email":             e.Email,
					"age":               r.now().Sub(e.CreatedAt).Round(time.Second).String(),
				}).Warn("payment still has no registration")
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "look up intent %s", e.PaymentIntentID)
			}
			if err := r.escalations.Resolve(gctx, e.ID, reg.ID.String(), r.now()); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			resolved.Add(1)
			r.logger.WithFields(map[string]interface{}{
				"escalation_id":   e.ID,
				"registration_id": reg.ID,
			}).Info("escalation resolved")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Resolved: int(resolved.Load()), Open: int(pending.Load())}
	observability.OpenReconciliationGaps.Set(float64(res.Open))
	return res, nil
}

func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := r.Sweep(ctx)
		if err != nil {
			r.logger.WithError(err).Error("reconciliation sweep failed")
		} else if res.Resolved > 0 || res.Open > 0 {
			r.logger.WithFields(map[string]interface{}{"resolved": res.Resolved, "open": res.Open}).Info("reconciliation sweep")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
