package workflow

import (
	"context"

	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

// LogEscalations writes escalations to the structured log when no escalation store is configured.
type LogEscalations struct {
	logger observability.Logger
}

func NewLogEscalations(logger observability.Logger) *LogEscalations {
	return &LogEscalations{logger: logger}
}

func (l *LogEscalations) Record(ctx context.Context, e domain.Escalation) error {
	observability.OpenReconciliationGaps.Inc()
	l.logger.WithFields(map[string]interface{}{
		"escalation_id":     e.ID,
		"session_id":        e.SessionID,
		"payment_intent_id": e.PaymentIntentID,
		"email":             e.Email,
		"amount":            e.Amount,
		"reason":            e.Reason,
	}).Error("support escalation")
	return nil
}
