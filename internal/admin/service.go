package admin

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

type Store interface {
	ListAll(ctx context.Context) ([]domain.Registration, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (domain.Registration, error)
}

type StatusChange struct {
	RegistrationID uuid.UUID
	From           domain.PaymentStatus
	To             domain.PaymentStatus
	Actor          string
}

type Auditor interface {
	LogStatusChange(ctx context.Context, change StatusChange) error
}

type Overview struct {
	Registrations []domain.Registration `json:"registrations"`
	Stats         Stats                 `json:"stats"`
}

type Service struct {
	store   Store
	auditor Auditor
	logger  observability.Logger
}

func NewService(store Store, auditor Auditor, logger observability.Logger) *Service {
	return &Service{store: store, auditor: auditor, logger: logger}
}

// List returns every registration, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Registration, error) {
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, domain.NewIntegrationError(domain.StageStore, err)
	}
	if rows == nil {
		rows = []domain.Registration{}
	}
	return rows, nil
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Registrations: rows, Stats: Aggregate(rows)}, nil
}

// SetStatus moves a pending row to completed or failed, then re-reads the full list.
// Rows that already left pending are rejected with domain.ErrInvalidTransition.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, actor string) (Overview, error) {
	if status != domain.StatusCompleted && status != domain.StatusFailed {
		return Overview{}, &domain.ValidationError{Field: "status", Message: "status must be completed or failed"}
	}

	updated, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return Overview{}, err
		}
		return Overview{}, domain.NewIntegrationError(domain.StageStore, err)
	}

	change := StatusChange{RegistrationID: id, From: domain.StatusPending, To: updated.PaymentStatus, Actor: actor}
	if s.auditor != nil {
		if err := s.auditor.LogStatusChange(ctx, change); err != nil {
			s.logger.WithError(err).WithField("registration_id", id).Warn("audit write failed")
		}
	}
	s.logger.WithFields(map[string]interface{}{
		"registration_id": id,
		"status":          status,
		"actor":           actor,
	}).Info("payment status changed")

	return s.Overview(ctx)
}

// LogAuditor keeps the audit trail in the structured log.
type LogAuditor struct {
	logger observability.Logger
}

func NewLogAuditor(logger observability.Logger) *LogAuditor {
	return &LogAuditor{logger: logger}
}

func (a *LogAuditor) LogStatusChange(ctx context.Context, c StatusChange) error {
	a.logger.WithFields(map[string]interface{}{
		"action":          "registration.status_changed",
		"registration_id": c.RegistrationID,
		"from":            c.From,
		"to":              c.To,
		"actor":           c.Actor,
	}).Info("audit")
	return nil
}
