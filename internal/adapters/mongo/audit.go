package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
	now    func() time.Time
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
		now:    time.Now,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	Actor     string    `bson:"actor"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, actor string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     actor,
		Timestamp: a.now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).WithField("action", action).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogStatusChange(ctx context.Context, c admin.StatusChange) error {
	data := map[string]interface{}{
		"registration_id": c.RegistrationID.String(),
		"from":            string(c.From),
		"to":              string(c.To),
	}
	return a.LogEvent(ctx, "registration.status_changed", c.Actor, data)
}

// History returns the audit entries for one registration, oldest first.
func (a *AuditLogger) History(ctx context.Context, registrationID uuid.UUID) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"data.registration_id": registrationID.String()})
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
