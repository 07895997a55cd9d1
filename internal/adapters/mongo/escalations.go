package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EscalationRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewEscalationRepository(db *mongo.Database, logger observability.Logger) *EscalationRepository {
	return &EscalationRepository{
		coll:   db.Collection("support_escalations"),
		logger: logger,
	}
}

// EnsureIndexes makes one escalation per payment intent.
func (r *EscalationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payment_intent_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	return errors.Wrap(err, "create escalation indexes")
}

// Record stores e. A repeat for the same payment intent is accepted silently.
func (r *EscalationRepository) Record(ctx context.Context, e domain.Escalation) error {
	_, err := r.coll.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		r.logger.WithField("payment_intent_id", e.PaymentIntentID).Info("escalation already recorded")
		return nil
	}
	if err != nil {
		r.logger.WithError(err).WithField("payment_intent_id", e.PaymentIntentID).Error("failed to record escalation")
		return errors.Wrap(err, "insert escalation")
	}
	observability.OpenReconciliationGaps.Inc()
	return nil
}

func (r *EscalationRepository) ListOpen(ctx context.Context) ([]domain.Escalation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"resolved": false}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find open escalations")
	}
	out := []domain.Escalation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode escalations")
	}
	return out, nil
}

func (r *EscalationRepository) Resolve(ctx context.Context, id, registrationID string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "resolved": false},
		bson.M{"$set": bson.M{"resolved": true, "registration_id": registrationID, "resolved_at": at.UTC()}},
	)
	if err != nil {
		return errors.Wrapf(err, "resolve escalation %s", id)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
