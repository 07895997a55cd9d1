package notify

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

const RoutingKey = "registration.confirmation"

type Publisher interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// QueueNotifier hands confirmations to the mailer worker.
type QueueNotifier struct {
	pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (q *QueueNotifier) Notify(ctx context.Context, c Confirmation) error {
	body, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal confirmation")
	}
	msg := amqp.Publishing{
		MessageId:    uuid.New().String(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if err := q.pub.Publish(ctx, RoutingKey, msg); err != nil {
		observability.RabbitPublishFailures.Inc()
		return errors.Wrap(err, "publish confirmation")
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, c Confirmation) (string, error)
}

// Worker drains queued confirmations. Every delivery is settled exactly once:
// malformed bodies are rejected without requeue, send failures are logged and acked.
type Worker struct {
	sender Sender
	logger observability.Logger
}

func NewWorker(sender Sender, logger observability.Logger) *Worker {
	return &Worker{sender: sender, logger: logger}
}

type Acknowledger interface {
	Ack(multiple bool) error
	Reject(requeue bool) error
}

func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.Handle(ctx, d.MessageId, d.Body, &d)
		}
	}
}

func (w *Worker) Handle(ctx context.Context, id string, body []byte, ack Acknowledger) {
	log := w.logger.WithField("message_id", id)

	var c Confirmation
	if err := json.Unmarshal(body, &c); err != nil {
		log.WithError(err).Error("malformed confirmation, dropping")
		observability.NotificationsTotal.WithLabelValues("malformed").Inc()
		if err := ack.Reject(false); err != nil {
			log.WithError(err).Error("reject failed")
		}
		return
	}

	emailID, err := w.sender.Send(ctx, c)
	if err != nil {
		log.WithError(err).WithField("email", c.Email).Warn("confirmation email failed")
		observability.NotificationsTotal.WithLabelValues("failed").Inc()
	} else {
		log.WithField("email_id", emailID).Info("confirmation email sent")
		observability.NotificationsTotal.WithLabelValues("sent").Inc()
	}
	if err := ack.Ack(false); err != nil {
		log.WithError(err).Error("ack failed")
	}
}
