package rabbit_test

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/rabbit"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPublishConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer container.Terminate(ctx)

	endpoint, err := container.PortEndpoint(ctx, "5672/tcp", "amqp")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := amqp.Dial(endpoint)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, rabbit.ConfirmationQueue, "registration.confirmation")
	if err != nil {
		t.Fatal(err)
	}
	defer consumer.Close()

	pub, err := rabbit.NewPublisher(conn)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	deliveries, err := consumer.Consume("test")
	if err != nil {
		t.Fatal(err)
	}

	err = pub.Publish(ctx, "registration.confirmation", amqp.Publishing{
		MessageId:   "m-1",
		ContentType: "application/json",
		Body:        []byte(`{"email":"jane@example.com"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	// a different routing key never reaches the confirmations queue
	if err := pub.Publish(ctx, "registration.other", amqp.Publishing{MessageId: "m-2"}); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-deliveries:
		if d.MessageId != "m-1" || string(d.Body) != `{"email":"jane@example.com"}` {
			t.Errorf("unexpected delivery %s %s", d.MessageId, d.Body)
		}
		if err := d.Ack(false); err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no delivery")
	}

	select {
	case d := <-deliveries:
		t.Errorf("unexpected extra delivery %s", d.MessageId)
	case <-time.After(500 * time.Millisecond):
	}
}
