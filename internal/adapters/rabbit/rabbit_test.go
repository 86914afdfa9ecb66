package rabbit_test

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/rabbit"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPublishConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health/checks/alarms").WithPort("15672").WithBasicAuth("guest", "guest"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer container.Terminate(context.Background())

	endpoint, err := container.PortEndpoint(ctx, "5672/tcp", "amqp")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := amqp.Dial("amqp://guest:guest@" + endpoint[len("amqp://"):])
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notify.test.q", "booking.confirmed", 1)
	if err != nil {
		t.Fatal(err)
	}
	defer consumer.Close()

	pub, err := rabbit.NewPublisher(conn)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	err = pub.Publish(ctx, "booking.confirmed", amqp.Publishing{
		MessageId:   "booking.confirmed:order_1",
		ContentType: "application/json",
		Body:        []byte(`{"record":{"id":1}}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-deliveries:
		if d.MessageId != "booking.confirmed:order_1" || d.DeliveryMode != amqp.Persistent {
			t.Errorf("unexpected delivery %+v", d)
		}
		d.Ack(false)
	case <-ctx.Done():
		t.Fatal("timed out waiting for delivery")
	}

	err = pub.Publish(ctx, "booking.confirmed", amqp.Publishing{MessageId: "booking.confirmed:order_2", Body: []byte(`{}`)})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case d := <-deliveries:
		d.Nack(false, false)
	case <-ctx.Done():
		t.Fatal("timed out waiting for delivery")
	}

	var moved int
	for i := 0; i < 20 && moved == 0; i++ {
		time.Sleep(100 * time.Millisecond)
		moved, err = consumer.Redrive(ctx, pub, "booking.confirmed", 10)
		if err != nil {
			t.Fatal(err)
		}
	}
	if moved != 1 {
		t.Fatalf("expected one redriven message, got %d", moved)
	}

	select {
	case d := <-deliveries:
		if d.MessageId != "booking.confirmed:order_2" {
			t.Errorf("unexpected redelivery %+v", d)
		}
		d.Ack(false)
	case <-ctx.Done():
		t.Fatal("timed out waiting for redriven delivery")
	}
}
