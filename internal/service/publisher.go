package service

import (
    "context"
    "encoding/json"
    "log"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/event-ticketing/internal/queue"
)

// AMQPPublisher publishes domain events to RabbitMQ, dialling once per
// publish.  Errors are logged and returned so the caller can choose to
// ignore them.
type AMQPPublisher struct {
    URL string
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{URL: url} }

// PublishBookingConfirmed publishes event to the booking.confirmed queue as
// a persistent message whose MessageId is a fresh UUID.
func (p *AMQPPublisher) PublishBookingConfirmed(ctx context.Context, event q.BookingConfirmedEvent) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(q.BookingConfirmedQueue, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:   "application/json",
        DeliveryMode:  amqp.Persistent,
        MessageId:     uuid.NewString(),
        CorrelationId: event.Reference,
        Timestamp:     time.Now().UTC(),
        Body:          body,
    }

    if err := ch.PublishWithContext(ctx, "", q.BookingConfirmedQueue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
