package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"dragonfly-id/internal/model"
)

// SightingPublisher notifies the remote database sync queue about new sightings.
type SightingPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewSightingPublisher(conn *amqp.Connection, queueName string) *SightingPublisher {
	return &SightingPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *SightingPublisher) Publish(ctx context.Context, sighting model.Sighting) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(sighting)
	if err != nil {
		return fmt.Errorf("marshal sighting payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    sighting.EventID,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish sighting failed: %w", err)
	}
	return nil
}
