package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/model"
)

type BackfillPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewBackfillPublisher(conn *amqp.Connection, queueName string) *BackfillPublisher {
	return &BackfillPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *BackfillPublisher) PublishBackfill(ctx context.Context, job model.BackfillJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal backfill job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
		},
	); err != nil {
		return fmt.Errorf("publish backfill job failed: %w", err)
	}
	return nil
}
