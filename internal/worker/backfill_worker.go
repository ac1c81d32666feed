package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/platform/rabbitmq"
)

type Backfiller interface {
	Backfill(ctx context.Context, documentID string) (*app.BackfillResult, error)
}

// BackfillWorker consumes backfill jobs and embeds the chunks they name.
type BackfillWorker struct {
	conn      *amqp.Connection
	ingest    Backfiller
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBackfillWorker(conn *amqp.Connection, ingest Backfiller, queueName string, logger *slog.Logger) *BackfillWorker {
	return &BackfillWorker{
		conn:      conn,
		ingest:    ingest,
		queueName: queueName,
		logger:    logger.With("component", "backfill_worker", "queue", queueName),
	}
}

func (w *BackfillWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	// One job at a time; each job already walks its chunks sequentially.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.deliver(workerCtx, d)
			}
		}
	}()

	w.logger.Info("backfill worker started")
	return nil
}

func (w *BackfillWorker) deliver(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case app.IsRetryable(err) && !d.Redelivered:
		w.logger.Warn("backfill job failed, requeueing once", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, true)
	default:
		w.logger.Error("backfill job dropped", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
	}
}

var errMalformedJob = errors.New("malformed backfill job")

// Handle decodes one job payload and runs it.
func (w *BackfillWorker) Handle(ctx context.Context, body []byte) error {
	var job model.BackfillJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %w", errMalformedJob, err)
	}
	if job.DocumentID == "" {
		return fmt.Errorf("%w: missing document id", errMalformedJob)
	}

	res, err := w.ingest.Backfill(ctx, job.DocumentID)
	if err != nil {
		return err
	}
	w.logger.Info("backfill job done",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"missing", res.Missing,
		"stored", res.Stored,
	)
	return nil
}

func (w *BackfillWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
