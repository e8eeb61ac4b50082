package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/apperr"
	"github.com/fpt-devteam/csv-processor/internal/csvparse"
	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/fpt-devteam/csv-processor/shared/rabbitmq"
	"github.com/google/uuid"
)

// defaultBatchSize bounds the number of records persisted per store
// call.
const defaultBatchSize = 50

// ackDecision is the outcome of handling one delivery.
type ackDecision int

const (
	// ackMessage removes the message from the queue. Used for success
	// and for poison messages that can never become valid.
	ackMessage ackDecision = iota
	// nackRequeue returns the message to the queue for redelivery.
	// There is no retry ceiling: a failing job is retried until it
	// succeeds or is removed from the queue by an operator.
	nackRequeue
)

// ConsumerConfig holds import consumer configuration.
type ConsumerConfig struct {
	Client    *rabbitmq.Client
	Blobs     BlobStore
	Store     Store
	Notifier  ChangeNotifier
	QueueName string
	BatchSize int
	Logger    *slog.Logger
}

// Consumer is the long-lived import worker. It pulls job messages one at
// a time (prefetch 1), downloads the referenced blob, parses it, and
// persists the resulting records. Multiple consumer instances may run
// against the same queue; the broker distributes messages across them.
type Consumer struct {
	client    *rabbitmq.Client
	blobs     BlobStore
	store     Store
	notifier  ChangeNotifier
	queueName string
	batchSize int
	logger    *slog.Logger
}

// NewConsumer creates an import consumer.
func NewConsumer(cfg *ConsumerConfig) *Consumer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Consumer{
		client:    cfg.Client,
		blobs:     cfg.Blobs,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		queueName: cfg.QueueName,
		batchSize: batchSize,
		logger:    cfg.Logger,
	}
}

// Run consumes the import queue until the context is canceled. The
// in-flight handler finishes its current message before the loop exits.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := fmt.Sprintf("csv-import-%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:8])

	deliveries, err := c.client.ConsumeQueue(c.queueName, consumerTag, 1)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Import consumer started",
		slog.String("queue", c.queueName),
		slog.String("consumer_tag", consumerTag),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Import consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Delivery channel closed")
				return fmt.Errorf("delivery channel closed")
			}

			decision := c.handleMessage(ctx, delivery.Body)

			switch decision {
			case ackMessage:
				if err := delivery.Ack(false); err != nil {
					c.logger.Error("Failed to ACK message",
						slog.Any("error", err),
					)
				}
			case nackRequeue:
				if err := delivery.Nack(false, true); err != nil {
					c.logger.Error("Failed to NACK message",
						slog.Any("error", err),
					)
				}
			}
		}
	}
}

// handleMessage resolves one delivery into an ack/nack decision.
// Undecodable messages and messages without a file name are permanently
// invalid: they are acknowledged and dropped so they cannot loop
// forever. Any processing failure triggers a requeue.
func (c *Consumer) handleMessage(ctx context.Context, body []byte) ackDecision {
	var msg domain.ImportJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Warn("Dropping undecodable import message",
			slog.Any("error", err),
			slog.String("body", string(body)),
		)
		return ackMessage
	}

	if strings.TrimSpace(msg.FileName) == "" {
		c.logger.Warn("Dropping import message without file name",
			slog.String("job_id", msg.JobID.String()),
		)
		return ackMessage
	}

	c.logger.Info("Processing import job",
		slog.String("job_id", msg.JobID.String()),
		slog.String("file_name", msg.FileName),
	)

	// Fresh scope per message: collaborator references only, no state
	// shared between deliveries.
	scope := &messageScope{
		blobs:     c.blobs,
		store:     c.store,
		notifier:  c.notifier,
		batchSize: c.batchSize,
		logger:    c.logger,
	}

	if err := scope.process(ctx, &msg); err != nil {
		c.logger.Error("Import job failed, requeueing",
			slog.String("job_id", msg.JobID.String()),
			slog.String("file_name", msg.FileName),
			slog.Int("kind", int(apperr.KindOf(err))),
			slog.Any("error", err),
		)
		return nackRequeue
	}

	c.logger.Info("Import job completed",
		slog.String("job_id", msg.JobID.String()),
		slog.String("file_name", msg.FileName),
	)

	return ackMessage
}

// messageScope is the per-message unit of work.
type messageScope struct {
	blobs     BlobStore
	store     Store
	notifier  ChangeNotifier
	batchSize int
	logger    *slog.Logger
}

// process downloads, parses, and persists one job's records, then marks
// the job Completed. Completed is only set after every batch has been
// durably persisted.
func (s *messageScope) process(ctx context.Context, msg *domain.ImportJobMessage) error {
	reader, err := s.blobs.Download(ctx, msg.FileName)
	if err != nil {
		return apperr.Transient("failed to download file", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return apperr.Transient("failed to read file", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	records := csvparse.Parse(msg.JobID, msg.FileName, lines)
	if len(records) == 0 {
		return apperr.BadRequest("no records to save")
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := s.store.InsertRecords(ctx, records[start:end]); err != nil {
			return apperr.Transient("failed to persist record batch", err)
		}

		s.logger.Debug("Record batch persisted",
			slog.String("job_id", msg.JobID.String()),
			slog.Int("batch_start", start),
			slog.Int("batch_size", end-start),
		)
	}

	if err := s.completeJob(ctx, msg.JobID); err != nil {
		return err
	}

	s.publishCompletion(ctx, msg, len(records))
	return nil
}

// completeJob marks the job Completed. A missing job is a no-op.
func (s *messageScope) completeJob(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.logger.Warn("Job not found while completing, skipping status update",
				slog.String("job_id", jobID.String()),
			)
			return nil
		}
		return apperr.Transient("failed to load job", err)
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCompleted, time.Now().UTC()); err != nil {
		return apperr.Transient("failed to update job status", err)
	}

	return nil
}

// publishCompletion emits a "Created" change event. The job is already
// completed at this point, so a publish failure is logged rather than
// requeueing the message.
func (s *messageScope) publishCompletion(ctx context.Context, msg *domain.ImportJobMessage, totalRecords int) {
	if s.notifier == nil {
		return
	}

	doc := domain.ImportCompleted{
		JobID:        msg.JobID,
		FileName:     msg.FileName,
		TotalRecords: totalRecords,
	}

	if err := s.notifier.Publish(ctx, "Created", doc); err != nil {
		s.logger.Warn("Failed to publish change notification",
			slog.String("job_id", msg.JobID.String()),
			slog.Any("error", err),
		)
	}
}
