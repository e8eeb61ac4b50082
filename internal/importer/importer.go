// Package importer implements the asynchronous CSV import pipeline: the
// producer accepts validated uploads and enqueues work; the consumer
// processes queued jobs one at a time.
package importer

import (
	"context"
	"io"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/google/uuid"
)

// BlobStore is the blob collaborator contract consumed by the pipeline.
type BlobStore interface {
	Upload(ctx context.Context, name string, reader io.Reader, size int64) error
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// Store is the document-store collaborator contract. Calls are
// independently consistent; there is no cross-call transaction.
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, updatedAt time.Time) error
	InsertRecords(ctx context.Context, records []domain.Record) error
}

// QueuePublisher publishes durable job messages.
type QueuePublisher interface {
	PublishQueue(ctx context.Context, queue string, body []byte) error
}

// ChangeNotifier publishes fan-out change events.
type ChangeNotifier interface {
	Publish(ctx context.Context, changeType string, document any) error
}
