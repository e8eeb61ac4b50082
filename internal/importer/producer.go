package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/apperr"
	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/google/uuid"
)

// Producer accepts validated uploads, stores the raw bytes, records a
// pending job, and publishes the job message. The actual import happens
// out of band in the consumer.
type Producer struct {
	blobs     BlobStore
	store     Store
	queue     QueuePublisher
	queueName string
	logger    *slog.Logger
}

// NewProducer creates an import producer.
func NewProducer(blobs BlobStore, store Store, queue QueuePublisher, queueName string, logger *slog.Logger) *Producer {
	return &Producer{
		blobs:     blobs,
		store:     store,
		queue:     queue,
		queueName: queueName,
		logger:    logger,
	}
}

// UploadReceipt is the acceptance response returned to the uploader.
type UploadReceipt struct {
	JobID      uuid.UUID `json:"jobId"`
	FileName   string    `json:"fileName"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
}

// Submit stores the uploaded file, creates a pending job, and enqueues
// an import message. If a step after the blob upload fails the blob is
// not removed; there is no compensation between the stores.
func (p *Producer) Submit(ctx context.Context, originalFileName string, fileBytes []byte) (*UploadReceipt, error) {
	if len(fileBytes) == 0 {
		return nil, apperr.BadRequest("file must not be empty")
	}

	if strings.TrimSpace(originalFileName) == "" {
		return nil, apperr.BadRequest("file name must not be empty")
	}

	now := time.Now().UTC()
	storedFileName := StoredFileName(originalFileName, now)

	if err := p.blobs.Upload(ctx, storedFileName, bytes.NewReader(fileBytes), int64(len(fileBytes))); err != nil {
		return nil, apperr.Internal("failed to store uploaded file", err)
	}

	job := &domain.Job{
		ID:               uuid.New(),
		FileName:         storedFileName,
		OriginalFileName: originalFileName,
		Type:             domain.JobTypeImport,
		Status:           domain.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, apperr.Internal("failed to create import job", err)
	}

	msg := domain.ImportJobMessage{
		JobID:      job.ID,
		FileName:   storedFileName,
		UploadedAt: now,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, apperr.Internal("failed to encode job message", err)
	}

	if err := p.queue.PublishQueue(ctx, p.queueName, body); err != nil {
		return nil, apperr.Internal("failed to enqueue import job", err)
	}

	p.logger.Info("Import job accepted",
		slog.String("job_id", job.ID.String()),
		slog.String("file_name", storedFileName),
		slog.String("original_file_name", originalFileName),
	)

	return &UploadReceipt{
		JobID:      job.ID,
		FileName:   storedFileName,
		UploadedAt: now,
		Status:     job.Status,
		Message:    fmt.Sprintf("File %q uploaded as %q; the import will be processed shortly.", originalFileName, storedFileName),
	}, nil
}

// StoredFileName derives a collision-resistant blob name from the
// original name: base, UTC timestamp to the second, and 8 random hex
// characters, keeping the original extension. Two uploads of the same
// file never collide.
func StoredFileName(originalFileName string, now time.Time) string {
	ext := filepath.Ext(originalFileName)
	base := strings.TrimSuffix(filepath.Base(originalFileName), ext)
	timestamp := now.Format("20060102150405")
	uniqueID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s%s", base, timestamp, uniqueID, ext)
}
