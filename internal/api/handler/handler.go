package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/fpt-devteam/csv-processor/internal/importer"
	"github.com/fpt-devteam/csv-processor/internal/importer/storage"
	"github.com/google/uuid"
)

// Uploader accepts a validated upload and enqueues the import.
type Uploader interface {
	Submit(ctx context.Context, fileName string, fileBytes []byte) (*importer.UploadReceipt, error)
}

// FileStore is the read side of the document store used by the API.
type FileStore interface {
	GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	GetJobByFileName(ctx context.Context, fileName string) (*domain.Job, error)
	ListImportFiles(ctx context.Context) ([]storage.ImportFile, error)
	ListStoredFileNames(ctx context.Context) ([]string, error)
}

// BlobReader reads stored files back for export.
type BlobReader interface {
	Download(ctx context.Context, name string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, name string) (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Uploader      Uploader
	Store         FileStore
	Blobs         BlobReader
	PresignExpiry time.Duration
}

// CSVHandler handles CSV upload, listing, and export requests.
type CSVHandler struct {
	logger        *slog.Logger
	uploader      Uploader
	store         FileStore
	blobs         BlobReader
	presignExpiry time.Duration
}

// NewCSVHandler creates a new CSVHandler instance
func NewCSVHandler(deps *Dependencies) *CSVHandler {
	return &CSVHandler{
		logger:        deps.Logger,
		uploader:      deps.Uploader,
		store:         deps.Store,
		blobs:         deps.Blobs,
		presignExpiry: deps.PresignExpiry,
	}
}
