// Package storage is the sqlx-backed document store for import jobs and
// parsed records.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/apperr"
	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/fpt-devteam/csv-processor/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO csv_jobs (
			id, file_name, original_file_name, job_type,
			status, created_at, updated_at, is_deleted
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.FileName,
		job.OriginalFileName,
		job.Type,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
		job.IsDeleted,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT
			id, file_name, original_file_name, job_type,
			status, created_at, updated_at, is_deleted, deleted_at
		FROM csv_jobs
		WHERE id = $1 AND is_deleted = FALSE
	`

	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("job %s not found", id))
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// GetJobByFileName looks up a non-deleted import job by its stored file
// name. Stored names are unique, so at most one row matches.
func (s *Storage) GetJobByFileName(ctx context.Context, fileName string) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT
			id, file_name, original_file_name, job_type,
			status, created_at, updated_at, is_deleted, deleted_at
		FROM csv_jobs
		WHERE file_name = $1 AND job_type = $2 AND is_deleted = FALSE
	`

	err := s.db.GetContext(ctx, &job, query, fileName, domain.JobTypeImport)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("file %q not found", fileName))
		}
		return nil, fmt.Errorf("failed to get job by file name: %w", err)
	}

	return &job, nil
}

func (s *Storage) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, updatedAt time.Time) error {
	query := `
		UPDATE csv_jobs
		SET status = $1,
		    updated_at = $2
		WHERE id = $3
	`

	_, err := s.db.ExecContext(ctx, query, status, updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// InsertRecords persists one batch of parsed records in a single
// multi-row statement. Callers own the batching policy.
func (s *Storage) InsertRecords(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO csv_records (
			id, job_id, file_name, imported_at, data, is_deleted
		) VALUES (
			:id, :job_id, :file_name, :imported_at, :data, :is_deleted
		)
	`

	_, err := s.db.NamedExecContext(ctx, query, records)
	if err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	return nil
}

// ImportFile is one import job joined with its persisted record count.
type ImportFile struct {
	domain.Job
	RecordCount int `db:"record_count"`
}

// ListImportFiles returns all non-deleted import jobs, newest first,
// each with the number of records imported so far.
func (s *Storage) ListImportFiles(ctx context.Context) ([]ImportFile, error) {
	query := `
		SELECT
			j.id, j.file_name, j.original_file_name, j.job_type,
			j.status, j.created_at, j.updated_at, j.is_deleted, j.deleted_at,
			COUNT(r.id) AS record_count
		FROM csv_jobs j
		LEFT JOIN csv_records r
			ON r.job_id = j.id AND r.is_deleted = FALSE
		WHERE j.job_type = $1 AND j.is_deleted = FALSE
		GROUP BY j.id
		ORDER BY j.created_at DESC, j.id DESC
	`

	var files []ImportFile
	err := s.db.SelectContext(ctx, &files, query, domain.JobTypeImport)
	if err != nil {
		return nil, fmt.Errorf("failed to list import files: %w", err)
	}

	return files, nil
}

// ListStoredFileNames returns the distinct stored file names of all
// non-deleted import jobs, newest first.
func (s *Storage) ListStoredFileNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT file_name
		FROM csv_jobs
		WHERE job_type = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC
	`

	var names []string
	err := s.db.SelectContext(ctx, &names, query, domain.JobTypeImport)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored file names: %w", err)
	}

	return names, nil
}
