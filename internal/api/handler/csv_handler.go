package handler

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/api/dto"
	"github.com/fpt-devteam/csv-processor/internal/apperr"
	"github.com/fpt-devteam/csv-processor/internal/multipart"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps the request body read for uploads.
const maxUploadBytes = 64 << 20 // 64 MiB

// UploadCSV handles POST /api/v1/csv/upload
// Extracts the file from the multipart body and enqueues the import.
// The import itself runs asynchronously in the worker service.
func (h *CSVHandler) UploadCSV(c *gin.Context) {
	h.logger.Info("UploadCSV called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("content_type", c.GetHeader("Content-Type")),
	)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes+1))
	if err != nil {
		h.respondError(c, apperr.Internal("failed to read request body", err))
		return
	}
	if len(body) > maxUploadBytes {
		h.respondError(c, apperr.BadRequest("request body too large"))
		return
	}

	fileName, fileBytes, err := multipart.Extract(c.GetHeader("Content-Type"), body)
	if err != nil {
		h.respondError(c, err)
		return
	}

	receipt, err := h.uploader.Submit(c.Request.Context(), fileName, fileBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, receipt)
}

// ListFiles handles GET /api/v1/csv/files
// Lists all uploaded CSV files with their import record counts.
func (h *CSVHandler) ListFiles(c *gin.Context) {
	h.logger.Info("ListFiles called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	files, err := h.store.ListImportFiles(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	fileResponse := make([]dto.FileDTO, len(files))
	for i, f := range files {
		fileResponse[i] = dto.FileDTO{
			JobID:            f.ID.String(),
			FileName:         f.FileName,
			OriginalFileName: f.OriginalFileName,
			Status:           f.Status,
			RecordCount:      f.RecordCount,
			UploadedAt:       f.CreatedAt.Format(time.RFC3339),
			UpdatedAt:        f.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, dto.ListFilesResponse{
		Files:       fileResponse,
		TotalFiles:  len(files),
		GeneratedAt: time.Now().UTC(),
		Message:     fmt.Sprintf("%d file(s) found", len(files)),
	})
}

// ExportFile handles GET /api/v1/csv/files/:file_name/export
// Streams one stored CSV file back to the caller.
func (h *CSVHandler) ExportFile(c *gin.Context) {
	fileName := c.Param("file_name")

	h.logger.Info("ExportFile called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("file_name", fileName),
	)

	job, err := h.store.GetJobByFileName(c.Request.Context(), fileName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	reader, err := h.blobs.Download(c.Request.Context(), job.FileName)
	if err != nil {
		h.respondError(c, apperr.Internal("failed to download file", err))
		return
	}
	defer reader.Close()

	c.DataFromReader(
		http.StatusOK,
		-1, // length unknown, chunked transfer
		"text/csv",
		reader,
		map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", job.FileName),
		},
	)
}

// ExportAll handles GET /api/v1/csv/export
// Bundles every stored CSV file into one zip archive.
func (h *CSVHandler) ExportAll(c *gin.Context) {
	h.logger.Info("ExportAll called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	names, err := h.store.ListStoredFileNames(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if len(names) == 0 {
		h.respondError(c, apperr.BadRequest("no files to export"))
		return
	}

	archive, err := h.buildZip(c, names)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("csv_export_%s.zip", time.Now().UTC().Format("20060102150405"))))
	c.Data(http.StatusOK, "application/zip", archive)
}

func (h *CSVHandler) buildZip(c *gin.Context, names []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, name := range names {
		reader, err := h.blobs.Download(c.Request.Context(), name)
		if err != nil {
			zw.Close()
			return nil, apperr.Internal(fmt.Sprintf("failed to download %q", name), err)
		}

		entry, err := zw.Create(name)
		if err == nil {
			_, err = io.Copy(entry, reader)
		}
		reader.Close()
		if err != nil {
			zw.Close()
			return nil, apperr.Internal(fmt.Sprintf("failed to archive %q", name), err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, apperr.Internal("failed to finalize archive", err)
	}

	return buf.Bytes(), nil
}

// GetFileURL handles GET /api/v1/csv/files/:file_name/url
// Returns a presigned download URL for one stored file.
func (h *CSVHandler) GetFileURL(c *gin.Context) {
	fileName := c.Param("file_name")

	h.logger.Info("GetFileURL called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("file_name", fileName),
	)

	job, err := h.store.GetJobByFileName(c.Request.Context(), fileName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	url, err := h.blobs.PresignedURL(c.Request.Context(), job.FileName)
	if err != nil {
		h.respondError(c, apperr.Internal("failed to presign file", err))
		return
	}

	c.JSON(http.StatusOK, dto.FileURLResponse{
		FileName:  job.FileName,
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(h.presignExpiry),
	})
}

// GetJob handles GET /api/v1/csv/jobs/:job_id
// Returns the processing status of one import job.
func (h *CSVHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	h.logger.Info("GetJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	id, err := uuid.Parse(jobID)
	if err != nil {
		h.respondError(c, apperr.BadRequest("job_id must be a valid UUID"))
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		JobID:            job.ID.String(),
		FileName:         job.FileName,
		OriginalFileName: job.OriginalFileName,
		JobType:          job.Type,
		Status:           job.Status,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	})
}

// respondError maps a tagged error to an HTTP response. Internal detail
// stays in the log; callers get the sanitized message.
func (h *CSVHandler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
	} else {
		h.logger.Warn("Request rejected",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(status, gin.H{
		"error": apperr.UserMessage(err),
	})
}
