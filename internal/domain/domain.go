// Package domain holds the entities and wire messages shared by the API
// service and the import worker.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job status values. Processing and Failed are implicit states: a job
// being worked on stays Pending until the worker marks it Completed.
const (
	JobStatusPending   = "Pending"
	JobStatusCompleted = "Completed"
)

// Job type values.
const (
	JobTypeImport = "Import"
)

// Job tracks one uploaded file's processing lifecycle. FileName is the
// collision-resistant stored name; OriginalFileName is what the client
// uploaded.
type Job struct {
	ID               uuid.UUID  `db:"id"`
	FileName         string     `db:"file_name"`
	OriginalFileName string     `db:"original_file_name"`
	Type             string     `db:"job_type"`
	Status           string     `db:"status"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	IsDeleted        bool       `db:"is_deleted"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

// Record is one parsed CSV row persisted as a structured document tied
// to a Job. Data is the row serialized as a JSON object mapping column
// name to string value. Records are immutable once written.
type Record struct {
	ID         uuid.UUID `db:"id"`
	JobID      uuid.UUID `db:"job_id"`
	FileName   string    `db:"file_name"`
	ImportedAt time.Time `db:"imported_at"`
	Data       string    `db:"data"`
	IsDeleted  bool      `db:"is_deleted"`
}

// ImportJobMessage is the only payload carried on the durable import
// queue. A published message implies a corresponding Pending job exists.
type ImportJobMessage struct {
	JobID      uuid.UUID `json:"JobId"`
	FileName   string    `json:"FileName"`
	UploadedAt time.Time `json:"UploadedAt"`
}

// ChangeEvent is the transient fan-out notification body. It has no
// persisted identity and exists only on the wire.
type ChangeEvent struct {
	ChangeType  string    `json:"ChangeType"`
	Document    any       `json:"Document"`
	PublishedAt time.Time `json:"PublishedAt"`
}

// ImportCompleted is the document published on the changes exchange when
// a job finishes.
type ImportCompleted struct {
	JobID        uuid.UUID `json:"JobId"`
	FileName     string    `json:"FileName"`
	TotalRecords int       `json:"TotalRecords"`
}
