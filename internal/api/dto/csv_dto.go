package dto

import "time"

// FileDTO is one uploaded CSV file in the listing response.
type FileDTO struct {
	JobID            string `json:"job_id"`
	FileName         string `json:"file_name"`
	OriginalFileName string `json:"original_file_name"`
	Status           string `json:"status"`
	RecordCount      int    `json:"record_count"`
	UploadedAt       string `json:"uploaded_at"`
	UpdatedAt        string `json:"updated_at"`
}

// ListFilesResponse is the envelope for the file listing.
type ListFilesResponse struct {
	Files       []FileDTO `json:"files"`
	TotalFiles  int       `json:"total_files"`
	GeneratedAt time.Time `json:"generated_at"`
	Message     string    `json:"message"`
}

// FileURLResponse carries a presigned download URL.
type FileURLResponse struct {
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JobResponse is the job status lookup response.
type JobResponse struct {
	JobID            string `json:"job_id"`
	FileName         string `json:"file_name"`
	OriginalFileName string `json:"original_file_name"`
	JobType          string `json:"job_type"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}
