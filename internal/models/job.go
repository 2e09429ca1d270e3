package models

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type SourceKind string

const (
	SourceKindJSON SourceKind = "json"
	SourceKindCSV  SourceKind = "csv"
)

// IngestionJob tracks one uploaded file through the ingestion lifecycle.
// It is created by the upload handler with status "pending" and mutated only
// by the job runner while executing.
type IngestionJob struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	SourceKind    SourceKind `json:"source_kind" db:"source_kind"`
	FileName      string     `json:"file_name" db:"file_name"`
	FilePath      string     `json:"-" db:"file_path"`
	Status        JobStatus  `json:"status" db:"status"`
	Progress      int        `json:"progress" db:"progress"`
	TotalRows     int        `json:"total_rows" db:"total_rows"`
	ProcessedRows int        `json:"processed_rows" db:"processed_rows"`
	FailedRows    int        `json:"failed_rows" db:"failed_rows"`
	ErrorMessage  *string    `json:"error_message" db:"error_message"`
	Logs          string     `json:"logs" db:"logs"`
	TaskID        *string    `json:"task_id,omitempty" db:"task_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	StartedAt     *time.Time `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
}
