package domain

import "time"

// JobStatus represents the status of a bulk index job.
// Values include JobStatusPending, JobStatusRunning, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IndexJob records one bulk indexing run over a document folder. The ledger
// is local bookkeeping; the documents themselves live in the document store.
type IndexJob struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	Folder       string     `gorm:"type:text;not null;index" json:"folder"`
	Status       JobStatus  `gorm:"default:pending" json:"status"`
	TotalFiles   int        `gorm:"default:0" json:"total_files"`
	IndexedFiles int        `gorm:"default:0" json:"indexed_files"`
	SkippedFiles int        `gorm:"default:0" json:"skipped_files"`
	FailedFiles  int        `gorm:"default:0" json:"failed_files"`
	Cleared      bool       `gorm:"default:false" json:"cleared"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorLog     string     `json:"error_log,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IndexJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (IndexJob) TableName() string {
	return "index_jobs"
}
