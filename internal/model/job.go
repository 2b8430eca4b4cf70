package model

import "time"

// JobStatus is the lifecycle state of an aggregation job.
// PENDING → RUNNING → COMPLETED | FAILED; terminal states never change.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// ReconcileResult is the outcome of one successful reconciliation run.
type ReconcileResult struct {
	TotalCustomers int           `json:"total_customers"`
	NewCount       int           `json:"new_count"`
	UpdatedCount   int           `json:"updated_count"`
	UnchangedCount int           `json:"unchanged_count"`
	Duration       time.Duration `json:"duration_ms"`
}

// AggregationJob is one asynchronous reconciliation run, retained in memory
// for polling. Only the worker executing the job mutates it; the registry
// hands out copies.
type AggregationJob struct {
	JobID           string           `json:"job_id"`
	Status          JobStatus        `json:"status"`
	Source          string           `json:"source"`
	CurrentStep     string           `json:"current_step"`
	ProgressPercent int              `json:"progress_percent"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Result          *ReconcileResult `json:"result,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ErrorDetails    string           `json:"error_details,omitempty"`
}
