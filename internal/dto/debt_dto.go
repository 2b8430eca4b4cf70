package dto

import "github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

// TriggerRequest starts an async reconciliation run.
type TriggerRequest struct {
	Source string `json:"source" validate:"required,max=64"`
}

// TriggerResponse returns the handle for polling.
type TriggerResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is the polled job record.
type JobStatusResponse struct {
	Job model.AggregationJob `json:"job"`
}

// SummaryListResponse wraps the stored debt summaries.
type SummaryListResponse struct {
	Summaries []model.DebtSummary `json:"summaries"`
	Count     int                 `json:"count"`
}
