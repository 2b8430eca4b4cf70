package worker

import (
	"sync"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
)

// JobRegistry is the in-memory job store shared between the workers mutating
// their own job records and the polling path reading them. It is injected as
// a dependency, never touched as ambient global state; Trigger inserts and
// Cleanup evicts.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*model.AggregationJob
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*model.AggregationJob)}
}

func (r *JobRegistry) Insert(job *model.AggregationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobID] = job
}

// Get returns a copy so pollers never observe a job mid-mutation.
func (r *JobRegistry) Get(jobID string) (model.AggregationJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.AggregationJob{}, false
	}
	return *job, true
}

// Update applies fn to the job under the write lock. Only the worker
// executing a job may call this for that job.
func (r *JobRegistry) Update(jobID string, fn func(*model.AggregationJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		fn(job)
	}
}

func (r *JobRegistry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Cleanup evicts terminal jobs whose completion is older than maxAge and
// returns how many were removed. Without periodic cleanup the registry grows
// without bound.
func (r *JobRegistry) Cleanup(maxAge time.Duration) int {
	deadline := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.jobs {
		if !job.Status.Terminal() {
			continue
		}
		finished := job.CreatedAt
		if job.CompletedAt != nil {
			finished = *job.CompletedAt
		}
		if finished.Before(deadline) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Len reports the current number of tracked jobs (for the health endpoint).
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
