package worker

// orchestrator.go
// Runs reconciliation passes off the request path. Trigger allocates a
// PENDING job and returns immediately; the worker executing the job is the
// only writer of that record, and every failure — error or panic — ends up in
// the record instead of escaping the worker. Failures are observable solely
// via polling.

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/infra"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidSource rejects malformed trigger input synchronously, before a
// job record is created.
type ErrInvalidSource struct{ Source string }

func (e ErrInvalidSource) Error() string {
	return fmt.Sprintf("invalid trigger source %q", e.Source)
}

const maxSourceLen = 64

// Orchestrator owns the job lifecycle: PENDING → RUNNING → COMPLETED/FAILED.
// Concurrent triggers run concurrently; each performs a full independent pass
// and last-writer-wins on the stored summaries, which is self-correcting
// because the next run recomputes everything from scratch.
type Orchestrator struct {
	pool     *Pool
	registry *JobRegistry
	debts    service.DebtService
	mailer   *infra.Mailer
}

func NewOrchestrator(pool *Pool, registry *JobRegistry, debts service.DebtService, mailer *infra.Mailer) *Orchestrator {
	return &Orchestrator{pool: pool, registry: registry, debts: debts, mailer: mailer}
}

// Trigger schedules a reconciliation run and returns its job id. Returns
// ErrPoolBusy when the pool and queue are saturated.
func (o *Orchestrator) Trigger(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" || len(source) > maxSourceLen {
		return "", ErrInvalidSource{Source: source}
	}

	job := &model.AggregationJob{
		JobID:           uuid.NewString(),
		Status:          model.JobPending,
		Source:          source,
		CurrentStep:     service.StepQueued,
		ProgressPercent: 0,
		CreatedAt:       time.Now(),
	}
	o.registry.Insert(job)

	if err := o.pool.Submit(func() { o.execute(job.JobID, source) }); err != nil {
		// Saturated: the record must not linger as forever-PENDING.
		o.registry.Remove(job.JobID)
		return "", err
	}

	log.Info().Str("job_id", job.JobID).Str("source", source).Msg("reconciliation job queued")
	return job.JobID, nil
}

// execute runs one job to completion. There is no mid-run cancellation and no
// wall-clock timeout: long runs are expected and handled via polling.
func (o *Orchestrator) execute(jobID, source string) {
	defer func() {
		if r := recover(); r != nil {
			o.fail(jobID, source, fmt.Sprintf("panic: %v", r), string(debug.Stack()))
		}
	}()

	now := time.Now()
	o.registry.Update(jobID, func(j *model.AggregationJob) {
		j.Status = model.JobRunning
		j.StartedAt = &now
	})

	progress := func(step string, percent int) {
		o.registry.Update(jobID, func(j *model.AggregationJob) {
			j.CurrentStep = step
			if percent > j.ProgressPercent { // monotonic within a run
				j.ProgressPercent = percent
			}
		})
	}

	result, err := o.debts.Reconcile(context.Background(), source, progress)
	if err != nil {
		o.fail(jobID, source, err.Error(), fmt.Sprintf("%+v", err))
		return
	}

	completed := time.Now()
	o.registry.Update(jobID, func(j *model.AggregationJob) {
		j.Status = model.JobCompleted
		j.CurrentStep = "done"
		j.ProgressPercent = 100
		j.CompletedAt = &completed
		j.Result = result
	})
	log.Info().Str("job_id", jobID).Msg("reconciliation job completed")
}

func (o *Orchestrator) fail(jobID, source, message, details string) {
	completed := time.Now()
	o.registry.Update(jobID, func(j *model.AggregationJob) {
		j.Status = model.JobFailed
		j.CompletedAt = &completed
		j.ErrorMessage = message
		j.ErrorDetails = details
	})
	log.Error().Str("job_id", jobID).Str("source", source).Str("error", message).Msg("reconciliation job failed")

	if err := o.mailer.SendAlert(
		"debt reconciliation failed",
		fmt.Sprintf("job %s (source %s) failed: %s", jobID, source, message),
	); err != nil {
		log.Warn().Err(err).Msg("failed to send failure alert")
	}
}

// Status is a pure read of the job record.
func (o *Orchestrator) Status(jobID string) (model.AggregationJob, bool) {
	return o.registry.Get(jobID)
}

// Cleanup evicts terminal jobs older than maxAge.
func (o *Orchestrator) Cleanup(maxAge time.Duration) int {
	removed := o.registry.Cleanup(maxAge)
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("job registry cleaned up")
	}
	return removed
}

// StartCleanupCron ticks every interval and evicts expired terminal jobs.
// It respects the context for graceful shutdown.
func (o *Orchestrator) StartCleanupCron(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.Cleanup(maxAge)
			}
		}
	}()
}
