package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// summaryCacheKey caches the GET /v1/debts response; the writer drops it
// whenever summaries change.
const summaryCacheKey = "cache:debt-summaries"

// WriteCounts is the change-detection outcome of one write pass.
type WriteCounts struct {
	New       int
	Updated   int
	Unchanged int
}

// SummaryWriter diffs freshly computed summaries against the stored rows and
// persists only changed or new ones. The store bills per write, so re-running
// with no underlying data change must produce zero writes — that is the whole
// reason the engine recomputes from scratch and the writer diffs.
type SummaryWriter struct {
	repo repository.SummaryRepository
	rdb  *redis.Client // optional read-cache invalidation, may be nil
}

func NewSummaryWriter(repo repository.SummaryRepository, rdb *redis.Client) *SummaryWriter {
	return &SummaryWriter{repo: repo, rdb: rdb}
}

// Write persists the changed subset of summaries as one batched upsert.
func (w *SummaryWriter) Write(ctx context.Context, summaries []model.DebtSummary) (WriteCounts, error) {
	var counts WriteCounts
	var toWrite []model.DebtSummary

	for _, s := range summaries {
		stored, err := w.repo.FindByCounterparty(ctx, s.CounterpartyID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			counts.New++
			toWrite = append(toWrite, s)
		case err != nil:
			return WriteCounts{}, fmt.Errorf("lookup summary %s: %w", s.CounterpartyID, err)
		case stored.Equal(s):
			counts.Unchanged++
		default:
			counts.Updated++
			toWrite = append(toWrite, s)
		}
	}

	if len(toWrite) > 0 {
		if err := w.repo.UpsertBatch(ctx, toWrite); err != nil {
			return WriteCounts{}, fmt.Errorf("upsert summaries: %w", err)
		}
		w.invalidateCache(ctx)
	}

	log.Debug().
		Int("new", counts.New).
		Int("updated", counts.Updated).
		Int("unchanged", counts.Unchanged).
		Msg("summary write pass finished")
	return counts, nil
}

func (w *SummaryWriter) invalidateCache(ctx context.Context) {
	if w.rdb == nil {
		return
	}
	if err := w.rdb.Del(ctx, summaryCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate summary cache")
	}
}
