package repository

import (
	"context"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SummaryRepository interface {
	FindByCounterparty(ctx context.Context, counterpartyID string) (*model.DebtSummary, error)
	List(ctx context.Context) ([]model.DebtSummary, error)
	// UpsertBatch writes all given summaries in one transaction.
	UpsertBatch(ctx context.Context, summaries []model.DebtSummary) error
}

type summaryRepo struct{ db *gorm.DB }

func NewSummaryRepository(db *gorm.DB) SummaryRepository { return &summaryRepo{db: db} }

func (r *summaryRepo) FindByCounterparty(ctx context.Context, counterpartyID string) (*model.DebtSummary, error) {
	var s model.DebtSummary
	err := r.db.WithContext(ctx).First(&s, "counterparty_id = ?", counterpartyID).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *summaryRepo) List(ctx context.Context) ([]model.DebtSummary, error) {
	var summaries []model.DebtSummary
	err := r.db.WithContext(ctx).Order("current_debt DESC").Find(&summaries).Error
	return summaries, err
}

func (r *summaryRepo) UpsertBatch(ctx context.Context, summaries []model.DebtSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "counterparty_id"}},
			UpdateAll: true,
		}).
		Create(&summaries).Error
}
